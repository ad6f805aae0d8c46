package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/api"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.AddCommand(documentsListCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <project-id> [file]",
	Short: "Sanitize and store a document",
	Long: "Uploads a text document into a project. The server masks PII through\n" +
		"the escalating pipeline and persists only the masked rendition; the\n" +
		"local filename never leaves this machine. Reads stdin when no file\n" +
		"is given.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		in := os.Stdin
		if len(args) == 2 {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			in = f
		}

		var resp api.IngestResp
		path := fmt.Sprintf("/v1/projects/%d/documents", projectID)
		if err := apiClient().Upload(cmd.Context(), path, in, &resp); err != nil {
			return err
		}

		fmt.Printf("document %d sanitized at level %s (%d findings, ai_allowed=%v)\n",
			resp.Document.ID, resp.Document.SanitizeLevel,
			len(resp.Findings), resp.Document.UsageRestrictions.AIAllowed)
		return nil
	},
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Inspect sanitized documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's sanitized documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		var docs []api.DocumentResp
		path := fmt.Sprintf("/v1/projects/%d/documents", projectID)
		if err := apiClient().GetJSON(cmd.Context(), path, &docs); err != nil {
			return err
		}
		return printJSON(docs)
	},
}
