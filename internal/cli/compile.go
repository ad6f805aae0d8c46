package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/api"
	"github.com/arbetsytan/knox/internal/client"
)

var (
	compilePolicy   string
	compileTemplate string
	compileDocs     string
)

func init() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)

	compileCmd.Flags().StringVar(&compilePolicy, "policy", "internal", "Compilation policy name")
	compileCmd.Flags().StringVar(&compileTemplate, "template", "", "Report template id")
	compileCmd.Flags().StringVar(&compileDocs, "documents", "", "Comma-separated document ids (required)")
	compileCmd.MarkFlagRequired("documents") //nolint:errcheck
}

var compileCmd = &cobra.Command{
	Use:   "compile <project-id>",
	Short: "Compile a policy-gated report from sanitized documents",
	Long: "Requests a report over the named documents. Identical requests\n" +
		"return the stored report; a gate refusal prints its stage and\n" +
		"reason codes and exits nonzero.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		var docIDs []int64
		for _, s := range strings.Split(compileDocs, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id: %s", s)
			}
			docIDs = append(docIDs, id)
		}

		var report api.ReportResp
		err = apiClient().PostJSON(cmd.Context(), "/v1/knox/compile", api.CompileReq{
			ProjectID:   projectID,
			Policy:      compilePolicy,
			TemplateID:  compileTemplate,
			DocumentIDs: docIDs,
		}, &report)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
				return fmt.Errorf("compile refused: %s", apiErr.Detail)
			}
			return err
		}
		return printJSON(report)
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect compiled reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's compiled reports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		var reports []api.ReportResp
		path := fmt.Sprintf("/v1/projects/%d/reports", projectID)
		if err := apiClient().GetJSON(cmd.Context(), path, &reports); err != nil {
			return err
		}
		return printJSON(reports)
	},
}
