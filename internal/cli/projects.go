package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/api"
)

var (
	createProjectDescription    string
	createProjectClassification string
)

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)

	projectsCreateCmd.Flags().StringVar(&createProjectDescription, "description", "", "Project description")
	projectsCreateCmd.Flags().StringVar(&createProjectClassification, "classification", "normal", "Sensitivity grade (normal|sensitive|source-sensitive)")
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		var projects []api.ProjectResp
		if err := apiClient().GetJSON(cmd.Context(), "/v1/projects", &projects); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tCLASSIFICATION\tCREATED")
		for _, p := range projects {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Classification, p.CreatedAt.Format("2006-01-02"))
		}
		return tw.Flush()
	},
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var project api.ProjectResp
		err := apiClient().PostJSON(cmd.Context(), "/v1/projects", api.CreateProjectReq{
			Name:           args[0],
			Description:    createProjectDescription,
			Classification: createProjectClassification,
		}, &project)
		if err != nil {
			return err
		}
		return printJSON(project)
	},
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Permanently delete a project and all its data",
	Long: "Runs the verified delete: stored files first, then an orphan check,\n" +
		"then database rows. Fails without touching rows if any file remains.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		var receipt api.DeleteResp
		if err := apiClient().Delete(cmd.Context(), fmt.Sprintf("/v1/projects/%d", id), &receipt); err != nil {
			return err
		}
		fmt.Printf("deleted project %d: %d files, %d rows\n",
			receipt.TargetID, receipt.FilesDeleted, receipt.RowsDeleted)
		return nil
	},
}

// printJSON writes v to stdout with indentation.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
