package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/api"
	"github.com/arbetsytan/knox/internal/chread"
)

var eventsType string

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsSummaryCmd)

	eventsListCmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the audit trail",
}

var eventsListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List a project's audit events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		path := fmt.Sprintf("/v1/projects/%d/events", projectID)
		if eventsType != "" {
			path += "?event_type=" + eventsType
		}

		var resp api.EventListResp
		if err := apiClient().GetJSON(cmd.Context(), path, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

var eventsSummaryCmd = &cobra.Command{
	Use:   "summary <project-id>",
	Short: "Show aggregate audit counts for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id: %s", args[0])
		}

		var summary chread.SummaryResult
		path := fmt.Sprintf("/v1/projects/%d/events/summary", projectID)
		if err := apiClient().GetJSON(cmd.Context(), path, &summary); err != nil {
			return err
		}
		return printJSON(summary)
	},
}
