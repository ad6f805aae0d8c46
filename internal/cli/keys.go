package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/api"
)

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysRotateCmd)
	keysCmd.AddCommand(keysDeleteCmd)
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage service keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a service key",
	Long:  "Creates a new service key. The plaintext key is printed once and cannot be recovered.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp api.CreateKeyResp
		err := apiClient().PostJSON(cmd.Context(), "/v1/service-keys", api.CreateKeyReq{Name: args[0]}, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("created key %d (%s)\n", resp.ID, resp.Name)
		fmt.Printf("key: %s\n", resp.Key)
		fmt.Println("store it now — it will not be shown again")
		return nil
	},
}

var keysRotateCmd = &cobra.Command{
	Use:   "rotate <key-id>",
	Short: "Rotate a service key",
	Long:  "Generates a new plaintext for an existing key. The old plaintext stops working immediately.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid key id: %s", args[0])
		}
		var resp api.CreateKeyResp
		err = apiClient().PostJSON(cmd.Context(), fmt.Sprintf("/v1/service-keys/%d/rotate", id), nil, &resp)
		if err != nil {
			return err
		}
		fmt.Printf("rotated key %d (%s)\n", resp.ID, resp.Name)
		fmt.Printf("key: %s\n", resp.Key)
		fmt.Println("store it now — it will not be shown again")
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Revoke a service key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid key id: %s", args[0])
		}
		if err := apiClient().Delete(cmd.Context(), fmt.Sprintf("/v1/service-keys/%d", id), nil); err != nil {
			return err
		}
		fmt.Printf("revoked key %d\n", id)
		return nil
	},
}
