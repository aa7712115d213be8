package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsstack/lokiop/pkg/secrets"
)

// Secret commands
var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage the local secret store",
}

var secretPutCmd = &cobra.Command{
	Use:   "put ID",
	Short: "Store a secret's content fields",
	Long: `Store a secret under the given ID. Content fields are passed as
--field name=value pairs, e.g.:

  lokiop secret put sec-123 --field private-key=@key.pem --field ca-cert=...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		dataDir, _ := cmd.Flags().GetString("data-dir")
		password, _ := cmd.Flags().GetString("secrets-password")
		fields, _ := cmd.Flags().GetStringArray("field")

		content := make(map[string]string, len(fields))
		for _, field := range fields {
			name, value, ok := strings.Cut(field, "=")
			if !ok {
				return fmt.Errorf("invalid --field %q, expected name=value", field)
			}
			content[name] = value
		}

		store, err := secrets.OpenWithPassword(dataDir, password)
		if err != nil {
			return fmt.Errorf("failed to open secret store: %v", err)
		}
		defer store.Close()

		if err := store.Put(id, content); err != nil {
			return fmt.Errorf("failed to store secret: %v", err)
		}
		fmt.Printf("Secret %q stored (%d fields)\n", id, len(content))
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		dataDir, _ := cmd.Flags().GetString("data-dir")
		password, _ := cmd.Flags().GetString("secrets-password")

		store, err := secrets.OpenWithPassword(dataDir, password)
		if err != nil {
			return fmt.Errorf("failed to open secret store: %v", err)
		}
		defer store.Close()

		if err := store.Delete(id); err != nil {
			return fmt.Errorf("failed to delete secret: %v", err)
		}
		fmt.Printf("Secret %q deleted\n", id)
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretPutCmd)
	secretCmd.AddCommand(secretDeleteCmd)

	for _, cmd := range []*cobra.Command{secretPutCmd, secretDeleteCmd} {
		cmd.Flags().String("data-dir", "./lokiop-data", "Data directory for local state")
		cmd.Flags().String("secrets-password", "", "Password for the local secret store")
		cmd.MarkFlagRequired("secrets-password")
	}
	secretPutCmd.Flags().StringArray("field", nil, "Content field as name=value (repeatable)")
}
