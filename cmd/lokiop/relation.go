package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/obsstack/lokiop/pkg/relation"
	"github.com/obsstack/lokiop/pkg/types"
)

// Relation commands
var relationCmd = &cobra.Command{
	Use:   "relation",
	Short: "Inspect the local relation store",
}

var relationDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the databags of the cluster relation",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		endpoint, _ := cmd.Flags().GetString("endpoint")

		store, err := relation.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open relation store: %v", err)
		}
		defer store.Close()

		rel, ok := store.Relation(endpoint)
		if !ok {
			fmt.Printf("No relation on endpoint %q\n", endpoint)
			return nil
		}

		dump := map[string]any{
			"id":         rel.ID,
			"endpoint":   rel.Endpoint,
			"remote-app": rel.RemoteApp,
		}
		if rel.Data != nil {
			bags := make(map[string]map[string]string, len(rel.Data))
			for participant, bag := range rel.Data {
				bags[string(participant)] = bag
			}
			dump["databags"] = bags
		}

		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		if err := encoder.Encode(dump); err != nil {
			return fmt.Errorf("failed to render relation: %v", err)
		}
		return encoder.Close()
	},
}

func init() {
	relationCmd.AddCommand(relationDumpCmd)

	relationDumpCmd.Flags().String("data-dir", "./lokiop-data", "Data directory for local state")
	relationDumpCmd.Flags().String("endpoint", types.ClusterEndpoint, "Relation endpoint name")
}
