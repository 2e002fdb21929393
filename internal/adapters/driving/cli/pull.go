package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var pullForce bool

var pullCmd = &cobra.Command{
	Use:       "pull {nodes|paths|nodepaths|categories}",
	Short:     "Fetch a record collection and print it as JSON",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"nodes", "paths", "nodepaths", "categories"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			value any
			err   error
		)
		switch args[0] {
		case "nodes":
			value, err = records.FetchNodes(ctx, pullForce)
		case "paths":
			value, err = records.FetchPaths(ctx, pullForce)
		case "nodepaths":
			value, err = records.FetchNodePaths(ctx, pullForce)
		case "categories":
			value, err = records.FetchCategories(ctx, pullForce)
		default:
			return fmt.Errorf("unknown collection %q", args[0])
		}
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func init() {
	pullCmd.Flags().BoolVar(&pullForce, "force", false, "bypass the cache")
	rootCmd.AddCommand(pullCmd)
}
