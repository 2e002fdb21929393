package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether the remote workspace is reachable",
	Long: `Performs one minimal real read against the paths collection. Exits
non-zero when the workspace cannot be reached; authentication problems are
reported on stderr in verbose mode.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if records.Probe(cmd.Context()) {
			cmd.Println("reachable")
			return nil
		}
		return errors.New("workspace unreachable")
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
