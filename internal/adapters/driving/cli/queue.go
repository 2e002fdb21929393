package cli

import (
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the offline write queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the sync status and pending writes",
	Run: func(cmd *cobra.Command, _ []string) {
		st := status.Status()
		cmd.Printf("state:   %s\n", st.State)
		if st.Message != "" {
			cmd.Printf("message: %s\n", st.Message)
		}
		cmd.Printf("pending: %d\n", queue.Pending())
		for _, req := range queue.PendingRequests() {
			cmd.Printf("  %s %s (queued %s)\n", req.Method, req.Path, req.EnqueuedAt.Format("15:04:05"))
		}
	},
}

var queueFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Force an immediate drain attempt",
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue.Flush(cmd.Context())
		cmd.Printf("pending after flush: %d\n", queue.Pending())
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard all pending writes",
	Long: `Discards every queued write. Each pending caller is rejected with a
queue-cleared error; the discarded operations are gone for good.`,
	Run: func(cmd *cobra.Command, _ []string) {
		n := queue.Pending()
		queue.Clear()
		cmd.Printf("cleared %d pending writes\n", n)
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueFlushCmd, queueClearCmd)
	rootCmd.AddCommand(queueCmd)
}
