package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-wallet/logx"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drive the offline payment queue",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		entries := mgr.Queue().Entries()
		if len(entries) == 0 {
			fmt.Println("queue is empty")
			return
		}
		for _, entry := range entries {
			line := fmt.Sprintf("%s  %s  amount=%d  retries=%d",
				entry.ID, entry.Status, entry.Payment.Amount, entry.RetryCount)
			if entry.Signature != "" {
				line += "  tx=" + entry.Signature
			}
			if entry.FailureReason != "" {
				line += "  reason=" + entry.FailureReason
			}
			fmt.Println(line)
		}
	},
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one settlement pass now",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		outcomes, err := mgr.Queue().ProcessQueue(context.Background())
		if err != nil {
			logx.Error("CMD", "process queue: ", err)
			os.Exit(1)
		}
		for _, outcome := range outcomes {
			line := fmt.Sprintf("%s  %s", outcome.ID, outcome.Status)
			if outcome.Signature != "" {
				line += "  tx=" + outcome.Signature
			}
			if outcome.Err != "" {
				line += "  err=" + outcome.Err
			}
			fmt.Println(line)
		}
	},
}

var queueClearFailedCmd = &cobra.Command{
	Use:   "clear-failed",
	Short: "Drop retained failed entries",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		if err := mgr.Queue().ClearFailed(); err != nil {
			logx.Error("CMD", "clear failed entries: ", err)
			os.Exit(1)
		}
		fmt.Println("cleared")
	},
}

func init() {
	queueCmd.AddCommand(queueProcessCmd, queueClearFailedCmd)
	rootCmd.AddCommand(queueCmd)
}
