package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/stealth"
)

var (
	sendTo     string
	sendAmount uint64

	shieldAmount uint64

	unshieldSignature   string
	unshieldDestination string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the encrypted keystore and print the meta-address",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()
		fmt.Println("meta-address:", mgr.MetaAddress())
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the publishable meta-address",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()
		fmt.Println(mgr.MetaAddress())
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Prepare and send a stealth payment",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		prepared, err := mgr.PreparePayment(sendTo, sendAmount)
		if err != nil {
			logx.Error("CMD", "prepare payment: ", err)
			os.Exit(1)
		}
		result, err := mgr.SendPayment(context.Background(), prepared)
		if err != nil {
			logx.Error("CMD", "send payment: ", err)
			os.Exit(1)
		}
		if result.Settled {
			fmt.Println("settled:", result.Signature)
		} else {
			fmt.Println("queued:", result.QueueID)
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the ledger for incoming stealth payments",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		payments, err := mgr.ScanIncoming(context.Background())
		if err != nil {
			logx.Error("CMD", "scan: ", err)
			os.Exit(1)
		}
		if len(payments) == 0 {
			fmt.Println("no new payments")
			return
		}
		for _, p := range payments {
			fmt.Printf("%s  amount=%d  slot=%d  tx=%s\n", p.StealthAddress, p.Amount, p.Slot, p.Signature)
		}
	},
}

var shieldCmd = &cobra.Command{
	Use:   "shield",
	Short: "Move funds from the regular funding address into a fresh stealth address",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		result, err := mgr.Shield(context.Background(), shieldAmount)
		if err != nil {
			logx.Error("CMD", "shield: ", err)
			os.Exit(1)
		}
		fmt.Println("shielded into:", result.StealthAddress)
		fmt.Println("tx:", result.Signature)
	},
}

var unshieldCmd = &cobra.Command{
	Use:   "unshield",
	Short: "Sweep a received stealth payment to a regular address",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, client, store := openWallet()
		defer mgr.Close()
		defer client.Close()
		defer store.Close()

		ctx := context.Background()
		tx, err := client.GetTransaction(ctx, unshieldSignature)
		if err != nil {
			logx.Error("CMD", "fetch payment tx: ", err)
			os.Exit(1)
		}
		tag, ephemeralPub, err := stealth.ParseMetadata(tx.TextData)
		if err != nil {
			logx.Error("CMD", "tx carries no stealth metadata: ", err)
			os.Exit(1)
		}
		detected := &stealth.DetectedPayment{
			StealthAddress: tx.Recipient,
			EphemeralPub:   ephemeralPub,
			ViewTag:        tag,
			Slot:           tx.Slot,
			Signature:      tx.Hash,
		}
		txHash, err := mgr.Unshield(ctx, detected, unshieldDestination)
		if err != nil {
			logx.Error("CMD", "unshield: ", err)
			os.Exit(1)
		}
		fmt.Println("tx:", txHash)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "receiver meta-address")
	sendCmd.Flags().Uint64Var(&sendAmount, "amount", 0, "amount in base units")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")

	shieldCmd.Flags().Uint64Var(&shieldAmount, "amount", 0, "amount in base units")
	shieldCmd.MarkFlagRequired("amount")

	unshieldCmd.Flags().StringVar(&unshieldSignature, "signature", "", "transaction signature of the received payment")
	unshieldCmd.Flags().StringVar(&unshieldDestination, "dest", "", "destination address")
	unshieldCmd.MarkFlagRequired("signature")
	unshieldCmd.MarkFlagRequired("dest")

	rootCmd.AddCommand(initCmd, addressCmd, sendCmd, scanCmd, shieldCmd, unshieldCmd)
}
