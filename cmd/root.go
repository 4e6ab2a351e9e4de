package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mezonai/mmn-wallet/config"
	"github.com/mezonai/mmn-wallet/exception"
	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/monitoring"
	"github.com/mezonai/mmn-wallet/network"
	"github.com/mezonai/mmn-wallet/storage"
	"github.com/mezonai/mmn-wallet/wallet"
)

var (
	configPath string
	password   string
)

var rootCmd = &cobra.Command{
	Use:   "mwallet",
	Short: "Stealth address wallet CLI",
	Long:  "Command line interface for receiving and spending funds through unlinkable stealth addresses on an MMN node.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "wallet.yml", "path to the wallet config file")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "keystore password (or MWALLET_PASSWORD)")
}

func keystorePassword() (string, error) {
	if password != "" {
		return password, nil
	}
	if env := os.Getenv("MWALLET_PASSWORD"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("keystore password required: pass --password or set MWALLET_PASSWORD")
}

func loadConfig() *config.WalletConfig {
	cfg, err := config.LoadWalletConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultConfig()
		}
		logx.Error("CMD", "failed to load config: ", err)
		os.Exit(1)
	}
	return cfg
}

// openWallet wires the full wallet from config. Callers must Close both
// returned handles.
func openWallet() (*wallet.Manager, *ledger.Client, storage.Provider) {
	cfg := loadConfig()

	pw, err := keystorePassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	kp, created, err := wallet.LoadOrCreateKeyPair(cfg.KeystorePath, pw)
	if err != nil {
		logx.Error("CMD", "failed to open keystore: ", err)
		os.Exit(1)
	}
	if created {
		fmt.Println("created new identity, meta-address:", kp.MetaAddress())
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		logx.Error("CMD", "failed to create data dir: ", err)
		os.Exit(1)
	}
	store, err := storage.NewBoltProvider(filepath.Join(cfg.DataDir, "wallet.db"))
	if err != nil {
		logx.Error("CMD", "failed to open storage: ", err)
		os.Exit(1)
	}

	lgrClient := ledger.NewClient(ledger.Config{
		Endpoint:       cfg.RPCEndpoint,
		ConfirmTimeout: cfg.ConfirmTimeout,
	})

	var signer ledger.Signer
	if cfg.FundingKeyPath != "" {
		seed, err := config.LoadSeedFile(cfg.FundingKeyPath)
		if err != nil {
			logx.Error("CMD", "failed to load funding key: ", err)
			os.Exit(1)
		}
		seedSigner, err := ledger.NewSeedSigner(seed)
		keypair.Wipe(seed)
		if err != nil {
			logx.Error("CMD", "failed to build signer: ", err)
			os.Exit(1)
		}
		signer = seedSigner
	}

	mgr, err := wallet.NewManager(wallet.Config{
		KeyPair:   kp,
		Ledger:    lgrClient,
		Storage:   store,
		Signer:    signer,
		NetStatus: network.NewMonitor(lgrClient),
		Fee:       cfg.Fee,
	})
	if err != nil {
		logx.Error("CMD", "failed to build wallet: ", err)
		os.Exit(1)
	}

	if cfg.MetricsListen != "" {
		exception.SafeGo("metrics-server", func() {
			monitoring.ServeMetrics(cfg.MetricsListen)
		})
	}
	return mgr, lgrClient, store
}
