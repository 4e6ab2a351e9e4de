package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mezonai/mmn-wallet/logx"
)

// WalletConfig is the wallet's YAML configuration file.
type WalletConfig struct {
	// RPCEndpoint is the node's JSON-RPC HTTP URL.
	RPCEndpoint string `yaml:"rpc_endpoint"`
	// DataDir holds the storage database.
	DataDir string `yaml:"data_dir"`
	// KeystorePath is the encrypted identity file.
	KeystorePath string `yaml:"keystore_path"`
	// FundingKeyPath is a hex-encoded ed25519 seed file for the regular
	// funding address. Optional: without it the wallet is watch-only.
	FundingKeyPath string `yaml:"funding_key_path"`
	// MetricsListen enables the prometheus endpoint when set.
	MetricsListen string `yaml:"metrics_listen"`
	// ConfirmTimeout bounds how long a submitted tx may take to confirm.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	// Fee is the reserve kept back when sweeping a stealth address.
	Fee uint64 `yaml:"fee"`
}

type configFile struct {
	Wallet WalletConfig `yaml:"wallet"`
}

// DefaultConfig returns a config pointing at a local node.
func DefaultConfig() *WalletConfig {
	return &WalletConfig{
		RPCEndpoint:    "http://localhost:8899/rpc",
		DataDir:        "./data",
		KeystorePath:   "./data/keystore.bin",
		ConfirmTimeout: 60 * time.Second,
	}
}

// LoadWalletConfig reads and parses the wallet.yml file, filling unset
// fields from the defaults.
func LoadWalletConfig(path string) (*WalletConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfgFile configFile
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfgFile); err != nil {
		logx.Error("CONFIG", "failed to decode ", path, ": ", err)
		return nil, err
	}

	cfg := cfgFile.Wallet
	defaults := DefaultConfig()
	if cfg.RPCEndpoint == "" {
		cfg.RPCEndpoint = defaults.RPCEndpoint
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaults.DataDir
	}
	if cfg.KeystorePath == "" {
		cfg.KeystorePath = defaults.KeystorePath
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = defaults.ConfirmTimeout
	}
	return &cfg, nil
}
