package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/registry"
	"github.com/tessellated-io/wasmledger/crypto"
	"github.com/tessellated-io/wasmledger/log"
)

const (
	flagConfig          = "config"
	flagChainName       = "chain-name"
	flagRegistryURL     = "registry-url"
	flagRegistryChainID = "registry-chain-id"
	flagLogLevel        = "log-level"

	defaultRegistryURL = registry.DefaultBaseURL

	registryAttempts = 3
	registryDelay    = time.Second
)

var (
	configFile  string
	chainName   string
	registryURL string

	// Looks the chain up by ID when its registry name is unknown
	registryChainID string
)

// Chain flags, keyed by the config field they set.
var chainFlags = map[string]string{
	"chain_id":          "Chain ID transactions are signed for",
	"rest_address":      "Base URL of the node's REST endpoint",
	"faucet_url":        "Base URL of the testnet faucet",
	"denom":             "Fee denom",
	"minimum_gas_price": "Minimum gas price per unit of gas",
	"address_prefix":    "Bech32 account address prefix",
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func bindChainFlags(cmd *cobra.Command) {
	for key, usage := range chainFlags {
		cmd.PersistentFlags().String(flagName(key), "", usage)
	}
}

// loadChainConfig resolves config values from the following sources, highest precedence first:
// 1. Bound flags
// 2. Environment variables
// 3. The config file
// 4. The chain registry, if --chain-name or --registry-chain-id is set
// 5. Client defaults
func loadChainConfig(ctx context.Context, cmd *cobra.Command, logger *log.Logger) (*config.ChainConfig, uint32, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setViperDefaults(v, config.NewChainConfig("", "", "", "", "", ""))

	if chainName != "" && registryChainID != "" {
		return nil, 0, config.ErrConfig.Wrapf("--%s and --%s are mutually exclusive", flagChainName, flagRegistryChainID)
	}

	slip44 := crypto.CosmosCoinType
	if chainName != "" || registryChainID != "" {
		client := registry.NewRetryableChainRegistryClient(registryAttempts, registryDelay, registry.NewChainRegistryClient(logger, registryURL), logger)
		offline := registry.NewOfflineChainRegistry()

		var (
			resolved *registry.ResolvedChain
			err      error
		)
		if chainName != "" {
			resolved, err = registry.ResolveChain(ctx, client, offline, chainName)
		} else {
			resolved, err = registry.ResolveChainByID(ctx, client, offline, registryChainID)
		}
		if err != nil {
			return nil, 0, err
		}
		setViperDefaults(v, resolved.Config)
		slip44 = resolved.Slip44
		logger.Info("seeded chain parameters from the registry", "chain_name", chainName, "chain_id", resolved.Config.ChainID)
	}

	if configFile != "" {
		path, err := config.ReadFile(configFile)
		if err != nil {
			return nil, 0, err
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, 0, config.ErrConfig.Wrapf("reading %s: %s", path, err)
			}
		}
	}

	for key := range chainFlags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName(key))); err != nil {
			return nil, 0, err
		}
	}
	if err := v.BindPFlag("log_level", cmd.Flags().Lookup(flagLogLevel)); err != nil {
		return nil, 0, err
	}

	cfg := &config.ChainConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, 0, config.ErrConfig.Wrapf("decoding config: %s", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, 0, err
	}
	return cfg, slip44, nil
}

// setViperDefaults registers every config key, which AutomaticEnv needs in order to see it.
func setViperDefaults(v *viper.Viper, cfg *config.ChainConfig) {
	v.SetDefault("chain_id", cfg.ChainID)
	v.SetDefault("rest_address", cfg.RestAddress)
	v.SetDefault("faucet_url", cfg.FaucetURL)
	v.SetDefault("denom", cfg.Denom)
	v.SetDefault("minimum_gas_price", cfg.MinimumGasPrice)
	v.SetDefault("address_prefix", cfg.AddressPrefix)
	v.SetDefault("gas_adjustment", cfg.GasAdjustment)
	v.SetDefault("default_gas_limit", cfg.DefaultGasLimit)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("confirmation_timeout", cfg.ConfirmationTimeout)
	v.SetDefault("funding_timeout", cfg.FundingTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
}
