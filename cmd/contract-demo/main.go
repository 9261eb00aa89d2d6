package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// envPrefix is the viper env prefix, ex. WASMLEDGER_CHAIN_ID.
const envPrefix = "WASMLEDGER"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := RootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "contract-demo",
		Short: "Deploys and exercises an ERC1155 style CosmWasm contract over REST",
		Long: `Deploys and exercises an ERC1155 style CosmWasm contract over REST.

Chain parameters come from, in order of precedence: flags, WASMLEDGER_ prefixed environment
variables, the config file, and finally the chain registry when --chain-name is given.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, flagConfig, "", "Path to a YAML chain config (see init-config)")
	rootCmd.PersistentFlags().StringVar(&chainName, flagChainName, "", "Seed chain parameters from the chain registry (ex. fetchhubtestnet)")
	rootCmd.PersistentFlags().StringVar(&registryChainID, flagRegistryChainID, "", "Seed chain parameters from the registry entry with this chain ID (ex. capricorn-1)")
	rootCmd.PersistentFlags().StringVar(&registryURL, flagRegistryURL, defaultRegistryURL, "Chain registry base URL")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "One of debug, info, warn, error")
	bindChainFlags(rootCmd)

	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(InitConfigCmd())

	return rootCmd
}
