package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"
	"github.com/tessellated-io/wasmledger/coding"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/contract"
	"github.com/tessellated-io/wasmledger/cosmos/faucet"
	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/crypto"
	"github.com/tessellated-io/wasmledger/log"
	"github.com/tessellated-io/wasmledger/metrics"
	"github.com/tessellated-io/wasmledger/util"
)

const (
	flagWasm        = "wasm"
	flagTokenID     = "token-id"
	flagAmount      = "amount"
	flagLabel       = "label"
	flagMnemonic    = "mnemonic"
	flagMetricsAddr = "metrics-addr"

	defaultTokenID = "680564733841876926926749214863536422912"
	defaultAmount  = "1"
	defaultLabel   = "some_label"
)

type demoOptions struct {
	wasmPath string
	tokenID  string
	amount   string
	label    string
}

type demoResult struct {
	Contract contract.ContractState
	Address  string
	Balance  math.Int
}

func RunCmd() *cobra.Command {
	var (
		opts        demoOptions
		mnemonic    string
		metricsAddr string
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fund a key, deploy the contract, then create, mint and query a token",
		Example: `contract-demo run --chain-name fetchhubtestnet --wasm ./cw_erc1155.wasm

# Using a config file and environment variables:
WASMLEDGER_LOG_LEVEL=debug contract-demo run --config ~/.wasmledger/config.yml --wasm ./cw_erc1155.wasm`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			defer func() {
				if recovered := recover(); recovered != nil {
					err = util.RecoveredToError(recovered)
				}
			}()

			ctx := cmd.Context()
			bootLevel, _ := cmd.Flags().GetString(flagLogLevel)
			if bootLevel == "" {
				bootLevel = config.DefaultLogLevel
			}

			cfg, slip44, err := loadChainConfig(ctx, cmd, log.NewLogger(bootLevel))
			if err != nil {
				return err
			}
			logger := log.NewLogger(cfg.LogLevel).ApplyPrefix("🧪")

			signer, err := demoSigner(slip44, mnemonic)
			if err != nil {
				return err
			}

			promMetrics := metrics.NewPrometheusMetrics("wasmledger")
			if metricsAddr != "" {
				stop := serveMetrics(metricsAddr, promMetrics, logger)
				defer stop()
			}

			result, err := runDemo(ctx, cfg, signer, opts, promMetrics, logger)
			if err != nil {
				logger.Error("demo failed", "error", err.Error())
				return err
			}

			cmd.Printf("contract: %s\n", result.Contract)
			cmd.Printf("balance of %s for token %s: %s\n", result.Address, opts.tokenID, result.Balance)
			return nil
		},
	}

	runCmd.Flags().StringVar(&opts.wasmPath, flagWasm, "", "Path to the compiled contract")
	runCmd.Flags().StringVar(&opts.tokenID, flagTokenID, defaultTokenID, "Token id to create and mint")
	runCmd.Flags().StringVar(&opts.amount, flagAmount, defaultAmount, "Supply to mint")
	runCmd.Flags().StringVar(&opts.label, flagLabel, defaultLabel, "Contract label")
	runCmd.Flags().StringVar(&mnemonic, flagMnemonic, "", "Mnemonic of the sender. A fresh key is generated when empty")
	runCmd.Flags().StringVar(&metricsAddr, flagMetricsAddr, "", "Serve Prometheus metrics on this address (ex. :9090)")
	_ = runCmd.MarkFlagRequired(flagWasm)

	return runCmd
}

func demoSigner(slip44 uint32, mnemonic string) (crypto.BytesSigner, error) {
	if mnemonic == "" {
		return crypto.GenerateKeyPair(), nil
	}
	return crypto.GetSoftSigner(slip44, mnemonic)
}

// runDemo funds the signer, deploys and instantiates the contract, creates and mints a token, and checks the
// queried balance matches what was minted.
func runDemo(ctx context.Context, cfg *config.ChainConfig, signer crypto.BytesSigner, opts demoOptions, m metrics.Metrics, logger *log.Logger) (*demoResult, error) {
	expected, ok := math.NewIntFromString(opts.amount)
	if !ok || !expected.IsPositive() {
		return nil, config.ErrConfig.Wrapf("amount %q must be a positive integer", opts.amount)
	}

	encoding := tx.MakeEncodingConfig()
	restClient, err := rpc.NewRestClient(cfg.RestAddress, encoding.Codec, logger)
	if err != nil {
		return nil, err
	}

	ledger, err := contract.NewLedger(cfg, restClient, tx.NewBuilder(encoding.TxConfig, ""), logger, contract.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	address := signer.GetAddress(cfg.AddressPrefix)
	logger = logger.With("address", address)
	logger.Debug("loaded signer", "public_key", coding.NormalizeBytesToHex(signer.GetPublicKey().Bytes()))

	if cfg.FaucetURL != "" {
		faucetClient, err := faucet.NewClient(cfg, restClient, logger)
		if err != nil {
			return nil, err
		}
		if err := faucetClient.EnsureFunds(ctx, address); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no faucet configured, the sender must already hold funds")
	}

	state, _, err := ledger.DeployContractFile(ctx, signer, opts.wasmPath)
	if err != nil {
		return nil, err
	}
	state, _, err = ledger.InstantiateContract(ctx, signer, state, map[string]any{}, opts.label, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("🚀 contract ready", "contract", state.String())

	createSingle := map[string]any{
		"create_single": map[string]any{
			"item_owner": address,
			"id":         opts.tokenID,
			"path":       "some_path",
		},
	}
	if _, err := ledger.ExecuteContract(ctx, signer, state, createSingle, nil); err != nil {
		return nil, err
	}

	mintSingle := map[string]any{
		"mint_single": map[string]any{
			"to_address": address,
			"id":         opts.tokenID,
			"supply":     opts.amount,
			"data":       "some_data",
		},
	}
	if _, err := ledger.ExecuteContract(ctx, signer, state, mintSingle, nil); err != nil {
		return nil, err
	}

	balanceQuery := map[string]any{
		"balance": map[string]any{
			"address": address,
			"id":      opts.tokenID,
		},
	}
	queryResult, err := ledger.QueryContractState(ctx, state, balanceQuery)
	if err != nil {
		return nil, err
	}

	balance, err := util.NumberToInt(queryResult["balance"])
	if err != nil {
		return nil, tx.ErrEncoding.Wrapf("balance query returned %v: %s", queryResult, err)
	}
	if !balance.Equal(expected) {
		return nil, fmt.Errorf("balance mismatch: minted %s, contract reports %s", expected, balance)
	}

	logger.Info("✅ minted balance confirmed", "token_id", opts.tokenID, "balance", balance.String())
	return &demoResult{Contract: state, Address: address, Balance: balance}, nil
}

// serveMetrics exposes the registry until the returned func is called.
func serveMetrics(addr string, m *metrics.PrometheusMetrics, logger *log.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.HTTPHandler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err.Error())
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
