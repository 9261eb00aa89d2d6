package contract

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/tessellated-io/wasmledger/arrays"
	"github.com/tessellated-io/wasmledger/coding"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/crypto"
	"github.com/tessellated-io/wasmledger/log"
	"github.com/tessellated-io/wasmledger/metrics"
)

// Ledger drives contracts through store, instantiate and execute. It keeps no contract state of its own;
// callers pass the ContractState returned by one call into the next.
//
// Transactions from one account are serialized from fetching the sequence until the transaction is confirmed
// or abandoned. Different accounts proceed in parallel. Nothing is ever resubmitted.
type Ledger struct {
	cfg      *config.ChainConfig
	gasPrice sdk.DecCoin

	client                  rpc.RpcClient
	builder                 *tx.Builder
	signingMetadataProvider *tx.SigningMetadataProvider
	simulationManager       tx.SimulationManager
	accountLocks            *accountLocks

	metrics metrics.Metrics
	log     *log.Logger
}

type Option func(*Ledger)

func WithMetrics(m metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// NewLedger validates cfg and wires up a ledger facade for its chain.
func NewLedger(cfg *config.ChainConfig, client rpc.RpcClient, builder *tx.Builder, logger *log.Logger, opts ...Option) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gasPrice, err := cfg.GasPrice()
	if err != nil {
		return nil, err
	}

	signingMetadataProvider, err := tx.NewSigningMetadataProvider(cfg.ChainID, cfg.AddressPrefix, client)
	if err != nil {
		return nil, err
	}
	simulationManager, err := tx.NewSimulationManager(client)
	if err != nil {
		return nil, err
	}

	ledger := &Ledger{
		cfg:      cfg,
		gasPrice: gasPrice,

		client:                  client,
		builder:                 builder,
		signingMetadataProvider: signingMetadataProvider,
		simulationManager:       simulationManager,
		accountLocks:            newAccountLocks(),

		metrics: metrics.NewNopMetrics(),
		log:     logger.ApplyPrefix("📜"),
	}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger, nil
}

// DeployContract uploads wasm bytecode and returns the stored contract.
func (l *Ledger) DeployContract(ctx context.Context, signer crypto.BytesSigner, wasm []byte, opts ...CallOption) (ContractState, *rpc.TxResult, error) {
	sender := signer.GetAddress(l.cfg.AddressPrefix)
	logger := l.log.With("sender", sender, "bytecode", coding.PayloadFingerprint(wasm), "bytecode_size", len(wasm))

	msg, err := tx.NewStoreCodeMsg(sender, wasm)
	if err != nil {
		return ContractState{}, nil, err
	}

	logger.Info("deploying contract")
	result, err := l.SignAndConfirm(ctx, signer, metrics.KindStoreCode, []sdk.Msg{msg}, opts...)
	if err != nil {
		return ContractState{}, result, err
	}

	rawCodeID, ok := result.Attribute(wasmtypes.EventTypeStoreCode, wasmtypes.AttributeKeyCodeID)
	if !ok {
		return ContractState{}, result, tx.ErrEncoding.Wrapf("tx %s has no %s.%s event attribute", result.TxHash, wasmtypes.EventTypeStoreCode, wasmtypes.AttributeKeyCodeID)
	}
	codeID, err := strconv.ParseUint(rawCodeID, 10, 64)
	if err != nil {
		return ContractState{}, result, tx.ErrEncoding.Wrapf("tx %s reported code id %q: %s", result.TxHash, rawCodeID, err)
	}

	state := StoredContract(codeID)
	logger.Info("🚀 contract deployed", "code_id", codeID, "tx_hash", result.TxHash)
	return state, result, nil
}

// DeployContractFile reads bytecode from path and deploys it.
func (l *Ledger) DeployContractFile(ctx context.Context, signer crypto.BytesSigner, path string, opts ...CallOption) (ContractState, *rpc.TxResult, error) {
	expanded := config.ExpandHomeDir(path)
	wasm, err := os.ReadFile(expanded)
	if err != nil {
		return ContractState{}, nil, config.ErrConfig.Wrapf("reading contract bytecode: %s", err)
	}
	return l.DeployContract(ctx, signer, wasm, opts...)
}

// InstantiateContract creates a contract instance from stored code. On failure the passed in state is returned
// unchanged.
func (l *Ledger) InstantiateContract(ctx context.Context, signer crypto.BytesSigner, state ContractState, initMsg any, label string, funds sdk.Coins, opts ...CallOption) (ContractState, *rpc.TxResult, error) {
	if err := state.requireStage(StageStored); err != nil {
		return state, nil, err
	}

	sender := signer.GetAddress(l.cfg.AddressPrefix)
	logger := l.log.With("sender", sender, "code_id", state.CodeID, "label", label)

	msg, err := tx.NewInstantiateMsg(sender, state.CodeID, initMsg, label, funds)
	if err != nil {
		return state, nil, err
	}

	logger.Info("instantiating contract")
	result, err := l.SignAndConfirm(ctx, signer, metrics.KindInstantiate, []sdk.Msg{msg}, opts...)
	if err != nil {
		return state, result, err
	}

	address, ok := result.Attribute(wasmtypes.EventTypeInstantiate, wasmtypes.AttributeKeyContractAddr)
	if !ok {
		return state, result, tx.ErrEncoding.Wrapf("tx %s has no %s.%s event attribute", result.TxHash, wasmtypes.EventTypeInstantiate, wasmtypes.AttributeKeyContractAddr)
	}
	if err := crypto.ValidateAddress(address, l.cfg.AddressPrefix); err != nil {
		return state, result, tx.ErrEncoding.Wrapf("tx %s reported contract address %q: %s", result.TxHash, address, err)
	}

	instantiated := InstantiatedContract(state.CodeID, address, label)
	logger.Info("🏗️ contract instantiated", "contract", address, "tx_hash", result.TxHash)
	return instantiated, result, nil
}

// ExecuteContract runs a state changing message against an instantiated contract.
func (l *Ledger) ExecuteContract(ctx context.Context, signer crypto.BytesSigner, state ContractState, msg any, funds sdk.Coins, opts ...CallOption) (*rpc.TxResult, error) {
	if err := state.requireStage(StageInstantiated); err != nil {
		return nil, err
	}

	sender := signer.GetAddress(l.cfg.AddressPrefix)
	executeMsg, err := tx.NewExecuteMsg(sender, state.Address, msg, funds)
	if err != nil {
		return nil, err
	}

	l.log.Info("executing contract", "sender", sender, "contract", state.Address, "msg", string(executeMsg.Msg))
	result, err := l.SignAndConfirm(ctx, signer, metrics.KindExecute, []sdk.Msg{executeMsg}, opts...)
	if err != nil {
		return result, err
	}

	l.log.Info("⚙️ contract executed", "contract", state.Address, "tx_hash", result.TxHash, "gas_used", result.GasUsed)
	return result, nil
}

// QueryContractState runs a read only smart query against an instantiated contract.
func (l *Ledger) QueryContractState(ctx context.Context, state ContractState, query any) (rpc.QueryResult, error) {
	if err := state.requireStage(StageInstantiated); err != nil {
		return nil, err
	}

	result, err := l.client.QueryContractState(ctx, state.Address, query)
	if err != nil {
		l.metrics.IncQueries(metrics.ResultError)
		return nil, err
	}

	l.metrics.IncQueries(metrics.ResultSuccess)
	return result, nil
}

// SignAndConfirm fetches the signer's current sequence, signs msgs, broadcasts them once and waits for the
// block. A transaction that lands with a non-zero code is returned alongside a *rpc.TxError of kind
// rpc.ErrExecution. On rpc.ErrTimeout the transaction may still land, so check before sending it again.
func (l *Ledger) SignAndConfirm(ctx context.Context, signer crypto.BytesSigner, kind string, msgs []sdk.Msg, opts ...CallOption) (*rpc.TxResult, error) {
	options := newCallOptions(kind, opts)
	address := signer.GetAddress(l.cfg.AddressPrefix)
	logger := l.log.With("address", address, "kind", kind)

	result, err := l.signAndConfirm(ctx, signer, address, msgs, options, logger)
	l.metrics.IncTransactions(kind, resultLabel(err))
	if result != nil {
		l.metrics.ObserveGasUsed(kind, result.GasUsed)
	}
	if err != nil {
		logger.Error("transaction failed", "error", err.Error())
	}
	return result, err
}

func (l *Ledger) signAndConfirm(ctx context.Context, signer crypto.BytesSigner, address string, msgs []sdk.Msg, options *callOptions, logger *log.Logger) (*rpc.TxResult, error) {
	release, err := l.accountLocks.acquire(ctx, address)
	if err != nil {
		return nil, err
	}
	defer release()

	// Get the signer's metadata, fresh from the node
	signingMetadata, err := l.signingMetadataProvider.SigningMetadataForSigner(ctx, signer)
	if err != nil {
		return nil, err
	}
	logger = logger.With("sequence", signingMetadata.Sequence(), "account_number", signingMetadata.AccountNumber())
	logger.Debug("received signer metadata", "msgs", arrays.Map(msgs, func(msg sdk.Msg) string { return sdk.MsgTypeURL(msg) }))

	// Formulate and sign the message
	signedTx, gasWanted, err := l.provideTx(ctx, msgs, signingMetadata, signer, options, logger)
	if err != nil {
		return nil, err
	}

	// Broadcast exactly once
	broadcastResult, err := l.client.Broadcast(ctx, signedTx)
	if err != nil {
		return nil, err
	}
	logger = logger.With("tx_hash", broadcastResult.TxHash, "gas_wanted", gasWanted)

	start := time.Now()
	result, err := l.client.WaitForConfirmation(ctx, broadcastResult.TxHash, l.cfg.ConfirmationTimeout, l.cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	l.metrics.ObserveConfirmationLatency(options.kind, time.Since(start))

	if !result.Succeeded() {
		logger.Debug("full execution logs", "logs", result.RawLog)
		return result, &rpc.TxError{
			Kind:      rpc.ErrExecution,
			TxHash:    result.TxHash,
			Code:      result.Code,
			Codespace: result.Codespace,
			RawLog:    result.RawLog,
		}
	}

	logger.Debug("transaction confirmed", "height", result.Height, "gas_used", result.GasUsed)
	return result, nil
}

// provideTx decides the gas limit, computes the fee and signs.
func (l *Ledger) provideTx(ctx context.Context, msgs []sdk.Msg, signingMetadata *tx.SigningMetadata, signer crypto.BytesSigner, options *callOptions, logger *log.Logger) ([]byte, uint64, error) {
	gasLimit, err := l.gasLimit(ctx, msgs, signingMetadata, options, logger)
	if err != nil {
		return nil, 0, err
	}

	fee := tx.ComputeFee(gasLimit, l.gasPrice)
	unsignedTx, err := l.builder.Build(msgs, fee, gasLimit, signingMetadata)
	if err != nil {
		return nil, 0, err
	}

	signedTx, err := l.builder.Sign(unsignedTx, signer, signingMetadata)
	if err != nil {
		return nil, 0, err
	}

	logger.Debug("signed transaction", "gas_limit", gasLimit, "fee", fee.String(), "tx", coding.PayloadFingerprint(signedTx))
	return signedTx, gasLimit, nil
}

func (l *Ledger) gasLimit(ctx context.Context, msgs []sdk.Msg, signingMetadata *tx.SigningMetadata, options *callOptions, logger *log.Logger) (uint64, error) {
	if options.gasLimit > 0 {
		return options.gasLimit, nil
	}
	if !l.cfg.SimulationEnabled() {
		return l.cfg.DefaultGasLimit, nil
	}

	simulationTx, err := l.builder.Build(msgs, sdk.NewCoins(), 0, signingMetadata)
	if err != nil {
		return 0, err
	}
	simulationResult, err := l.simulationManager.SimulateTxBytes(ctx, simulationTx, l.cfg.GasAdjustment)
	if err != nil {
		return 0, err
	}

	logger.Debug("simulated gas", "gas_used", simulationResult.GasUsed, "gas_units", simulationResult.GasRecommendation)
	return simulationResult.GasRecommendation, nil
}

// resultLabel buckets an outcome for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, rpc.ErrInvalidTransaction):
		return metrics.ResultRejected
	case errors.Is(err, rpc.ErrExecution):
		return metrics.ResultFailed
	case errors.Is(err, rpc.ErrTimeout):
		return metrics.ResultTimeout
	}
	return metrics.ResultError
}
