package contract_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/contract"
	"github.com/tessellated-io/wasmledger/cosmos/faucet"
	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/crypto"
	"github.com/tessellated-io/wasmledger/log"
	"github.com/tessellated-io/wasmledger/metrics"
	"github.com/tessellated-io/wasmledger/testutil/testnode"
)

const tokenID = "680564733841876926926749214863536422912"

type fixture struct {
	node    *testnode.Node
	ledger  *contract.Ledger
	metrics *metrics.PrometheusMetrics
	signer  *crypto.KeyPair
	address string
}

func newFixture(t *testing.T, configure func(*config.ChainConfig), opts ...testnode.Option) *fixture {
	t.Helper()

	node := testnode.New(t, opts...)
	cfg := node.Config()
	if configure != nil {
		configure(cfg)
	}

	encoding := tx.MakeEncodingConfig()
	restClient, err := rpc.NewRestClient(cfg.RestAddress, encoding.Codec, log.Discard())
	require.NoError(t, err)

	promMetrics := metrics.NewPrometheusMetrics("wasmledger")
	ledger, err := contract.NewLedger(cfg, restClient, tx.NewBuilder(encoding.TxConfig, ""), log.Discard(), contract.WithMetrics(promMetrics))
	require.NoError(t, err)

	signer := crypto.GenerateKeyPair()
	address := signer.GetAddress(cfg.AddressPrefix)

	faucetClient, err := faucet.NewClient(cfg, restClient, log.Discard())
	require.NoError(t, err)
	require.NoError(t, faucetClient.EnsureFunds(context.Background(), address))

	return &fixture{
		node:    node,
		ledger:  ledger,
		metrics: promMetrics,
		signer:  signer,
		address: address,
	}
}

func (f *fixture) instantiate(t *testing.T) contract.ContractState {
	t.Helper()
	ctx := context.Background()

	stored, _, err := f.ledger.DeployContract(ctx, f.signer, testnode.WasmStub)
	require.NoError(t, err)
	instantiated, _, err := f.ledger.InstantiateContract(ctx, f.signer, stored, map[string]any{}, "tokens", nil)
	require.NoError(t, err)
	return instantiated
}

func createSingle(owner, id string) map[string]any {
	return map[string]any{"create_single": map[string]any{"item_owner": owner, "id": id, "path": "some_path"}}
}

func mintSingle(to, id, supply string) map[string]any {
	return map[string]any{"mint_single": map[string]any{"to_address": to, "id": id, "supply": supply, "data": "some_data"}}
}

func balanceQuery(address, id string) map[string]any {
	return map[string]any{"balance": map[string]any{"address": address, "id": id}}
}

func TestLedger_EndToEnd(t *testing.T) {
	f := newFixture(t, nil, testnode.WithInclusionDelay(1))
	ctx := context.Background()

	stored, deployResult, err := f.ledger.DeployContract(ctx, f.signer, testnode.WasmStub)
	require.NoError(t, err)
	assert.Equal(t, contract.StageStored, stored.Stage)
	assert.Equal(t, uint64(1), stored.CodeID)
	assert.True(t, deployResult.Succeeded())

	instantiated, _, err := f.ledger.InstantiateContract(ctx, f.signer, stored, `{}`, "L", nil)
	require.NoError(t, err)
	assert.Equal(t, contract.StageInstantiated, instantiated.Stage)
	assert.Equal(t, "L", instantiated.Label)
	assert.Equal(t, stored.CodeID, instantiated.CodeID)
	require.NoError(t, crypto.ValidateAddress(instantiated.Address, testnode.AddressPrefix))

	_, err = f.ledger.ExecuteContract(ctx, f.signer, instantiated, createSingle(f.address, tokenID), nil)
	require.NoError(t, err)
	executeResult, err := f.ledger.ExecuteContract(ctx, f.signer, instantiated, mintSingle(f.address, tokenID, "1"), nil)
	require.NoError(t, err)
	assert.True(t, executeResult.Succeeded())

	// One execute, one mint
	result, err := f.ledger.QueryContractState(ctx, instantiated, balanceQuery(f.address, tokenID))
	require.NoError(t, err)
	assert.Equal(t, "1", result["balance"])

	// Four transactions, each at the next sequence
	assert.Equal(t, uint64(4), f.node.Sequence(f.address))

	// store_code, instantiate and execute, all successful
	count, err := testutil.GatherAndCount(f.metrics.Registry(), "wasmledger_transactions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLedger_InvalidStage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var unstored contract.ContractState

	_, _, err := f.ledger.InstantiateContract(ctx, f.signer, unstored, `{}`, "L", nil)
	assert.ErrorIs(t, err, contract.ErrInvalidStage)

	_, err = f.ledger.ExecuteContract(ctx, f.signer, unstored, createSingle(f.address, "1"), nil)
	assert.ErrorIs(t, err, contract.ErrInvalidStage)

	stored := contract.StoredContract(1)
	_, err = f.ledger.QueryContractState(ctx, stored, balanceQuery(f.address, "1"))
	assert.ErrorIs(t, err, contract.ErrInvalidStage)

	instantiated := contract.InstantiatedContract(1, "fetch1whatever", "L")
	_, _, err = f.ledger.InstantiateContract(ctx, f.signer, instantiated, `{}`, "L", nil)
	assert.ErrorIs(t, err, contract.ErrInvalidStage)

	// Nothing reached the node
	assert.Equal(t, 0, f.node.Broadcasts())
}

func TestLedger_FailureKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Code 99 was never stored. A fixed gas limit skips simulation, so the failure happens on chain.
	missing := contract.StoredContract(99)
	state, result, err := f.ledger.InstantiateContract(ctx, f.signer, missing, `{}`, "L", nil, contract.WithGasLimit(500_000))
	require.ErrorIs(t, err, rpc.ErrExecution)
	assert.Equal(t, missing, state)
	require.NotNil(t, result)
	assert.False(t, result.Succeeded())
}

func TestLedger_ExecutionError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	instantiated := f.instantiate(t)

	// Minting a token that was never created
	result, err := f.ledger.ExecuteContract(ctx, f.signer, instantiated, mintSingle(f.address, tokenID, "1"), nil, contract.WithGasLimit(500_000))
	require.ErrorIs(t, err, rpc.ErrExecution)
	require.NotNil(t, result)

	var txErr *rpc.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, "wasm", txErr.Codespace)
	assert.Contains(t, txErr.Error(), "token "+tokenID+" does not exist")

	// No partial state
	queryResult, err := f.ledger.QueryContractState(ctx, instantiated, balanceQuery(f.address, tokenID))
	require.NoError(t, err)
	assert.Equal(t, "0", queryResult["balance"])
}

func TestLedger_SimulationFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	instantiated := f.instantiate(t)
	broadcasts := f.node.Broadcasts()

	// Rejected in simulation, before anything is broadcast
	state, _, err := f.ledger.DeployContract(ctx, f.signer, []byte("not wasm"))
	assert.ErrorIs(t, err, rpc.ErrExecution)
	assert.Equal(t, contract.StageUnstored, state.Stage)

	_, err = f.ledger.ExecuteContract(ctx, f.signer, instantiated, mintSingle(f.address, tokenID, "1"), nil)
	assert.ErrorIs(t, err, rpc.ErrExecution)
	assert.Contains(t, err.Error(), "does not exist")

	assert.Equal(t, broadcasts, f.node.Broadcasts())
}

func TestLedger_ConcurrentSameAccount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	instantiated := f.instantiate(t)
	before := f.node.Sequence(f.address)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.ExecuteContract(ctx, f.signer, instantiated, createSingle(f.address, fmt.Sprintf("%d", i)), nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, before+workers, f.node.Sequence(f.address))
}

func TestLedger_GasLimitOption(t *testing.T) {
	f := newFixture(t, nil)
	simulations := f.node.Simulations()

	// Below what the node charges, so it is refused at submission
	_, _, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub, contract.WithGasLimit(1_000))
	require.ErrorIs(t, err, rpc.ErrInvalidTransaction)

	var txErr *rpc.TxError
	require.True(t, errors.As(err, &txErr))
	assert.True(t, txErr.IsGasRelated())
	assert.Equal(t, simulations, f.node.Simulations())

	stored, _, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub, contract.WithGasLimit(500_000))
	require.NoError(t, err)
	assert.Equal(t, contract.StageStored, stored.Stage)
}

func TestLedger_SimulationDisabled(t *testing.T) {
	f := newFixture(t, func(cfg *config.ChainConfig) {
		cfg.GasAdjustment = 0
	})

	stored, result, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub)
	require.NoError(t, err)
	assert.Equal(t, contract.StageStored, stored.Stage)
	assert.Equal(t, int64(config.DefaultGasLimit), result.GasWanted)
	assert.Equal(t, 0, f.node.Simulations())
}

func TestLedger_ConfirmationTimeout(t *testing.T) {
	f := newFixture(t, func(cfg *config.ChainConfig) {
		cfg.ConfirmationTimeout = 50 * time.Millisecond
	}, testnode.WithInclusionDelay(1_000_000))

	_, _, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub)
	assert.ErrorIs(t, err, rpc.ErrTimeout)

	// The transaction was accepted, so the sequence moved on regardless
	assert.Equal(t, uint64(1), f.node.Sequence(f.address))

	// Signing metadata is fetched fresh, so the next call picks up the new sequence
	f.node.SetInclusionDelay(0)
	stored, _, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub)
	require.NoError(t, err)
	assert.Equal(t, contract.StageStored, stored.Stage)
	assert.Equal(t, uint64(2), f.node.Sequence(f.address))
}

func TestLedger_InsufficientFunds(t *testing.T) {
	// Enough to exist, not enough to pay 500_000 gas at the minimum price
	f := newFixture(t, nil, testnode.WithFaucetGrant(math.NewInt(1_000)))

	_, _, err := f.ledger.DeployContract(context.Background(), f.signer, testnode.WasmStub, contract.WithGasLimit(500_000))
	require.ErrorIs(t, err, rpc.ErrInvalidTransaction)

	var txErr *rpc.TxError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, "sdk", txErr.Codespace)
	assert.Contains(t, txErr.RawLog, "insufficient")
	assert.Equal(t, uint64(0), f.node.Sequence(f.address))
}

func TestLedger_DeployContractFile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "contract.wasm")
	require.NoError(t, os.WriteFile(path, testnode.WasmStub, 0o600))

	stored, _, err := f.ledger.DeployContractFile(ctx, f.signer, path)
	require.NoError(t, err)
	assert.Equal(t, contract.StageStored, stored.Stage)

	_, _, err = f.ledger.DeployContractFile(ctx, f.signer, filepath.Join(t.TempDir(), "missing.wasm"))
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestNewLedger_InvalidConfig(t *testing.T) {
	cfg := config.NewChainConfig("", "http://localhost:1317", "", "atestfet", "0.025", "fetch")

	_, err := contract.NewLedger(cfg, nil, nil, log.Discard())
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestContractState_String(t *testing.T) {
	assert.Equal(t, "unstored", contract.ContractState{}.String())
	assert.Equal(t, "stored(code_id=7)", contract.StoredContract(7).String())
	assert.Equal(t, `instantiated(code_id=7, address=fetch1abc, label="L")`, contract.InstantiatedContract(7, "fetch1abc", "L").String())
}
