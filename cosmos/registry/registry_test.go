package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/registry"
	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/log"
)

const junoTestnet = `{
  "chain_name": "junotestnet",
  "chain_id": "uni-6",
  "bech32_prefix": "juno",
  "slip44": 118,
  "fees": {"fee_tokens": [{"denom": "ujunox", "fixed_min_gas_price": 0.025}]},
  "apis": {"rest": [{"address": "https://juno-testnet-api.polkachu.com/", "provider": "polkachu"}]}
}`

const noRest = `{
  "chain_name": "norest",
  "chain_id": "norest-1",
  "bech32_prefix": "norest",
  "fees": {"fee_tokens": [{"denom": "unorest", "low_gas_price": 0.1}]}
}`

// newRegistry serves a tiny registry. The first failures requests get a 500.
func newRegistry(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	mux := http.NewServeMux()
	handle := func(path, body string) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if requests.Add(1) <= failures {
				http.Error(w, "try again", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	handle("/all", `["norest", "junotestnet"]`)
	handle("/junotestnet/chain.json", junoTestnet)
	handle("/norest/chain.json", noRest)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &requests
}

func TestChainInfo(t *testing.T) {
	server, _ := newRegistry(t, 0)
	client := registry.NewChainRegistryClient(log.Discard(), server.URL)

	info, err := client.ChainInfo(context.Background(), "junotestnet")
	require.NoError(t, err)
	assert.Equal(t, "uni-6", info.ChainID)
	assert.Equal(t, uint32(118), info.Slip44)

	denom, err := info.FeeDenom()
	require.NoError(t, err)
	assert.Equal(t, "ujunox", denom)

	_, err = client.ChainInfo(context.Background(), "missing")
	assert.ErrorIs(t, err, rpc.ErrNetwork)
}

func TestToChainConfig(t *testing.T) {
	server, _ := newRegistry(t, 0)
	client := registry.NewChainRegistryClient(log.Discard(), server.URL)
	ctx := context.Background()

	info, err := client.ChainInfo(ctx, "junotestnet")
	require.NoError(t, err)

	cfg, err := info.ToChainConfig("")
	require.NoError(t, err)
	assert.Equal(t, "uni-6", cfg.ChainID)
	assert.Equal(t, "https://juno-testnet-api.polkachu.com", cfg.RestAddress)
	assert.Equal(t, "ujunox", cfg.Denom)
	assert.Equal(t, "0.025", cfg.MinimumGasPrice)
	assert.Equal(t, "juno", cfg.AddressPrefix)
	assert.Equal(t, config.DefaultGasAdjustment, cfg.GasAdjustment)

	broken, err := client.ChainInfo(ctx, "norest")
	require.NoError(t, err)
	_, err = broken.ToChainConfig("")
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestChainNameForChainID(t *testing.T) {
	server, _ := newRegistry(t, 0)
	client := registry.NewChainRegistryClient(log.Discard(), server.URL)
	ctx := context.Background()

	name, err := client.ChainNameForChainID(ctx, "UNI-6", false)
	require.NoError(t, err)
	assert.Equal(t, "junotestnet", name)

	_, err = client.ChainNameForChainID(ctx, "cosmoshub-4", true)
	assert.ErrorIs(t, err, registry.ErrNoChainFoundForChainID)
}

func TestRetryableClient(t *testing.T) {
	server, requests := newRegistry(t, 2)
	client := registry.NewRetryableChainRegistryClient(3, time.Millisecond, registry.NewChainRegistryClient(log.Discard(), server.URL), log.Discard())

	info, err := client.ChainInfo(context.Background(), "junotestnet")
	require.NoError(t, err)
	assert.Equal(t, "uni-6", info.ChainID)
	assert.Equal(t, int32(3), requests.Load())
}

func TestRetryableClient_GivesUp(t *testing.T) {
	server, requests := newRegistry(t, 100)
	client := registry.NewRetryableChainRegistryClient(2, time.Millisecond, registry.NewChainRegistryClient(log.Discard(), server.URL), log.Discard())

	_, err := client.AllChainNames(context.Background())
	assert.ErrorIs(t, err, rpc.ErrNetwork)
	assert.Equal(t, int32(2), requests.Load())
}

func TestResolveChain(t *testing.T) {
	server, requests := newRegistry(t, 0)
	client := registry.NewChainRegistryClient(log.Discard(), server.URL)
	offline := registry.NewOfflineChainRegistry()
	ctx := context.Background()

	// Known offline, with a faucet and no registry traffic
	capricorn, err := registry.ResolveChain(ctx, client, offline, "fetchhubtestnet")
	require.NoError(t, err)
	assert.Equal(t, "capricorn-1", capricorn.Config.ChainID)
	assert.Equal(t, "atestfet", capricorn.Config.Denom)
	assert.NotEmpty(t, capricorn.Config.FaucetURL)
	assert.NoError(t, capricorn.Config.Validate())
	assert.Equal(t, int32(0), requests.Load())

	juno, err := registry.ResolveChain(ctx, client, offline, "junotestnet")
	require.NoError(t, err)
	assert.Equal(t, "uni-6", juno.Config.ChainID)
	assert.Empty(t, juno.Config.FaucetURL)
	assert.Equal(t, uint32(118), juno.Slip44)
}

func TestResolveChainByID(t *testing.T) {
	server, requests := newRegistry(t, 0)
	client := registry.NewChainRegistryClient(log.Discard(), server.URL)
	offline := registry.NewOfflineChainRegistry()
	ctx := context.Background()

	resolved, err := registry.ResolveChainByID(ctx, client, offline, "uni-6")
	require.NoError(t, err)
	assert.Equal(t, "uni-6", resolved.Config.ChainID)
	assert.Equal(t, "juno", resolved.Config.AddressPrefix)
	assert.Equal(t, uint32(118), resolved.Slip44)

	// Known offline, so the registry is never asked
	before := requests.Load()
	resolved, err = registry.ResolveChainByID(ctx, client, offline, "capricorn-1")
	require.NoError(t, err)
	assert.Equal(t, "atestfet", resolved.Config.Denom)
	assert.NotEmpty(t, resolved.Config.FaucetURL)
	assert.Equal(t, before, requests.Load())

	_, err = registry.ResolveChainByID(ctx, client, offline, "cosmoshub-4")
	assert.ErrorIs(t, err, registry.ErrNoChainFoundForChainID)
}
