package registry

import (
	"context"

	"github.com/tessellated-io/wasmledger/config"
)

// ResolvedChain is a chain config along with the coin type keys are derived with.
type ResolvedChain struct {
	Config *config.ChainConfig
	Slip44 uint32
}

// ResolveChain builds a config for chainName, preferring the offline table and falling back to the
// registry. Faucets are only known offline.
func ResolveChain(ctx context.Context, client ChainRegistryClient, offline *OfflineChainRegistry, chainName string) (*ResolvedChain, error) {
	if cfg, slip44, ok := offline.ChainConfig(chainName); ok {
		return &ResolvedChain{Config: cfg, Slip44: slip44}, nil
	}

	chainInfo, err := client.ChainInfo(ctx, chainName)
	if err != nil {
		return nil, err
	}

	cfg, err := chainInfo.ToChainConfig(offline.FaucetURL(chainInfo.ChainID))
	if err != nil {
		return nil, err
	}
	return &ResolvedChain{Config: cfg, Slip44: chainInfo.Slip44}, nil
}

// ResolveChainByID is ResolveChain for callers that only know the chain ID.
func ResolveChainByID(ctx context.Context, client ChainRegistryClient, offline *OfflineChainRegistry, chainID string) (*ResolvedChain, error) {
	if data, ok := offline.ChainIDToData[chainID]; ok {
		return ResolveChain(ctx, client, offline, data.ChainName)
	}

	chainName, err := client.ChainNameForChainID(ctx, chainID, false)
	if err != nil {
		return nil, err
	}
	return ResolveChain(ctx, client, offline, chainName)
}
