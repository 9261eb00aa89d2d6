package registry

import (
	"github.com/tessellated-io/wasmledger/config"
)

// OfflineChainRegistry holds testnets whose faucets the public registry does not list.
type OfflineChainRegistry struct {
	ChainNameToData map[string]*ChainData
	ChainIDToData   map[string]*ChainData
}

type ChainData struct {
	ChainName       string
	ChainID         string
	AddressPrefix   string
	Denom           string
	MinimumGasPrice string
	RestAddress     string
	FaucetURL       string
	Slip44          uint32
}

func NewOfflineChainRegistry() *OfflineChainRegistry {
	chainRegistry := &OfflineChainRegistry{
		ChainNameToData: make(map[string]*ChainData),
		ChainIDToData:   make(map[string]*ChainData),
	}

	chainRegistry.addToRegistry(
		"fetchhubtestnet",
		"capricorn-1",
		"fetch",
		"atestfet",
		"500000000000",
		"https://rest-capricorn.fetch.ai:443",
		"https://faucet-capricorn.t-v2-london-c.fetch-ai.com",
		118,
	)

	return chainRegistry
}

func (cr *OfflineChainRegistry) addToRegistry(chainName, chainID, addressPrefix, denom, minimumGasPrice, restAddress, faucetURL string, slip44 uint32) {
	chainData := &ChainData{
		ChainName:       chainName,
		ChainID:         chainID,
		AddressPrefix:   addressPrefix,
		Denom:           denom,
		MinimumGasPrice: minimumGasPrice,
		RestAddress:     restAddress,
		FaucetURL:       faucetURL,
		Slip44:          slip44,
	}

	cr.ChainNameToData[chainName] = chainData
	cr.ChainIDToData[chainID] = chainData
}

// ChainConfig returns a config for a known chain name.
func (cr *OfflineChainRegistry) ChainConfig(chainName string) (*config.ChainConfig, uint32, bool) {
	data, ok := cr.ChainNameToData[chainName]
	if !ok {
		return nil, 0, false
	}
	return config.NewChainConfig(data.ChainID, data.RestAddress, data.FaucetURL, data.Denom, data.MinimumGasPrice, data.AddressPrefix), data.Slip44, true
}

// FaucetURL returns the faucet of a known chain ID, or "" if there is none.
func (cr *OfflineChainRegistry) FaucetURL(chainID string) string {
	data, ok := cr.ChainIDToData[chainID]
	if !ok {
		return ""
	}
	return data.FaucetURL
}
