package registry

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tessellated-io/wasmledger/config"
)

func parseChainResponse(responseBytes []byte) (*ChainInfo, error) {
	var chainInfo ChainInfo
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(responseBytes, &chainInfo); err != nil {
		return nil, err
	}
	return &chainInfo, nil
}

func parseAllChainsResponse(responseBytes []byte) ([]string, error) {
	var chainNames []string
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(responseBytes, &chainNames); err != nil {
		return nil, err
	}
	return chainNames, nil
}

// Convenience helper methods

func (ci *ChainInfo) FeeToken() (*FeeToken, error) {
	feeTokens := ci.Fees.FeeTokens
	if len(feeTokens) == 0 {
		return nil, ErrNoFeeTokenFound
	}
	return &feeTokens[0], nil
}

func (ci *ChainInfo) FeeDenom() (string, error) {
	feeToken, err := ci.FeeToken()
	if err != nil {
		return "", err
	}
	return feeToken.Denom, nil
}

// MinGasPrice is the fixed minimum gas price, or the low gas price for chains that do not publish one.
func (ci *ChainInfo) MinGasPrice() (string, error) {
	feeToken, err := ci.FeeToken()
	if err != nil {
		return "", err
	}

	price := feeToken.FixedMinGasPrice
	if price == 0 {
		price = feeToken.LowGasPrice
	}
	return strconv.FormatFloat(price, 'f', -1, 64), nil
}

// RestAddress is the first listed REST endpoint.
func (ci *ChainInfo) RestAddress() (string, error) {
	for _, api := range ci.APIs.Rest {
		if address := strings.TrimSpace(api.Address); address != "" {
			return strings.TrimRight(address, "/"), nil
		}
	}
	return "", ErrNoRestEndpoint
}

// ToChainConfig turns registry data into a validated client config. The registry does not list faucets,
// so faucetURL is passed in and may be empty.
func (ci *ChainInfo) ToChainConfig(faucetURL string) (*config.ChainConfig, error) {
	restAddress, err := ci.RestAddress()
	if err != nil {
		return nil, config.ErrConfig.Wrapf("chain %s: %s", ci.ChainName, err)
	}
	denom, err := ci.FeeDenom()
	if err != nil {
		return nil, config.ErrConfig.Wrapf("chain %s: %s", ci.ChainName, err)
	}
	gasPrice, err := ci.MinGasPrice()
	if err != nil {
		return nil, config.ErrConfig.Wrapf("chain %s: %s", ci.ChainName, err)
	}

	cfg := config.NewChainConfig(ci.ChainID, restAddress, faucetURL, denom, gasPrice, ci.Bech32Prefix)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
