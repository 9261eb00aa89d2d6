package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/log"
)

// DefaultBaseURL is Tessellated's hosted chain registry.
const DefaultBaseURL = "https://planetarium.tessellated.io/v1/chains"

type ChainRegistryClient interface {
	AllChainNames(ctx context.Context) ([]string, error)
	ChainNameForChainID(ctx context.Context, targetChainID string, refreshCache bool) (string, error)
	ChainInfo(ctx context.Context, chainName string) (*ChainInfo, error)
}

// Default implementation, serving {base}/all and {base}/{chain_name}/chain.json.
type chainRegistryClient struct {
	// Caches of chain names and chain name to chain ID
	cacheLock          sync.Mutex
	chainNames         []string
	chainNameToChainID map[string]string

	chainRegistryBaseUrl string
	httpClient           *http.Client

	log *log.Logger
}

var _ ChainRegistryClient = (*chainRegistryClient)(nil)

// NewChainRegistryClient makes a registry client without retries.
func NewChainRegistryClient(logger *log.Logger, chainRegistryBaseUrl string) *chainRegistryClient {
	return &chainRegistryClient{
		chainNames:         []string{},
		chainNameToChainID: make(map[string]string),

		chainRegistryBaseUrl: strings.TrimRight(chainRegistryBaseUrl, "/"),
		httpClient:           &http.Client{},

		log: logger.ApplyPrefix("🗂️"),
	}
}

func (rc *chainRegistryClient) ChainInfo(ctx context.Context, chainName string) (*ChainInfo, error) {
	url := fmt.Sprintf("%s/%s/chain.json", rc.chainRegistryBaseUrl, chainName)

	bytes, err := rc.makeRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	chainInfo, err := parseChainResponse(bytes)
	if err != nil {
		return nil, err
	}

	rc.cacheLock.Lock()
	rc.chainNameToChainID[chainName] = chainInfo.ChainID
	rc.cacheLock.Unlock()

	return chainInfo, nil
}

func (rc *chainRegistryClient) AllChainNames(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/all", rc.chainRegistryBaseUrl)
	bytes, err := rc.makeRequest(ctx, url)
	if err != nil {
		return nil, err
	}

	return parseAllChainsResponse(bytes)
}

func (rc *chainRegistryClient) ChainNameForChainID(ctx context.Context, targetChainID string, refreshCache bool) (string, error) {
	rc.cacheLock.Lock()
	if refreshCache {
		rc.chainNames = []string{}
		rc.chainNameToChainID = make(map[string]string)
		rc.log.Debug("reset chain names and chain ids caches per client request")
	}
	chainNames := rc.chainNames
	rc.cacheLock.Unlock()

	if len(chainNames) == 0 {
		rc.log.Debug("no index of chain names, reloading from registry")

		var err error
		chainNames, err = rc.AllChainNames(ctx)
		if err != nil {
			return "", err
		}

		rc.cacheLock.Lock()
		rc.chainNames = chainNames
		rc.cacheLock.Unlock()
		rc.log.Debug("loaded chains from the registry", "num_chains", len(chainNames))
	}

	for _, chainName := range chainNames {
		logger := rc.log.With("chain_name", chainName)

		rc.cacheLock.Lock()
		chainID, isSet := rc.chainNameToChainID[chainName]
		rc.cacheLock.Unlock()

		if !isSet {
			chainInfo, err := rc.ChainInfo(ctx, chainName)
			if err != nil {
				logger.Warn("error fetching chain information during chain id refresh, skipping chain", "error", err.Error())
				continue
			}
			chainID = chainInfo.ChainID
		}

		if strings.EqualFold(targetChainID, chainID) {
			return chainName, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoChainFoundForChainID, targetChainID)
}

// Private helpers

func (rc *chainRegistryClient) makeRequest(ctx context.Context, url string) ([]byte, error) {
	rc.log.Debug("making GET request to url", "url", url)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, rpc.ErrNetwork.Wrapf("creating request for %s: %s", url, err)
	}
	request.Header.Set("Accept", "application/json")

	resp, err := rc.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, rpc.ErrNetwork.Wrapf("GET %s: %s", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rpc.ErrNetwork.Wrapf("reading %s: %s", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		rc.log.Debug("received bad response from chain registry", "response", string(data), "status_code", resp.StatusCode)
		return nil, rpc.ErrNetwork.Wrapf("registry returned HTTP %d for %s", resp.StatusCode, url)
	}
	return data, nil
}
