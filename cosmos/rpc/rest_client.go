package rpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/google/uuid"
	"github.com/tessellated-io/wasmledger/coding"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/cosmos/util"
	"github.com/tessellated-io/wasmledger/log"
)

// Page size to use
const pageSize = 100

// Header carrying a per request id, so client and node logs can be lined up.
const requestIDHeader = "X-Request-Id"

// gRPC NotFound, as reported in gateway error bodies.
const grpcCodeNotFound = 5

// RestClient talks to a node's gRPC gateway. It does not retry anything.
type RestClient struct {
	baseURL    string
	cdc        *codec.ProtoCodec
	httpClient *http.Client

	log *log.Logger
}

// Ensure that RestClient implements RpcClient
var (
	_ RpcClient           = (*RestClient)(nil)
	_ tx.Simulator        = (*RestClient)(nil)
	_ tx.AccountRetriever = (*RestClient)(nil)
)

// A struct that came back from a paginated query
type paginatedRpcResponse[dataType any] struct {
	data    []dataType
	nextKey []byte
}

type RestClientOption func(*RestClient)

// WithHTTPClient swaps the transport, for instance to set timeouts or use a test server's client.
func WithHTTPClient(httpClient *http.Client) RestClientOption {
	return func(c *RestClient) {
		c.httpClient = httpClient
	}
}

// NewRestClient makes a client for the REST endpoint at restAddress.
func NewRestClient(restAddress string, cdc *codec.ProtoCodec, logger *log.Logger, opts ...RestClientOption) (*RestClient, error) {
	parsed, err := url.Parse(restAddress)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, config.ErrConfig.Wrapf("invalid rest address %q", restAddress)
	}

	client := &RestClient{
		baseURL:    strings.TrimRight(restAddress, "/"),
		cdc:        cdc,
		httpClient: &http.Client{},

		log: logger.With("rest_address", restAddress),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (r *RestClient) Account(ctx context.Context, address string) (*Account, error) {
	status, body, err := r.makeRequest(ctx, http.MethodGet, "/cosmos/auth/v1beta1/accounts/"+url.PathEscape(address), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, r.gatewayFailure(status, body, fmt.Sprintf("account %s", address))
	}

	// Deserialize response
	var response authtypes.QueryAccountResponse
	if err := r.cdc.UnmarshalJSON(body, &response); err != nil {
		return nil, tx.ErrEncoding.Wrapf("decoding account %s: %s", address, err)
	}

	var account authtypes.AccountI
	if err := r.cdc.UnpackAny(response.Account, &account); err != nil {
		return nil, tx.ErrEncoding.Wrapf("unpacking account %s: %s", address, err)
	}

	r.log.Debug("fetched account", "address", address, "account_number", account.GetAccountNumber(), "sequence", account.GetSequence())
	return &Account{
		Address:       address,
		PubKey:        account.GetPubKey(),
		AccountNumber: account.GetAccountNumber(),
		Sequence:      account.GetSequence(),
	}, nil
}

func (r *RestClient) GetAccountNumberSequence(ctx context.Context, address string) (uint64, uint64, error) {
	account, err := r.Account(ctx, address)
	if err != nil {
		return 0, 0, err
	}
	return account.AccountNumber, account.Sequence, nil
}

// GetBalance returns the address's balance in denom. Unknown addresses and missing denoms are a zero balance.
func (r *RestClient) GetBalance(ctx context.Context, address, denom string) (*sdk.Coin, error) {
	getBalancesFunc := func(ctx context.Context, pageKey []byte) (*paginatedRpcResponse[sdk.Coin], error) {
		query := url.Values{}
		query.Set("pagination.limit", fmt.Sprintf("%d", pageSize))
		if len(pageKey) > 0 {
			query.Set("pagination.key", base64.StdEncoding.EncodeToString(pageKey))
		}

		path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s?%s", url.PathEscape(address), query.Encode())
		status, body, err := r.makeRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if !isSuccess(status) {
			return nil, r.gatewayFailure(status, body, fmt.Sprintf("balances of %s", address))
		}

		var response struct {
			Balances   []sdk.Coin        `json:"balances"`
			Pagination *pageResponseJSON `json:"pagination"`
		}
		if err := restJSON.Unmarshal(body, &response); err != nil {
			return nil, tx.ErrEncoding.Wrapf("decoding balances of %s: %s", address, err)
		}

		page := &paginatedRpcResponse[sdk.Coin]{data: response.Balances}
		if response.Pagination != nil {
			page.nextKey = response.Pagination.NextKey
		}
		return page, nil
	}

	balances, err := retrievePaginatedData(ctx, r, "balances", getBalancesFunc)
	if err != nil {
		return nil, err
	}
	r.log.Debug("retrieved balances", "num_balances", len(balances), "address", address, "denom", denom)

	coin, err := util.ExtractCoin(denom, balances)
	if errors.Is(err, util.ErrDenomNotFound) {
		zero := sdk.NewInt64Coin(denom, 0)
		return &zero, nil
	}
	return coin, err
}

// Broadcast submits signed bytes in sync mode. A non-zero CheckTx code comes back as a *TxError of kind
// ErrInvalidTransaction, alongside the result.
func (r *RestClient) Broadcast(ctx context.Context, txBytes []byte) (*BroadcastResult, error) {
	request := &broadcastTxRequestJSON{
		TxBytes: txBytes,
		Mode:    "BROADCAST_MODE_SYNC",
	}
	localHash := tx.TxHash(txBytes)

	status, body, err := r.makeRequest(ctx, http.MethodPost, "/cosmos/tx/v1beta1/txs", request)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		// Only a gateway rejection of the tx itself is a transaction failure. Its code is a gRPC status, not an
		// SDK ABCI code, so it stays out of TxError.Code.
		parsed, ok := decodeGatewayError(body)
		if !ok || status >= http.StatusInternalServerError || isNotFound(status, parsed) {
			return nil, r.gatewayFailure(status, body, "broadcast")
		}
		return nil, &TxError{
			Kind:   ErrInvalidTransaction,
			TxHash: localHash,
			RawLog: fmt.Sprintf("node rejected tx with HTTP %d (grpc code %d): %s", status, parsed.Code, parsed.Message),
		}
	}

	var response broadcastTxResponseJSON
	if err := restJSON.Unmarshal(body, &response); err != nil || response.TxResponse == nil {
		return nil, tx.ErrEncoding.Wrapf("decoding broadcast response: %s", describeDecodeFailure(err, body))
	}

	result := &BroadcastResult{
		TxHash:    strings.ToUpper(response.TxResponse.TxHash),
		Code:      response.TxResponse.Code,
		Codespace: response.TxResponse.Codespace,
		RawLog:    response.TxResponse.RawLog,
	}
	if result.TxHash == "" {
		result.TxHash = localHash
	}

	// Log results, regardless of what happened
	r.log.Info("📣 broadcasted transaction", "tx_hash", result.TxHash, "code", result.Code, "codespace", result.Codespace)

	if result.Code != 0 {
		r.log.Debug("full broadcast logs", "tx_hash", result.TxHash, "logs", result.RawLog)
		return result, &TxError{
			Kind:      ErrInvalidTransaction,
			TxHash:    result.TxHash,
			Code:      result.Code,
			Codespace: result.Codespace,
			RawLog:    result.RawLog,
		}
	}
	return result, nil
}

// Simulate runs the transaction without committing it and returns the gas it used. A failed simulation comes
// back as a *TxError of kind ErrExecution carrying the node's message.
func (r *RestClient) Simulate(ctx context.Context, txBytes []byte) (uint64, error) {
	request := &simulateRequestJSON{TxBytes: txBytes}

	status, body, err := r.makeRequest(ctx, http.MethodPost, "/cosmos/tx/v1beta1/simulate", request)
	if err != nil {
		return 0, err
	}
	if !isSuccess(status) {
		parsed := parseGatewayError(body)
		return 0, &TxError{
			Kind:   ErrExecution,
			Code:   uint32(parsed.Code),
			RawLog: parsed.Message,
		}
	}

	var response simulateResponseJSON
	if err := restJSON.Unmarshal(body, &response); err != nil || response.GasInfo == nil {
		return 0, tx.ErrEncoding.Wrapf("decoding simulation response: %s", describeDecodeFailure(err, body))
	}

	gasUsed := uint64(response.GasInfo.GasUsed)
	r.log.Debug("simulated transaction", "gas_used", gasUsed, "tx", coding.PayloadFingerprint(txBytes))
	return gasUsed, nil
}

// GetTx returns an included transaction, or ErrNotFound if the node has not seen it in a block.
func (r *RestClient) GetTx(ctx context.Context, txHash string) (*TxResult, error) {
	status, body, err := r.makeRequest(ctx, http.MethodGet, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(txHash), nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		// Some node versions report a missing tx as a generic error.
		parsed := parseGatewayError(body)
		if strings.Contains(strings.ToLower(parsed.Message), "not found") {
			return nil, ErrNotFound.Wrapf("tx %s: %s", txHash, parsed.Message)
		}
		return nil, r.gatewayFailure(status, body, fmt.Sprintf("tx %s", txHash))
	}

	var response getTxResponseJSON
	if err := restJSON.Unmarshal(body, &response); err != nil || response.TxResponse == nil {
		return nil, tx.ErrEncoding.Wrapf("decoding tx %s: %s", txHash, describeDecodeFailure(err, body))
	}

	return response.TxResponse.toTxResult(), nil
}

// QueryContractState runs a smart query. The query is sent as canonical JSON.
func (r *RestClient) QueryContractState(ctx context.Context, contractAddress string, query any) (QueryResult, error) {
	queryBytes, err := tx.CanonicalJSON(query)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", url.PathEscape(contractAddress), base64.URLEncoding.EncodeToString(queryBytes))
	status, body, err := r.makeRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		parsed := parseGatewayError(body)
		if isNotFound(status, parsed) {
			return nil, ErrNotFound.Wrapf("contract %s: %s", contractAddress, parsed.Message)
		}
		if status >= http.StatusInternalServerError && parsed.Message == "" {
			return nil, r.gatewayFailure(status, body, fmt.Sprintf("query of %s", contractAddress))
		}
		return nil, ErrQuery.Wrapf("contract %s: %s", contractAddress, parsed.Message)
	}

	var response smartQueryResponseJSON
	if err := restJSON.Unmarshal(body, &response); err != nil {
		return nil, tx.ErrEncoding.Wrapf("decoding query response: %s", err)
	}

	var result QueryResult
	if err := restJSON.Unmarshal(response.Data, &result); err != nil || result == nil {
		return nil, tx.ErrEncoding.Wrapf("query result is not a JSON object: %s", describeDecodeFailure(err, response.Data))
	}

	r.log.Debug("queried contract", "contract", contractAddress, "query", string(queryBytes))
	return result, nil
}

// Private helpers

// makeRequest returns the status and body of any response. Only transport failures are errors.
func (r *RestClient) makeRequest(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	endpoint := r.baseURL + path
	requestID := uuid.NewString()
	logger := r.log.With("method", method, "path", path, "request_id", requestID)
	logger.Debug("making request")

	var body io.Reader
	if payload != nil {
		encoded, err := restJSON.Marshal(payload)
		if err != nil {
			return 0, nil, tx.ErrEncoding.Wrapf("encoding request: %s", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, ErrNetwork.Wrapf("creating request for %s: %s", endpoint, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(request)
	if err != nil {
		// Cancellation and deadlines are the caller's doing, so hand them back untouched.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, ErrNetwork.Wrapf("%s %s: %s", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, ErrNetwork.Wrapf("reading response from %s: %s", endpoint, err)
	}

	logger.Debug("received response", "status_code", resp.StatusCode)
	return resp.StatusCode, data, nil
}

// gatewayFailure maps a non-2xx reply for a read to ErrNotFound or ErrNetwork.
func (r *RestClient) gatewayFailure(status int, body []byte, what string) error {
	parsed := parseGatewayError(body)
	if isNotFound(status, parsed) {
		return ErrNotFound.Wrapf("%s: %s", what, parsed.Message)
	}

	r.log.Debug("received bad response from node", "response", string(body), "status_code", status)
	return ErrNetwork.Wrapf("%s: node returned HTTP %d: %s", what, status, parsed.Message)
}

func parseGatewayError(body []byte) gatewayError {
	parsed, ok := decodeGatewayError(body)
	if !ok {
		parsed.Message = strings.TrimSpace(string(body))
	}
	return parsed
}

// decodeGatewayError reports whether body is a grpc-gateway status object.
func decodeGatewayError(body []byte) (gatewayError, bool) {
	var parsed gatewayError
	if err := restJSON.Unmarshal(body, &parsed); err != nil || parsed.Message == "" {
		return gatewayError{}, false
	}
	return parsed, true
}

func isNotFound(status int, parsed gatewayError) bool {
	return status == http.StatusNotFound || parsed.Code == grpcCodeNotFound
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func describeDecodeFailure(err error, body []byte) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("unexpected reply %q", string(body))
}

// Pagination
// NOTE: Implemented as a private standalone func since go doesn't support generics on struct methods.
func retrievePaginatedData[DataType any](
	ctx context.Context,
	r *RestClient,
	noun string,
	retrievePageFn func(
		ctx context.Context,
		nextKey []byte,
	) (*paginatedRpcResponse[DataType], error),
) ([]DataType, error) {
	// Running list of data
	data := []DataType{}

	// Loop through all pages
	var nextKey []byte
	for {
		rpcResponse, err := retrievePageFn(ctx, nextKey)
		if err != nil {
			return nil, err
		}

		// Append the data
		data = append(data, rpcResponse.data...)
		r.log.Debug(fmt.Sprintf("fetched page of %s", noun), "num_in_page", len(rpcResponse.data), "total_fetched", len(data))

		// Update next key or break out of loop if we have finished
		if len(rpcResponse.nextKey) == 0 {
			break
		}
		nextKey = rpcResponse.nextKey
	}

	return data, nil
}
