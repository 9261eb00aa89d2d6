// Package testnode is an in-process stand-in for a CosmWasm chain's REST gateway and its faucet. It checks
// sequences, signatures and fees the way a node's ante handler does, and runs a small cw_erc1155 style
// contract for every instantiated code.
package testnode

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/cosmos/cosmos-sdk/types/query"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/cosmos/gogoproto/proto"
	jsoniter "github.com/json-iterator/go"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
)

const (
	ChainID         = "testnode-1"
	Denom           = "atestfet"
	AddressPrefix   = "fetch"
	MinimumGasPrice = "500000000000"

	// Gas every transaction uses, simulated or not.
	DefaultSimulatedGas uint64 = 150_000
)

// DefaultFaucetGrant is what one claim pays out, 10 FET.
var DefaultFaucetGrant = math.NewIntWithDecimal(10, 18)

// gRPC status codes used in gateway error bodies
const (
	grpcUnknown         = 2
	grpcInvalidArgument = 3
	grpcNotFound        = 5
	grpcUnimplemented   = 12
)

// SDK codes returned by the ante handler
const (
	sdkCodespace = "sdk"

	sdkCodeTxDecode          = 2
	sdkCodeUnauthorized      = 4
	sdkCodeInsufficientFunds = 5
	sdkCodeInvalidPubKey     = 8
	sdkCodeUnknownAddress    = 9
	sdkCodeOutOfGas          = 11
	sdkCodeInsufficientFee   = 13
	sdkCodeWrongSequence     = 32

	wasmCodeExecuteFailed = 5
)

var nodeJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type Option func(*Node)

// WithInclusionDelay makes a transaction visible to GetTx only after it has been polled this many times.
func WithInclusionDelay(polls int) Option {
	return func(n *Node) {
		n.inclusionDelay = polls
	}
}

func WithSimulatedGas(gas uint64) Option {
	return func(n *Node) {
		n.simulatedGas = gas
	}
}

func WithFaucetGrant(amount math.Int) Option {
	return func(n *Node) {
		n.faucetGrant = amount
	}
}

// WithFaucetDelay credits a claim only after the claimed address's balance was read this many times.
func WithFaucetDelay(balanceReads int) Option {
	return func(n *Node) {
		n.faucetDelay = balanceReads
	}
}

// WithDryFaucet accepts claims but never pays them out.
func WithDryFaucet() Option {
	return func(n *Node) {
		n.faucetDry = true
	}
}

// WithFaucetStatus makes the faucet reject every claim with the given HTTP status.
func WithFaucetStatus(status int) Option {
	return func(n *Node) {
		n.faucetStatus = status
	}
}

type pendingGrant struct {
	readsLeft int
	amount    math.Int
}

type Node struct {
	mu sync.Mutex

	// Options
	inclusionDelay int
	simulatedGas   uint64
	faucetGrant    math.Int
	faucetDelay    int
	faucetDry      bool
	faucetStatus   int

	encoding tx.EncodingConfig
	builder  *tx.Builder
	gasPrice sdk.DecCoin

	accounts          map[string]*authtypes.BaseAccount
	nextAccountNumber uint64
	state             *ledgerState
	height            int64
	txs               map[string]*sdk.TxResponse
	txPolls           map[string]int
	pendingGrants     map[string]*pendingGrant

	broadcasts   int
	simulations  int
	faucetClaims int

	rest   *httptest.Server
	faucet *httptest.Server
}

// New starts a node and its faucet. Both are shut down when the test ends.
func New(t testing.TB, opts ...Option) *Node {
	t.Helper()

	encoding := tx.MakeEncodingConfig()
	n := &Node{
		simulatedGas: DefaultSimulatedGas,
		faucetGrant:  DefaultFaucetGrant,

		encoding: encoding,
		builder:  tx.NewBuilder(encoding.TxConfig, ""),
		gasPrice: sdk.NewDecCoinFromDec(Denom, math.LegacyMustNewDecFromStr(MinimumGasPrice)),

		accounts:      make(map[string]*authtypes.BaseAccount),
		state:         newLedgerState(),
		height:        1,
		txs:           make(map[string]*sdk.TxResponse),
		txPolls:       make(map[string]int),
		pendingGrants: make(map[string]*pendingGrant),
	}
	for _, opt := range opts {
		opt(n)
	}

	restMux := http.NewServeMux()
	restMux.HandleFunc("/cosmos/auth/v1beta1/accounts/", n.handleAccount)
	restMux.HandleFunc("/cosmos/bank/v1beta1/balances/", n.handleBalances)
	restMux.HandleFunc("/cosmos/tx/v1beta1/txs", n.handleBroadcast)
	restMux.HandleFunc("/cosmos/tx/v1beta1/txs/", n.handleGetTx)
	restMux.HandleFunc("/cosmos/tx/v1beta1/simulate", n.handleSimulate)
	restMux.HandleFunc("/cosmwasm/wasm/v1/contract/", n.handleSmartQuery)
	n.rest = httptest.NewServer(restMux)

	faucetMux := http.NewServeMux()
	faucetMux.HandleFunc("/api/v3/claims", n.handleClaim)
	n.faucet = httptest.NewServer(faucetMux)

	t.Cleanup(func() {
		n.rest.Close()
		n.faucet.Close()
	})
	return n
}

func (n *Node) URL() string {
	return n.rest.URL
}

func (n *Node) FaucetURL() string {
	return n.faucet.URL
}

// Config returns a chain config pointing at this node, with short poll intervals.
func (n *Node) Config() *config.ChainConfig {
	cfg := config.NewChainConfig(ChainID, n.URL(), n.FaucetURL(), Denom, MinimumGasPrice, AddressPrefix)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ConfirmationTimeout = 5 * time.Second
	cfg.FundingTimeout = 5 * time.Second
	return cfg
}

// Fund credits coins to address, creating the account if needed.
func (n *Node) Fund(address string, coins ...sdk.Coin) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.credit(address, sdk.NewCoins(coins...))
}

func (n *Node) Balance(address string) sdk.Coins {
	n.mu.Lock()
	defer n.mu.Unlock()

	return sdk.NewCoins(n.state.balances[address]...)
}

// Sequence is the next sequence the node will accept from address.
func (n *Node) Sequence(address string) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if account, ok := n.accounts[address]; ok {
		return account.Sequence
	}
	return 0
}

func (n *Node) Broadcasts() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.broadcasts
}

func (n *Node) Simulations() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.simulations
}

func (n *Node) FaucetClaims() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.faucetClaims
}

func (n *Node) SetInclusionDelay(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.inclusionDelay = polls
}

// Handlers

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/cosmos/auth/v1beta1/accounts/")

	n.mu.Lock()
	defer n.mu.Unlock()

	account, ok := n.accounts[address]
	if !ok {
		writeGatewayError(w, http.StatusNotFound, grpcNotFound, fmt.Sprintf("account %s not found", address))
		return
	}

	accountAny, err := codectypes.NewAnyWithValue(account)
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, grpcUnknown, err.Error())
		return
	}
	n.writeProto(w, &authtypes.QueryAccountResponse{Account: accountAny})
}

func (n *Node) handleBalances(w http.ResponseWriter, r *http.Request) {
	address := strings.TrimPrefix(r.URL.Path, "/cosmos/bank/v1beta1/balances/")

	limit := 100
	if raw := r.URL.Query().Get("pagination.limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, fmt.Sprintf("invalid pagination.limit %q", raw))
			return
		}
		limit = parsed
	}
	var startDenom string
	if raw := r.URL.Query().Get("pagination.key"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, fmt.Sprintf("invalid pagination.key %q", raw))
			return
		}
		startDenom = string(key)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.settleGrant(address)

	page := sdk.Coins{}
	var nextKey []byte
	for _, coin := range n.state.balances[address] {
		if coin.Denom < startDenom {
			continue
		}
		if len(page) == limit {
			nextKey = []byte(coin.Denom)
			break
		}
		page = append(page, coin)
	}

	n.writeProto(w, &banktypes.QueryAllBalancesResponse{
		Balances:   page,
		Pagination: &query.PageResponse{NextKey: nextKey},
	})
}

func (n *Node) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeGatewayError(w, http.StatusMethodNotAllowed, grpcUnimplemented, "method not allowed")
		return
	}

	var request struct {
		TxBytes []byte `json:"tx_bytes"`
		Mode    string `json:"mode"`
	}
	if err := nodeJSON.NewDecoder(r.Body).Decode(&request); err != nil || len(request.TxBytes) == 0 {
		writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, "invalid empty tx")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.broadcasts++
	hash := tx.TxHash(request.TxBytes)
	checkResponse := &sdk.TxResponse{TxHash: hash, RawLog: "[]"}

	decoded, msgs, failure := n.ante(request.TxBytes, false)
	if failure != nil {
		checkResponse.Code = failure.code
		checkResponse.Codespace = failure.codespace
		checkResponse.RawLog = failure.log
		n.writeProto(w, &txtypes.BroadcastTxResponse{TxResponse: checkResponse})
		return
	}

	n.deliver(hash, decoded.GetGas(), msgs)
	n.writeProto(w, &txtypes.BroadcastTxResponse{TxResponse: checkResponse})
}

func (n *Node) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var request struct {
		TxBytes []byte `json:"tx_bytes"`
	}
	if err := nodeJSON.NewDecoder(r.Body).Decode(&request); err != nil || len(request.TxBytes) == 0 {
		writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, "invalid empty tx")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.simulations++
	_, msgs, failure := n.ante(request.TxBytes, true)
	if failure != nil {
		writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, failure.log)
		return
	}

	// Run against a throwaway copy
	if _, err := n.state.clone().execute(msgs, AddressPrefix); err != nil {
		writeGatewayError(w, http.StatusInternalServerError, grpcUnknown, err.Error())
		return
	}

	n.writeProto(w, &txtypes.SimulateResponse{
		GasInfo: &sdk.GasInfo{GasUsed: n.simulatedGas},
		Result:  &sdk.Result{},
	})
}

func (n *Node) handleGetTx(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToUpper(strings.TrimPrefix(r.URL.Path, "/cosmos/tx/v1beta1/txs/"))

	n.mu.Lock()
	defer n.mu.Unlock()

	response, ok := n.txs[hash]
	n.txPolls[hash]++
	if !ok || n.txPolls[hash] <= n.inclusionDelay {
		writeGatewayError(w, http.StatusNotFound, grpcNotFound, fmt.Sprintf("tx not found: %s", hash))
		return
	}
	n.writeProto(w, &txtypes.GetTxResponse{TxResponse: response})
}

func (n *Node) handleSmartQuery(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/cosmwasm/wasm/v1/contract/"), "/")
	if len(parts) != 3 || parts[1] != "smart" {
		writeGatewayError(w, http.StatusNotImplemented, grpcUnimplemented, "unsupported contract route")
		return
	}
	address, encodedQuery := parts[0], parts[2]

	queryBytes, err := base64.URLEncoding.DecodeString(encodedQuery)
	if err != nil {
		queryBytes, err = base64.StdEncoding.DecodeString(encodedQuery)
	}
	if err != nil || !isJSONObject(queryBytes) {
		writeGatewayError(w, http.StatusBadRequest, grpcInvalidArgument, "invalid query data")
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	contract, ok := n.state.contracts[address]
	if !ok {
		writeGatewayError(w, http.StatusNotFound, grpcNotFound, fmt.Sprintf("contract %s: not found", address))
		return
	}

	result, err := contract.query(queryBytes)
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, grpcUnknown, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": result})
}

func (n *Node) handleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var claim struct {
		Address string `json:"address"`
	}
	if err := nodeJSON.NewDecoder(r.Body).Decode(&claim); err != nil {
		http.Error(w, "malformed claim", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.faucetClaims++
	if n.faucetStatus != 0 {
		http.Error(w, "faucet unavailable", n.faucetStatus)
		return
	}
	if hrp, _, err := bech32.DecodeAndConvert(claim.Address); err != nil || hrp != AddressPrefix {
		http.Error(w, fmt.Sprintf("invalid address %q", claim.Address), http.StatusBadRequest)
		return
	}

	if !n.faucetDry {
		grant := &pendingGrant{readsLeft: n.faucetDelay, amount: n.faucetGrant}
		if existing, ok := n.pendingGrants[claim.Address]; ok {
			grant.amount = grant.amount.Add(existing.amount)
		}
		n.pendingGrants[claim.Address] = grant
		if grant.readsLeft == 0 {
			n.settleGrant(claim.Address)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Ledger mechanics. Callers hold n.mu.

type abciFailure struct {
	codespace string
	code      uint32
	log       string
}

func sdkFailure(code uint32, format string, args ...any) *abciFailure {
	return &abciFailure{
		codespace: sdkCodespace,
		code:      code,
		log:       fmt.Sprintf(format, args...),
	}
}

// ante performs the checks a node runs before accepting a transaction. Outside simulation it also charges the
// fee and bumps the sequence, which stick even if the messages later fail.
func (n *Node) ante(txBytes []byte, simulate bool) (txWithGas, []sdk.Msg, *abciFailure) {
	decoded, err := n.builder.Decode(txBytes)
	if err != nil {
		return nil, nil, sdkFailure(sdkCodeTxDecode, "%s: tx parse error", err)
	}

	msgs := decoded.GetMsgs()
	sender := ""
	for _, msg := range msgs {
		msgSigner := msgSender(msg)
		if sender != "" && msgSigner != sender {
			return nil, nil, sdkFailure(sdkCodeUnauthorized, "transactions must have a single signer: unauthorized")
		}
		sender = msgSigner
	}

	account, ok := n.accounts[sender]
	if !ok {
		return nil, nil, sdkFailure(sdkCodeUnknownAddress, "account %s not found: unknown address", sender)
	}

	signatures, err := decoded.GetSignaturesV2()
	if err != nil || len(signatures) != 1 {
		return nil, nil, sdkFailure(sdkCodeUnauthorized, "wrong number of signers; expected 1: unauthorized")
	}
	signature := signatures[0]

	if signature.Sequence != account.Sequence {
		return nil, nil, sdkFailure(sdkCodeWrongSequence, "account sequence mismatch, expected %d, got %d: incorrect account sequence", account.Sequence, signature.Sequence)
	}

	signerAddress, err := bech32.ConvertAndEncode(AddressPrefix, signature.PubKey.Address())
	if err != nil || signerAddress != sender {
		return nil, nil, sdkFailure(sdkCodeInvalidPubKey, "pubKey does not match signer address %s: invalid pubkey", sender)
	}

	if decoded.GetGas() < n.simulatedGas && !simulate {
		return nil, nil, &abciFailure{
			codespace: sdkCodespace,
			code:      sdkCodeOutOfGas,
			log:       fmt.Sprintf("out of gas in location: wasm; gasWanted: %d, gasUsed: %d: out of gas", decoded.GetGas(), n.simulatedGas),
		}
	}

	if simulate {
		return decoded, msgs, nil
	}

	metadata := tx.NewSigningMetadata(sender, ChainID, account.AccountNumber, account.Sequence, signature.PubKey)
	if err := n.builder.VerifySignature(txBytes, metadata); err != nil {
		return nil, nil, sdkFailure(sdkCodeUnauthorized, "signature verification failed; please verify account number (%d), sequence (%d) and chain-id (%s): unauthorized", account.AccountNumber, account.Sequence, ChainID)
	}

	fee := decoded.GetFee()
	required := tx.ComputeFee(decoded.GetGas(), n.gasPrice)
	if !fee.IsAllGTE(required) {
		return nil, nil, sdkFailure(sdkCodeInsufficientFee, "insufficient fees; got: %s required: %s: insufficient fee", fee, required)
	}
	balance := n.state.balances[sender]
	if !balance.IsAllGTE(fee) {
		return nil, nil, sdkFailure(sdkCodeInsufficientFunds, "%s is smaller than %s: insufficient funds", balance, fee)
	}

	n.state.balances[sender] = balance.Sub(fee...)
	if account.PubKey == nil {
		if err := account.SetPubKey(signature.PubKey); err != nil {
			return nil, nil, sdkFailure(sdkCodeInvalidPubKey, "%s: invalid pubkey", err)
		}
	}
	account.Sequence++
	return decoded, msgs, nil
}

type txWithGas interface {
	GetGas() uint64
}

// deliver executes the messages in the next block. State only changes if every message succeeds.
func (n *Node) deliver(hash string, gasWanted uint64, msgs []sdk.Msg) {
	n.height++
	response := &sdk.TxResponse{
		Height:    n.height,
		TxHash:    hash,
		GasWanted: int64(gasWanted),
		GasUsed:   int64(n.simulatedGas),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	working := n.state.clone()
	events, err := working.execute(msgs, AddressPrefix)
	if err != nil {
		response.Code = wasmCodeExecuteFailed
		response.Codespace = wasmtypes.ModuleName
		response.RawLog = err.Error()
	} else {
		n.state = working
		for address := range working.contracts {
			n.ensureAccount(address)
		}
		response.RawLog = "[]"
		response.Events = events
	}
	n.txs[hash] = response
}

func (n *Node) ensureAccount(address string) *authtypes.BaseAccount {
	account, ok := n.accounts[address]
	if !ok {
		account = &authtypes.BaseAccount{Address: address, AccountNumber: n.nextAccountNumber}
		n.nextAccountNumber++
		n.accounts[address] = account
	}
	return account
}

func (n *Node) credit(address string, coins sdk.Coins) {
	n.ensureAccount(address)
	n.state.balances[address] = n.state.balances[address].Add(coins...)
}

// settleGrant pays out a pending faucet claim once enough balance reads have passed.
func (n *Node) settleGrant(address string) {
	grant, ok := n.pendingGrants[address]
	if !ok {
		return
	}
	if grant.readsLeft > 0 {
		grant.readsLeft--
		return
	}
	delete(n.pendingGrants, address)
	n.credit(address, sdk.NewCoins(sdk.NewCoin(Denom, grant.amount)))
}

func msgSender(msg sdk.Msg) string {
	switch m := msg.(type) {
	case *wasmtypes.MsgStoreCode:
		return m.Sender
	case *wasmtypes.MsgInstantiateContract:
		return m.Sender
	case *wasmtypes.MsgExecuteContract:
		return m.Sender
	}
	return ""
}

// Encoding helpers

func (n *Node) writeProto(w http.ResponseWriter, message proto.Message) {
	bz, err := n.encoding.Codec.MarshalJSON(message)
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, grpcUnknown, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(bz)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	bz, err := nodeJSON.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(bz)
}

func writeGatewayError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
		"details": []any{},
	})
}
