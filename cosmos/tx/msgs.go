package tx

import (
	"bytes"
	"encoding/json"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	jsoniter "github.com/json-iterator/go"
)

// canonicalJSON decodes numbers losslessly and writes object keys in sorted order.
var canonicalJSON = jsoniter.Config{
	SortMapKeys:            true,
	UseNumber:              true,
	EscapeHTML:             false,
	ValidateJsonRawMessage: true,
}.Froze()

// CanonicalJSON renders a contract message as compact JSON with sorted keys, so that logically equal messages
// always produce identical bytes. Raw bytes and json.RawMessage are re-sorted rather than trusted.
func CanonicalJSON(msg any) ([]byte, error) {
	var raw []byte
	switch m := msg.(type) {
	case nil:
		return nil, ErrEncoding.Wrap("contract message is nil")
	case []byte:
		raw = m
	case json.RawMessage:
		raw = m
	case wasmtypes.RawContractMessage:
		raw = m
	case string:
		raw = []byte(m)
	default:
		encoded, err := canonicalJSON.Marshal(m)
		if err != nil {
			return nil, ErrEncoding.Wrapf("marshalling contract message: %s", err)
		}
		raw = encoded
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrEncoding.Wrapf("contract message must be a JSON object, got %q", truncate(trimmed))
	}

	var decoded any
	if err := canonicalJSON.Unmarshal(trimmed, &decoded); err != nil {
		return nil, ErrEncoding.Wrapf("contract message is not valid JSON: %s", err)
	}

	sorted, err := canonicalJSON.Marshal(decoded)
	if err != nil {
		return nil, ErrEncoding.Wrapf("re-encoding contract message: %s", err)
	}
	return sorted, nil
}

func NewStoreCodeMsg(sender string, wasm []byte) (*wasmtypes.MsgStoreCode, error) {
	if len(wasm) == 0 {
		return nil, ErrEncoding.Wrap("wasm bytecode is empty")
	}

	return &wasmtypes.MsgStoreCode{
		Sender:       sender,
		WASMByteCode: wasm,
	}, nil
}

func NewInstantiateMsg(sender string, codeID uint64, msg any, label string, funds sdk.Coins) (*wasmtypes.MsgInstantiateContract, error) {
	if codeID == 0 {
		return nil, ErrEncoding.Wrap("code id must be set")
	}
	if label == "" {
		return nil, ErrEncoding.Wrap("label must not be empty")
	}

	initMsg, err := CanonicalJSON(msg)
	if err != nil {
		return nil, err
	}

	sortedFunds, err := normalizeFunds(funds)
	if err != nil {
		return nil, err
	}

	return &wasmtypes.MsgInstantiateContract{
		Sender: sender,
		CodeID: codeID,
		Label:  label,
		Msg:    initMsg,
		Funds:  sortedFunds,
	}, nil
}

func NewExecuteMsg(sender, contract string, msg any, funds sdk.Coins) (*wasmtypes.MsgExecuteContract, error) {
	if contract == "" {
		return nil, ErrEncoding.Wrap("contract address must be set")
	}

	executeMsg, err := CanonicalJSON(msg)
	if err != nil {
		return nil, err
	}

	sortedFunds, err := normalizeFunds(funds)
	if err != nil {
		return nil, err
	}

	return &wasmtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: contract,
		Msg:      executeMsg,
		Funds:    sortedFunds,
	}, nil
}

// isSupportedMsg limits transactions to the contract lifecycle messages.
func isSupportedMsg(msg sdk.Msg) bool {
	switch msg.(type) {
	case *wasmtypes.MsgStoreCode, *wasmtypes.MsgInstantiateContract, *wasmtypes.MsgExecuteContract:
		return true
	default:
		return false
	}
}

func normalizeFunds(funds sdk.Coins) (sdk.Coins, error) {
	if len(funds) == 0 {
		return nil, nil
	}

	sorted := make(sdk.Coins, len(funds))
	copy(sorted, funds)
	sorted = sorted.Sort()
	if err := sorted.Validate(); err != nil {
		return nil, ErrEncoding.Wrapf("invalid funds %s: %s", sorted, err)
	}
	return sorted, nil
}

func truncate(b []byte) string {
	const limit = 32
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
