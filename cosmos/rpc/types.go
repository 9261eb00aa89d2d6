package rpc

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"

	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
)

// Account is the signing state of an address as the node last reported it.
type Account struct {
	Address       string
	PubKey        cryptotypes.PubKey
	AccountNumber uint64
	Sequence      uint64
}

// BroadcastResult is the outcome of CheckTx for a synchronously broadcast transaction.
type BroadcastResult struct {
	TxHash    string
	Code      uint32
	Codespace string
	RawLog    string
}

type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

// TxResult is a transaction as included in a block.
type TxResult struct {
	TxHash    string
	Height    int64
	Code      uint32
	Codespace string
	RawLog    string
	GasWanted int64
	GasUsed   int64
	Events    []Event
	Data      string
}

func (r *TxResult) Succeeded() bool {
	return r.Code == 0
}

// Attribute returns the first value of key within events of the given type.
func (r *TxResult) Attribute(eventType, key string) (string, bool) {
	for _, event := range r.Events {
		if event.Type != eventType {
			continue
		}
		for _, attribute := range event.Attributes {
			if attribute.Key == key {
				return attribute.Value, true
			}
		}
	}
	return "", false
}

// QueryResult is a smart query reply. Its shape is defined by the contract, so it is left schema-less.
// Numbers are kept as json.Number to avoid losing precision.
type QueryResult map[string]any

// Decode re-reads the result into a typed value.
func (q QueryResult) Decode(into any) error {
	bz, err := restJSON.Marshal(q)
	if err != nil {
		return tx.ErrEncoding.Wrapf("re-encoding query result: %s", err)
	}
	if err := restJSON.Unmarshal(bz, into); err != nil {
		return tx.ErrEncoding.Wrapf("decoding query result: %s", err)
	}
	return nil
}

// restJSON matches encoding/json behaviour, but keeps numbers exact.
var restJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Wire shapes of the gRPC gateway. 64 bit integers arrive as quoted strings.

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type txResponseJSON struct {
	Height    int64String `json:"height"`
	TxHash    string      `json:"txhash"`
	Codespace string      `json:"codespace"`
	Code      uint32      `json:"code"`
	Data      string      `json:"data"`
	RawLog    string      `json:"raw_log"`
	Logs      []struct {
		Events []Event `json:"events"`
	} `json:"logs"`
	GasWanted int64String `json:"gas_wanted"`
	GasUsed   int64String `json:"gas_used"`
	Events    []Event     `json:"events"`
}

func (r *txResponseJSON) toTxResult() *TxResult {
	// Message logs are plain text on every version that reports them. Top level events are base64 on v0.45.
	var events []Event
	for _, msgLog := range r.Logs {
		events = append(events, msgLog.Events...)
	}
	if len(events) == 0 {
		events = make([]Event, 0, len(r.Events))
		for _, event := range r.Events {
			events = append(events, decodeLegacyEvent(event))
		}
	}

	return &TxResult{
		TxHash:    strings.ToUpper(r.TxHash),
		Height:    int64(r.Height),
		Code:      r.Code,
		Codespace: r.Codespace,
		RawLog:    r.RawLog,
		GasWanted: int64(r.GasWanted),
		GasUsed:   int64(r.GasUsed),
		Events:    events,
		Data:      r.Data,
	}
}

// decodeLegacyEvent undoes the base64 encoding v0.45 nodes apply to top level event attributes. An attribute is
// only decoded when both halves are valid base64 and the key decodes to an attribute name.
func decodeLegacyEvent(event Event) Event {
	attributes := make([]EventAttribute, len(event.Attributes))
	for i, attribute := range event.Attributes {
		attributes[i] = attribute

		key, err := base64.StdEncoding.DecodeString(attribute.Key)
		if err != nil || !legacyAttributeKey.Match(key) {
			continue
		}
		value, err := base64.StdEncoding.DecodeString(attribute.Value)
		if err != nil {
			continue
		}
		attributes[i] = EventAttribute{Key: string(key), Value: string(value)}
	}
	return Event{Type: event.Type, Attributes: attributes}
}

var legacyAttributeKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

type broadcastTxRequestJSON struct {
	TxBytes []byte `json:"tx_bytes"`
	Mode    string `json:"mode"`
}

type broadcastTxResponseJSON struct {
	TxResponse *txResponseJSON `json:"tx_response"`
}

type getTxResponseJSON struct {
	TxResponse *txResponseJSON `json:"tx_response"`
}

type simulateRequestJSON struct {
	TxBytes []byte `json:"tx_bytes"`
}

type simulateResponseJSON struct {
	GasInfo *struct {
		GasWanted int64String `json:"gas_wanted"`
		GasUsed   int64String `json:"gas_used"`
	} `json:"gas_info"`
}

type smartQueryResponseJSON struct {
	Data jsoniter.RawMessage `json:"data"`
}

type pageResponseJSON struct {
	NextKey []byte `json:"next_key"`
}

type int64String int64

func (i *int64String) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*i = 0
		return nil
	}

	parsed, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*i = int64String(parsed)
	return nil
}
