package testnode

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	abci "github.com/cometbft/cometbft/abci/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	jsoniter "github.com/json-iterator/go"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// WasmStub is the smallest module the node accepts: the wasm magic number and version 1.
var WasmStub = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// ledgerState is everything a message can change. It is cloned before execution so a failing message
// leaves no trace.
type ledgerState struct {
	balances    map[string]sdk.Coins
	codes       map[uint64][]byte
	nextCodeID  uint64
	contracts   map[string]*tokenContract
	instanceSeq uint64
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		balances:   make(map[string]sdk.Coins),
		codes:      make(map[uint64][]byte),
		nextCodeID: 1,
		contracts:  make(map[string]*tokenContract),
	}
}

func (s *ledgerState) clone() *ledgerState {
	cloned := &ledgerState{
		balances:    make(map[string]sdk.Coins, len(s.balances)),
		codes:       make(map[uint64][]byte, len(s.codes)),
		nextCodeID:  s.nextCodeID,
		contracts:   make(map[string]*tokenContract, len(s.contracts)),
		instanceSeq: s.instanceSeq,
	}
	for address, coins := range s.balances {
		cloned.balances[address] = sdk.NewCoins(coins...)
	}
	for id, code := range s.codes {
		cloned.codes[id] = code
	}
	for address, contract := range s.contracts {
		cloned.contracts[address] = contract.clone()
	}
	return cloned
}

func (s *ledgerState) transfer(from, to string, amount sdk.Coins) error {
	if amount.IsZero() {
		return nil
	}
	balance := s.balances[from]
	if !balance.IsAllGTE(amount) {
		return fmt.Errorf("%s is smaller than %s: insufficient funds", balance, amount)
	}
	s.balances[from] = balance.Sub(amount...)
	s.balances[to] = s.balances[to].Add(amount...)
	return nil
}

// execute runs every message against the state, stopping at the first failure.
func (s *ledgerState) execute(msgs []sdk.Msg, prefix string) ([]abci.Event, error) {
	events := []abci.Event{}
	for idx, msg := range msgs {
		msgEvents, err := s.executeMsg(msg, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to execute message; message index: %d: %w", idx, err)
		}
		events = append(events, msgEvents...)
	}
	return events, nil
}

func (s *ledgerState) executeMsg(msg sdk.Msg, prefix string) ([]abci.Event, error) {
	switch m := msg.(type) {
	case *wasmtypes.MsgStoreCode:
		if !bytes.HasPrefix(m.WASMByteCode, wasmMagic) {
			return nil, errors.New("Error calling the VM: Error during static Wasm validation: Wasm bytecode could not be deserialized: create wasm contract failed")
		}
		codeID := s.nextCodeID
		s.nextCodeID++
		s.codes[codeID] = m.WASMByteCode

		checksum := sha256.Sum256(m.WASMByteCode)
		return []abci.Event{
			messageEvent(sdk.MsgTypeURL(m), m.Sender),
			newEvent(wasmtypes.EventTypeStoreCode,
				"code_checksum", hex.EncodeToString(checksum[:]),
				wasmtypes.AttributeKeyCodeID, strconv.FormatUint(codeID, 10),
			),
		}, nil

	case *wasmtypes.MsgInstantiateContract:
		if _, ok := s.codes[m.CodeID]; !ok {
			return nil, fmt.Errorf("code id %d: no such code", m.CodeID)
		}
		if !isJSONObject(m.Msg) {
			return nil, errors.New("Error parsing into type cw_erc1155::msg::InstantiateMsg: Invalid type: instantiate wasm contract failed")
		}

		s.instanceSeq++
		contractAddress, err := bech32.ConvertAndEncode(prefix, authtypes.NewModuleAddress(fmt.Sprintf("wasm/%d/%d", m.CodeID, s.instanceSeq)))
		if err != nil {
			return nil, err
		}
		if err := s.transfer(m.Sender, contractAddress, m.Funds); err != nil {
			return nil, err
		}
		s.contracts[contractAddress] = newTokenContract(m.CodeID, m.Label)

		return []abci.Event{
			messageEvent(sdk.MsgTypeURL(m), m.Sender),
			newEvent(wasmtypes.EventTypeInstantiate,
				wasmtypes.AttributeKeyContractAddr, contractAddress,
				wasmtypes.AttributeKeyCodeID, strconv.FormatUint(m.CodeID, 10),
			),
		}, nil

	case *wasmtypes.MsgExecuteContract:
		contract, ok := s.contracts[m.Contract]
		if !ok {
			return nil, fmt.Errorf("%s: no such contract", m.Contract)
		}
		if err := s.transfer(m.Sender, m.Contract, m.Funds); err != nil {
			return nil, err
		}
		action, err := contract.execute(m.Sender, m.Msg)
		if err != nil {
			return nil, fmt.Errorf("%s: execute wasm contract failed", err)
		}

		return []abci.Event{
			messageEvent(sdk.MsgTypeURL(m), m.Sender),
			newEvent(wasmtypes.EventTypeExecute, wasmtypes.AttributeKeyContractAddr, m.Contract),
			newEvent(wasmtypes.WasmModuleEventType, wasmtypes.AttributeKeyContractAddr, m.Contract, "action", action),
		}, nil
	}

	return nil, fmt.Errorf("unrecognized message type %s", sdk.MsgTypeURL(msg))
}

// tokenContract mimics the create/mint/balance subset of cw_erc1155.
type tokenContract struct {
	codeID uint64
	label  string

	owners   map[string]string
	balances map[string]map[string]math.Int
}

func newTokenContract(codeID uint64, label string) *tokenContract {
	return &tokenContract{
		codeID:   codeID,
		label:    label,
		owners:   make(map[string]string),
		balances: make(map[string]map[string]math.Int),
	}
}

func (c *tokenContract) clone() *tokenContract {
	cloned := newTokenContract(c.codeID, c.label)
	for id, owner := range c.owners {
		cloned.owners[id] = owner
	}
	for id, holders := range c.balances {
		cloned.balances[id] = make(map[string]math.Int, len(holders))
		for holder, amount := range holders {
			cloned.balances[id][holder] = amount
		}
	}
	return cloned
}

type tokenExecuteMsg struct {
	CreateSingle *struct {
		ItemOwner string `json:"item_owner"`
		ID        string `json:"id"`
		Path      string `json:"path"`
	} `json:"create_single"`
	MintSingle *struct {
		ToAddress string `json:"to_address"`
		ID        string `json:"id"`
		Supply    string `json:"supply"`
		Data      string `json:"data"`
	} `json:"mint_single"`
}

type tokenQueryMsg struct {
	Balance *struct {
		Address string `json:"address"`
		ID      string `json:"id"`
	} `json:"balance"`
}

func (c *tokenContract) execute(sender string, msg []byte) (string, error) {
	var parsed tokenExecuteMsg
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(msg, &parsed); err != nil {
		return "", fmt.Errorf("Error parsing into type cw_erc1155::msg::ExecuteMsg: %s", err)
	}

	switch {
	case parsed.CreateSingle != nil:
		create := parsed.CreateSingle
		if _, exists := c.owners[create.ID]; exists {
			return "", fmt.Errorf("Generic error: token %s already exists", create.ID)
		}
		c.owners[create.ID] = create.ItemOwner
		c.balances[create.ID] = make(map[string]math.Int)
		return "create_single", nil

	case parsed.MintSingle != nil:
		mint := parsed.MintSingle
		owner, exists := c.owners[mint.ID]
		if !exists {
			return "", fmt.Errorf("Generic error: token %s does not exist", mint.ID)
		}
		if owner != sender {
			return "", errors.New("Unauthorized")
		}
		supply, ok := math.NewIntFromString(mint.Supply)
		if !ok || supply.IsNegative() {
			return "", fmt.Errorf("Generic error: invalid supply %q", mint.Supply)
		}

		current, ok := c.balances[mint.ID][mint.ToAddress]
		if !ok {
			current = math.ZeroInt()
		}
		c.balances[mint.ID][mint.ToAddress] = current.Add(supply)
		return "mint_single", nil
	}

	return "", errors.New("Error parsing into type cw_erc1155::msg::ExecuteMsg: unknown variant")
}

func (c *tokenContract) query(msg []byte) (map[string]any, error) {
	var parsed tokenQueryMsg
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(msg, &parsed); err != nil || parsed.Balance == nil {
		return nil, errors.New("Error parsing into type cw_erc1155::msg::QueryMsg: unknown variant: query wasm contract failed")
	}

	amount, ok := c.balances[parsed.Balance.ID][parsed.Balance.Address]
	if !ok {
		amount = math.ZeroInt()
	}
	return map[string]any{"balance": amount.String()}, nil
}

func newEvent(eventType string, keyValues ...string) abci.Event {
	event := abci.Event{Type: eventType}
	for i := 0; i+1 < len(keyValues); i += 2 {
		event.Attributes = append(event.Attributes, abci.EventAttribute{
			Key:   keyValues[i],
			Value: keyValues[i+1],
			Index: true,
		})
	}
	return event
}

func messageEvent(action, sender string) abci.Event {
	return newEvent(sdk.EventTypeMessage,
		sdk.AttributeKeyAction, action,
		sdk.AttributeKeyModule, wasmtypes.ModuleName,
		sdk.AttributeKeySender, sender,
	)
}

func isJSONObject(msg []byte) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) > 0 && trimmed[0] == '{' && jsoniter.Valid(trimmed)
}
