package rpc

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
)

var (
	// ErrNotFound is returned for unknown accounts, transactions and contracts.
	ErrNotFound = errorsmod.Register(config.Codespace, 5, "not found")

	// ErrInvalidTransaction means the node refused a transaction at submission. Nothing was executed.
	ErrInvalidTransaction = errorsmod.Register(config.Codespace, 6, "transaction rejected")

	// ErrExecution means the transaction (or its simulation) ran and failed.
	ErrExecution = errorsmod.Register(config.Codespace, 7, "execution failed")

	// ErrTimeout means the caller's bound passed before the transaction was seen in a block. The
	// transaction may still land.
	ErrTimeout = errorsmod.Register(config.Codespace, 8, "timed out waiting for confirmation")

	// ErrNetwork covers transport failures and unexpected HTTP statuses.
	ErrNetwork = errorsmod.Register(config.Codespace, 9, "network error")

	// ErrQuery means the node could not answer a smart contract query.
	ErrQuery = errorsmod.Register(config.Codespace, 10, "contract query failed")
)

// TxError carries a node reported failure verbatim. Match it with errors.As, or match Kind with errors.Is.
type TxError struct {
	Kind      *errorsmod.Error
	TxHash    string
	Code      uint32
	Codespace string
	RawLog    string
}

var _ error = (*TxError)(nil)

func (e *TxError) Error() string {
	hash := e.TxHash
	if hash == "" {
		hash = "<none>"
	}
	return fmt.Sprintf("%s: tx %s code %d codespace %q: %s", e.Kind.Error(), hash, e.Code, e.Codespace, e.RawLog)
}

func (e *TxError) Unwrap() error {
	return e.Kind
}

// IsGasRelated reports whether bumping gas or fees might help.
func (e *TxError) IsGasRelated() bool {
	return tx.IsGasRelatedError(e.Codespace, e.Code)
}

// IsSequenceMismatch reports an account sequence conflict.
func (e *TxError) IsSequenceMismatch() bool {
	return tx.IsSequenceError(e.Codespace, e.Code)
}
