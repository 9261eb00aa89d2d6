package contract

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/tessellated-io/wasmledger/config"
)

// ErrInvalidStage is returned when an operation is called on a contract that has not reached the stage it needs.
var ErrInvalidStage = errorsmod.Register(config.Codespace, 12, "invalid contract stage")
