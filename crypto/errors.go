package crypto

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/tessellated-io/wasmledger/config"
)

// ErrKey is returned for unusable key material.
var ErrKey = errorsmod.Register(config.Codespace, 3, "invalid key")
