package config

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace shared by every registered error in this module.
const Codespace = "wasmledger"

// ErrConfig is returned for a bad chain ID, prefix, denom, gas price or endpoint.
var ErrConfig = errorsmod.Register(Codespace, 2, "invalid configuration")
