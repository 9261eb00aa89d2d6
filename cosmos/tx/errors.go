package tx

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/tessellated-io/wasmledger/config"
)

var (
	// ErrEncoding covers anything that cannot be turned into, or read back from, wire bytes.
	ErrEncoding = errorsmod.Register(config.Codespace, 4, "encoding error")

	// ErrSignature is returned when a signed transaction does not verify against its signer.
	ErrSignature = errorsmod.Register(config.Codespace, 13, "signature verification failed")
)

// Well known SDK codespace error codes.
const (
	sdkCodespace = "sdk"

	CodeUnauthorized      = uint32(4)
	CodeInsufficientFunds = uint32(5)
	CodeOutOfGas          = uint32(11)
	CodeInsufficientFee   = uint32(13)
	CodeWrongSequence     = uint32(32)
)

// Helper function to know if an error had to do with gas.
func IsGasRelatedError(codespace string, code uint32) bool {
	return IsGasPriceError(codespace, code) || isGasAmountError(codespace, code)
}

// Helper function to determine if an error is related to too small of a gas price
func IsGasPriceError(codespace string, code uint32) bool {
	return (codespace == sdkCodespace && code == CodeInsufficientFee) || (codespace == "gaia" && code == 4)
}

// Helper function to determine if an error is related to to few gas units
func isGasAmountError(codespace string, code uint32) bool {
	return codespace == sdkCodespace && code == CodeOutOfGas
}

// IsSequenceError reports an account sequence mismatch.
func IsSequenceError(codespace string, code uint32) bool {
	return codespace == sdkCodespace && code == CodeWrongSequence
}
