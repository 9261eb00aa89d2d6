package crypto

import cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"

// BytesSigner is anything that can produce an address and sign arbitrary bytes. Transactions
// are signed through this, so a remote signer can stand in for an in-memory key pair.
type BytesSigner interface {
	GetAddress(prefix string) string
	SignBytes(
		bytesToSign []byte,
	) ([]byte, error)
	GetPublicKey() cryptotypes.PubKey
}
