package crypto

import (
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/tessellated-io/wasmledger/coding"
	"github.com/tessellated-io/wasmledger/config"
)

// CosmosCoinType is the BIP44 coin type used by most cosmos chains.
const CosmosCoinType = uint32(118)

// KeyPair is an in-memory secp256k1 key. Private may be nil for a watch only identity.
type KeyPair struct {
	Public  cryptotypes.PubKey
	Private cryptotypes.PrivKey
}

var _ BytesSigner = (*KeyPair)(nil)

// GenerateKeyPair returns a fresh random key pair.
func GenerateKeyPair() *KeyPair {
	privKey := secp256k1.GenPrivKey()
	return &KeyPair{
		Public:  privKey.PubKey(),
		Private: privKey,
	}
}

// NewKeyPairFromHex loads a raw 32 byte secp256k1 private key, with or without a 0x prefix.
func NewKeyPairFromHex(hexPrivKey string) (*KeyPair, error) {
	keyBytes, err := coding.DecodeHex(hexPrivKey)
	if err != nil {
		return nil, ErrKey.Wrapf("private key is not hex: %s", err)
	}
	if len(keyBytes) != secp256k1.PrivKeySize {
		return nil, ErrKey.Wrapf("private key must be %d bytes, got %d", secp256k1.PrivKeySize, len(keyBytes))
	}

	privKey := &secp256k1.PrivKey{Key: keyBytes}
	return &KeyPair{
		Public:  privKey.PubKey(),
		Private: privKey,
	}, nil
}

// NewCosmosKeyPairFromMnemonic returns a key pair derived from the given mnemonic, with coin type 118 (cosmos)
func NewCosmosKeyPairFromMnemonic(mnemonic string) (*KeyPair, error) {
	return NewKeyPairFromMnemonic(mnemonic, CosmosCoinType)
}

// NewKeyPairFromMnemonic returns the first key pair derived from the mnemonic at m/44'/coinType'/0'/0/0.
func NewKeyPairFromMnemonic(mnemonic string, coinType uint32) (*KeyPair, error) {
	bip44Path := hd.CreateHDPath(coinType, 0, 0).String()
	return newKeyPairFromMnemonic(mnemonic, bip44Path)
}

func newKeyPairFromMnemonic(mnemonic, bip44Path string) (*KeyPair, error) {
	// create master key and derive first key for keyring
	algo := hd.Secp256k1
	derivedPriv, err := algo.Derive()(mnemonic, keyring.DefaultBIP39Passphrase, bip44Path)
	if err != nil {
		return nil, ErrKey.Wrapf("deriving key at %s: %s", bip44Path, err)
	}
	privKey := algo.Generate()(derivedPriv)
	pubKey := privKey.PubKey()

	return &KeyPair{
		Public:  pubKey,
		Private: privKey,
	}, nil
}

// GetAddress returns bech32(prefix, RIPEMD160(SHA256(compressed pubkey))).
func (kp *KeyPair) GetAddress(prefix string) string {
	address := sdk.AccAddress(kp.Public.Address())
	encoded, _ := bech32.ConvertAndEncode(prefix, address)
	return encoded
}

func (kp *KeyPair) SignBytes(
	bytesToSign []byte,
) ([]byte, error) {
	if kp.Private == nil {
		return nil, ErrKey.Wrap("key pair has no private key")
	}
	return kp.Private.Sign(bytesToSign)
}

// VerifyBytes checks a signature produced by SignBytes.
func (kp *KeyPair) VerifyBytes(signedBytes, signature []byte) bool {
	return kp.Public.VerifySignature(signedBytes, signature)
}

func (kp *KeyPair) GetPublicKey() cryptotypes.PubKey {
	return kp.Public
}

// ValidateAddress checks that address is valid bech32 under the given prefix.
func ValidateAddress(address, prefix string) error {
	hrp, bz, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return config.ErrConfig.Wrapf("address %q: %s", address, err)
	}
	if hrp != prefix {
		return config.ErrConfig.Wrapf("address %q has prefix %q, expected %q", address, hrp, prefix)
	}
	if err := sdk.VerifyAddressFormat(bz); err != nil {
		return config.ErrConfig.Wrapf("address %q: %s", address, err)
	}
	return nil
}
