package crypto

// EthermintCoinType is the slip44 value of chains that sign with eth_secp256k1.
const EthermintCoinType = uint32(60)

// GetSoftSigner returns an in-memory signer for a chain's slip44 coin type. Ethermint style chains sign
// with a different curve encoding and are refused.
func GetSoftSigner(slip44 uint32, mnemonic string) (BytesSigner, error) {
	switch slip44 {
	case EthermintCoinType:
		return nil, ErrKey.Wrapf("slip44 %d uses eth_secp256k1 keys, which are not supported", slip44)
	case CosmosCoinType:
		return NewCosmosKeyPairFromMnemonic(mnemonic)
	}

	return NewKeyPairFromMnemonic(mnemonic, slip44)
}
