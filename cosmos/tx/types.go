package tx

import (
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
)

type SimulationResult struct {
	GasUsed           uint64
	GasRecommendation uint64
}

// SigningMetadata binds a transaction to one account on one chain.
type SigningMetadata struct {
	address       string
	chainID       string
	accountNumber uint64
	sequence      uint64
	pubKey        cryptotypes.PubKey
}

func NewSigningMetadata(address, chainID string, accountNumber, sequence uint64, pubKey cryptotypes.PubKey) *SigningMetadata {
	return &SigningMetadata{
		address:       address,
		chainID:       chainID,
		accountNumber: accountNumber,
		sequence:      sequence,
		pubKey:        pubKey,
	}
}

func (sm *SigningMetadata) Address() string {
	return sm.address
}

func (sm *SigningMetadata) ChainID() string {
	return sm.chainID
}

func (sm *SigningMetadata) AccountNumber() uint64 {
	return sm.accountNumber
}

func (sm *SigningMetadata) Sequence() uint64 {
	return sm.sequence
}

func (sm *SigningMetadata) PubKey() cryptotypes.PubKey {
	return sm.pubKey
}
