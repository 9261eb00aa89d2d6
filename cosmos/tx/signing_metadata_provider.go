package tx

import (
	"context"

	"github.com/tessellated-io/wasmledger/crypto"
)

// AccountRetriever fetches the on-chain numbers needed to sign for an account.
type AccountRetriever interface {
	GetAccountNumberSequence(ctx context.Context, address string) (accountNumber uint64, sequence uint64, err error)
}

type SigningMetadataProvider struct {
	chainID       string
	addressPrefix string

	accountRetriever AccountRetriever
}

func NewSigningMetadataProvider(chainID, addressPrefix string, accountRetriever AccountRetriever) (*SigningMetadataProvider, error) {
	return &SigningMetadataProvider{
		chainID:       chainID,
		addressPrefix: addressPrefix,

		accountRetriever: accountRetriever,
	}, nil
}

// SigningMetadataForSigner always asks the node, so the sequence is never stale.
func (smp *SigningMetadataProvider) SigningMetadataForSigner(ctx context.Context, signer crypto.BytesSigner) (*SigningMetadata, error) {
	address := signer.GetAddress(smp.addressPrefix)
	accountNumber, sequence, err := smp.accountRetriever.GetAccountNumberSequence(ctx, address)
	if err != nil {
		return nil, err
	}

	return NewSigningMetadata(address, smp.chainID, accountNumber, sequence, signer.GetPublicKey()), nil
}
