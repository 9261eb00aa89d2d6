package tx

import (
	"fmt"

	"cosmossdk.io/math"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/cosmos/cosmos-sdk/client"
	cosmostx "github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	"github.com/tessellated-io/wasmledger/crypto"
)

const signMode = signing.SignMode_SIGN_MODE_DIRECT

// Builder turns messages into SIGN_MODE_DIRECT transactions. It holds no per-account state and is safe for
// concurrent use.
type Builder struct {
	memo     string
	txConfig client.TxConfig
}

func NewBuilder(txConfig client.TxConfig, memo string) *Builder {
	return &Builder{
		memo:     memo,
		txConfig: txConfig,
	}
}

// Build returns an encoded, unsigned transaction. The signer info carries the metadata's public key and
// sequence with an empty signature, which is the shape a node expects for simulation. The same inputs always
// produce the same bytes.
func (b *Builder) Build(msgs []sdk.Msg, fee sdk.Coins, gasLimit uint64, metadata *SigningMetadata) ([]byte, error) {
	if len(msgs) == 0 {
		return nil, ErrEncoding.Wrap("transaction has no messages")
	}
	for _, msg := range msgs {
		if !isSupportedMsg(msg) {
			return nil, ErrEncoding.Wrapf("unsupported message type %s", sdk.MsgTypeURL(msg))
		}
	}
	if metadata == nil || metadata.PubKey() == nil {
		return nil, ErrEncoding.Wrap("signing metadata with a public key is required")
	}

	// Build a transaction
	txFactory := cosmostx.Factory{}.
		WithChainID(metadata.ChainID()).
		WithTxConfig(b.txConfig).
		WithMemo(b.memo).
		WithGas(gasLimit)
	txb, err := txFactory.BuildUnsignedTx(msgs...)
	if err != nil {
		return nil, ErrEncoding.Wrapf("building tx: %s", err)
	}
	txb.SetFeeAmount(fee)

	signatureProto := signing.SignatureV2{
		PubKey: metadata.PubKey(),
		Data: &signing.SingleSignatureData{
			SignMode:  signMode,
			Signature: nil,
		},
		Sequence: metadata.Sequence(),
	}
	err = txb.SetSignatures(signatureProto)
	if err != nil {
		return nil, ErrEncoding.Wrapf("setting signer info: %s", err)
	}

	return b.encode(txb)
}

// Sign signs an unsigned transaction produced by Build and returns the broadcastable bytes.
func (b *Builder) Sign(unsignedTxBytes []byte, signer crypto.BytesSigner, metadata *SigningMetadata) ([]byte, error) {
	if metadata == nil || metadata.PubKey() == nil {
		return nil, ErrEncoding.Wrap("signing metadata with a public key is required")
	}
	if !signer.GetPublicKey().Equals(metadata.PubKey()) {
		return nil, crypto.ErrKey.Wrap("signer does not match the public key the tx was built for")
	}

	txb, err := b.decode(unsignedTxBytes)
	if err != nil {
		return nil, err
	}

	// Encode to bytes to sign
	bytesToSign, err := b.signBytes(txb, metadata)
	if err != nil {
		return nil, err
	}

	// Sign the bytes
	signatureBytes, err := signer.SignBytes(bytesToSign)
	if err != nil {
		return nil, err
	}

	// Reconstruct the signature proto
	signatureData := &signing.SingleSignatureData{
		SignMode:  signMode,
		Signature: signatureBytes,
	}
	signatureProto := signing.SignatureV2{
		PubKey:   signer.GetPublicKey(),
		Data:     signatureData,
		Sequence: metadata.Sequence(),
	}
	err = txb.SetSignatures(signatureProto)
	if err != nil {
		return nil, ErrEncoding.Wrapf("setting signature: %s", err)
	}

	return b.encode(txb)
}

// SignBytes returns the exact sign doc bytes (body, auth info, chain id, account number) for a transaction.
func (b *Builder) SignBytes(txBytes []byte, metadata *SigningMetadata) ([]byte, error) {
	txb, err := b.decode(txBytes)
	if err != nil {
		return nil, err
	}
	return b.signBytes(txb, metadata)
}

// VerifySignature checks that a signed transaction carries exactly one valid signature for the metadata's
// chain, account number and sequence.
func (b *Builder) VerifySignature(signedTxBytes []byte, metadata *SigningMetadata) error {
	txb, err := b.decode(signedTxBytes)
	if err != nil {
		return err
	}

	signatures, err := txb.GetTx().GetSignaturesV2()
	if err != nil {
		return ErrEncoding.Wrapf("reading signatures: %s", err)
	}
	if len(signatures) != 1 {
		return ErrSignature.Wrapf("expected one signature, got %d", len(signatures))
	}

	signature := signatures[0]
	if signature.Sequence != metadata.Sequence() {
		return ErrSignature.Wrapf("signed for sequence %d, expected %d", signature.Sequence, metadata.Sequence())
	}
	if metadata.PubKey() != nil && !signature.PubKey.Equals(metadata.PubKey()) {
		return ErrSignature.Wrap("signed by an unexpected public key")
	}

	signerData := b.signerData(metadata)
	signerData.PubKey = signature.PubKey
	err = authsigning.VerifySignature(signature.PubKey, signerData, signature.Data, b.txConfig.SignModeHandler(), txb.GetTx())
	if err != nil {
		return ErrSignature.Wrap(err.Error())
	}
	return nil
}

// Decode reads transaction bytes back into a transaction.
func (b *Builder) Decode(txBytes []byte) (authsigning.Tx, error) {
	txb, err := b.decode(txBytes)
	if err != nil {
		return nil, err
	}
	return txb.GetTx(), nil
}

// TxHash is the uppercase hex SHA256 of the transaction bytes, as nodes report it.
func TxHash(txBytes []byte) string {
	return fmt.Sprintf("%X", cmttypes.Tx(txBytes).Hash())
}

// ComputeFee returns ceil(gasLimit * minimumGasPrice) in the gas price's denom.
func ComputeFee(gasLimit uint64, minimumGasPrice sdk.DecCoin) sdk.Coins {
	gas := math.LegacyNewDecFromInt(math.NewIntFromUint64(gasLimit))
	amount := minimumGasPrice.Amount.Mul(gas).Ceil().TruncateInt()
	return sdk.NewCoins(sdk.NewCoin(minimumGasPrice.Denom, amount))
}

func (b *Builder) signerData(metadata *SigningMetadata) authsigning.SignerData {
	// Shim metadata into the format Cosmos SDK wants
	return authsigning.SignerData{
		Address:       metadata.Address(),
		ChainID:       metadata.ChainID(),
		AccountNumber: metadata.AccountNumber(),
		Sequence:      metadata.Sequence(),
		PubKey:        metadata.PubKey(),
	}
}

func (b *Builder) signBytes(txb client.TxBuilder, metadata *SigningMetadata) ([]byte, error) {
	bytesToSign, err := b.txConfig.SignModeHandler().GetSignBytes(signMode, b.signerData(metadata), txb.GetTx())
	if err != nil {
		return nil, ErrEncoding.Wrapf("computing sign bytes: %s", err)
	}
	return bytesToSign, nil
}

func (b *Builder) encode(txb client.TxBuilder) ([]byte, error) {
	encoder := b.txConfig.TxEncoder()
	txBytes, err := encoder(txb.GetTx())
	if err != nil {
		return nil, ErrEncoding.Wrapf("encoding tx: %s", err)
	}
	return txBytes, nil
}

func (b *Builder) decode(txBytes []byte) (client.TxBuilder, error) {
	decoded, err := b.txConfig.TxDecoder()(txBytes)
	if err != nil {
		return nil, ErrEncoding.Wrapf("decoding tx: %s", err)
	}

	txb, err := b.txConfig.WrapTxBuilder(decoded)
	if err != nil {
		return nil, ErrEncoding.Wrapf("wrapping tx: %s", err)
	}
	return txb, nil
}
