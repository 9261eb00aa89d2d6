package tx_test

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/crypto"
)

const (
	chainID = "capricorn-1"
	prefix  = "fetch"
)

var gasPrice = sdk.NewDecCoinFromDec("atestfet", math.LegacyMustNewDecFromStr("0.025"))

func newBuilder() *tx.Builder {
	return tx.NewBuilder(tx.MakeEncodingConfig().TxConfig, "")
}

func metadataFor(kp *crypto.KeyPair, accountNumber, sequence uint64) *tx.SigningMetadata {
	return tx.NewSigningMetadata(kp.GetAddress(prefix), chainID, accountNumber, sequence, kp.GetPublicKey())
}

func executeMsg(t *testing.T, sender string, msg any) sdk.Msg {
	t.Helper()
	execute, err := tx.NewExecuteMsg(sender, "fetch1contract", msg, nil)
	require.NoError(t, err)
	return execute
}

func TestBuild_Deterministic(t *testing.T) {
	kp := crypto.GenerateKeyPair()
	sender := kp.GetAddress(prefix)
	builder := newBuilder()
	metadata := metadataFor(kp, 7, 3)
	fee := tx.ComputeFee(200_000, gasPrice)

	first, err := builder.Build([]sdk.Msg{executeMsg(t, sender, `{"mint_single":{"to":"a","id":"1","amount":"10"}}`)}, fee, 200_000, metadata)
	require.NoError(t, err)

	// Same message, keys in a different order and with whitespace
	second, err := builder.Build([]sdk.Msg{executeMsg(t, sender, `{ "mint_single": { "amount":"10", "id":"1", "to":"a" } }`)}, fee, 200_000, metadata)
	require.NoError(t, err)

	// Same message again, from a Go value
	third, err := builder.Build([]sdk.Msg{executeMsg(t, sender, map[string]any{
		"mint_single": map[string]any{"to": "a", "amount": "10", "id": "1"},
	})}, fee, 200_000, metadata)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, third)

	// Anything logically different changes the bytes
	otherSequence, err := builder.Build([]sdk.Msg{executeMsg(t, sender, `{"mint_single":{"to":"a","id":"1","amount":"10"}}`)}, fee, 200_000, metadataFor(kp, 7, 4))
	require.NoError(t, err)
	assert.NotEqual(t, first, otherSequence)
}

func TestBuild_Rejects(t *testing.T) {
	kp := crypto.GenerateKeyPair()
	builder := newBuilder()
	metadata := metadataFor(kp, 0, 0)

	_, err := builder.Build(nil, nil, 0, metadata)
	assert.ErrorIs(t, err, tx.ErrEncoding)

	send := banktypes.NewMsgSend(sdk.AccAddress(kp.Public.Address()), sdk.AccAddress(kp.Public.Address()), sdk.NewCoins(sdk.NewInt64Coin("atestfet", 1)))
	_, err = builder.Build([]sdk.Msg{send}, nil, 0, metadata)
	assert.ErrorIs(t, err, tx.ErrEncoding)

	_, err = builder.Build([]sdk.Msg{executeMsg(t, kp.GetAddress(prefix), `{}`)}, nil, 0, nil)
	assert.ErrorIs(t, err, tx.ErrEncoding)
}

func TestSignAndVerify(t *testing.T) {
	kp := crypto.GenerateKeyPair()
	builder := newBuilder()
	metadata := metadataFor(kp, 12, 5)

	unsigned, err := builder.Build([]sdk.Msg{executeMsg(t, kp.GetAddress(prefix), `{"create_single":{"id":"1"}}`)}, tx.ComputeFee(100_000, gasPrice), 100_000, metadata)
	require.NoError(t, err)

	signed, err := builder.Sign(unsigned, kp, metadata)
	require.NoError(t, err)
	require.NoError(t, builder.VerifySignature(signed, metadata))

	// Signing the same tx twice is deterministic
	again, err := builder.Sign(unsigned, kp, metadata)
	require.NoError(t, err)
	assert.Equal(t, signed, again)

	// Pull the raw signature back out and check it against the sign doc
	decoded, err := builder.Decode(signed)
	require.NoError(t, err)
	signatures, err := decoded.GetSignaturesV2()
	require.NoError(t, err)
	require.Len(t, signatures, 1)
	signature := signatures[0].Data.(*signing.SingleSignatureData).Signature

	signDoc, err := builder.SignBytes(signed, metadata)
	require.NoError(t, err)
	assert.True(t, kp.VerifyBytes(signDoc, signature))

	for i := range signDoc {
		tampered := append([]byte{}, signDoc...)
		tampered[i] ^= 0xff
		assert.False(t, kp.VerifyBytes(tampered, signature), "flipped byte %d still verified", i)
	}
}

func TestVerifySignature_ReplayProtection(t *testing.T) {
	kp := crypto.GenerateKeyPair()
	builder := newBuilder()
	metadata := metadataFor(kp, 12, 5)

	unsigned, err := builder.Build([]sdk.Msg{executeMsg(t, kp.GetAddress(prefix), `{"create_single":{"id":"1"}}`)}, nil, 100_000, metadata)
	require.NoError(t, err)
	signed, err := builder.Sign(unsigned, kp, metadata)
	require.NoError(t, err)

	cases := map[string]*tx.SigningMetadata{
		"other chain":          tx.NewSigningMetadata(kp.GetAddress(prefix), "dorado-1", 12, 5, kp.GetPublicKey()),
		"other account number": tx.NewSigningMetadata(kp.GetAddress(prefix), chainID, 13, 5, kp.GetPublicKey()),
		"other sequence":       tx.NewSigningMetadata(kp.GetAddress(prefix), chainID, 12, 6, kp.GetPublicKey()),
		"other key":            metadataFor(crypto.GenerateKeyPair(), 12, 5),
	}
	for name, other := range cases {
		t.Run(name, func(t *testing.T) {
			err := builder.VerifySignature(signed, other)
			assert.ErrorIs(t, err, tx.ErrSignature)
		})
	}
}

func TestSign_Errors(t *testing.T) {
	kp := crypto.GenerateKeyPair()
	builder := newBuilder()
	metadata := metadataFor(kp, 1, 1)

	unsigned, err := builder.Build([]sdk.Msg{executeMsg(t, kp.GetAddress(prefix), `{}`)}, nil, 1, metadata)
	require.NoError(t, err)

	_, err = builder.Sign(unsigned, crypto.GenerateKeyPair(), metadata)
	assert.ErrorIs(t, err, crypto.ErrKey)

	_, err = builder.Sign(unsigned, &crypto.KeyPair{Public: kp.Public}, metadata)
	assert.ErrorIs(t, err, crypto.ErrKey)

	_, err = builder.Sign([]byte("not a tx"), kp, metadata)
	assert.ErrorIs(t, err, tx.ErrEncoding)
}

func TestComputeFee(t *testing.T) {
	assert.Equal(t, "5000atestfet", tx.ComputeFee(200_000, gasPrice).String())

	// Fractional fees round up
	price := sdk.NewDecCoinFromDec("atestfet", math.LegacyMustNewDecFromStr("0.0251"))
	assert.Equal(t, "1atestfet", tx.ComputeFee(3, price).String())

	big := sdk.NewDecCoinFromDec("atestfet", math.LegacyMustNewDecFromStr("500000000000"))
	assert.Equal(t, "1000000000000000000atestfet", tx.ComputeFee(2_000_000, big).String())

	zero := sdk.NewDecCoinFromDec("atestfet", math.LegacyZeroDec())
	assert.True(t, tx.ComputeFee(100, zero).IsZero())
}

func TestCanonicalJSON(t *testing.T) {
	expected := `{"a":{"x":1,"y":[{"m":true,"n":null}]},"b":"123456789012345678901234567890"}`

	inputs := []any{
		`{"b":"123456789012345678901234567890","a":{"y":[{"n":null,"m":true}],"x":1}}`,
		[]byte(`{"a":{"x":1,"y":[{"m":true,"n":null}]},"b":"123456789012345678901234567890"}`),
		json.RawMessage(` {"a" : {"x":1, "y":[{"m":true,"n":null}]}, "b":"123456789012345678901234567890"} `),
		map[string]any{"b": "123456789012345678901234567890", "a": map[string]any{"x": 1, "y": []any{map[string]any{"n": nil, "m": true}}}},
	}
	for _, input := range inputs {
		canonical, err := tx.CanonicalJSON(input)
		require.NoError(t, err)
		assert.Equal(t, expected, string(canonical))
	}

	// Large integers survive untouched
	canonical, err := tx.CanonicalJSON(`{"amount":340282366920938463463374607431768211455}`)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":340282366920938463463374607431768211455}`, string(canonical))

	for _, bad := range []any{nil, `[1,2]`, `"str"`, `{"a":`, ``} {
		_, err := tx.CanonicalJSON(bad)
		assert.ErrorIs(t, err, tx.ErrEncoding, "input %v", bad)
	}
}

func TestMsgConstructors(t *testing.T) {
	_, err := tx.NewStoreCodeMsg("fetch1sender", nil)
	assert.ErrorIs(t, err, tx.ErrEncoding)

	_, err = tx.NewInstantiateMsg("fetch1sender", 1, `{}`, "", nil)
	assert.ErrorIs(t, err, tx.ErrEncoding)

	_, err = tx.NewInstantiateMsg("fetch1sender", 0, `{}`, "L", nil)
	assert.ErrorIs(t, err, tx.ErrEncoding)

	funds := sdk.Coins{sdk.NewInt64Coin("ubbb", 1), sdk.NewInt64Coin("uaaa", 2)}
	instantiate, err := tx.NewInstantiateMsg("fetch1sender", 1, `{"z":1,"a":2}`, "L", funds)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"z":1}`, string(instantiate.Msg))
	assert.Equal(t, "2uaaa,1ubbb", instantiate.Funds.String())
	// Caller's slice is untouched
	assert.Equal(t, "ubbb", funds[0].Denom)

	_, err = tx.NewExecuteMsg("fetch1sender", "", `{}`, nil)
	assert.ErrorIs(t, err, tx.ErrEncoding)
}

func TestAdjustGas(t *testing.T) {
	assert.Equal(t, uint64(150), tx.AdjustGas(100, 1.5))
	assert.Equal(t, uint64(131), tx.AdjustGas(100, 1.301))
	assert.Equal(t, uint64(0), tx.AdjustGas(0, 1.5))
}
