package util_test

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/tessellated-io/wasmledger/util"
)

func TestRecoveredToError(t *testing.T) {
	assert.NoError(t, util.RecoveredToError(nil))
	assert.EqualError(t, util.RecoveredToError("boom"), "panic: boom")

	err := util.RecoveredToError(assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)

	assert.EqualError(t, util.RecoveredToError(math.NewInt(42)), "panic: 42")
	assert.EqualError(t, util.RecoveredToError(7), "panic: 7 (int)")
}
