package util_test

import (
	"encoding/json"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/util"
)

func TestNumberToInt(t *testing.T) {
	big, ok := math.NewIntFromString("680564733841876926926749214863536422912")
	require.True(t, ok)

	for _, in := range []any{"680564733841876926926749214863536422912", json.Number("680564733841876926926749214863536422912")} {
		n, err := util.NumberToInt(in)
		require.NoError(t, err)
		assert.True(t, big.Equal(n))
	}

	for _, in := range []any{"1.5", json.Number("2e3"), "", 12, nil} {
		_, err := util.NumberToInt(in)
		assert.Error(t, err, "%v", in)
	}
}
