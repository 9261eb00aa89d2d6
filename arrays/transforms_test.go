package arrays_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/arrays"
)

func TestMap(t *testing.T) {
	typeURLs := arrays.Map([]string{"MsgStoreCode", "MsgExecuteContract"}, func(name string) string {
		return "/cosmwasm.wasm.v1." + name
	})

	require.Equal(t, []string{"/cosmwasm.wasm.v1.MsgStoreCode", "/cosmwasm.wasm.v1.MsgExecuteContract"}, typeURLs)
	require.Empty(t, arrays.Map([]int{}, func(i int) int { return i }))
}

func TestFilter(t *testing.T) {
	evens := arrays.Filter([]int{1, 2, 3, 4, 5}, func(input int) bool { return input%2 == 0 })
	require.Equal(t, []int{2, 4}, evens)

	// Never nil, even when nothing matches
	none := arrays.Filter([]string{"a"}, func(string) bool { return false })
	require.NotNil(t, none)
	require.Empty(t, none)
}

func TestUnique(t *testing.T) {
	addresses := []string{"fetch1b", "fetch1a", "fetch1b", "fetch1c", "fetch1a"}
	require.Equal(t, []string{"fetch1b", "fetch1a", "fetch1c"}, arrays.Unique(addresses))
}
