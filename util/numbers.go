package util

import (
	"encoding/json"
	"fmt"
	"strings"

	"cosmossdk.io/math"
)

// NumberToInt reads an integer out of a decoded JSON value. Contracts report 128 bit amounts as strings,
// while smaller values may arrive as json.Number, so both are accepted.
func NumberToInt(value any) (math.Int, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case json.Number:
		raw = v.String()
	default:
		return math.Int{}, fmt.Errorf("unexpected type %T for an integer value", value)
	}

	raw = strings.TrimSpace(raw)
	n, ok := math.NewIntFromString(raw)
	if !ok {
		return math.Int{}, fmt.Errorf("unexpected non integer value: %q", raw)
	}
	return n, nil
}
