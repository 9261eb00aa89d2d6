package util

import (
	"errors"
	"fmt"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

var ErrDenomNotFound = errors.New("denom not found")

// ExtractCoin picks the coin of targetDenom out of a balance list. Denoms compare case insensitively.
func ExtractCoin(targetDenom string, coins []sdk.Coin) (*sdk.Coin, error) {
	for _, coin := range coins {
		if strings.EqualFold(targetDenom, coin.Denom) {
			return &coin, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDenomNotFound, targetDenom)
}
