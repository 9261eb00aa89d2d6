package rpc

import (
	"context"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// Handles REST calls for a contract client
type RpcClient interface {
	Account(ctx context.Context, address string) (*Account, error)
	GetAccountNumberSequence(ctx context.Context, address string) (uint64, uint64, error)
	GetBalance(ctx context.Context, address, denom string) (*sdk.Coin, error)

	Broadcast(ctx context.Context, txBytes []byte) (*BroadcastResult, error)
	Simulate(ctx context.Context, txBytes []byte) (uint64, error)
	GetTx(ctx context.Context, txHash string) (*TxResult, error)
	WaitForConfirmation(ctx context.Context, txHash string, timeout, pollInterval time.Duration) (*TxResult, error)

	QueryContractState(ctx context.Context, contractAddress string, query any) (QueryResult, error)
}
