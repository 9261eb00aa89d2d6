package rpc

import (
	"context"
	"errors"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// DefaultPollInterval is used when callers pass a non-positive poll interval.
const DefaultPollInterval = time.Second

// WaitForConfirmation polls GetTx until the transaction is in a block or timeout elapses. A transaction that
// landed with a non-zero code is still a confirmation, so check TxResult.Succeeded.
//
// Only "not found yet" is polled again. Any other failure, including network errors, is returned as is.
// If the timeout passes first the error is ErrTimeout; if ctx itself ends, ctx's error is returned.
func (r *RestClient) WaitForConfirmation(ctx context.Context, txHash string, timeout, pollInterval time.Duration) (*TxResult, error) {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	logger := r.log.With("tx_hash", txHash, "timeout", timeout.String())
	logger.Debug("polling for inclusion")

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result *TxResult
	err := retry.Do(func() error {
		txResult, err := r.GetTx(timeoutCtx, txHash)
		if err != nil {
			return err
		}
		result = txResult
		return nil
	},
		retry.Context(timeoutCtx),
		retry.Attempts(0),
		retry.Delay(pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrNotFound)
		}),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Debug("transaction still not included", "attempt", attempt+1)
		}),
	)
	if err != nil {
		// The caller gave up, not us.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) || timeoutCtx.Err() != nil {
			logger.Warn("transaction not confirmed in time")
			return nil, ErrTimeout.Wrapf("tx %s not seen in a block after %s", txHash, timeout)
		}
		return nil, err
	}

	logger.Info("transaction landed on chain", "height", result.Height, "code", result.Code, "gas_used", result.GasUsed)
	return result, nil
}
