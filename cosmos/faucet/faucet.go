package faucet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	retry "github.com/avast/retry-go/v4"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/tessellated-io/wasmledger/arrays"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/cosmos/rpc"
	"github.com/tessellated-io/wasmledger/cosmos/tx"
	"github.com/tessellated-io/wasmledger/log"
)

// ErrFundingTimeout means a claim was accepted but the funds did not show up in time.
var ErrFundingTimeout = errorsmod.Register(config.Codespace, 11, "timed out waiting for faucet funds")

const claimsPath = "/api/v3/claims"

// Cap on how much of a faucet error body ends up in an error message.
const maxErrorBody = 512

// BalanceReader is the slice of the ledger client the faucet needs.
type BalanceReader interface {
	GetBalance(ctx context.Context, address, denom string) (*sdk.Coin, error)
}

type Client struct {
	faucetURL      string
	denom          string
	pollInterval   time.Duration
	fundingTimeout time.Duration

	balances   BalanceReader
	httpClient *http.Client
	log        *log.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient makes a faucet client for the chain in cfg. Balances are read through balances.
func NewClient(cfg *config.ChainConfig, balances BalanceReader, logger *log.Logger, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(cfg.FaucetURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, config.ErrConfig.Wrapf("invalid faucet url %q", cfg.FaucetURL)
	}
	if cfg.Denom == "" {
		return nil, config.ErrConfig.Wrap("denom is required")
	}

	client := &Client{
		faucetURL:      strings.TrimRight(cfg.FaucetURL, "/"),
		denom:          cfg.Denom,
		pollInterval:   cfg.PollInterval,
		fundingTimeout: cfg.FundingTimeout,

		balances:   balances,
		httpClient: &http.Client{},
		log:        logger.ApplyPrefix("🚰"),
	}
	if client.pollInterval <= 0 {
		client.pollInterval = config.DefaultPollInterval
	}
	if client.fundingTimeout <= 0 {
		client.fundingTimeout = config.DefaultFundingTimeout
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// EnsureFunds makes sure every address holds a non-zero balance of the chain's denom. Funded addresses are
// left alone, so calling it again is free.
func (c *Client) EnsureFunds(ctx context.Context, addresses ...string) error {
	for _, address := range arrays.Unique(addresses) {
		if err := c.ensureFunds(ctx, address); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ensureFunds(ctx context.Context, address string) error {
	logger := c.log.With("address", address, "denom", c.denom)

	balance, err := c.balances.GetBalance(ctx, address, c.denom)
	if err != nil {
		return err
	}
	if balance.IsPositive() {
		logger.Debug("address already funded, skipping faucet", "balance", balance.String())
		return nil
	}

	logger.Info("requesting funds from faucet")
	if err := c.Claim(ctx, address); err != nil {
		return err
	}

	funded, err := c.waitForFunds(ctx, address)
	if err != nil {
		return err
	}
	logger.Info("💰 funds received", "balance", funded.String())
	return nil
}

// Claim asks the faucet to fund address. It does not wait for the funds.
func (c *Client) Claim(ctx context.Context, address string) error {
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(map[string]string{"address": address})
	if err != nil {
		return tx.ErrEncoding.Wrapf("encoding claim for %s: %s", address, err)
	}

	endpoint := c.faucetURL + claimsPath
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return rpc.ErrNetwork.Wrapf("creating claim request: %s", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return rpc.ErrNetwork.Wrapf("POST %s: %s", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return rpc.ErrNetwork.Wrapf("reading faucet response (HTTP %d): %s", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rpc.ErrNetwork.Wrapf("faucet returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.log.Debug("faucet accepted claim", "address", address, "status_code", resp.StatusCode)
	return nil
}

// waitForFunds polls the balance until it is positive or the funding timeout passes.
func (c *Client) waitForFunds(ctx context.Context, address string) (*sdk.Coin, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.fundingTimeout)
	defer cancel()

	errNotFunded := errors.New("balance is still zero")

	var funded *sdk.Coin
	err := retry.Do(func() error {
		balance, err := c.balances.GetBalance(timeoutCtx, address, c.denom)
		if err != nil {
			return err
		}
		if !balance.IsPositive() {
			return errNotFunded
		}
		funded = balance
		return nil
	},
		retry.Context(timeoutCtx),
		retry.Attempts(0),
		retry.Delay(c.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errNotFunded)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, errNotFunded) || errors.Is(err, context.DeadlineExceeded) || timeoutCtx.Err() != nil {
			return nil, ErrFundingTimeout.Wrapf("%s still unfunded after %s", address, c.fundingTimeout)
		}
		return nil, fmt.Errorf("polling balance of %s: %w", address, err)
	}
	return funded, nil
}
