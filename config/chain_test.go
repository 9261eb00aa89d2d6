package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tessellated-io/wasmledger/config"
	"github.com/tessellated-io/wasmledger/log"
)

const sampleConfig = `
chain_id: capricorn-1
rest_address: https://rest-capricorn.fetch.ai:443
faucet_url: https://faucet-capricorn.t-v3-london-c.fetch-ai.com
denom: atestfet
minimum_gas_price: "500000000000"
address_prefix: fetch
gas_adjustment: 1.3
poll_interval: 500ms
`

func validConfig() *config.ChainConfig {
	return config.NewChainConfig("capricorn-1", "https://rest-capricorn.fetch.ai:443", "", "atestfet", "500000000000", "fetch")
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "capricorn-1", cfg.ChainID)
	assert.Equal(t, "atestfet", cfg.Denom)
	assert.Equal(t, 1.3, cfg.GasAdjustment)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.SimulationEnabled())

	// Unset knobs fall back to client defaults
	assert.Equal(t, config.DefaultConfirmationTimeout, cfg.ConfirmationTimeout)
	assert.Equal(t, config.DefaultFundingTimeout, cfg.FundingTimeout)
	assert.Equal(t, config.DefaultGasLimit, cfg.DefaultGasLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParse_GasAdjustment(t *testing.T) {
	base := `
chain_id: capricorn-1
rest_address: https://rest-capricorn.fetch.ai:443
denom: atestfet
minimum_gas_price: "500000000000"
address_prefix: fetch
`
	omitted, err := config.Parse([]byte(base))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGasAdjustment, omitted.GasAdjustment)

	disabled, err := config.Parse([]byte(base + "gas_adjustment: 0\n"))
	require.NoError(t, err)
	assert.False(t, disabled.SimulationEnabled())
}

func TestParse_UnknownField(t *testing.T) {
	_, err := config.Parse([]byte(sampleConfig + "gas_prise: 1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.ChainConfig){
		"missing chain id":   func(c *config.ChainConfig) { c.ChainID = " " },
		"bad rest scheme":    func(c *config.ChainConfig) { c.RestAddress = "ftp://node" },
		"rest without host":  func(c *config.ChainConfig) { c.RestAddress = "http://" },
		"bad faucet":         func(c *config.ChainConfig) { c.FaucetURL = "faucet" },
		"bad denom":          func(c *config.ChainConfig) { c.Denom = "1" },
		"bad gas price":      func(c *config.ChainConfig) { c.MinimumGasPrice = "cheap" },
		"negative gas price": func(c *config.ChainConfig) { c.MinimumGasPrice = "-1" },
		"bad prefix":         func(c *config.ChainConfig) { c.AddressPrefix = "Fetch" },
		"negative gas adj":   func(c *config.ChainConfig) { c.GasAdjustment = -1 },
	}

	require.NoError(t, validConfig().Validate())

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrConfig)
		})
	}
}

func TestGasPrice(t *testing.T) {
	cfg := validConfig()
	cfg.MinimumGasPrice = "0.025"

	price, err := cfg.GasPrice()
	require.NoError(t, err)
	assert.Equal(t, "atestfet", price.Denom)
	assert.Equal(t, "0.025000000000000000", price.Amount.String())
}

func TestWriteTemplate_RoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	cfg := validConfig()
	cfg.GasAdjustment = config.DefaultGasAdjustment

	require.NoError(t, config.WriteTemplate(cfg, file, log.Discard()))
	assert.True(t, config.FileExists(file))

	loaded, err := config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// A second write never clobbers the first
	other := validConfig()
	other.ChainID = "dorado-1"
	require.NoError(t, config.WriteTemplate(other, file, log.Discard()))

	loaded, err = config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, "capricorn-1", loaded.ChainID)
}

func TestLoad_Missing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfig)
}
