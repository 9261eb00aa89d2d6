package config

import (
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"cosmossdk.io/math"
	cmttypes "github.com/cometbft/cometbft/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/tessellated-io/wasmledger/log"
	"gopkg.in/yaml.v2"
)

var prefixRegex = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// ChainConfig holds everything needed to talk to a single chain. Nothing in here has a
// baked in default for the chain itself; only client behaviour knobs do.
type ChainConfig struct {
	ChainID         string `yaml:"chain_id" mapstructure:"chain_id" comment:"Chain ID transactions are signed for (ex. capricorn-1)"`
	RestAddress     string `yaml:"rest_address" mapstructure:"rest_address" comment:"Base URL of the node's REST endpoint (ex. https://rest-capricorn.fetch.ai:443)"`
	FaucetURL       string `yaml:"faucet_url" mapstructure:"faucet_url" comment:"Base URL of the testnet faucet. Leave empty to disable funding"`
	Denom           string `yaml:"denom" mapstructure:"denom" comment:"Fee denom (ex. atestfet)"`
	MinimumGasPrice string `yaml:"minimum_gas_price" mapstructure:"minimum_gas_price" comment:"Minimum gas price, as a decimal amount of denom per unit of gas (ex. 500000000000)"`
	AddressPrefix   string `yaml:"address_prefix" mapstructure:"address_prefix" comment:"Bech32 account address prefix (ex. fetch)"`

	GasAdjustment       float64       `yaml:"gas_adjustment" mapstructure:"gas_adjustment" comment:"Multiplier applied to simulated gas. Set to 0 to skip simulation and use default_gas_limit"`
	DefaultGasLimit     uint64        `yaml:"default_gas_limit" mapstructure:"default_gas_limit" comment:"Gas limit used when simulation is disabled"`
	PollInterval        time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" comment:"Delay between polls for tx inclusion and faucet funding"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout" mapstructure:"confirmation_timeout" comment:"How long to wait for a broadcasted tx to land"`
	FundingTimeout      time.Duration `yaml:"funding_timeout" mapstructure:"funding_timeout" comment:"How long to wait for faucet funds to arrive"`
	LogLevel            string        `yaml:"log_level" mapstructure:"log_level" comment:"One of debug, info, warn, error"`
}

// Client behaviour defaults. Chain parameters are never defaulted.
const (
	DefaultGasAdjustment       = 1.5
	DefaultGasLimit            = uint64(2_000_000)
	DefaultPollInterval        = 2 * time.Second
	DefaultConfirmationTimeout = 60 * time.Second
	DefaultFundingTimeout      = 120 * time.Second
	DefaultLogLevel            = "info"
)

// NewChainConfig returns a config for the given chain parameters, with client defaults filled in.
func NewChainConfig(chainID, restAddress, faucetURL, denom, minimumGasPrice, addressPrefix string) *ChainConfig {
	cfg := &ChainConfig{
		ChainID:         chainID,
		RestAddress:     restAddress,
		FaucetURL:       faucetURL,
		Denom:           denom,
		MinimumGasPrice: minimumGasPrice,
		AddressPrefix:   addressPrefix,
		GasAdjustment:   DefaultGasAdjustment,
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(configFile string) (*ChainConfig, error) {
	path, err := ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrConfig.Wrapf("reading %s: %s", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML config contents.
func Parse(data []byte) (*ChainConfig, error) {
	// gas_adjustment: 0 is meaningful, so the default is seeded before decoding rather than filled in after.
	cfg := &ChainConfig{GasAdjustment: DefaultGasAdjustment}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, ErrConfig.Wrapf("malformed config: %s", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero valued client knobs.
func (c *ChainConfig) ApplyDefaults() {
	if c.DefaultGasLimit == 0 {
		c.DefaultGasLimit = DefaultGasLimit
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ConfirmationTimeout == 0 {
		c.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if c.FundingTimeout == 0 {
		c.FundingTimeout = DefaultFundingTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks every chain parameter. Errors wrap ErrConfig.
func (c *ChainConfig) Validate() error {
	if strings.TrimSpace(c.ChainID) == "" {
		return ErrConfig.Wrap("chain_id MUST be set")
	}
	if len(c.ChainID) > cmttypes.MaxChainIDLen {
		return ErrConfig.Wrapf("chain_id %q is longer than %d characters", c.ChainID, cmttypes.MaxChainIDLen)
	}

	if err := validateURL("rest_address", c.RestAddress); err != nil {
		return err
	}
	if c.FaucetURL != "" {
		if err := validateURL("faucet_url", c.FaucetURL); err != nil {
			return err
		}
	}

	if err := sdk.ValidateDenom(c.Denom); err != nil {
		return ErrConfig.Wrapf("denom %q: %s", c.Denom, err)
	}

	if _, err := c.GasPrice(); err != nil {
		return err
	}

	if !prefixRegex.MatchString(c.AddressPrefix) {
		return ErrConfig.Wrapf("address_prefix %q MUST be lowercase alphanumeric", c.AddressPrefix)
	}

	if c.GasAdjustment < 0 {
		return ErrConfig.Wrapf("gas_adjustment MUST NOT be negative, got %f", c.GasAdjustment)
	}

	return nil
}

// GasPrice returns the minimum gas price as a DecCoin in the fee denom.
func (c *ChainConfig) GasPrice() (sdk.DecCoin, error) {
	amount, err := math.LegacyNewDecFromStr(strings.TrimSpace(c.MinimumGasPrice))
	if err != nil {
		return sdk.DecCoin{}, ErrConfig.Wrapf("minimum_gas_price %q: %s", c.MinimumGasPrice, err)
	}
	if amount.IsNegative() {
		return sdk.DecCoin{}, ErrConfig.Wrapf("minimum_gas_price %q MUST NOT be negative", c.MinimumGasPrice)
	}
	return sdk.NewDecCoinFromDec(c.Denom, amount), nil
}

// SimulationEnabled reports whether gas limits come from simulation.
func (c *ChainConfig) SimulationEnabled() bool {
	return c.GasAdjustment > 0
}

func validateURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrConfig.Wrapf("%s %q: %s", field, raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrConfig.Wrapf("%s %q MUST use http or https", field, raw)
	}
	if parsed.Host == "" {
		return ErrConfig.Wrapf("%s %q has no host", field, raw)
	}
	return nil
}

const templateHeader = "wasmledger chain configuration"

// WriteTemplate writes a commented config for the given chain parameters. An existing file is never overwritten.
func WriteTemplate(cfg *ChainConfig, filename string, logger *log.Logger) error {
	return WriteYamlWithComments(cfg, templateHeader, filename, logger)
}
