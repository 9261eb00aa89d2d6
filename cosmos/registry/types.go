package registry

// Chain Registry (https://github.com/cosmos/chain-registry) chain.json, trimmed to what a client needs.

type Token struct {
	Denom string `json:"denom"`
}

type FeeToken struct {
	Denom string `json:"denom"`

	FixedMinGasPrice float64 `json:"fixed_min_gas_price"`
	LowGasPrice      float64 `json:"low_gas_price"`
	AverageGasPrice  float64 `json:"average_gas_price"`
	HighGasPrice     float64 `json:"high_gas_price"`
}

type Fee struct {
	FeeTokens []FeeToken `json:"fee_tokens"`
}

type Staking struct {
	StakingTokens []Token `json:"staking_tokens"`
}

type APIAddress struct {
	Address  string `json:"address"`
	Provider string `json:"provider"`
}

type APIs struct {
	RPC  []APIAddress `json:"rpc"`
	Rest []APIAddress `json:"rest"`
	GRPC []APIAddress `json:"grpc"`
}

type Explorer struct {
	Kind        string `json:"kind"`
	URL         string `json:"url"`
	TxPage      string `json:"tx_page"`
	AccountPage string `json:"account_page,omitempty"`
}

type ChainInfo struct {
	ChainName    string     `json:"chain_name"`
	Status       string     `json:"status"`
	NetworkType  string     `json:"network_type"`
	PrettyName   string     `json:"pretty_name"`
	ChainID      string     `json:"chain_id"`
	Bech32Prefix string     `json:"bech32_prefix"`
	KeyAlgos     []string   `json:"key_algos"`
	Slip44       uint32     `json:"slip44"`
	Fees         Fee        `json:"fees"`
	Staking      Staking    `json:"staking"`
	APIs         APIs       `json:"apis"`
	Explorers    []Explorer `json:"explorers"`
}
