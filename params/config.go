package params

import (
	"math/big"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Chain struct {
	ID uint64
	// ExchangeAddresses maps a chain id to the exchange contract deployed on it.
	// Building an order fails if the active chain id has no entry here.
	ExchangeAddresses map[uint64]common.Address
}

type Allowance struct {
	// Threshold is the target value submitted when approving a token for
	// trading. Large enough to behave as "unlimited" for any practical order.
	Threshold *big.Int
}

type Config struct {
	Chain     Chain
	Allowance Allowance
}

const (
	MainnetChainID = 1
	RinkebyChainID = 4
	DevnetChainID  = 8888
)

func Default() Config {
	threshold, _ := new(big.Int).SetString("500000000000000000000000000", 10)
	return Config{
		Chain: Chain{
			ID: DevnetChainID,
			ExchangeAddresses: map[uint64]common.Address{
				MainnetChainID: common.HexToAddress("0x7c71802a2a5aa7c72af66e0a2b7a98c21c3e95f6"),
				RinkebyChainID: common.HexToAddress("0x2d1ab20e0f2fd7b10a969a0a983cabd152fbbb08"),
				DevnetChainID:  common.HexToAddress("0x8dcf5a0dffd4c7a11e4a345acd10d2e355058da9"),
			},
		},
		Allowance: Allowance{Threshold: threshold},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if id := os.Getenv("CHAIN_ID"); id != "" {
		if v, err := strconv.ParseUint(id, 10, 64); err == nil {
			cfg.Chain.ID = v
		}
	}

	// EXCHANGE_ADDRESS overrides (or adds) the entry for the active chain id.
	if addr := os.Getenv("EXCHANGE_ADDRESS"); addr != "" && common.IsHexAddress(addr) {
		cfg.Chain.ExchangeAddresses[cfg.Chain.ID] = common.HexToAddress(addr)
	}

	if wei := os.Getenv("ALLOWANCE_THRESHOLD_WEI"); wei != "" {
		if v, ok := new(big.Int).SetString(wei, 10); ok && v.Sign() > 0 {
			cfg.Allowance.Threshold = v
		}
	}

	return cfg
}

// ExchangeAddress returns the exchange contract address for a chain id.
func (c Config) ExchangeAddress(chainID uint64) (common.Address, bool) {
	addr, ok := c.Chain.ExchangeAddresses[chainID]
	return addr, ok
}
