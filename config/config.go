package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"epochpay/core/types"
	"epochpay/native/distribution"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`
	// RPCAuthToken guards the mutating RPC namespace when set. Read from
	// EPOCHPAY_RPC_TOKEN when the file leaves it empty.
	RPCAuthToken string `toml:"RPCAuthToken"`

	Distribution Distribution `toml:"Distribution"`
}

// Distribution mirrors the engine parameters in file-friendly form: big
// integers as decimal strings and addresses as 0x hex.
type Distribution struct {
	PointsCategoryBps       uint64   `toml:"PointsCategoryBps"`
	AutoShareBps            uint64   `toml:"AutoShareBps"`
	MinCycleIntervalSeconds uint64   `toml:"MinCycleIntervalSeconds"`
	SnapshotWindow          uint64   `toml:"SnapshotWindow"`
	DistributionWindow      uint64   `toml:"DistributionWindow"`
	OperationalBuffer       string   `toml:"OperationalBuffer"`
	Treasury                string   `toml:"Treasury"`
	PermittedCallers        []string `toml:"PermittedCallers"`
	FundingSources          []string `toml:"FundingSources"`
	ConvertRateNum          uint64   `toml:"ConvertRateNum"`
	ConvertRateDen          uint64   `toml:"ConvertRateDen"`
	ConvertFeeBps           uint64   `toml:"ConvertFeeBps"`
}

// Load loads the configuration from the given path, writing a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./epochpay-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.RPCAuthToken) == "" {
		cfg.RPCAuthToken = strings.TrimSpace(os.Getenv("EPOCHPAY_RPC_TOKEN"))
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	defaults := distribution.DefaultParams()
	cfg := &Config{
		RPCAddress:     ":8080",
		MetricsAddress: ":9090",
		DataDir:        "./epochpay-data",
		Environment:    "local",
		Distribution: Distribution{
			PointsCategoryBps:       defaults.PointsCategoryBps,
			AutoShareBps:            defaults.AutoShareBps,
			MinCycleIntervalSeconds: defaults.MinCycleInterval,
			SnapshotWindow:          defaults.SnapshotWindow,
			DistributionWindow:      defaults.DistributionWindow,
			OperationalBuffer:       "0",
			Treasury:                "",
			PermittedCallers:        []string{},
			FundingSources:          []string{},
			ConvertRateNum:          defaults.ConvertRateNum,
			ConvertRateDen:          defaults.ConvertRateDen,
			ConvertFeeBps:           defaults.ConvertFeeBps,
		},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// Params converts the file representation into validated engine parameters.
// The treasury must be set before the node will start; an empty allow-list is
// legal but leaves the state machine inert.
func (d Distribution) Params() (distribution.Params, error) {
	params := distribution.Params{
		PointsCategoryBps:  d.PointsCategoryBps,
		AutoShareBps:       d.AutoShareBps,
		MinCycleInterval:   d.MinCycleIntervalSeconds,
		SnapshotWindow:     d.SnapshotWindow,
		DistributionWindow: d.DistributionWindow,
		ConvertRateNum:     d.ConvertRateNum,
		ConvertRateDen:     d.ConvertRateDen,
		ConvertFeeBps:      d.ConvertFeeBps,
	}

	buffer := strings.TrimSpace(d.OperationalBuffer)
	if buffer == "" {
		buffer = "0"
	}
	parsed, ok := new(big.Int).SetString(buffer, 10)
	if !ok || parsed.Sign() < 0 {
		return distribution.Params{}, fmt.Errorf("operational buffer %q is not a non-negative decimal", d.OperationalBuffer)
	}
	params.OperationalBuffer = parsed

	treasury, err := types.ParseAddress(d.Treasury)
	if err != nil {
		return distribution.Params{}, fmt.Errorf("treasury: %w", err)
	}
	params.Treasury = treasury

	for _, raw := range d.PermittedCallers {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return distribution.Params{}, fmt.Errorf("permitted caller: %w", err)
		}
		params.PermittedCallers = append(params.PermittedCallers, addr)
	}
	for _, raw := range d.FundingSources {
		addr, err := types.ParseAddress(raw)
		if err != nil {
			return distribution.Params{}, fmt.Errorf("funding source: %w", err)
		}
		params.FundingSources = append(params.FundingSources, addr)
	}

	if err := params.Validate(); err != nil {
		return distribution.Params{}, err
	}
	return params, nil
}
