package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.DataDir != "./epochpay-data" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	// The default file carries no treasury, so it cannot produce engine
	// parameters until an operator fills it in.
	if _, err := cfg.Distribution.Params(); err == nil {
		t.Fatalf("empty treasury accepted")
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = ":9000"
DataDir = "/tmp/epochpay"
Environment = "staging"

[Distribution]
PointsCategoryBps = 4000
AutoShareBps = 8000
MinCycleIntervalSeconds = 3600
SnapshotWindow = 50
DistributionWindow = 25
OperationalBuffer = "1000000"
Treasury = "0x00000000000000000000000000000000000000aa"
PermittedCallers = ["0x00000000000000000000000000000000000000bb"]
FundingSources = ["0x00000000000000000000000000000000000000cc"]
ConvertRateNum = 3
ConvertRateDen = 2
ConvertFeeBps = 25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.Environment != "staging" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MetricsAddress != ":9090" {
		t.Fatalf("missing metrics address not defaulted: %q", cfg.MetricsAddress)
	}

	params, err := cfg.Distribution.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.PointsCategoryBps != 4_000 || params.MinCycleInterval != 3_600 {
		t.Fatalf("unexpected params: %+v", params)
	}
	if params.OperationalBuffer.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("buffer = %s", params.OperationalBuffer)
	}
	if params.Treasury[19] != 0xaa {
		t.Fatalf("treasury = %x", params.Treasury)
	}
	if len(params.PermittedCallers) != 1 || params.PermittedCallers[0][19] != 0xbb {
		t.Fatalf("callers = %x", params.PermittedCallers)
	}
	if params.ConvertRateNum != 3 || params.ConvertRateDen != 2 || params.ConvertFeeBps != 25 {
		t.Fatalf("conversion = %d/%d fee %d", params.ConvertRateNum, params.ConvertRateDen, params.ConvertFeeBps)
	}
}

func TestDistributionParamsRejectsBadValues(t *testing.T) {
	base := Distribution{
		PointsCategoryBps:       5_000,
		AutoShareBps:            7_000,
		MinCycleIntervalSeconds: 60,
		SnapshotWindow:          10,
		DistributionWindow:      10,
		OperationalBuffer:       "0",
		Treasury:                "0x00000000000000000000000000000000000000aa",
		ConvertRateNum:          1,
		ConvertRateDen:          1,
	}

	bad := base
	bad.Treasury = "not-an-address"
	if _, err := bad.Params(); err == nil {
		t.Fatalf("bad treasury accepted")
	}

	bad = base
	bad.OperationalBuffer = "-5"
	if _, err := bad.Params(); err == nil {
		t.Fatalf("negative buffer accepted")
	}

	bad = base
	bad.PermittedCallers = []string{"0x1234"}
	if _, err := bad.Params(); err == nil {
		t.Fatalf("short caller address accepted")
	}

	bad = base
	bad.SnapshotWindow = 0
	if _, err := bad.Params(); err == nil {
		t.Fatalf("zero snapshot window accepted")
	}

	if _, err := base.Params(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
