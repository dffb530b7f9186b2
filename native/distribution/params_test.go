package distribution

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func validParams() Params {
	p := DefaultParams()
	p.Treasury = treasuryAddr
	return p
}

func TestParamsValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Params)
		wantErr string
	}{
		{name: "defaults with treasury", mutate: func(p *Params) {}},
		{
			name:    "points ratio over denominator",
			mutate:  func(p *Params) { p.PointsCategoryBps = BpsDenominator + 1 },
			wantErr: "points category ratio",
		},
		{
			name:    "auto ratio over denominator",
			mutate:  func(p *Params) { p.AutoShareBps = BpsDenominator + 1 },
			wantErr: "auto share ratio",
		},
		{
			name:    "zero interval",
			mutate:  func(p *Params) { p.MinCycleInterval = 0 },
			wantErr: "interval",
		},
		{
			name:    "zero snapshot window",
			mutate:  func(p *Params) { p.SnapshotWindow = 0 },
			wantErr: "snapshot window",
		},
		{
			name:    "zero distribution window",
			mutate:  func(p *Params) { p.DistributionWindow = 0 },
			wantErr: "distribution window",
		},
		{
			name:    "negative buffer",
			mutate:  func(p *Params) { p.OperationalBuffer = big.NewInt(-1) },
			wantErr: "buffer",
		},
		{
			name:    "missing treasury",
			mutate:  func(p *Params) { p.Treasury = [20]byte{} },
			wantErr: "treasury",
		},
		{
			name:    "zero conversion rate",
			mutate:  func(p *Params) { p.ConvertRateNum = 0 },
			wantErr: "conversion rate",
		},
		{
			name:    "fee at denominator",
			mutate:  func(p *Params) { p.ConvertFeeBps = BpsDenominator },
			wantErr: "conversion fee",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validParams()
			tc.mutate(&params)
			err := params.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParamsAllowLists(t *testing.T) {
	params := validParams()
	params.PermittedCallers = [][20]byte{opsAddr}
	params.FundingSources = [][20]byte{funderAddr}

	require.True(t, params.CallerPermitted(opsAddr))
	require.False(t, params.CallerPermitted(funderAddr))
	require.True(t, params.FundingSource(funderAddr))
	require.False(t, params.FundingSource(opsAddr))
}

func TestParamsCopyIsDeep(t *testing.T) {
	params := validParams()
	params.OperationalBuffer = big.NewInt(42)
	params.PermittedCallers = [][20]byte{opsAddr}

	clone := params.Copy()
	clone.OperationalBuffer.SetInt64(99)
	clone.PermittedCallers[0] = funderAddr

	require.Equal(t, int64(42), params.OperationalBuffer.Int64())
	require.Equal(t, opsAddr, params.PermittedCallers[0])
}

func TestStoreParamsRejectsInvalid(t *testing.T) {
	env := newTestEnv(t)
	bad := validParams()
	bad.SnapshotWindow = 0
	require.Error(t, env.engine.StoreParams(bad))

	// The previous configuration stays in force.
	params, err := env.engine.LoadParams()
	require.NoError(t, err)
	require.Equal(t, env.params.SnapshotWindow, params.SnapshotWindow)
}
