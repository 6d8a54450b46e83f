package grid

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	deposit := decimal.NewFromInt(1000)
	params, profile, err := Resolve(3, deposit, 2)
	require.NoError(t, err)
	require.Equal(t, "active", profile.Label)
	require.Equal(t, 12, params.LevelCount)
	require.Equal(t, "0.001", params.Spread.String())
	// 1000 * 80% spread over 2 symbols and 12 levels adds back up to 800
	total := params.LevelNotional.Mul(decimal.NewFromInt(24)).Round(8)
	require.True(t, total.Equal(decimal.NewFromInt(800)), "total = %s", total)
}

func TestResolveSingleSymbol(t *testing.T) {
	params, _, err := Resolve(5, decimal.NewFromInt(200), 1)
	require.NoError(t, err)
	require.Equal(t, 20, params.LevelCount)
	// 200 * 95% / 1 / 20 = 9.5
	require.Equal(t, "9.5", params.LevelNotional.String())
}

func TestResolveErrors(t *testing.T) {
	deposit := decimal.NewFromInt(1000)
	var ce *ConfigError

	_, _, err := Resolve(0, deposit, 1)
	require.ErrorAs(t, err, &ce)

	_, _, err = Resolve(6, deposit, 1)
	require.ErrorAs(t, err, &ce)

	_, _, err = Resolve(3, deposit, 0)
	require.ErrorAs(t, err, &ce)

	_, _, err = Resolve(3, decimal.Zero, 1)
	require.ErrorAs(t, err, &ce)
}

func TestProfilesTable(t *testing.T) {
	ps := Profiles()
	require.Len(t, ps, 5)
	for i := 1; i < len(ps); i++ {
		require.Greater(t, ps[i].DepositPercent, ps[i-1].DepositPercent)
		require.Greater(t, ps[i].LevelCount, ps[i-1].LevelCount)
		require.True(t, ps[i].Spread.LessThan(ps[i-1].Spread))
	}
}
