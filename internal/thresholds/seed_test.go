package thresholds

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emissions/internal/emission"
)

func TestLoadSeed_Embedded(t *testing.T) {
	snap, err := LoadSeed("")
	require.NoError(t, err)

	res, err := emission.Resolve(snap, emission.FuelGasoline, emission.CategoryCargo, 2015)
	require.NoError(t, err)
	assert.Equal(t, emission.SourceTier, res.Source)
	assert.Equal(t, 1.5, res.Thresholds.Gasoline.COMax)
	assert.Equal(t, 300.0, res.Thresholds.Gasoline.HCMax)
	assert.Equal(t, 2.0, res.Thresholds.Gasoline.O2Max)

	res, err = emission.Resolve(snap, emission.FuelDiesel, emission.CategoryUnder3_5Ton, 2012)
	require.NoError(t, err)
	assert.Equal(t, 40.0, res.Thresholds.Diesel.OpacityMax)
}

func TestParseSeed(t *testing.T) {
	t.Run("accepts legacy category keys", func(t *testing.T) {
		raw := []byte(`
defaults: {co_max: 0.5, hc_max: 200, co2_min: 8, o2_max: 2, lambda_min: 0.95, lambda_max: 1.05, opacity_max: 50}
gasoline_parameters:
  kendaraan_penumpang:
    "2007-2018": {co_max: 1.0, hc_max: 200, co2_min: 7.5, lambda_min: 0.9, lambda_max: 1.1}
diesel_parameters:
  "<3.5ton":
    ">2021": {opacity_max: 30}
`)
		snap, err := ParseSeed(raw)
		require.NoError(t, err)
		_, ok := snap.Gasoline.Lookup(emission.CategoryPassenger, emission.BracketGasoline2007To2018)
		assert.True(t, ok)
		_, ok = snap.Diesel.Lookup(emission.CategoryUnder3_5Ton, emission.BracketDieselAfter2021)
		assert.True(t, ok)
	})

	t.Run("rejects unknown limit names", func(t *testing.T) {
		_, err := ParseSeed([]byte("defaults: {co_maks: 1}\n"))
		require.Error(t, err)
	})

	t.Run("optional o2 floor", func(t *testing.T) {
		snap, err := ParseSeed([]byte("defaults: {co_max: 0.5, hc_max: 200, co2_min: 8, o2_max: 2, o2_min: 0.5, lambda_min: 0.95, lambda_max: 1.05, opacity_max: 50}\n"))
		require.NoError(t, err)
		require.NotNil(t, snap.Defaults.O2Min)
		assert.Equal(t, 0.5, *snap.Defaults.O2Min)
	})

	t.Run("partial tier falls back per field", func(t *testing.T) {
		snap, err := ParseSeed([]byte(`
defaults: {co_max: 0.5, hc_max: 200, co2_min: 8, o2_max: 2, lambda_min: 0.95, lambda_max: 1.05, opacity_max: 50}
gasoline_parameters:
  cargo:
    "2007-2018": {co_max: 1.5}
`))
		require.NoError(t, err)

		res, err := emission.Resolve(snap, emission.FuelGasoline, emission.CategoryCargo, 2015)
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{
			"co_max": 1.5, "hc_max": 200, "co2_min": 8, "o2_max": 2, "lambda_min": 0.95, "lambda_max": 1.05,
		}, res.Thresholds.AsMap())

		verdict, err := emission.Evaluate(emission.FuelGasoline,
			emission.GasolineReading{CO: 1.0, HC: 150, CO2: 9, O2: 1, Lambda: 1.0}, res.Thresholds)
		require.NoError(t, err)
		assert.True(t, verdict.Valid)
		assert.True(t, verdict.Passed, "failures: %v", verdict.Failures)
	})

	t.Run("rejects missing defaults block", func(t *testing.T) {
		_, err := ParseSeed([]byte("gasoline_parameters: {}\n"))
		assert.ErrorContains(t, err, "defaults are required")
	})

	t.Run("rejects incomplete defaults", func(t *testing.T) {
		_, err := ParseSeed([]byte("defaults: {o2_max: 2, lambda_max: 1, opacity_max: 50}\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "co_max")
		assert.Contains(t, err.Error(), "lambda_min")
	})

	t.Run("rejects invalid limits", func(t *testing.T) {
		_, err := ParseSeed([]byte("defaults: {co_max: 0.5, hc_max: 200, co2_min: 8, o2_max: 2, lambda_min: 0.95, lambda_max: 1.05, opacity_max: 150}\n"))
		assert.ErrorContains(t, err, "invalid threshold seed")
	})
}

func TestLoadSeed_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults: {co_max: 0.5, hc_max: 200, co2_min: 8, o2_max: 3, lambda_min: 0.95, lambda_max: 1.05, opacity_max: 45}\n"), 0o600))

	snap, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, 45.0, snap.Defaults.OpacityMax)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
