package emission

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cargo2015Limits(t *testing.T) ThresholdSet {
	t.Helper()
	res, err := Resolve(testSnapshot(), FuelGasoline, CategoryCargo, 2015)
	require.NoError(t, err)
	return res.Thresholds
}

// passingGasoline sits strictly inside every cargo 2007-2018 limit.
func passingGasoline() GasolineReading {
	return GasolineReading{CO: 1.0, CO2: 8.0, HC: 250, O2: 1.0, Lambda: 1.0}
}

func TestEvaluateGasoline(t *testing.T) {
	limits := cargo2015Limits(t)

	t.Run("passes when every check holds", func(t *testing.T) {
		v, err := Evaluate(FuelGasoline, passingGasoline(), limits)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.True(t, v.Passed)
		assert.Empty(t, v.Failures)
		assert.Equal(t, limits, v.EffectiveLimits)
	})

	t.Run("fails when co exceeds tier limit", func(t *testing.T) {
		r := passingGasoline()
		r.CO = 2.0
		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.False(t, v.Passed)
		assert.Equal(t, []string{CheckCOMax}, v.Failures)
	})

	t.Run("values on the limit pass", func(t *testing.T) {
		r := GasolineReading{CO: 1.5, HC: 300, CO2: 7.5, O2: 2.0, Lambda: 0.9}
		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.True(t, v.Passed)

		r.Lambda = 1.1
		v, err = Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.True(t, v.Passed)
	})

	t.Run("a single failing check fails the test", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*GasolineReading)
			check  string
		}{
			{"co above max", func(r *GasolineReading) { r.CO = 1.6 }, CheckCOMax},
			{"hc above max", func(r *GasolineReading) { r.HC = 301 }, CheckHCMax},
			{"co2 below min", func(r *GasolineReading) { r.CO2 = 7.4 }, CheckCO2Min},
			{"o2 above max", func(r *GasolineReading) { r.O2 = 2.1 }, CheckO2Max},
			{"lambda below min", func(r *GasolineReading) { r.Lambda = 0.89 }, CheckLambdaMin},
			{"lambda above max", func(r *GasolineReading) { r.Lambda = 1.11 }, CheckLambdaMax},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r := passingGasoline()
				tt.mutate(&r)
				v, err := Evaluate(FuelGasoline, r, limits)
				require.NoError(t, err)
				assert.True(t, v.Valid)
				assert.False(t, v.Passed)
				assert.Equal(t, []string{tt.check}, v.Failures)
			})
		}
	})

	t.Run("reports every failing check", func(t *testing.T) {
		r := GasolineReading{CO: 5, HC: 900, CO2: 2, O2: 4, Lambda: 2}
		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.False(t, v.Passed)
		assert.Equal(t, []string{CheckCOMax, CheckHCMax, CheckCO2Min, CheckO2Max, CheckLambdaMax}, v.Failures)
	})

	t.Run("negative reading is invalid, not failed", func(t *testing.T) {
		r := passingGasoline()
		r.CO = -1
		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.False(t, v.Passed)
		assert.Equal(t, []string{FieldCO}, v.Failures)
	})

	t.Run("non-finite reading is invalid", func(t *testing.T) {
		r := passingGasoline()
		r.HC = math.NaN()
		r.Lambda = math.Inf(1)
		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.False(t, v.Valid)
		assert.Equal(t, []string{FieldHC, FieldLambda}, v.Failures)
	})

	t.Run("zero readings are evaluated, not rejected", func(t *testing.T) {
		v, err := Evaluate(FuelGasoline, GasolineReading{}, limits)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.False(t, v.Passed)
		assert.Equal(t, []string{CheckCO2Min, CheckLambdaMin}, v.Failures)
	})

	t.Run("o2 floor applies only when configured", func(t *testing.T) {
		r := passingGasoline()
		r.O2 = 0.1

		v, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		assert.True(t, v.Passed)

		snap := testSnapshot()
		snap.Defaults.O2Min = ptr(0.5)
		res, err := Resolve(snap, FuelGasoline, CategoryCargo, 2015)
		require.NoError(t, err)

		v, err = Evaluate(FuelGasoline, r, res.Thresholds)
		require.NoError(t, err)
		assert.False(t, v.Passed)
		assert.Equal(t, []string{CheckO2Min}, v.Failures)
	})
}

func TestEvaluateDiesel(t *testing.T) {
	res, err := Resolve(testSnapshot(), FuelDiesel, CategoryUnder3_5Ton, 2012)
	require.NoError(t, err)
	limits := res.Thresholds

	tests := []struct {
		name     string
		opacity  float64
		valid    bool
		passed   bool
		failures []string
	}{
		{"below limit passes", 35, true, true, nil},
		{"at limit passes", 40, true, true, nil},
		{"zero passes", 0, true, true, nil},
		{"above limit fails", 45, true, false, []string{CheckOpacityMax}},
		{"full scale is valid", 100, true, false, []string{CheckOpacityMax}},
		{"above full scale is invalid", 150, false, false, []string{FieldOpacity}},
		{"negative is invalid", -0.1, false, false, []string{FieldOpacity}},
		{"nan is invalid", math.NaN(), false, false, []string{FieldOpacity}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Evaluate(FuelDiesel, DieselReading{Opacity: tt.opacity}, limits)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, v.Valid)
			assert.Equal(t, tt.passed, v.Passed)
			assert.Equal(t, tt.failures, v.Failures)
			assert.Equal(t, limits, v.EffectiveLimits)
		})
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	limits := cargo2015Limits(t)
	readings := []GasolineReading{
		passingGasoline(),
		{CO: 2, CO2: 8, HC: 100, O2: 1, Lambda: 1},
		{CO: -1, CO2: 8, HC: 100, O2: 1, Lambda: 1},
	}
	for _, r := range readings {
		first, err := Evaluate(FuelGasoline, r, limits)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := Evaluate(FuelGasoline, r, limits)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestEvaluateMismatch(t *testing.T) {
	gasLimits := cargo2015Limits(t)
	dieselLimits := ThresholdSet{Diesel: &DieselThresholds{OpacityMax: 40}}

	_, err := Evaluate(FuelGasoline, DieselReading{Opacity: 10}, gasLimits)
	assert.ErrorIs(t, err, ErrMeasurementMismatch)

	_, err = Evaluate(FuelDiesel, DieselReading{Opacity: 10}, gasLimits)
	assert.ErrorIs(t, err, ErrMeasurementMismatch)

	_, err = Evaluate(FuelGasoline, passingGasoline(), dieselLimits)
	assert.ErrorIs(t, err, ErrMeasurementMismatch)

	_, err = Evaluate(FuelType("lpg"), passingGasoline(), gasLimits)
	var fuelErr *InvalidFuelTypeError
	assert.ErrorAs(t, err, &fuelErr)
}

func TestCargo2015Scenario(t *testing.T) {
	limits := cargo2015Limits(t)
	r := GasolineReading{CO: 1.0, HC: 250, CO2: 8.0, O2: 1.5, Lambda: 1.0}

	v, err := Evaluate(FuelGasoline, r, limits)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.True(t, v.Passed)

	r.CO = 2.0
	v, err = Evaluate(FuelGasoline, r, limits)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.False(t, v.Passed)
}
