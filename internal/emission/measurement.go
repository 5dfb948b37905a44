package emission

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Measurement is one submitted reading. It is either a GasolineReading or a
// DieselReading; the unexported method keeps the set closed.
type Measurement interface {
	Fuel() FuelType
	isMeasurement()
}

// GasolineReading is a gas-analyzer result.
type GasolineReading struct {
	CO     float64 `json:"co"`
	CO2    float64 `json:"co2"`
	HC     float64 `json:"hc"`
	O2     float64 `json:"o2"`
	Lambda float64 `json:"lambda_val"`
}

func (GasolineReading) Fuel() FuelType { return FuelGasoline }
func (GasolineReading) isMeasurement() {}

// DieselReading is an opacimeter result.
type DieselReading struct {
	Opacity float64 `json:"opacity"`
}

func (DieselReading) Fuel() FuelType { return FuelDiesel }
func (DieselReading) isMeasurement() {}

// Field names as submitted by clients.
const (
	FieldCO      = "co"
	FieldCO2     = "co2"
	FieldHC      = "hc"
	FieldO2      = "o2"
	FieldLambda  = "lambda_val"
	FieldOpacity = "opacity"
)

// RequiredFields lists the reading fields fuel requires, in report order.
func RequiredFields(fuel FuelType) []string {
	switch fuel {
	case FuelGasoline:
		return []string{FieldCO, FieldCO2, FieldHC, FieldO2, FieldLambda}
	case FuelDiesel:
		return []string{FieldOpacity}
	default:
		return nil
	}
}

// ParseMeasurement builds the reading for fuel from a loosely typed payload.
// Values may be JSON numbers or numeric strings. Every missing or
// non-numeric field, including "NaN" and "Inf" spellings, is collected into
// one MalformedInputError. Zero is a
// legitimate reading and is never treated as missing. Range checks are left
// to Evaluate.
func ParseMeasurement(fuel FuelType, payload map[string]any) (Measurement, error) {
	fields := RequiredFields(fuel)
	if fields == nil {
		return nil, &InvalidFuelTypeError{Value: string(fuel)}
	}

	values := make(map[string]float64, len(fields))
	var problems []FieldError
	for _, name := range fields {
		raw, ok := payload[name]
		if !ok || raw == nil {
			problems = append(problems, FieldError{Field: name, Reason: "is required"})
			continue
		}
		v, err := toFloat(raw)
		if err != nil || !isFinite(v) {
			problems = append(problems, FieldError{Field: name, Reason: "must be a number"})
			continue
		}
		values[name] = v
	}
	if len(problems) > 0 {
		return nil, &MalformedInputError{Fuel: fuel, Fields: problems}
	}

	if fuel == FuelDiesel {
		return DieselReading{Opacity: values[FieldOpacity]}, nil
	}
	return GasolineReading{
		CO:     values[FieldCO],
		CO2:    values[FieldCO2],
		HC:     values[FieldHC],
		O2:     values[FieldO2],
		Lambda: values[FieldLambda],
	}, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, fmt.Errorf("empty")
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
