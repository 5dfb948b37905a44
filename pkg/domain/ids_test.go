package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "emissions/pkg/domain-errors"
)

// TestParseUUID_Invariants checks that IDs are valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVehicleID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVehicleID("B-1234-XYZ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseVehicleID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		got, err := ParseVehicleID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, VehicleID(valid), got)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE vehicles;--", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()
	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errUser := ParseUserID(input)
			_, errVehicle := ParseVehicleID(input)
			_, errResult := ParseResultID(input)
			require.Error(t, errUser)
			require.Error(t, errVehicle)
			require.Error(t, errResult)
		})
	}

	_, errUser := ParseUserID(valid)
	_, errVehicle := ParseVehicleID(valid)
	_, errResult := ParseResultID(valid)
	require.NoError(t, errUser)
	require.NoError(t, errVehicle)
	require.NoError(t, errResult)
}

func TestIDJSON(t *testing.T) {
	vid := NewVehicleID()
	raw, err := json.Marshal(struct {
		ID VehicleID `json:"id"`
	}{vid})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+vid.String()+`"}`, string(raw))

	var back struct {
		ID VehicleID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, vid, back.ID)
}
