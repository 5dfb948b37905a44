package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseVehicleID checks parsing never panics and accepted IDs round-trip.
func FuzzParseVehicleID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("B 1234 XYZ")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseVehicleID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Error("nil UUID was accepted")
		}
		again, err := ParseVehicleID(id.String())
		if err != nil || again != id {
			t.Errorf("accepted ID failed round-trip: %v", err)
		}
		if !utf8.ValidString(input) {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
