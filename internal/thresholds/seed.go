// Package thresholds owns the versioned regulatory limit configuration that
// the emission engine resolves against.
package thresholds

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"emissions/internal/emission"
)

//go:embed thresholds.yaml
var defaultSeed []byte

// LoadSeed reads the initial snapshot from path, or the embedded defaults
// when path is empty. Legacy category names are accepted as tier keys.
func LoadSeed(path string) (emission.Snapshot, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return emission.Snapshot{}, fmt.Errorf("read threshold seed: %w", err)
		}
		raw = b
	}
	return ParseSeed(raw)
}

// ParseSeed decodes and validates a YAML snapshot. Unknown keys are rejected
// so a typo in a limit name cannot silently fall back to defaults. The
// defaults block is mandatory and complete; tiers may name only the limits
// they override.
func ParseSeed(raw []byte) (emission.Snapshot, error) {
	var snap emission.Snapshot
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&snap); err != nil {
		return emission.Snapshot{}, fmt.Errorf("decode threshold seed: %w", err)
	}
	snap = Normalize(snap)
	if err := snap.Validate(); err != nil {
		return emission.Snapshot{}, fmt.Errorf("invalid threshold seed: %w", err)
	}
	return snap, nil
}

// Normalize rewrites legacy category keys to their canonical names.
func Normalize(snap emission.Snapshot) emission.Snapshot {
	snap.Gasoline = normalizeTable(snap.Gasoline)
	snap.Diesel = normalizeTable(snap.Diesel)
	return snap
}

func normalizeTable[L emission.Limits[L]](t emission.TierTable[L]) emission.TierTable[L] {
	if t == nil {
		return nil
	}
	out := make(emission.TierTable[L], len(t))
	for c, byBracket := range t {
		key := emission.NormalizeLoadCategory(string(c))
		if existing, ok := out[key]; ok {
			for b, l := range byBracket {
				existing[b] = l
			}
			continue
		}
		inner := make(map[emission.AgeBracket]L, len(byBracket))
		for b, l := range byBracket {
			inner[b] = l
		}
		out[key] = inner
	}
	return out
}
