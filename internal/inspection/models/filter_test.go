package models

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "emissions/pkg/domain-errors"
)

func TestParseHistoryFilter(t *testing.T) {
	t.Run("empty query matches everything", func(t *testing.T) {
		f, err := ParseHistoryFilter(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, HistoryFilter{}, f)
	})

	t.Run("to covers the whole day", func(t *testing.T) {
		f, err := ParseHistoryFilter(url.Values{"from": {"2026-02-01"}, "to": {"2026-02-01"}, "result": {"Pass"}})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), f.From)
		assert.True(t, f.To.After(time.Date(2026, 2, 1, 23, 59, 59, 0, time.UTC)))
		assert.True(t, f.To.Before(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, OutcomePass, f.Outcome)
	})

	for name, q := range map[string]url.Values{
		"bad from":   {"from": {"yesterday"}},
		"bad to":     {"to": {"2026/02/01"}},
		"bad result": {"result": {"lulus"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHistoryFilter(q)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
