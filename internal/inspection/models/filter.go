package models

import (
	"net/url"
	"strings"
	"time"

	dErrors "emissions/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// ParseHistoryFilter reads plate, make, from, to and result from a query.
// Dates are calendar days in UTC; to covers its whole day.
func ParseHistoryFilter(q url.Values) (HistoryFilter, error) {
	filter := HistoryFilter{
		Plate: strings.TrimSpace(q.Get("plate")),
		Make:  strings.TrimSpace(q.Get("make")),
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return HistoryFilter{}, dErrors.New(dErrors.CodeValidation, "from must be a YYYY-MM-DD date")
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return HistoryFilter{}, dErrors.New(dErrors.CodeValidation, "to must be a YYYY-MM-DD date")
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	switch outcome := Outcome(strings.ToLower(strings.TrimSpace(q.Get("result")))); outcome {
	case "":
	case OutcomePass, OutcomeFail, OutcomeInvalid:
		filter.Outcome = outcome
	default:
		return HistoryFilter{}, dErrors.New(dErrors.CodeValidation, "result must be pass, fail or invalid")
	}
	return filter, nil
}
