package models

import (
	"strings"
	"time"
)

// Certificate is the printable record of an inspection.
type Certificate struct {
	Number       string             `json:"certificate_number"`
	IssuedAt     time.Time          `json:"issued_at"`
	Outcome      Outcome            `json:"outcome"`
	Vehicle      VehicleSummary     `json:"vehicle"`
	Usage        string             `json:"usage"`
	Agency       string             `json:"agency"`
	Category     string             `json:"load_category_name"`
	Result       Result             `json:"result"`
	Limits       map[string]float64 `json:"limits"`
	OperatorName string             `json:"operator_name"`
}

// CertificateNumber derives a stable number from the result, so reprinting a
// certificate yields the same number.
func CertificateNumber(r *Result) string {
	short := strings.ToUpper(strings.ReplaceAll(r.ID.String(), "-", "")[:8])
	return "EM-" + r.TestedAt.UTC().Format("20060102") + "-" + short
}
