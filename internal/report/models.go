// Package report derives dashboard figures from the registry and the active
// inspection results. Only valid results count towards pass rates.
package report

import (
	"time"

	"emissions/internal/emission"
	"emissions/internal/inspection/models"
	id "emissions/pkg/domain"
)

type Statistics struct {
	TotalVehicles    int                       `json:"total_vehicles"`
	TotalTests       int                       `json:"total_tests"`
	PassingTests     int                       `json:"passing_tests"`
	FailingTests     int                       `json:"failing_tests"`
	PassRate         float64                   `json:"pass_rate"`
	FuelDistribution map[emission.FuelType]int `json:"fuel_distribution"`
	Monthly          []MonthlyCount            `json:"monthly_results"`
	Recent           []RecentTest              `json:"recent_tests"`
}

// MonthlyCount is one calendar month of valid results.
type MonthlyCount struct {
	Month   string `json:"month"`
	Passing int    `json:"passing"`
	Failing int    `json:"failing"`
	Total   int    `json:"total"`
}

type RecentTest struct {
	ResultID id.ResultID       `json:"result_id"`
	Plate    string            `json:"plate"`
	Make     string            `json:"make"`
	Model    string            `json:"model"`
	FuelType emission.FuelType `json:"fuel_type"`
	Outcome  models.Outcome    `json:"outcome"`
	TestedAt time.Time         `json:"tested_at"`
}

// CategoryAverages holds the mean of each reading for one load category.
type CategoryAverages struct {
	Category emission.LoadCategory `json:"category"`
	Name     string                `json:"name"`
	Count    int                   `json:"count"`
	Averages map[string]float64    `json:"averages"`
}

type EmissionsByCategory struct {
	Gasoline []CategoryAverages `json:"gasoline"`
	Diesel   []CategoryAverages `json:"diesel"`
}

// AgeGroup is the pass/fail split for vehicles of one age range.
type AgeGroup struct {
	Label    string  `json:"age_range"`
	MinAge   int     `json:"min_age"`
	MaxAge   *int    `json:"max_age,omitempty"`
	Passing  int     `json:"passing"`
	Failing  int     `json:"failing"`
	Total    int     `json:"total"`
	PassRate float64 `json:"pass_rate"`
}
