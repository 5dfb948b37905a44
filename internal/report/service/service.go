package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"emissions/internal/emission"
	"emissions/internal/inspection/models"
	"emissions/internal/report"
	vehiclemodels "emissions/internal/vehicle/models"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks VehicleSource EntrySource

type VehicleSource interface {
	Count(ctx context.Context) (int, error)
	ListAll(ctx context.Context, filter vehiclemodels.ListFilter) ([]*vehiclemodels.Vehicle, error)
}

// EntrySource returns active results joined to their vehicles, newest first.
type EntrySource interface {
	Entries(ctx context.Context, filter models.HistoryFilter) ([]models.Entry, error)
}

const (
	recentLimit   = 10
	monthlyWindow = 180 * 24 * time.Hour
)

// Service computes reports on demand from the current results.
type Service struct {
	vehicles VehicleSource
	entries  EntrySource
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(vehicles VehicleSource, entries EntrySource, opts ...Option) (*Service, error) {
	if vehicles == nil {
		return nil, errors.New("vehicle source is required")
	}
	if entries == nil {
		return nil, errors.New("entry source is required")
	}
	s := &Service{vehicles: vehicles, entries: entries, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Statistics loads the vehicle count, fuel split and results concurrently.
func (s *Service) Statistics(ctx context.Context) (*report.Statistics, error) {
	var (
		total    int
		vehicles []*vehiclemodels.Vehicle
		entries  []models.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.vehicles.Count(gctx)
		if err != nil {
			return fmt.Errorf("count vehicles: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		list, err := s.vehicles.ListAll(gctx, vehiclemodels.ListFilter{})
		if err != nil {
			return fmt.Errorf("list vehicles: %w", err)
		}
		vehicles = list
		return nil
	})
	g.Go(func() error {
		list, err := s.entries.Entries(gctx, models.HistoryFilter{})
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		entries = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, s.internal(ctx, "statistics", err)
	}

	stats := &report.Statistics{
		TotalVehicles: total,
		FuelDistribution: map[emission.FuelType]int{
			emission.FuelGasoline: 0,
			emission.FuelDiesel:   0,
		},
		Monthly: monthly(entries, requestcontext.Now(ctx)),
		Recent:  make([]report.RecentTest, 0, recentLimit),
	}
	for _, v := range vehicles {
		stats.FuelDistribution[v.FuelType]++
	}
	for _, e := range entries {
		if !e.Result.Valid {
			continue
		}
		stats.TotalTests++
		if e.Result.Passed {
			stats.PassingTests++
		} else {
			stats.FailingTests++
		}
	}
	stats.PassRate = rate(stats.PassingTests, stats.TotalTests)

	for _, e := range entries[:min(recentLimit, len(entries))] {
		stats.Recent = append(stats.Recent, report.RecentTest{
			ResultID: e.Result.ID,
			Plate:    e.Vehicle.Plate,
			Make:     e.Vehicle.Make,
			Model:    e.Vehicle.Model,
			FuelType: e.Vehicle.FuelType,
			Outcome:  e.Result.Outcome(),
			TestedAt: e.Result.TestedAt,
		})
	}
	return stats, nil
}

// monthly buckets valid results of the trailing window by calendar month,
// oldest month first.
func monthly(entries []models.Entry, now time.Time) []report.MonthlyCount {
	since := now.Add(-monthlyWindow)
	type key struct {
		year  int
		month time.Month
	}
	counts := map[key]*report.MonthlyCount{}
	var keys []key
	for _, e := range entries {
		r := e.Result
		if !r.Valid || r.TestedAt.Before(since) {
			continue
		}
		t := r.TestedAt.UTC()
		k := key{t.Year(), t.Month()}
		c, ok := counts[k]
		if !ok {
			c = &report.MonthlyCount{Month: time.Date(k.year, k.month, 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")}
			counts[k] = c
			keys = append(keys, k)
		}
		if r.Passed {
			c.Passing++
		} else {
			c.Failing++
		}
		c.Total++
	}
	slices.SortFunc(keys, func(a, b key) int {
		if a.year != b.year {
			return a.year - b.year
		}
		return int(a.month) - int(b.month)
	})
	out := make([]report.MonthlyCount, 0, len(keys))
	for _, k := range keys {
		out = append(out, *counts[k])
	}
	return out
}

// EmissionsByCategory averages valid readings per load category. Categories
// without valid results are omitted.
func (s *Service) EmissionsByCategory(ctx context.Context) (*report.EmissionsByCategory, error) {
	entries, err := s.entries.Entries(ctx, models.HistoryFilter{})
	if err != nil {
		return nil, s.internal(ctx, "emissions by category", err)
	}

	sums := map[emission.LoadCategory]map[string]float64{}
	counts := map[emission.LoadCategory]int{}
	for _, e := range entries {
		r := e.Result
		if !r.Valid {
			continue
		}
		var values map[string]float64
		switch {
		case r.Gasoline != nil:
			g := r.Gasoline
			values = map[string]float64{
				emission.FieldCO: g.CO, emission.FieldCO2: g.CO2, emission.FieldHC: g.HC,
				emission.FieldO2: g.O2, emission.FieldLambda: g.Lambda,
			}
		case r.Diesel != nil:
			values = map[string]float64{emission.FieldOpacity: r.Diesel.Opacity}
		default:
			continue
		}
		category := e.Vehicle.LoadCategory
		if sums[category] == nil {
			sums[category] = map[string]float64{}
		}
		for field, v := range values {
			sums[category][field] += v
		}
		counts[category]++
	}

	averages := func(fuel emission.FuelType) []report.CategoryAverages {
		out := []report.CategoryAverages{}
		for _, category := range fuel.Categories() {
			n := counts[category]
			if n == 0 {
				continue
			}
			avg := make(map[string]float64, len(sums[category]))
			for field, sum := range sums[category] {
				avg[field] = round(sum/float64(n), 2)
			}
			out = append(out, report.CategoryAverages{
				Category: category,
				Name:     category.DisplayName(),
				Count:    n,
				Averages: avg,
			})
		}
		return out
	}
	return &report.EmissionsByCategory{
		Gasoline: averages(emission.FuelGasoline),
		Diesel:   averages(emission.FuelDiesel),
	}, nil
}

type ageRange struct {
	label    string
	min, max int
}

var ageRanges = []ageRange{
	{"0-5", 0, 5},
	{"6-10", 6, 10},
	{"11-15", 11, 15},
	{"16+", 16, -1},
}

// AgePerformance splits valid results by vehicle age relative to the
// current year. A model year in the future falls in no group.
func (s *Service) AgePerformance(ctx context.Context) ([]report.AgeGroup, error) {
	entries, err := s.entries.Entries(ctx, models.HistoryFilter{})
	if err != nil {
		return nil, s.internal(ctx, "age performance", err)
	}

	year := requestcontext.Now(ctx).Year()
	groups := make([]report.AgeGroup, len(ageRanges))
	for i, r := range ageRanges {
		groups[i] = report.AgeGroup{Label: r.label, MinAge: r.min}
		if r.max >= 0 {
			upper := r.max
			groups[i].MaxAge = &upper
		}
	}
	for _, e := range entries {
		if !e.Result.Valid {
			continue
		}
		age := year - e.Vehicle.ModelYear
		for i, r := range ageRanges {
			if age < r.min || (r.max >= 0 && age > r.max) {
				continue
			}
			if e.Result.Passed {
				groups[i].Passing++
			} else {
				groups[i].Failing++
			}
			groups[i].Total++
			break
		}
	}
	for i := range groups {
		groups[i].PassRate = rate(groups[i].Passing, groups[i].Total)
	}
	return groups, nil
}

var exportHeader = []string{
	"tested_at", "plate", "make", "model", "model_year", "fuel_type", "load_category",
	"co", "co2", "hc", "o2", "lambda_val", "opacity", "outcome", "failures", "operator",
}

// ExportCSV writes the filtered results, newest first, as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, filter models.HistoryFilter) error {
	entries, err := s.entries.Entries(ctx, filter)
	if err != nil {
		return s.internal(ctx, "result export", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	for _, e := range entries {
		r, v := e.Result, e.Vehicle
		row := []string{
			r.TestedAt.UTC().Format(time.RFC3339),
			v.Plate, v.Make, v.Model, strconv.Itoa(v.ModelYear),
			string(v.FuelType), v.LoadCategory.DisplayName(),
			"", "", "", "", "", "",
			string(r.Outcome()), strings.Join(r.Failures, ";"), operatorName(r.OperatorName),
		}
		if g := r.Gasoline; g != nil {
			row[7], row[8], row[9], row[10], row[11] = number(g.CO), number(g.CO2), number(g.HC), number(g.O2), number(g.Lambda)
		}
		if d := r.Diesel; d != nil {
			row[12] = number(d.Opacity)
		}
		if err := cw.Write(row); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write export")
	}
	s.logger.InfoContext(ctx, "inspection results exported",
		"request_id", requestcontext.RequestID(ctx),
		"rows", len(entries),
	)
	return nil
}

func (s *Service) internal(ctx context.Context, what string, err error) error {
	s.logger.ErrorContext(ctx, "report failed",
		"request_id", requestcontext.RequestID(ctx),
		"report", what,
		"error", err,
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build "+what+" report")
}

// rate is the pass percentage rounded to one decimal; zero when total is 0.
func rate(passing, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(passing)/float64(total)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func operatorName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
