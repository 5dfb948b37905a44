package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"emissions/internal/emission"
	"emissions/internal/inspection/handler/mocks"
	"emissions/internal/inspection/models"
	"emissions/internal/inspection/service"
	"emissions/internal/platform/logger"
	vehiclemodels "emissions/internal/vehicle/models"
	id "emissions/pkg/domain"
	dErrors "emissions/pkg/domain-errors"
	"emissions/pkg/platform/paging"
)

type InspectionHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestInspectionHandlerSuite(t *testing.T) {
	suite.Run(t, new(InspectionHandlerSuite))
}

func (s *InspectionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, logger.Discard()).Register(s.router)
}

func (s *InspectionHandlerSuite) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func submission(valid, passed bool, failures []string) *service.Submission {
	return &service.Submission{
		Vehicle: &vehiclemodels.Vehicle{
			ID:           id.NewVehicleID(),
			Plate:        "B 1 AA",
			Make:         "Toyota",
			ModelYear:    2015,
			FuelType:     emission.FuelDiesel,
			LoadCategory: emission.CategoryUnder3_5Ton,
		},
		Result: &models.Result{
			ID:          id.NewResultID(),
			FuelType:    emission.FuelDiesel,
			Diesel:      &emission.DieselReading{Opacity: 42},
			Valid:       valid,
			Passed:      passed,
			Failures:    failures,
			AgeBracket:  emission.BracketDiesel2010To2021,
			LimitSource: emission.SourceTier,
			EffectiveLimits: emission.ThresholdSet{
				Diesel: &emission.DieselThresholds{OpacityMax: 40},
			},
			ThresholdVersion: 4,
		},
	}
}

func (s *InspectionHandlerSuite) TestSubmit() {
	s.Run("returns verdict with limits", func() {
		s.service.EXPECT().Submit(gomock.Any(), "B 1 AA", map[string]any{"opacity": json.Number("42")}).
			Return(submission(true, false, []string{emission.CheckOpacityMax}), nil)

		rec := s.do(http.MethodPost, "/inspections/B%201%20AA", `{"opacity": 42}`)

		s.Require().Equal(http.StatusOK, rec.Code)
		var got map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal("fail", got["outcome"])
		s.Equal("2010-2021", got["age_bracket"])
		s.Equal(map[string]any{"opacity_max": 40.0}, got["limits"])
		s.Equal([]any{"opacity_max"}, got["failures"])
		s.Equal(4.0, got["threshold_version"])
	})

	s.Run("invalid reading is still 200", func() {
		s.service.EXPECT().Submit(gomock.Any(), "B 1 AA", gomock.Any()).
			Return(submission(false, false, []string{emission.FieldOpacity}), nil)

		rec := s.do(http.MethodPost, "/inspections/B%201%20AA", `{"opacity": 140}`)

		s.Require().Equal(http.StatusOK, rec.Code)
		var got ResultResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
		s.Equal(models.OutcomeInvalid, got.Outcome)
		s.False(got.Valid)
	})

	s.Run("empty body", func() {
		rec := s.do(http.MethodPost, "/inspections/B%201%20AA", `{}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("malformed measurement names the fields", func() {
		s.service.EXPECT().Submit(gomock.Any(), "B 1 AA", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeValidation, "malformed gasoline measurement: hc: is required"))

		rec := s.do(http.MethodPost, "/inspections/B%201%20AA", `{"co": 1}`)

		s.Require().Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "hc: is required")
	})

	s.Run("unknown vehicle", func() {
		s.service.EXPECT().Submit(gomock.Any(), "X 9", gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "vehicle X 9 not found"))

		rec := s.do(http.MethodPost, "/inspections/X%209", `{"opacity": 1}`)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *InspectionHandlerSuite) TestGetAndClear() {
	s.service.EXPECT().Get(gomock.Any(), "B 1 AA").Return(submission(true, true, nil), nil)
	rec := s.do(http.MethodGet, "/inspections/B%201%20AA", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got ResultResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal(models.OutcomePass, got.Outcome)
	s.Equal("B 1 AA", got.Vehicle.Plate)
	s.NotNil(got.Failures)

	s.service.EXPECT().Clear(gomock.Any(), "B 1 AA").Return(nil)
	rec = s.do(http.MethodDelete, "/inspections/B%201%20AA", "")
	s.Equal(http.StatusNoContent, rec.Code)

	s.service.EXPECT().Clear(gomock.Any(), "B 1 AA").Return(dErrors.New(dErrors.CodeNotFound, "no inspection result"))
	rec = s.do(http.MethodDelete, "/inspections/B%201%20AA", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *InspectionHandlerSuite) TestHistory() {
	s.Run("parses filters", func() {
		s.service.EXPECT().History(gomock.Any(), gomock.Any(), paging.Params{Page: 2, PerPage: 5}).DoAndReturn(
			func(_ context.Context, f models.HistoryFilter, p paging.Params) (paging.Result[models.Entry], error) {
				s.Equal("toyota", f.Make)
				s.Equal(models.OutcomeFail, f.Outcome)
				s.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
				s.Equal(time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), f.To)
				return paging.NewResult[models.Entry](nil, 0, p), nil
			})

		rec := s.do(http.MethodGet, "/inspections?make=toyota&result=FAIL&from=2026-01-01&to=2026-01-31&page=2&per_page=5", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"items":[],"total":0,"page":2,"per_page":5,"total_pages":0}`, rec.Body.String())
	})

	s.Run("bad date", func() {
		rec := s.do(http.MethodGet, "/inspections?from=01-01-2026", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad result filter", func() {
		rec := s.do(http.MethodGet, "/inspections?result=maybe", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *InspectionHandlerSuite) TestTestedPlates() {
	s.service.EXPECT().TestedPlates(gomock.Any()).Return([]string{"B 1 AA", "D 2 BB"}, nil)
	rec := s.do(http.MethodGet, "/inspections/tested-plates", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"plates":["B 1 AA","D 2 BB"]}`, rec.Body.String())
}

func (s *InspectionHandlerSuite) TestCertificate() {
	s.service.EXPECT().Certificate(gomock.Any(), "B 1 AA").Return(&models.Certificate{
		Number:       "EM-20260401-ABCDEF12",
		Outcome:      models.OutcomePass,
		OperatorName: "budi",
	}, nil)

	rec := s.do(http.MethodGet, "/inspections/B%201%20AA/certificate", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("EM-20260401-ABCDEF12", got["certificate_number"])
	s.Equal("budi", got["operator_name"])
}
