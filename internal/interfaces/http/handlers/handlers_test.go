package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

type mockCompatibility struct{ mock.Mock }

func (m *mockCompatibility) RegisterChart(ctx context.Context, c *chart.Chart) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCompatibility) GetChart(ctx context.Context, id string) (*chart.Chart, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*chart.Chart)
	return c, args.Error(1)
}

func (m *mockCompatibility) Score(ctx context.Context, a, b *chart.Chart) (*synastry.Result, error) {
	args := m.Called(ctx, a, b)
	r, _ := args.Get(0).(*synastry.Result)
	return r, args.Error(1)
}

func (m *mockCompatibility) ScorePair(ctx context.Context, a, b string) (*synastry.Result, error) {
	args := m.Called(ctx, a, b)
	r, _ := args.Get(0).(*synastry.Result)
	return r, args.Error(1)
}

func (m *mockCompatibility) GetResult(ctx context.Context, a, b string) (*synastry.Result, error) {
	args := m.Called(ctx, a, b)
	r, _ := args.Get(0).(*synastry.Result)
	return r, args.Error(1)
}

type mockActivation struct{ mock.Mock }

func (m *mockActivation) Evaluate(ctx context.Context, req activation.Request) (*transit.DailyActivation, error) {
	args := m.Called(ctx, req)
	a, _ := args.Get(0).(*transit.DailyActivation)
	return a, args.Error(1)
}

func (m *mockActivation) EvaluateBatch(ctx context.Context, reqs []activation.Request) (*common.BatchResponse[*transit.DailyActivation], error) {
	args := m.Called(ctx, reqs)
	r, _ := args.Get(0).(*common.BatchResponse[*transit.DailyActivation])
	return r, args.Error(1)
}

func (m *mockActivation) ActivatePartners(ctx context.Context, chartID string, day time.Time) (int, error) {
	args := m.Called(ctx, chartID, day)
	return args.Int(0), args.Error(1)
}

type envelope struct {
	Success   bool                `json:"success"`
	Data      json.RawMessage     `json:"data"`
	Error     *common.ErrorDetail `json:"error"`
	RequestID string              `json:"request_id"`
}

type HandlerTestSuite struct {
	suite.Suite
	compat *mockCompatibility
	act    *mockActivation
	router *gin.Engine
}

func (s *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.compat = new(mockCompatibility)
	s.act = new(mockActivation)

	r := gin.New()
	r.Use(middleware.RequestID())
	v1 := r.Group("/api/v1")
	NewChartHandler(s.compat).RegisterRoutes(v1)
	NewCompatibilityHandler(s.compat).RegisterRoutes(v1)
	ah := NewActivationHandler(s.act)
	ah.now = func() time.Time { return time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC) }
	ah.RegisterRoutes(v1)
	s.router = r
}

func (s *HandlerTestSuite) TearDownTest() {
	s.compat.AssertExpectations(s.T())
	s.act.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) do(method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (s *HandlerTestSuite) TestRegisterChart() {
	in := testutil.SunMoonChart("alice", 10, 100, 40, 200)
	s.compat.On("RegisterChart", mock.Anything, mock.MatchedBy(func(c *chart.Chart) bool { return c.ID == "alice" })).Return(nil)

	w, env := s.do(http.MethodPost, "/api/v1/charts", in)
	s.Equal(http.StatusCreated, w.Code)
	s.True(env.Success)
	s.NotEmpty(env.RequestID)
}

func (s *HandlerTestSuite) TestRegisterChart_Invalid() {
	s.compat.On("RegisterChart", mock.Anything, mock.Anything).
		Return(errors.New(errors.ErrCodeChartInvalid, "positions required"))

	w, env := s.do(http.MethodPost, "/api/v1/charts", map[string]string{"id": "x"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.False(env.Success)
	s.Equal("SYN_002", env.Error.Code)
	s.Equal("positions required", env.Error.Message)
}

func (s *HandlerTestSuite) TestRegisterChart_MalformedBody() {
	w, env := s.do(http.MethodPost, "/api/v1/charts", "{not json")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(string(errors.ErrCodeBadRequest), env.Error.Code)
}

func (s *HandlerTestSuite) TestGetChart_NotFound() {
	s.compat.On("GetChart", mock.Anything, "ghost").
		Return(nil, errors.New(errors.ErrCodeChartNotFound, "chart ghost not found"))

	w, env := s.do(http.MethodGet, "/api/v1/charts/ghost", nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("SYN_003", env.Error.Code)
}

func (s *HandlerTestSuite) TestScore_Inline() {
	a := testutil.SunMoonChart("a", 10, 100, 40, 200)
	b := testutil.SunMoonChart("b", 130, 280, 45, 20)
	s.compat.On("Score", mock.Anything, mock.AnythingOfType("*chart.Chart"), mock.AnythingOfType("*chart.Chart")).
		Return(&synastry.Result{ChartAID: "a", ChartBID: "b", Score: 74}, nil)

	w, env := s.do(http.MethodPost, "/api/v1/compatibility", CompatibilityRequest{ChartA: a, ChartB: b})
	s.Equal(http.StatusOK, w.Code)

	var res synastry.Result
	s.Require().NoError(json.Unmarshal(env.Data, &res))
	s.Equal(74, res.Score)
}

func (s *HandlerTestSuite) TestScore_ByIDs() {
	s.compat.On("ScorePair", mock.Anything, "bob", "alice").
		Return(&synastry.Result{ChartAID: "alice", ChartBID: "bob", Score: 61}, nil)

	w, _ := s.do(http.MethodPost, "/api/v1/compatibility", CompatibilityRequest{ChartAID: "bob", ChartBID: "alice"})
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerTestSuite) TestScore_NothingGiven() {
	w, env := s.do(http.MethodPost, "/api/v1/compatibility", CompatibilityRequest{ChartAID: "only-one"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(string(errors.ErrCodeChartsRequired), env.Error.Code)
}

func (s *HandlerTestSuite) TestScore_InternalErrorIsMasked() {
	s.compat.On("ScorePair", mock.Anything, "a", "b").
		Return(nil, errors.New(errors.ErrCodeDatabaseError, "pq: connection refused at 10.0.0.3"))

	w, env := s.do(http.MethodPost, "/api/v1/compatibility", CompatibilityRequest{ChartAID: "a", ChartBID: "b"})
	s.Equal(http.StatusInternalServerError, w.Code)
	s.NotContains(env.Error.Message, "10.0.0.3")
}

func (s *HandlerTestSuite) TestGetResult() {
	s.compat.On("GetResult", mock.Anything, "a", "b").Return(&synastry.Result{Score: 50}, nil)
	w, _ := s.do(http.MethodGet, "/api/v1/compatibility/a/b", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *HandlerTestSuite) TestEvaluate_ParsesDate() {
	want := activation.Request{ChartAID: "a", ChartBID: "b", Date: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)}
	s.act.On("Evaluate", mock.Anything, want).Return(&transit.DailyActivation{
		ChartAID: "a", ChartBID: "b", Date: want.Date,
		Activation: transit.Activation{Triggered: []transit.TriggeredAspect{}, Energy: transit.EnergyHarmonious},
	}, nil)

	w, env := s.do(http.MethodPost, "/api/v1/activations", ActivationRequest{ChartAID: "a", ChartBID: "b", Date: "2026-03-14"})
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"overallEnergy":"harmonious"`)
}

func (s *HandlerTestSuite) TestEvaluate_BadDate() {
	w, env := s.do(http.MethodPost, "/api/v1/activations", ActivationRequest{ChartAID: "a", ChartBID: "b", Date: "14/03/2026"})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(env.Error.Message, "YYYY-MM-DD")
}

func (s *HandlerTestSuite) TestEvaluateBatch() {
	s.act.On("EvaluateBatch", mock.Anything, mock.MatchedBy(func(reqs []activation.Request) bool { return len(reqs) == 2 })).
		Return(&common.BatchResponse[*transit.DailyActivation]{
			Succeeded:      []*transit.DailyActivation{{ChartAID: "a", ChartBID: "b"}},
			Failed:         []common.BatchError{{Index: 1, Error: common.ErrorDetail{Code: "SYN_003", Message: "chart not found"}}},
			TotalProcessed: 2,
		}, nil)

	body := BatchActivationRequest{Requests: []ActivationRequest{
		{ChartAID: "a", ChartBID: "b"},
		{ChartAID: "a", ChartBID: "ghost"},
	}}
	w, env := s.do(http.MethodPost, "/api/v1/activations/batch", body)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"total_processed":2`)
}

func (s *HandlerTestSuite) TestEvaluateBatch_TooLarge() {
	s.act.On("EvaluateBatch", mock.Anything, mock.Anything).
		Return(nil, errors.New(errors.ErrCodeValidation, "batch of 900 exceeds limit 500"))

	w, _ := s.do(http.MethodPost, "/api/v1/activations/batch", BatchActivationRequest{Requests: []ActivationRequest{{ChartAID: "a", ChartBID: "b"}}})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (s *HandlerTestSuite) TestRefreshPartners_DefaultsToToday() {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	s.act.On("ActivatePartners", mock.Anything, "alice", day).Return(3, nil)

	w, env := s.do(http.MethodPost, "/api/v1/charts/alice/activations/refresh", nil)
	s.Equal(http.StatusOK, w.Code)

	var out RefreshResult
	s.Require().NoError(json.Unmarshal(env.Data, &out))
	s.Equal(RefreshResult{ChartID: "alice", Date: "2026-03-15", Evaluated: 3}, out)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := NewChecker("postgres", func(context.Context) error { return nil })
	down := NewChecker("redis", func(context.Context) error { return errors.New(errors.ErrCodeCacheError, "dial tcp: refused") })

	r := gin.New()
	NewHealthHandler("v1.2.3", ok).RegisterRoutes(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"v1.2.3"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	r = gin.New()
	NewHealthHandler("v1.2.3", ok, down).RegisterRoutes(r)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, common.HealthDown, resp.Status)
	require.Len(t, resp.Components, 2)
	assert.Equal(t, common.HealthUp, resp.Components[0].Status)
	assert.Equal(t, "redis", resp.Components[1].Name)
	assert.Contains(t, resp.Components[1].Message, "refused")
}
