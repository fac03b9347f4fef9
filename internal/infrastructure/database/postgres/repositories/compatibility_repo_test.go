package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	pkgerrors "github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

type CompatibilityRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo synastry.Repository
}

func (s *CompatibilityRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)
	s.repo = NewPostgresCompatibilityRepo(postgres.NewConnectionWithDB(s.db, nil), prometheus.NewNoopMetrics(), nil)
}

func (s *CompatibilityRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *CompatibilityRepoTestSuite) TestUpsert_StoresUnderSortedPair() {
	res := &synastry.Result{
		ChartAID:     "zed",
		ChartBID:     "amy",
		Score:        74,
		Aspects:      []synastry.Aspect{},
		CalculatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	s.mock.ExpectExec("INSERT INTO compatibility_results").
		WithArgs("amy", "zed", 74, sqlmock.AnyArg(), res.CalculatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Upsert(context.Background(), res))
}

func (s *CompatibilityRepoTestSuite) TestUpsert_MixedCaseIDsUseByteOrder() {
	res := &synastry.Result{ChartAID: "alice", ChartBID: "Bob", Score: 58, CalculatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s.mock.ExpectExec("INSERT INTO compatibility_results").
		WithArgs("Bob", "alice", 58, sqlmock.AnyArg(), res.CalculatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Upsert(context.Background(), res))
}

func (s *CompatibilityRepoTestSuite) TestUpsert_Rejects() {
	err := s.repo.Upsert(context.Background(), &synastry.Result{ChartAID: "a"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	err = s.repo.Upsert(context.Background(), &synastry.Result{ChartAID: "a", ChartBID: "a"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeChartPairSame))
}

func (s *CompatibilityRepoTestSuite) TestUpsert_DBError() {
	s.mock.ExpectExec("INSERT INTO compatibility_results").WillReturnError(errors.New("deadlock"))

	err := s.repo.Upsert(context.Background(), &synastry.Result{ChartAID: "a", ChartBID: "b"})
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *CompatibilityRepoTestSuite) TestFindByPair_EitherOrder() {
	stored, _ := json.Marshal(synastry.Result{ChartAID: "zed", ChartBID: "amy", Score: 61})
	for _, args := range [][2]string{{"amy", "zed"}, {"zed", "amy"}} {
		s.mock.ExpectQuery(`SELECT result FROM compatibility_results WHERE chart_a_id = \$1 AND chart_b_id = \$2`).
			WithArgs("amy", "zed").
			WillReturnRows(sqlmock.NewRows([]string{"result"}).AddRow(stored))

		res, err := s.repo.FindByPair(context.Background(), args[0], args[1])
		s.Require().NoError(err)
		s.Equal(61, res.Score)
		s.Equal("zed", res.ChartAID)
	}
}

func (s *CompatibilityRepoTestSuite) TestFindByPair_NotFound() {
	s.mock.ExpectQuery("SELECT result").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"result"}))

	_, err := s.repo.FindByPair(context.Background(), "b", "a")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeResultNotFound))
	s.True(pkgerrors.IsNotFound(err))
}

func (s *CompatibilityRepoTestSuite) TestPartners() {
	s.mock.ExpectQuery("SELECT CASE WHEN chart_a_id").
		WithArgs("c2").
		WillReturnRows(sqlmock.NewRows([]string{"partner"}).AddRow("c1").AddRow("c9"))

	ids, err := s.repo.Partners(context.Background(), "c2")
	s.Require().NoError(err)
	s.Equal([]string{"c1", "c9"}, ids)
}

func (s *CompatibilityRepoTestSuite) TestPartners_None() {
	s.mock.ExpectQuery("SELECT CASE WHEN chart_a_id").
		WithArgs("lonely").
		WillReturnRows(sqlmock.NewRows([]string{"partner"}))

	ids, err := s.repo.Partners(context.Background(), "lonely")
	s.Require().NoError(err)
	s.NotNil(ids)
	s.Empty(ids)
}

func (s *CompatibilityRepoTestSuite) TestPartners_QueryError() {
	s.mock.ExpectQuery("SELECT CASE WHEN chart_a_id").WillReturnError(errors.New("timeout"))

	_, err := s.repo.Partners(context.Background(), "c1")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestCompatibilityRepoTestSuite(t *testing.T) {
	suite.Run(t, new(CompatibilityRepoTestSuite))
}
