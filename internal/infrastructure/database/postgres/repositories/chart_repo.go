package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

type postgresChartRepo struct {
	executor queryExecutor
	log      logging.Logger
	metrics  *prometheus.SynastryMetrics
}

func NewPostgresChartRepo(conn *postgres.Connection, metrics *prometheus.SynastryMetrics, log logging.Logger) chart.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresChartRepo{executor: conn.DB(), log: log.Named("chart_repo"), metrics: metrics}
}

const upsertChartSQL = `
	INSERT INTO charts (id, name, birth_time, positions, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		birth_time = EXCLUDED.birth_time,
		positions = EXCLUDED.positions,
		updated_at = NOW()
	RETURNING created_at`

func (r *postgresChartRepo) Save(ctx context.Context, c *chart.Chart) (err error) {
	defer observe(r.metrics, "chart_save", time.Now(), &err)

	if err = c.Validate(); err != nil {
		return err
	}
	positions, mErr := json.Marshal(c.Positions)
	if mErr != nil {
		return errors.Wrap(mErr, errors.ErrCodeSerialization, "encode chart positions")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var birth sql.NullTime
	if c.BirthTime != nil {
		birth = sql.NullTime{Time: *c.BirthTime, Valid: true}
	}
	if qErr := r.executor.QueryRowContext(ctx, upsertChartSQL, c.ID, c.Name, birth, positions, c.CreatedAt).Scan(&c.CreatedAt); qErr != nil {
		return errors.Wrapf(qErr, errors.ErrCodeDatabaseError, "save chart %s", c.ID)
	}
	r.log.Debug("chart saved", logging.String("chart_id", c.ID), logging.Int("positions", len(c.Positions)))
	return nil
}

func (r *postgresChartRepo) FindByID(ctx context.Context, id string) (c *chart.Chart, err error) {
	defer observe(r.metrics, "chart_find", time.Now(), &err)

	row := r.executor.QueryRowContext(ctx,
		`SELECT id, name, birth_time, positions, created_at FROM charts WHERE id = $1`, id)
	c, err = scanChart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeChartNotFound, "chart not found").WithDetail("id=" + id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "load chart %s", id)
	}
	return c, nil
}

func scanChart(s scanner) (*chart.Chart, error) {
	var (
		c         chart.Chart
		name      sql.NullString
		birth     sql.NullTime
		positions []byte
	)
	if err := s.Scan(&c.ID, &name, &birth, &positions, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Name = name.String
	if birth.Valid {
		t := birth.Time
		c.BirthTime = &t
	}
	if err := json.Unmarshal(positions, &c.Positions); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode chart positions")
	}
	return &c, nil
}
