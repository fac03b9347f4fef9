package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// postgresCompatibilityRepo stores one row per unordered chart pair.  The
// pair columns always hold the lexically smaller ID first; the result JSON
// keeps the orientation it was computed in.
type postgresCompatibilityRepo struct {
	executor queryExecutor
	log      logging.Logger
	metrics  *prometheus.SynastryMetrics
}

func NewPostgresCompatibilityRepo(conn *postgres.Connection, metrics *prometheus.SynastryMetrics, log logging.Logger) synastry.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresCompatibilityRepo{executor: conn.DB(), log: log.Named("compatibility_repo"), metrics: metrics}
}

const upsertResultSQL = `
	INSERT INTO compatibility_results (chart_a_id, chart_b_id, score, result, calculated_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NOW())
	ON CONFLICT (chart_a_id, chart_b_id) DO UPDATE SET
		score = EXCLUDED.score,
		result = EXCLUDED.result,
		calculated_at = EXCLUDED.calculated_at,
		updated_at = NOW()`

func (r *postgresCompatibilityRepo) Upsert(ctx context.Context, res *synastry.Result) (err error) {
	defer observe(r.metrics, "result_upsert", time.Now(), &err)

	if res == nil || res.ChartAID == "" || res.ChartBID == "" {
		return errors.New(errors.ErrCodeValidation, "result needs both chart ids")
	}
	if res.ChartAID == res.ChartBID {
		return errors.New(errors.ErrCodeChartPairSame, "a chart cannot be paired with itself").WithDetail("id=" + res.ChartAID)
	}
	data, mErr := json.Marshal(res)
	if mErr != nil {
		return errors.Wrap(mErr, errors.ErrCodeSerialization, "encode result")
	}
	a, b := synastry.PairKey(res.ChartAID, res.ChartBID)
	if _, eErr := r.executor.ExecContext(ctx, upsertResultSQL, a, b, res.Score, data, res.CalculatedAt); eErr != nil {
		return errors.Wrapf(eErr, errors.ErrCodeDatabaseError, "store result %s/%s", a, b)
	}
	r.log.Debug("result stored", logging.String("chart_a", a), logging.String("chart_b", b), logging.Int("score", res.Score))
	return nil
}

func (r *postgresCompatibilityRepo) FindByPair(ctx context.Context, chartAID, chartBID string) (res *synastry.Result, err error) {
	defer observe(r.metrics, "result_find", time.Now(), &err)

	a, b := synastry.PairKey(chartAID, chartBID)
	var data []byte
	err = r.executor.QueryRowContext(ctx,
		`SELECT result FROM compatibility_results WHERE chart_a_id = $1 AND chart_b_id = $2`, a, b).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New(errors.ErrCodeResultNotFound, "no result for pair").WithDetail("pair=" + a + "/" + b)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "load result %s/%s", a, b)
	}
	res = &synastry.Result{}
	if err = json.Unmarshal(data, res); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode stored result")
	}
	return res, nil
}

const partnersSQL = `
	SELECT CASE WHEN chart_a_id = $1 THEN chart_b_id ELSE chart_a_id END AS partner
	FROM compatibility_results
	WHERE chart_a_id = $1 OR chart_b_id = $1
	ORDER BY partner`

func (r *postgresCompatibilityRepo) Partners(ctx context.Context, chartID string) (ids []string, err error) {
	defer observe(r.metrics, "result_partners", time.Now(), &err)

	rows, err := r.executor.QueryContext(ctx, partnersSQL, chartID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeDatabaseError, "list partners of %s", chartID)
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan partner")
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate partners")
	}
	return ids, nil
}
