package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	pkgerrors "github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

func stubOpen(t *testing.T, db *sql.DB, err error) {
	t.Helper()
	prev := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, err
	}
	t.Cleanup(func() { sqlOpen = prev })
}

func TestNewConnection_RequiresDSN(t *testing.T) {
	_, err := NewConnection(context.Background(), PoolConfig{}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestNewConnection_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	stubOpen(t, db, nil)

	conn, err := NewConnection(context.Background(), PoolConfig{DSN: "postgres://x", MaxOpenConns: 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, conn.DB().Stats().MaxOpenConnections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_PingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectClose()
	stubOpen(t, db, nil)

	_, err = NewConnection(context.Background(), PoolConfig{DSN: "postgres://x"}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewConnection_OpenFails(t *testing.T) {
	stubOpen(t, nil, errors.New("unknown driver"))

	_, err := NewConnection(context.Background(), PoolConfig{DSN: "postgres://x"}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func TestConnection_HealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	conn := NewConnectionWithDB(db, nil)

	mock.ExpectPing()
	assert.NoError(t, conn.HealthCheck(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.True(t, pkgerrors.IsCode(conn.HealthCheck(context.Background()), pkgerrors.ErrCodeDatabaseError))
}

func TestConnection_CloseOnce(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	log := testutil.NewMockLogger()
	conn := NewConnectionWithDB(db, log)

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, log.HasMessage("info", "postgres pool closed"))
	assert.Equal(t, 1, log.Count("info"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewMigrator_RequiresSource(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)

	_, err = NewMigrator(NewConnectionWithDB(db, nil), "", nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}
