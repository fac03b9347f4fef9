package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	pkgerrors "github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

func TestNewClient_RequiresAddress(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{}, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestClient_Ping(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewClientFromUniversal(db, nil)

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, c.Ping(context.Background()))

	mock.ExpectPing().SetErr(errors.New("dial tcp: refused"))
	err := c.Ping(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	db, _ := redismock.NewClientMock()
	log := testutil.NewMockLogger()
	c := NewClientFromUniversal(db, log)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, log.Count("info"))
	assert.ErrorIs(t, c.Ping(context.Background()), ErrClientClosed)
}
