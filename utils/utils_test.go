package utils

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(8)
	require.NoError(t, err)
	assert.Len(t, code, 16)
	assert.Equal(t, strings.ToUpper(code), code)

	other, err := GenerateCode(8)
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestGenerateReference(t *testing.T) {
	ref, err := GenerateReference()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "UNITE-"))
	assert.Len(t, ref, len("UNITE-")+16)
}

func TestCircuitBreaker_PassesThroughResults(t *testing.T) {
	cb := NewCircuitBreaker("test")

	result, err := cb.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, cb.State())

	wantErr := errors.New("upstream down")
	_, err = cb.Execute(context.Background(), func() (any, error) {
		return nil, wantErr
	})
	// The request's own error comes back untouched.
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 20; i++ {
		_, _ = cb.Execute(context.Background(), func() (any, error) {
			return nil, errors.New("boom")
		})
	}

	assert.Equal(t, StateOpen, cb.State())

	called := false
	_, err := cb.Execute(context.Background(), func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not run the request")
}

func TestCircuitBreaker_StaysClosedUnderOccasionalFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")

	for i := 0; i < 30; i++ {
		var fail bool
		if i%5 == 0 {
			fail = true
		}
		_, _ = cb.Execute(context.Background(), func() (any, error) {
			if fail {
				return nil, errors.New("transient")
			}
			return nil, nil
		})
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestRedisHealthCheck(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(client))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Unreachable(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	err := RedisHealthCheck(client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}
