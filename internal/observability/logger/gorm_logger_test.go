package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))
	return logs
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(DefaultGormLoggerConfig())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM api_keys WHERE key_prefix = ?", 0
	}, gormlogger.ErrRecordNotFound)

	assert.Zero(t, logs.Len())
}

func TestGormLoggerLogsFailuresAndSlowQueries(t *testing.T) {
	logs := observeGlobal(t)
	l := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: time.Millisecond})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT INTO usage_logs (endpoint) VALUES (?)", -1
	}, errors.New("connection reset"))
	l.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "UPDATE oauth_clients SET last_used_at = ?", 1
	}, nil)

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "insert", entries[0].ContextMap()["statement"])
	assert.NotContains(t, entries[0].ContextMap(), "rows")

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "update", entries[1].ContextMap()["statement"])
	assert.Equal(t, true, entries[1].ContextMap()["slow"])
}

func TestGormLoggerDropsBoundParams(t *testing.T) {
	var l gormlogger.Interface = NewGormLogger(DefaultGormLoggerConfig())
	filter, ok := l.(gorm.ParamsFilter)
	require.True(t, ok, "gorm only consults the filter through gorm.ParamsFilter")

	sql, params := filter.ParamsFilter(context.Background(), "SELECT 1 WHERE key_hash = ?", "secret")
	assert.Equal(t, "SELECT 1 WHERE key_hash = ?", sql)
	assert.Nil(t, params)
}
