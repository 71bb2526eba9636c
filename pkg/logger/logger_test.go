package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/thetechidea/beepdatasources/pkg/errors"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := newLogger(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFromContextAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-1")
	ctx = context.WithValue(ctx, DataSourceKey, "sales")
	ctx = context.WithValue(ctx, EntityKey, "orders")

	FromContext(ctx, base).Info("paged query")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "sales", fields["datasource"])
	assert.Equal(t, "orders", fields["entity"])
}

func TestZapSinkWritesRecord(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core))

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sink.WriteLog(SeverityError, "count failed", ts, 7, "SELECT COUNT(*) FROM orders", errors.FlagFailed)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "count failed", entry.Message)
	assert.Equal(t, ts, entry.Time)
	fields := entry.ContextMap()
	assert.Equal(t, int64(7), fields["code"])
	assert.Equal(t, "SELECT COUNT(*) FROM orders", fields["context"])
	assert.Equal(t, "Failed", fields["flag"])
}

func TestZapSinkRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := NewZapSink(zap.New(core))

	sink.WriteLog(SeverityDebug, "ignored", time.Now(), 0, "", errors.FlagOk)
	sink.WriteLog(SeverityWarn, "kept", time.Now(), 0, "", errors.FlagOk)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestSinkFunc(t *testing.T) {
	var got string
	var sink Sink = SinkFunc(func(_ Severity, message string, _ time.Time, _ int, _ string, _ errors.Flag) {
		got = message
	})
	sink.WriteLog(SeverityInfo, "hello", time.Now(), 0, "", errors.FlagOk)
	assert.Equal(t, "hello", got)
}
