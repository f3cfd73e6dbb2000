package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestNewWithSinks_SplitsErrors checks that errors land on the error sink only.
func TestNewWithSinks_SplitsErrors(t *testing.T) {
	t.Parallel()

	var out, errOut bytes.Buffer

	l := NewWithSinks(zapcore.DebugLevel, zapcore.AddSync(&out), zapcore.AddSync(&errOut))
	ctx := ToContext(context.Background(), l)

	Info(ctx, "regular line")
	WarnKV(ctx, "careful", "key", "value")
	Errorf(ctx, "broken %s", "pipe")

	require.Contains(t, out.String(), "regular line")
	require.Contains(t, out.String(), "careful")
	require.NotContains(t, out.String(), "broken pipe")
	require.Contains(t, errOut.String(), "broken pipe")
}

// TestContextHelpers ensures names, fields and step lines travel with the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	l := NewWithSinks(zapcore.InfoLevel, zapcore.AddSync(&out), zapcore.AddSync(&out))
	ctx := ToContext(context.Background(), l)
	ctx = WithName(ctx, "updater")
	ctx = WithKV(ctx, "run_id", "abc")

	Step(ctx, 2, 5, "dependencies")

	line := out.String()
	require.Contains(t, line, "updater")
	require.Contains(t, line, "run_id")
	require.Contains(t, line, "dependencies")
	require.Contains(t, line, "2/5")
}

// TestFromContext_FallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContext_FallsBackToGlobal(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // A nil context is accepted on purpose.
	require.Same(t, Logger(), FromContext(nil))
	require.Same(t, Logger(), FromContext(context.Background()))
}
