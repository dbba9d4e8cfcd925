package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/kilianp07/shopfloor/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(Config{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorRejectsBadDSN(t *testing.T) {
	_, err := NewSentryMonitor(Config{DSN: "not a dsn"})
	assert.Error(t, err)
}

func TestNewSentryMonitor(t *testing.T) {
	m, err := NewSentryMonitor(Config{DSN: "https://public@127.0.0.1:1/1", Environment: "test"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { m.CaptureException(nil, nil) })
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{TracesSampleRate: 0.2}.Validate())
	assert.Error(t, Config{TracesSampleRate: 2}.Validate())
}
