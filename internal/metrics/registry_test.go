package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kanti-proxy/kanti/internal/metrics"
)

func TestRegistryIsInitialized(t *testing.T) {
	require.NotNil(t, metrics.Registry)
}

func TestHandlerIsNotNil(t *testing.T) {
	require.NotNil(t, metrics.Handler())
}

func TestIncrCounterDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.Registry.IncrCounter(metrics.ExchangesCaptured, 1)
	})
}
