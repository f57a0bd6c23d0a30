package orchestrator

import (
	"context"

	"github.com/appshell/engine/pkg/metrics"
	"github.com/appshell/engine/pkg/persistence"
)

// instrumentedAdapter counts snapshot writes per component so persistence
// health shows up on the dashboard without the components knowing about
// metrics.
type instrumentedAdapter struct {
	inner     persistence.Adapter
	component string
	metrics   *metrics.Metrics
}

func instrumented(inner persistence.Adapter, component string, m *metrics.Metrics) persistence.Adapter {
	return &instrumentedAdapter{inner: inner, component: component, metrics: m}
}

func (a *instrumentedAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return a.inner.Get(ctx, key)
}

func (a *instrumentedAdapter) Set(ctx context.Context, key string, value []byte) error {
	err := a.inner.Set(ctx, key, value)
	status := "success"
	if err != nil {
		status = "failure"
	}
	a.metrics.SnapshotWritesTotal.WithLabelValues(a.component, status).Inc()
	return err
}

func (a *instrumentedAdapter) RemoveAll(ctx context.Context, keys ...string) error {
	return a.inner.RemoveAll(ctx, keys...)
}

func (a *instrumentedAdapter) Close() error {
	return a.inner.Close()
}
