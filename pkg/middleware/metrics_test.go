package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/cells/pkg/cell"
)

func newMetricsRuntime(t *testing.T) (*Metrics, *cell.Runtime) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))
	return m, cell.NewRuntime(cell.WithExtensions(m))
}

func TestMetricsCountsWrites(t *testing.T) {
	m, rt := newMetricsRuntime(t)

	obj := rt.NewObject("motor")
	speed := cell.Of[int](obj, "speed")
	speed.Set(10)
	speed.Set(10)
	speed.Set(20)

	require.Equal(t, 2.0, testutil.ToFloat64(m.writesTotal.WithLabelValues("motor", "changed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.writesTotal.WithLabelValues("motor", "suppressed")))
}

func TestMetricsCountsRunsAndNotifications(t *testing.T) {
	m, rt := newMetricsRuntime(t)

	obj := rt.NewObject("motor")
	speed := cell.Of[int](obj, "speed")
	rpm := cell.Of[int](obj, "rpm")
	speed.Set(1)
	rpm.Calculate(func() int { return speed.Get() * 60 })
	h := speed.Observe(nil, func(any, any, cell.Owner, cell.CellID) {})

	speed.Set(2)
	speed.Set(3)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("motor", "initial")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("motor", "recompute")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("motor")))
	require.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
	_ = h
}

func TestMetricsCountsPanics(t *testing.T) {
	m, rt := newMetricsRuntime(t)

	obj := rt.NewObject("motor")
	speed := cell.Of[int](obj, "speed")
	speed.Set(1)
	cell.Of[int](obj, "rpm").Calculate(func() int {
		if speed.Get() < 0 {
			panic("reverse")
		}
		return speed.Get()
	})

	err := cell.Catch(func() { speed.Set(-1) })
	require.Error(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.panicsTotal.WithLabelValues("motor")))
}

func TestMetricsOrder(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	tr := NewTracing()
	rt := cell.NewRuntime(cell.WithExtensions(m, tr))

	exts := rt.Extensions()
	require.Len(t, exts, 2)
	require.Equal(t, "tracing", exts[0].Name())
	require.Equal(t, "metrics", exts[1].Name())
}
