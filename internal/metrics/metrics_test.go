package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTick("recorded", 10*time.Millisecond)
	m.ObserveTick("unchanged", time.Millisecond)
	m.ObserveTick("unchanged", time.Millisecond)
	m.ObservePublish("dir", nil)
	m.ObservePublish("dir", errors.New("boom"))
	m.AcquireFailed()
	m.StateLoadFailed()

	if got := testutil.ToFloat64(m.ticks.WithLabelValues("unchanged")); got != 2 {
		t.Errorf("unchanged ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues("dir", "failure")); got != 1 {
		t.Errorf("publish failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.publishes.WithLabelValues("dir", "success")); got != 1 {
		t.Errorf("publish successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.acquireErrors); got != 1 {
		t.Errorf("acquire errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.stateErrors); got != 1 {
		t.Errorf("state errors = %v, want 1", got)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	m.SetInterfaces(3)
	m.MarkChange(ts)

	if got := testutil.ToFloat64(m.interfaces); got != 3 {
		t.Errorf("interfaces = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.lastChange); got != float64(ts.Unix()) {
		t.Errorf("last change = %v, want %d", got, ts.Unix())
	}
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry should panic")
		}
	}()
	New(reg)
}
