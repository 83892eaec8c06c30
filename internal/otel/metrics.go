package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	pollCyclesCounter   metric.Int64Counter
	pollCycleDuration   metric.Float64Histogram
	statusChangeCounter metric.Int64Counter
	mutationsCounter    metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		pollCyclesCounter, err = m.Int64Counter("pabellon_poll_cycles_total", metric.WithDescription("Board refresh cycles by mode and result"))
		if err != nil {
			return
		}
		pollCycleDuration, err = m.Float64Histogram("pabellon_poll_cycle_duration_seconds", metric.WithDescription("Board refresh cycle duration in seconds"))
		if err != nil {
			return
		}
		statusChangeCounter, err = m.Int64Counter("pabellon_status_changes_total", metric.WithDescription("Surgery status changes observed on the board"))
		if err != nil {
			return
		}
		mutationsCounter, err = m.Int64Counter("pabellon_mutations_total", metric.WithDescription("Board mutations by operation and result"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("pabellon_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("pabellon_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
	})
	return err
}

// RecordPollCycle records one refresh cycle. result is applied, stale, failed or stopped.
func RecordPollCycle(ctx context.Context, mode, result string, duration time.Duration) {
	if pollCyclesCounter != nil {
		pollCyclesCounter.Add(ctx, 1, metric.WithAttributes(AttrMode.String(mode), AttrResult.String(result)))
	}
	if pollCycleDuration != nil {
		pollCycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrMode.String(mode)))
	}
}

// RecordStatusChange records one observed status transition.
func RecordStatusChange(ctx context.Context, from, to string) {
	if statusChangeCounter == nil {
		return
	}
	statusChangeCounter.Add(ctx, 1, metric.WithAttributes(AttrFrom.String(from), AttrTo.String(to)))
}

// RecordMutation records a user-initiated board mutation.
func RecordMutation(ctx context.Context, op string, err error) {
	if mutationsCounter == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	mutationsCounter.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(op), AttrResult.String(result)))
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// BoardCountFunc returns the number of assignments on the board per status.
type BoardCountFunc func() map[string]int64

// InitMetricsWithBoardCount creates instruments and optionally registers a
// callback for the pabellon_board_cirugias gauge. If boardCount is nil, the
// gauge is not reported.
func InitMetricsWithBoardCount(ctx context.Context, boardCount BoardCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if boardCount == nil {
		return nil
	}
	m := Meter()
	gauge, err := m.Int64ObservableGauge("pabellon_board_cirugias", metric.WithDescription("Assignments currently on the board by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		for estado, n := range boardCount() {
			o.ObserveInt64(gauge, n, metric.WithAttributes(AttrEstado.String(estado)))
		}
		return nil
	}, gauge)
	return err
}
