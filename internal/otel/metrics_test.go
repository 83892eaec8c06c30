package otel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInitMetrics_Record(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordPollCycle(ctx, "merge", "applied", 120*time.Millisecond)
	RecordPollCycle(ctx, "replace", "stale", 10*time.Millisecond)
	RecordStatusChange(ctx, "PROGRAMADA", "EN_CURSO")
	RecordMutation(ctx, "move", nil)
	RecordMutation(ctx, "create", errors.New("conflict"))
	RecordSSEEvent(ctx)
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
	sseConnectionsMu.Lock()
	n := sseConnections
	sseConnectionsMu.Unlock()
	if n != 0 {
		t.Fatalf("sseConnections: %d", n)
	}
}

func TestInitMetricsWithBoardCount(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "boardcount-test")
	err := InitMetricsWithBoardCount(ctx, func() map[string]int64 {
		return map[string]int64{"PROGRAMADA": 3, "EN_CURSO": 1}
	})
	if err != nil {
		t.Fatalf("InitMetricsWithBoardCount: %v", err)
	}
}

func TestInitMetricsWithBoardCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "boardcount-nil-test")
	if err := InitMetricsWithBoardCount(ctx, nil); err != nil {
		t.Fatalf("InitMetricsWithBoardCount(nil): %v", err)
	}
}
