package domain

import (
	"testing"
	"time"
)

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        IdempotencyStatus
		wantValid     bool
		wantCompleted bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, wantValid: true, wantCompleted: false},
		{name: "done", status: IdempotencyStatusDone, wantValid: true, wantCompleted: true},
		{name: "failed", status: IdempotencyStatusFailed, wantValid: true, wantCompleted: true},
		{name: "unknown", status: IdempotencyStatus("broken"), wantValid: false, wantCompleted: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.wantValid {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.wantValid)
			}
			if got := tc.status.Completed(); got != tc.wantCompleted {
				t.Fatalf("status %q completed=%v, want %v", tc.status, got, tc.wantCompleted)
			}
		})
	}
}

func TestIdempotencyRecordExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fresh := IdempotencyRecord{TTLAt: now.Add(time.Hour)}
	if fresh.Expired(now) {
		t.Fatal("record with future ttl should not be expired")
	}

	exact := IdempotencyRecord{TTLAt: now}
	if !exact.Expired(now) {
		t.Fatal("record with ttl equal to now should be expired")
	}

	stale := IdempotencyRecord{TTLAt: now.Add(-time.Minute)}
	if !stale.Expired(now) {
		t.Fatal("record with past ttl should be expired")
	}
}
