package storage

import (
	"testing"
	"time"
)

func TestReconciliationKey(t *testing.T) {
	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	got := ReconciliationKey("BK-7Q2M9XK4ZP1A", at)
	want := "payment-reconciliation/2025/01/10/bk-7q2m9xk4zp1a-1736499600000000000.json"
	if got != want {
		t.Fatalf("ReconciliationKey() = %q, want %q", got, want)
	}

	if got := ReconciliationKey("", at); got != "payment-reconciliation/2025/01/10/unknown-1736499600000000000.json" {
		t.Fatalf("unexpected key for empty ref: %q", got)
	}
}
