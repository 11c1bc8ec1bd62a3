package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("10.0.0.1") || !rl.Allow("10.0.0.1") {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("third request must be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other key must not be limited")
	}
	if got := rl.Remaining("10.0.0.1"); got != 0 {
		t.Errorf("remaining: got %d", got)
	}
	if got := rl.ResetAt("10.0.0.1"); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("reset at: got %v", got)
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("request after window must pass")
	}
	if got := rl.Remaining("10.0.0.1"); got != 1 {
		t.Errorf("remaining after window: got %d", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(5, time.Second)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	now = now.Add(2 * time.Second)
	rl.Cleanup()

	if len(rl.requests) != 0 {
		t.Fatalf("expected stale keys to be removed, got %d", len(rl.requests))
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for i := 0; i < 10; i++ {
		if !rl.Allow("x") {
			t.Fatal("zero limit means unlimited")
		}
	}
}

func TestReceiptSignature(t *testing.T) {
	key := []byte("secret")
	sig := SignReceipt("c0ffee", 15000, key)

	if !VerifyReceipt("c0ffee", 15000, sig, key) {
		t.Fatal("valid signature rejected")
	}
	if VerifyReceipt("c0ffee", 15000.01, sig, key) {
		t.Fatal("signature must depend on amount")
	}
	if VerifyReceipt("c0ffee", 15000, sig, []byte("other")) {
		t.Fatal("signature must depend on key")
	}
	if VerifyReceipt("c0ffee", 15000, "not-hex", key) {
		t.Fatal("malformed signature accepted")
	}
}

func TestGenerateAccountNumber(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := GenerateAccountNumber(12)
		if err != nil {
			t.Fatalf("GenerateAccountNumber: %v", err)
		}
		if len(n) != 12 || n[0] == '0' {
			t.Fatalf("bad account number %q", n)
		}
		for _, c := range n {
			if c < '0' || c > '9' {
				t.Fatalf("non digit in %q", n)
			}
		}
	}
	if _, err := GenerateAccountNumber(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(10*time.Millisecond, false)
	m.RecordRequest(30*time.Millisecond, true)
	m.RecordDisbursement(1_000_000)
	m.RecordRepayment(250_000)
	m.RecordReversal(50_000)
	m.RecordStatusChange("ACTIVE", "OVERDUE")
	m.RecordError(errors.New("boom"))

	snap := m.GetMetricsSnapshot()
	if snap["total_requests"].(int64) != 2 || snap["failed_requests"].(int64) != 1 {
		t.Errorf("requests: %+v", snap)
	}
	if snap["average_latency_ms"].(int64) != 20 {
		t.Errorf("average latency: %v", snap["average_latency_ms"])
	}
	if snap["amount_collected"].(float64) != 200_000 {
		t.Errorf("amount collected: %v", snap["amount_collected"])
	}
	if snap["status_changes"].(map[string]int64)["ACTIVE->OVERDUE"] != 1 {
		t.Errorf("status changes: %v", snap["status_changes"])
	}

	m.ResetMetrics()
	if m.GetMetricsSnapshot()["total_requests"].(int64) != 0 {
		t.Error("reset did not clear requests")
	}
}

func TestInitLoggers(t *testing.T) {
	oldInfo, oldErr, oldDebug := InfoLogger, ErrorLogger, DebugLogger
	defer func() { InfoLogger, ErrorLogger, DebugLogger = oldInfo, oldErr, oldDebug }()

	dir := filepath.Join(t.TempDir(), "logs")
	if err := InitLoggers(dir); err != nil {
		t.Fatalf("InitLoggers: %v", err)
	}
	LogInfo("loan %d disbursed", 7)

	data, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("read info.log: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("info.log is empty")
	}
}
