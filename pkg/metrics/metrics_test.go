package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fortiblox/x1-pixelbattle/pkg/types"
)

func TestObserveTransaction(t *testing.T) {
	m := NewMetrics()

	m.ObserveTransaction(&types.TransactionResult{Success: true, Slot: 7, ComputeUnits: 1200}, time.Millisecond)
	m.ObserveTransaction(&types.TransactionResult{
		Error: types.InstructionError{Index: 0, Err: types.CustomError(4)},
	}, time.Millisecond)
	m.ObserveTransaction(&types.TransactionResult{
		Error: types.InstructionError{Index: 1, Err: types.ErrInvalidInstructionData},
	}, time.Millisecond)
	m.ObserveTransaction(&types.TransactionResult{Error: errors.New("blockhash not found")}, time.Millisecond)

	tests := []struct {
		result string
		want   float64
	}{
		{"success", 1},
		{"custom_error", 1},
		{"instruction_error", 1},
		{"rejected", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.TransactionsTotal.WithLabelValues(tt.result)); got != tt.want {
			t.Errorf("transactions_total{result=%q} = %v, want %v", tt.result, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(m.CurrentSlot); got != 7 {
		t.Errorf("expected slot 7, got %v", got)
	}
	if got := testutil.CollectAndCount(m.TransactionDuration); got != 1 {
		t.Errorf("expected one duration series, got %d", got)
	}
}

func TestObserveInstruction(t *testing.T) {
	m := NewMetrics()

	m.ObserveInstruction("pixel_battle", nil)
	m.ObserveInstruction("pixel_battle", types.CustomError(3))
	m.ObserveInstruction("system_program", nil)

	if got := testutil.ToFloat64(m.InstructionsTotal.WithLabelValues("pixel_battle", "success")); got != 1 {
		t.Errorf("expected 1 successful pixel_battle invocation, got %v", got)
	}
	if got := testutil.ToFloat64(m.InstructionsTotal.WithLabelValues("pixel_battle", "error")); got != 1 {
		t.Errorf("expected 1 failed pixel_battle invocation, got %v", got)
	}
	if got := testutil.CollectAndCount(m.InstructionsTotal); got != 3 {
		t.Errorf("expected 3 series, got %d", got)
	}
}

func TestObserveAirdropAndRPC(t *testing.T) {
	m := NewMetrics()

	m.ObserveAirdrop(1_000)
	m.ObserveAirdrop(500)
	m.ObserveRPCRequest("getBoard", nil)
	m.ObserveRPCRequest("sendTransaction", errors.New("boom"))

	if got := testutil.ToFloat64(m.AirdropsTotal); got != 2 {
		t.Errorf("expected 2 airdrops, got %v", got)
	}
	if got := testutil.ToFloat64(m.AirdropLamports); got != 1500 {
		t.Errorf("expected 1500 lamports, got %v", got)
	}
	if got := testutil.ToFloat64(m.RPCRequestsTotal.WithLabelValues("sendTransaction", "error")); got != 1 {
		t.Errorf("expected 1 failed sendTransaction, got %v", got)
	}
}

func TestDefaultMetrics(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("expected DefaultMetrics to return the same instance")
	}
}

type fakeState struct {
	slot     types.Slot
	accounts uint64
}

func (f fakeState) Slot() types.Slot      { return f.slot }
func (f fakeState) AccountsCount() uint64 { return f.accounts }

func TestBankCollector(t *testing.T) {
	m := NewMetrics()
	bc := NewBankCollector(m, fakeState{slot: 42, accounts: 9}, time.Hour)

	bc.Collect()

	if got := testutil.ToFloat64(m.CurrentSlot); got != 42 {
		t.Errorf("expected slot 42, got %v", got)
	}
	if got := testutil.ToFloat64(m.AccountsCount); got != 9 {
		t.Errorf("expected 9 accounts, got %v", got)
	}

	bc.Stop()
	bc.Stop()
}

func TestCollectorManager(t *testing.T) {
	m := NewMetrics()
	cm := NewCollectorManager()
	cm.Add(NewBankCollector(m, fakeState{slot: 3}, time.Hour))

	cm.CollectAll()
	if got := testutil.ToFloat64(m.CurrentSlot); got != 3 {
		t.Errorf("expected slot 3, got %v", got)
	}

	cm.Start()
	cm.Start()
	cm.Stop()
	cm.Stop()
}

func TestHealthChecker(t *testing.T) {
	h := NewHealthChecker()

	if !h.IsHealthy() {
		t.Error("expected healthy before any check")
	}
	if h.IsReady() {
		t.Error("expected not ready before any check")
	}

	h.SetReady(true)
	if !h.IsReady() {
		t.Error("expected ready after SetReady")
	}

	failing := true
	h.RegisterCheck("accounts_db", ErrorCheck(func(context.Context) error {
		if failing {
			return errors.New("closed")
		}
		return nil
	}))

	status := h.Check(context.Background())
	if status.Healthy || status.Ready {
		t.Error("expected failing check to mark unhealthy and not ready")
	}
	if status.Message != "accounts_db: closed" {
		t.Errorf("unexpected message %q", status.Message)
	}
	if _, ok := status.Checks["accounts_db"]; !ok {
		t.Error("expected accounts_db in checks")
	}

	failing = false
	if status := h.Check(context.Background()); !status.Healthy || !status.Ready {
		t.Error("expected passing check to mark healthy and ready")
	}

	h.UnregisterCheck("accounts_db")
	if status := h.Check(context.Background()); len(status.Checks) != 0 {
		t.Errorf("expected no checks, got %d", len(status.Checks))
	}
}

func TestServerHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveAirdrop(10)
	h := NewHealthChecker()
	s := NewServer(WithMetrics(m), WithHealthChecker(h))

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + DefaultMetricsPath)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "pixelbattle_bank_airdrops_total 1") {
		t.Errorf("metrics output missing airdrop counter:\n%s", body)
	}

	resp, err = http.Get(ts.URL + DefaultReadyPath)
	if err != nil {
		t.Fatalf("GET ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before ready, got %d", resp.StatusCode)
	}

	h.SetReady(true)
	resp, err = http.Get(ts.URL + DefaultReadyPath)
	if err != nil {
		t.Fatalf("GET ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 when ready, got %d", resp.StatusCode)
	}

	h.RegisterCheck("bank", ErrorCheck(func(context.Context) error { return errors.New("stalled") }))
	h.Check(context.Background())
	resp, err = http.Get(ts.URL + DefaultHealthPath)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when unhealthy, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "stalled") {
		t.Errorf("health body missing message: %s", body)
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(WithMetrics(NewMetrics()), WithAddr("127.0.0.1:0"))

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected running")
	}
	if err := s.Start(); err == nil {
		t.Error("expected error starting twice")
	}

	resp, err := http.Get("http://" + s.Addr() + DefaultHealthPath)
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("failed to stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("expected stopped")
	}
}
