package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMetricsWritePrometheus(t *testing.T) {
	m := NewMetrics()
	m.IncEnforcementItem("checkpoint", "spared")
	m.IncEnforcementItem("checkpoint", "spared")
	m.IncGradingResult("tier1", "fail")
	m.ObserveRail("stripe", "ok", 300*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`forfeit_enforcement_items_total{failure_type="checkpoint",outcome="spared"} 2`,
		`forfeit_grading_results_total{tier="tier1",verdict="fail"} 1`,
		`forfeit_rail_request_seconds_bucket{rail="stripe",status="ok",le="0.25"} 0`,
		`forfeit_rail_request_seconds_bucket{rail="stripe",status="ok",le="0.5"} 1`,
		`forfeit_rail_request_seconds_count{rail="stripe",status="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncEnforcementItem("final_deadline", "succeeded")
	m.ObserveRun("enforcement", time.Second)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil WritePrometheus: %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("api-key=abc, x-tenant = t1 ,broken,=nokey")
	if len(h) != 2 || h["api-key"] != "abc" || h["x-tenant"] != "t1" {
		t.Fatalf("parseHeaders: got %v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("parseHeaders empty: expected nil")
	}
}
