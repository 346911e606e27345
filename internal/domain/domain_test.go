package domain

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	cases := []struct {
		in   string
		want Window
	}{
		{"1h", Window1h},
		{"6h", Window6h},
		{"24h", Window24h},
		{"7d", Window7d},
		{"30d", Window30d},
		{"", Window24h},
		{"12h", Window24h},
		{"banana", Window24h},
	}
	for _, c := range cases {
		if got := ParseWindow(c.in); got != c.want {
			t.Fatalf("ParseWindow(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := Window1h.Start(now); !got.Equal(now.Add(-time.Hour)) {
		t.Fatalf("1h start = %v", got)
	}
	if got := Window7d.Start(now); !got.Equal(now.Add(-7*24*time.Hour)) {
		t.Fatalf("7d start = %v", got)
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 100},
		{-5, 100},
		{1, 1},
		{250, 250},
		{1000, 1000},
		{5000, 1000},
	}
	for _, c := range cases {
		if got := ClampLimit(c.in); got != c.want {
			t.Fatalf("ClampLimit(%d)=%d want %d", c.in, got, c.want)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("api", "Timeout", "upstream 504", "/v1/x")
	b := Fingerprint("api", "Timeout", "upstream 504", "/v1/x")
	if a != b {
		t.Fatalf("same inputs gave %q and %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("want 16 hex chars, got %q", a)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := Fingerprint("api", "Timeout", "upstream 504", "/v1/x")
	variants := []string{
		Fingerprint("web", "Timeout", "upstream 504", "/v1/x"),
		Fingerprint("api", "DBError", "upstream 504", "/v1/x"),
		Fingerprint("api", "Timeout", "upstream 503", "/v1/x"),
		Fingerprint("api", "Timeout", "upstream 504", "/v1/y"),
		Fingerprint("api", "Timeout", "upstream 504", ""),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d collided with base %q", i, base)
		}
	}
}

func TestIncidentTransitions(t *testing.T) {
	cases := []struct {
		from, to IncidentStatus
		ok       bool
	}{
		{IncidentOpen, IncidentAcknowledged, true},
		{IncidentOpen, IncidentResolved, true},
		{IncidentAcknowledged, IncidentResolved, true},
		{IncidentAcknowledged, IncidentOpen, false},
		{IncidentResolved, IncidentAcknowledged, false},
		{IncidentResolved, IncidentOpen, false},
		{IncidentResolved, IncidentResolved, false},
		{IncidentOpen, IncidentOpen, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Fatalf("%s->%s = %v want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestIncidentStatusActive(t *testing.T) {
	if !IncidentOpen.Active() || !IncidentAcknowledged.Active() {
		t.Fatal("open and acknowledged should be active")
	}
	if IncidentResolved.Active() {
		t.Fatal("resolved should not be active")
	}
	if IncidentStatus("bogus").Valid() {
		t.Fatal("bogus should not be valid")
	}
}

func TestUptimeValueDefaults(t *testing.T) {
	r := UptimeDailyRecord{ServiceName: "api", Date: time.Now()}
	if r.UptimeValue() != 100 {
		t.Fatalf("missing percent should read 100, got %f", r.UptimeValue())
	}
	v := 97.5
	r.UptimePercent = &v
	if r.UptimeValue() != 97.5 {
		t.Fatalf("got %f", r.UptimeValue())
	}
}
