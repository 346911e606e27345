package errlog

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/opspulse/opspulse/internal/domain"
	"github.com/opspulse/opspulse/internal/repo/memory"
)

func TestLog_Validation(t *testing.T) {
	s := New(memory.New(), zap.NewNop())
	ctx := context.Background()

	cases := []Report{
		{ErrorType: "Timeout", ErrorMessage: "x"},
		{ServiceName: "api", ErrorMessage: "x"},
		{ServiceName: "api", ErrorType: "Timeout"},
		{ServiceName: "api", ErrorType: "Timeout", ErrorMessage: "x", UserImpact: "catastrophic"},
	}
	for i, rep := range cases {
		if _, err := s.Log(ctx, rep); !domain.IsValidation(err) {
			t.Fatalf("case %d: want ValidationError, got %v", i, err)
		}
	}
}

func TestLog_DefaultsAndFingerprint(t *testing.T) {
	store := memory.New()
	s := New(store, zap.NewNop())
	ctx := context.Background()

	rep := Report{
		ServiceName:  "api",
		ErrorType:    "Timeout",
		ErrorMessage: "upstream 504",
		Endpoint:     "/v1/x",
	}
	id1, err := s.Log(ctx, rep)
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	id2, err := s.Log(ctx, rep)
	if err != nil {
		t.Fatalf("log twice: %v", err)
	}
	if id1 == "" || id2 == "" || id1 == id2 {
		t.Fatalf("both entries should persist with distinct ids: %q %q", id1, id2)
	}

	res, err := s.Query(ctx, domain.Window1h, "", 100)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("want 2 entries, got %d", res.Total)
	}
	if res.Entries[0].ErrorHash != res.Entries[1].ErrorHash {
		t.Fatalf("identical reports should share a hash")
	}
	if res.Entries[0].UserImpact != domain.ImpactMinor {
		t.Fatalf("impact should default to minor, got %s", res.Entries[0].UserImpact)
	}
	if res.Counts["Timeout"] != 2 {
		t.Fatalf("want counts.Timeout = 2, got %d", res.Counts["Timeout"])
	}
}

func TestQuery_CountsCoverOnlyReturnedSet(t *testing.T) {
	store := memory.New()
	s := New(store, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Log(ctx, Report{ServiceName: "api", ErrorType: "Timeout", ErrorMessage: "x"}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	res, err := s.Query(ctx, domain.Window24h, "", 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("want 3 after cap, got %d", res.Total)
	}
	if res.Counts["Timeout"] != 3 {
		t.Fatalf("counts should cover the returned set only, got %d", res.Counts["Timeout"])
	}
}

func TestQuery_ServiceFilter(t *testing.T) {
	store := memory.New()
	s := New(store, zap.NewNop())
	ctx := context.Background()

	_, _ = s.Log(ctx, Report{ServiceName: "api", ErrorType: "Timeout", ErrorMessage: "x"})
	_, _ = s.Log(ctx, Report{ServiceName: "web", ErrorType: "JSError", ErrorMessage: "y"})

	res, _ := s.Query(ctx, domain.Window24h, "web", 100)
	if res.Total != 1 || res.Entries[0].ServiceName != "web" {
		t.Fatalf("filter failed: %+v", res)
	}
}
