package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func do(t *testing.T, h http.Handler, key string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub"}, Admin: []string{"adm"}}
	h := RequireAny(keys)(okHandler)

	if code := do(t, h, "pub"); code != 200 {
		t.Fatalf("public key should pass, got %d", code)
	}
	if code := do(t, h, "adm"); code != 200 {
		t.Fatalf("admin key should pass, got %d", code)
	}
	if code := do(t, h, "wrong"); code != 401 {
		t.Fatalf("bad key should be 401, got %d", code)
	}
	if code := do(t, h, ""); code != 401 {
		t.Fatalf("missing key should be 401, got %d", code)
	}

	// no keys configured -> open
	if code := do(t, RequireAny(Keys{})(okHandler), ""); code != 200 {
		t.Fatalf("unconfigured auth should allow, got %d", code)
	}
}

func TestRequireAdmin(t *testing.T) {
	keys := Keys{Public: []string{"pub"}, Admin: []string{"adm"}}
	h := RequireAdmin(keys)(okHandler)

	if code := do(t, h, "adm"); code != 200 {
		t.Fatalf("admin key should pass, got %d", code)
	}
	if code := do(t, h, "pub"); code != 403 {
		t.Fatalf("public key should be forbidden, got %d", code)
	}
	if code := do(t, h, ""); code != 403 {
		t.Fatalf("missing key should be forbidden, got %d", code)
	}
}

func TestBearerHeaderAccepted(t *testing.T) {
	keys := Keys{Admin: []string{"adm"}}
	h := RequireAdmin(keys)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer adm")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("bearer token should pass, got %d", rec.Code)
	}
}

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	h := RateLimit(60, 2)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != 200 {
			t.Fatalf("want 200 within burst, got %d", rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 429 {
		t.Fatalf("want 429 after burst, got %d", rec.Code)
	}

	// refill at 1 token/s
	time.Sleep(1100 * time.Millisecond)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("want 200 after refill, got %d", rec.Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != 200 {
			t.Fatalf("disabled limiter should always allow, got %d", rec.Code)
		}
	}
}
