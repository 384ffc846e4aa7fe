package filter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gatekeeper/internal/attemptlog"
	"gatekeeper/internal/domain"
	"gatekeeper/internal/geo"
	"gatekeeper/internal/registry"
)

type stubResolver struct {
	code string
}

func (s stubResolver) ResolveCode(_ context.Context, _ string) string {
	return s.code
}

func TestCheckAllowsUnblockedCountry(t *testing.T) {
	reg := registry.New()
	attempts := attemptlog.New()
	f := New(reg, stubResolver{code: "FR"}, attempts)

	decision := f.Check(context.Background(), "203.0.113.1")
	if !decision.Allowed {
		t.Fatal("request from an unblocked country must be allowed")
	}
	if decision.CountryCode != "FR" {
		t.Fatalf("decision country = %q, want FR", decision.CountryCode)
	}
	if attempts.Len() != 0 {
		t.Fatal("allowed requests must not be recorded")
	}
}

func TestCheckDeniesBlockedCountryAndRecordsAttempt(t *testing.T) {
	reg := registry.New()
	if err := reg.AddPermanent(domain.Country{Code: "RU", Name: "Russia"}); err != nil {
		t.Fatalf("AddPermanent returned error: %v", err)
	}
	attempts := attemptlog.New()

	var denied []string
	f := New(reg, stubResolver{code: "RU"}, attempts)
	f.OnDeny = func(code string) { denied = append(denied, code) }

	decision := f.Check(context.Background(), "203.0.113.1")
	if decision.Allowed {
		t.Fatal("request from a blocked country must be denied")
	}

	recorded := attempts.List(1, 10)
	if len(recorded) != 1 {
		t.Fatalf("attempt log has %d entries, want 1", len(recorded))
	}
	attempt := recorded[0]
	if attempt.IPAddress != "203.0.113.1" || attempt.CountryCode != "RU" || attempt.Status != domain.StatusBlocked {
		t.Fatalf("recorded attempt = %+v", attempt)
	}
	if len(denied) != 1 || denied[0] != "RU" {
		t.Fatalf("OnDeny saw %v, want [RU]", denied)
	}
}

func TestCheckFailsOpenOnUnknown(t *testing.T) {
	reg := registry.New()
	if err := reg.AddPermanent(domain.Country{Code: "RU", Name: "Russia"}); err != nil {
		t.Fatalf("AddPermanent returned error: %v", err)
	}
	attempts := attemptlog.New()
	f := New(reg, stubResolver{code: geo.UnknownCountry}, attempts)

	decision := f.Check(context.Background(), "")
	if !decision.Allowed {
		t.Fatal("an unresolvable request must be allowed")
	}
	if decision.CountryCode != geo.UnknownCountry {
		t.Fatalf("decision country = %q, want UNKNOWN", decision.CountryCode)
	}
	if attempts.Len() != 0 {
		t.Fatal("fail-open decisions must not be recorded")
	}
}

func TestMiddlewareBlocksAndExempts(t *testing.T) {
	reg := registry.New()
	if _, err := reg.AddTemporal("DE", "Germany", time.Minute); err != nil {
		t.Fatalf("AddTemporal returned error: %v", err)
	}
	f := New(reg, stubResolver{code: "DE"}, attemptlog.New())

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	exempt := map[string]struct{}{"/check": {}}
	handler := f.Middleware(exempt, next)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/blocked", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "Access from DE is blocked") {
		t.Fatalf("body = %q, want the blocked-country message", recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodGet, "/check", nil)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("exempt path status = %d, want 200", recorder.Code)
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{
			name:    "cloudflare header wins",
			headers: map[string]string{"CF-Connecting-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.9"},
			remote:  "192.0.2.1:4711",
			want:    "198.51.100.7",
		},
		{
			name:    "first forwarded hop",
			headers: map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"},
			remote:  "192.0.2.1:4711",
			want:    "203.0.113.9",
		},
		{
			name:   "socket address fallback",
			remote: "192.0.2.1:4711",
			want:   "192.0.2.1",
		},
		{
			name:   "remote without port",
			remote: "192.0.2.1",
			want:   "192.0.2.1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			request.RemoteAddr = tc.remote
			for key, value := range tc.headers {
				request.Header.Set(key, value)
			}

			if got := ClientIP(request); got != tc.want {
				t.Fatalf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}
