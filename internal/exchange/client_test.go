package exchange

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetRateCachesQuote(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		q := r.URL.Query()
		if q.Get("access_key") != "key" || q.Get("source") != "USD" || q.Get("currencies") != "BRL" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"success":true,"source":"USD","quotes":{"USDBRL":5.4321}}`)
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := New(Options{APIURL: srv.URL, APIKey: "key", HTTPClient: srv.Client(), Now: func() time.Time { return now }})

	if got := svc.GetRate(context.Background(), "usd", "brl"); got != 5.4321 {
		t.Fatalf("GetRate = %v, want 5.4321", got)
	}
	if got := svc.GetRate(context.Background(), "USD", "BRL"); got != 5.4321 {
		t.Fatalf("cached GetRate = %v", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("api hits = %d, want 1", hits.Load())
	}

	now = now.Add(13 * time.Hour)
	svc.GetRate(context.Background(), "USD", "BRL")
	if hits.Load() != 2 {
		t.Fatalf("expired entry should refetch, hits = %d", hits.Load())
	}
}

func TestGetRateFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"unsuccessful", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success":false,"error":{"code":101,"info":"invalid key"}}`)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `not json`) }},
		{"missing quote", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"success":true,"quotes":{}}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			svc := New(Options{APIURL: srv.URL, APIKey: "key", HTTPClient: srv.Client()})
			if got := svc.GetRate(context.Background(), "USD", "BRL"); got != DefaultFallbackRate {
				t.Fatalf("GetRate = %v, want fallback %v", got, DefaultFallbackRate)
			}
		})
	}
}

func TestGetRateUnreachable(t *testing.T) {
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	})}
	svc := New(Options{APIURL: "https://rates.invalid/live", APIKey: "key", HTTPClient: client, FallbackRate: 4.2})
	if got := svc.GetRate(context.Background(), "USD", "BRL"); got != 4.2 {
		t.Fatalf("GetRate = %v, want 4.2", got)
	}
}

func TestGetRateSameCurrency(t *testing.T) {
	svc := New(Options{})
	if got := svc.GetRate(context.Background(), "BRL", "brl"); got != 1 {
		t.Fatalf("GetRate(BRL, BRL) = %v, want 1", got)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		minor int64
		rate  float64
		want  int64
	}{
		{5000, 5.0, 25000},
		{1999, 5.4321, 10859},
		{100, 0.5, 50},
	}
	for _, tt := range tests {
		if got := Convert(tt.minor, tt.rate); got != tt.want {
			t.Fatalf("Convert(%d, %v) = %d, want %d", tt.minor, tt.rate, got, tt.want)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
