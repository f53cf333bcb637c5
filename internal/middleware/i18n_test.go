package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDetectLocale(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		fallback string
		country  string
		want     string
	}{
		{
			name: "x-locale overrides",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "PT")
			},
			country: "US",
			want:    LocalePortuguese,
		},
		{
			name: "accept-language used",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-US,en;q=0.9")
			},
			country: "BR",
			want:    LocaleEnglish,
		},
		{
			name: "accept-language portuguese preference",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt-BR,en;q=0.8")
			},
			want: LocalePortuguese,
		},
		{
			name: "quality weights win over order",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en;q=0.5,pt-BR;q=0.9")
			},
			country: "US",
			want:    LocalePortuguese,
		},
		{
			name: "unparseable x-locale falls back to accept-language",
			setup: func(r *http.Request) {
				r.Header.Set("X-Locale", "not a locale!")
				r.Header.Set("Accept-Language", "pt")
			},
			want: LocalePortuguese,
		},
		{
			name: "unsupported language uses country",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "ja-JP")
			},
			country: "BR",
			want:    LocalePortuguese,
		},
		{
			name:    "brazil picks portuguese",
			country: "BR",
			want:    LocalePortuguese,
		},
		{
			name:    "other country falls back to en",
			country: "US",
			want:    LocaleEnglish,
		},
		{
			name:     "configured fallback",
			fallback: LocalePortuguese,
			want:     LocalePortuguese,
		},
		{
			name: "default to en",
			want: LocaleEnglish,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := detectLocale(req, tc.fallback, tc.country); got != tc.want {
				t.Fatalf("detectLocale() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResolveCountry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		resolver CountryLookup
		want     string
	}{
		{
			name: "header precedence",
			setup: func(r *http.Request) {
				r.Header.Set("X-Country-Code", "br")
				r.Header.Set("CF-IPCountry", "us")
			},
			want: "BR",
		},
		{
			name: "unknown edge country is skipped",
			setup: func(r *http.Request) {
				r.Header.Set("CF-IPCountry", "XX")
				r.Header.Set("X-Locale", "pt-PT")
			},
			want: "PT",
		},
		{
			name: "accept-language region",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "en-GB,en;q=0.9")
			},
			want: "GB",
		},
		{
			name: "bare portuguese means brazil",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "pt;q=0.8")
			},
			want: "BR",
		},
		{
			name: "non-country region ignored",
			setup: func(r *http.Request) {
				r.Header.Set("Accept-Language", "es-419")
			},
			want: "",
		},
		{
			name: "resolver fallback",
			resolver: func(ip string) (string, error) {
				if ip != "203.0.113.4" {
					t.Fatalf("unexpected ip: %s", ip)
				}
				return "br", nil
			},
			want: "BR",
		},
		{
			name: "resolver error returns empty",
			resolver: func(ip string) (string, error) {
				return "", assertError("boom")
			},
			want: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "203.0.113.4:80"
			if tc.setup != nil {
				tc.setup(req)
			}
			if got := ResolveCountry(req, tc.resolver); got != tc.want {
				t.Fatalf("ResolveCountry() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLocaleMiddlewareStoresCountry(t *testing.T) {
	var country, locale string
	h := Locale("", func(string) (string, error) { return "br", nil })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		country = CountryFromContext(r.Context())
		locale = LocaleFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/donations", nil))

	if country != "BR" || locale != LocalePortuguese {
		t.Fatalf("country/locale = %q/%q, want BR/%s", country, locale, LocalePortuguese)
	}
	if got := rec.Header().Get("Content-Language"); got != LocalePortuguese {
		t.Fatalf("Content-Language = %q", got)
	}
}

func TestLocaleFromContext(t *testing.T) {
	ctx := context.Background()
	if got := LocaleFromContext(ctx); got != LocaleEnglish {
		t.Fatalf("LocaleFromContext() default = %q, want %q", got, LocaleEnglish)
	}
	ctx = context.WithValue(ctx, LocaleKey, LocalePortuguese)
	if got := LocaleFromContext(ctx); got != LocalePortuguese {
		t.Fatalf("LocaleFromContext() with value = %q, want %q", got, LocalePortuguese)
	}
}
