package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseStatement(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    error
	}{
		{
			name:       "marked",
			query:      "\n--sql 0f4ef1bf-9df1-4ba8-8754-90e8412fd7d6\nselect 1;\n",
			wantMarker: "0f4ef1bf-9df1-4ba8-8754-90e8412fd7d6",
			wantBody:   "select 1;",
		},
		{name: "empty", query: "  \n ", wantErr: ErrEmptyQuery},
		{name: "unmarked", query: "select 1", wantErr: ErrInvalidMarker},
		{name: "uppercase uuid", query: "--sql 0F4EF1BF-9DF1-4BA8-8754-90E8412FD7D6\nselect 1", wantErr: ErrInvalidMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := parseStatement(tt.query)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if st.marker != tt.wantMarker || st.body != tt.wantBody {
				t.Fatalf("got (%q, %q), want (%q, %q)", st.marker, st.body, tt.wantMarker, tt.wantBody)
			}
		})
	}
}

func TestRunnerRejectsUnmarkedStatements(t *testing.T) {
	r := &SQLRunner{Logger: zerolog.Nop()}
	ctx := context.Background()

	if _, err := r.Exec(ctx, "delete from gateway_events"); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("Exec err = %v", err)
	}
	if _, err := r.Query(ctx, "select * from recurring_boletos"); !errors.Is(err, ErrInvalidMarker) {
		t.Fatalf("Query err = %v", err)
	}
	var n int
	if err := r.QueryRow(ctx, "").Scan(&n); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("QueryRow err = %v", err)
	}
}

func TestValidMarker(t *testing.T) {
	if !ValidMarker("  --sql 8a8e0d52-7f5d-4f21-8b7d-f7d4b821eed7 ") {
		t.Fatalf("expected padded marker to be valid")
	}
	if ValidMarker("--sql 8a8e0d52") {
		t.Fatalf("expected short uuid to be rejected")
	}
}
