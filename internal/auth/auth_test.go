package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{
			name:   "valid bearer key",
			header: "Bearer wsk_abcdef1234567890",
			want:   "wsk_abcdef1234567890",
		},
		{
			name:   "lowercase bearer scheme",
			header: "bearer wsk_abcdef1234567890",
			want:   "wsk_abcdef1234567890",
		},
		{
			name:   "mixed case bearer scheme",
			header: "BeArEr wsk_abcdef1234567890",
			want:   "wsk_abcdef1234567890",
		},
		{
			name:   "bare key without scheme",
			header: "wsk_abcdef1234567890",
			want:   "wsk_abcdef1234567890",
		},
		{
			name:   "surrounding whitespace trimmed",
			header: "Bearer   wsk_abcdef1234567890  ",
			want:   "wsk_abcdef1234567890",
		},
		{
			name:    "missing header",
			header:  "",
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "wrong key prefix",
			header:  "Bearer sk_abcdef1234567890",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "bearer with empty token",
			header:  "Bearer ",
			wantErr: ErrInvalidAPIKey,
		},
		{
			name:    "basic auth scheme rejected",
			header:  "Basic d3NrX2FiYzoxMjM=",
			wantErr: ErrInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/projects", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got, err := ExtractAPIKey(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected key %q, got %q", tt.want, got)
			}
		})
	}
}
