package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProbe_Check(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"ok", http.StatusOK, "ready", ""},
		{"no content", http.StatusNoContent, "", ""},
		{"unavailable", http.StatusServiceUnavailable, "warming up", "server returned 503: warming up"},
		{"not found", http.StatusNotFound, "", "server returned 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUA string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUA = r.Header.Get("User-Agent")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := NewProbe(srv.Client(), "1.0.0").Check(context.Background(), srv.URL+"/ready")

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Check() = %v, want nil", err)
				}
			} else if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Check() = %v, want %q", err, tt.wantErr)
			}
			if !strings.HasPrefix(gotUA, "preflight/1.0.0") {
				t.Errorf("User-Agent = %q", gotUA)
			}
		})
	}
}

type failingClient struct{}

func (failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestProbe_TransportError(t *testing.T) {
	err := NewProbe(failingClient{}, "1.0.0").Check(context.Background(), "http://127.0.0.1:1/")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Check() = %v", err)
	}
}

func TestProbe_BadURL(t *testing.T) {
	if err := NewProbe(nil, "1.0.0").Check(context.Background(), "://bad"); err == nil {
		t.Error("Check() = nil for invalid URL")
	}
}
