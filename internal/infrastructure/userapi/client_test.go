package userapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smartsite/edge-gateway/internal/infrastructure/userapi"
)

func TestClient_Exists(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"profile found", http.StatusOK, true},
		{"profile missing", http.StatusNotFound, false},
		// Ambiguous backend answers fail open so an onboarded user is never
		// bounced back into onboarding by a flaky backend.
		{"server error fails open", http.StatusInternalServerError, true},
		{"bad gateway fails open", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{}`)
			}))
			defer server.Close()

			client := userapi.NewClient(server.URL, 2*time.Second, zerolog.Nop())
			got, err := client.Exists(context.Background(), "user-42")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Exists = %v, want %v", got, tt.want)
			}
			if gotPath != "/api/v2/desktop/user/getPrivyUser/user-42" {
				t.Fatalf("path = %q", gotPath)
			}
		})
	}
}

func TestClient_ExistsTransportError(t *testing.T) {
	client := userapi.NewClient("http://127.0.0.1:1", 200*time.Millisecond, zerolog.Nop())
	if _, err := client.Exists(context.Background(), "user-42"); err == nil {
		t.Fatal("expected transport error")
	}
}
