package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	coreconfig "postsaver/core/config"
	"postsaver/internal/auth"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(coreconfig.IdentityConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
}

func TestFullHandshake(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "connect")
		json.NewEncoder(w).Encode(map[string]string{"session_id": "s-1"})
	})
	mux.HandleFunc("/v1/sessions/s-1/code", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Phone string `json:"phone"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		if in.Phone != "+1234567890" {
			t.Errorf("phone %q", in.Phone)
		}
		calls = append(calls, "code")
	})
	mux.HandleFunc("/v1/sessions/s-1/verify", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "verify")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/v1/sessions/s-1", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "disconnect")
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	conn, err := c.Connect(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.RequestCode(ctx, "+1234567890"); err != nil {
		t.Fatal(err)
	}
	res, err := conn.SubmitCode(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if res != auth.ResultAuthenticated {
		t.Fatalf("result %v", res)
	}
	if err := conn.Disconnect(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{"connect", "code", "verify", "disconnect"}
	if len(calls) != len(want) {
		t.Fatalf("calls %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls %v", calls)
		}
	}
}

func TestSecondFactorRequired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"session_id": "s-2"})
	})
	mux.HandleFunc("/v1/sessions/s-2/verify", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "second_factor_required"})
	})
	mux.HandleFunc("/v1/sessions/s-2/second-factor", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Secret string `json:"secret"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		if in.Secret != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	conn, err := c.Connect(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	res, err := conn.SubmitCode(ctx, "12345")
	if err != nil {
		t.Fatal(err)
	}
	if res != auth.ResultNeedsSecondFactor {
		t.Fatalf("result %v", res)
	}
	if err := conn.SubmitSecondFactor(ctx, "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err %v", err)
	}
	if err := conn.SubmitSecondFactor(ctx, "hunter2"); err != nil {
		t.Fatal(err)
	}
}

func TestUnauthorizedMapsToCredentialError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"session_id": "s-3"})
	})
	mux.HandleFunc("/v1/sessions/s-3/verify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, mux)
	conn, err := c.Connect(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.SubmitCode(context.Background(), "00000")
	if !auth.IsCredential(err) {
		t.Fatalf("err %v", err)
	}
}

func TestServerErrorIsNotCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := newTestClient(t, mux)
	_, err := c.Connect(context.Background(), 7)
	if err == nil || auth.IsCredential(err) {
		t.Fatalf("err %v", err)
	}
}

func TestConnectRejectsEmptySessionID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	})

	c := newTestClient(t, mux)
	if _, err := c.Connect(context.Background(), 7); err == nil {
		t.Fatal("expected error for empty session id")
	}
}
