package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRouterRoot(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["service"] == "" {
		t.Error("root response missing service name")
	}
}

func TestRouterUnknownPath(t *testing.T) {
	stack := newTestStack(t)

	rec := stack.do(t, http.MethodGet, "/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", errResp.Error.Code, ErrCodeNotFound)
	}
}

func TestRouterMethodNotAllowed(t *testing.T) {
	stack := newTestStack(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/claims"},
		{http.MethodPost, "/discovery"},
		{http.MethodPost, "/users/u-1/standing"},
	} {
		rec := stack.do(t, tc.method, tc.path, nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tc.method, tc.path, rec.Code)
		}
	}
}
