package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAuth implements Authenticator for testing
type fakeAuth struct {
	mu     sync.Mutex
	token  string
	fresh  string
	ok     bool
	calls  int
	stales []string
}

func (f *fakeAuth) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeAuth) Reauthenticate(ctx context.Context, staleToken string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.stales = append(f.stales, staleToken)
	if !f.ok {
		return "", false
	}
	f.token = f.fresh
	return f.fresh, true
}

func TestSend_DecodesJSONWithBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/profile/" {
			t.Errorf("Expected path /api/v1/profile/, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("Expected bearer access-1, got %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("Expected X-Request-ID header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"alice"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/api/v1/")
	client.SetAuthenticator(&fakeAuth{token: "access-1"})

	var out struct {
		Username string `json:"username"`
	}
	status, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/profile/"}, &out)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}
	if out.Username != "alice" {
		t.Errorf("Expected username alice, got %s", out.Username)
	}
}

func TestSend_ExplicitTokenWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer explicit" {
			t.Errorf("Expected explicit bearer token, got %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetAuthenticator(&fakeAuth{token: "ambient"})

	if _, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/x/", Token: "explicit"}, nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
}

func TestSend_PublicRequestSkipsAuth(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "" {
			t.Error("Expected no Authorization header on public request")
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	}))
	defer server.Close()

	auth := &fakeAuth{token: "access-1", fresh: "access-2", ok: true}
	client := NewClient(server.URL)
	client.SetAuthenticator(auth)

	status, err := client.Send(context.Background(), &Request{Method: http.MethodPost, Path: "/token/", JSON: map[string]string{"username": "a"}, Public: true}, nil)

	if status != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", status)
	}
	if Detail(err) != "No active account found with the given credentials" {
		t.Errorf("Unexpected detail: %q", Detail(err))
	}
	if auth.calls != 0 {
		t.Errorf("Expected no reauthentication, got %d", auth.calls)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", hits.Load())
	}
}

func TestSend_RetriesOnceAfterReauthentication(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"title":"hello"}` {
			t.Errorf("Expected replayed body, got %q", body)
		}
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Token expired"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	auth := &fakeAuth{token: "stale", fresh: "fresh", ok: true}
	client := NewClient(server.URL)
	client.SetAuthenticator(auth)

	var out map[string]bool
	status, err := client.Send(context.Background(), &Request{Method: http.MethodPost, Path: "/post-create/", JSON: map[string]string{"title": "hello"}}, &out)

	if err != nil {
		t.Fatalf("Expected success after retry, got: %v", err)
	}
	if status != http.StatusOK || !out["ok"] {
		t.Errorf("Unexpected result: status=%d out=%v", status, out)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected 2 requests, got %d", hits.Load())
	}
	if auth.calls != 1 || auth.stales[0] != "stale" {
		t.Errorf("Expected one reauthentication with stale token, got %d %v", auth.calls, auth.stales)
	}
}

func TestSend_RetriesAtMostOnce(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"still no"}`))
	}))
	defer server.Close()

	auth := &fakeAuth{token: "a", fresh: "b", ok: true}
	client := NewClient(server.URL)
	client.SetAuthenticator(auth)

	_, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/post-list/"}, nil)

	if !IsUnauthorized(err) {
		t.Errorf("Expected 401 error, got: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("Expected exactly 2 requests, got %d", hits.Load())
	}
	if auth.calls != 1 {
		t.Errorf("Expected 1 reauthentication, got %d", auth.calls)
	}
}

func TestSend_ReauthenticationFailurePropagatesOriginalError(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetAuthenticator(&fakeAuth{token: "a"})

	status, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/profile/"}, nil)

	if status != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", status)
	}
	if Detail(err) != "Given token not valid for any token type" {
		t.Errorf("Expected original detail, got %q", Detail(err))
	}
	if hits.Load() != 1 {
		t.Errorf("Expected no replay, got %d requests", hits.Load())
	}
}

func TestSend_FormBodyReplayedOnRetry(t *testing.T) {
	var titles []string
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart: %v", err)
		}
		mu.Lock()
		titles = append(titles, r.FormValue("title"))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetAuthenticator(&fakeAuth{token: "stale", fresh: "fresh", ok: true})

	form := NewForm().Set("title", "Go tips").AddFile("image", "a.png", strings.NewReader("png"))
	status, err := client.Send(context.Background(), &Request{Method: http.MethodPost, Path: "/post-create/", Form: form}, nil)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status != http.StatusCreated {
		t.Errorf("Expected 201, got %d", status)
	}
	if len(titles) != 2 || titles[0] != "Go tips" || titles[1] != "Go tips" {
		t.Errorf("Expected title sent twice, got %v", titles)
	}
}

func TestSend_HTTPErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantDetail string
	}{
		{"Bad Request", http.StatusBadRequest, `{"title":["This field is required."]}`, ""},
		{"Not Found", http.StatusNotFound, `{"detail":"Not found."}`, "Not found."},
		{"Forbidden", http.StatusForbidden, `{"detail":"You do not have permission to perform this action."}`, "You do not have permission to perform this action."},
		{"Internal Server Error", http.StatusInternalServerError, `<html>oops</html>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			status, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/post-detail/x/"}, nil)

			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *Error, got %T: %v", err, err)
			}
			if status != tt.statusCode || apiErr.StatusCode != tt.statusCode {
				t.Errorf("Expected status %d, got %d/%d", tt.statusCode, status, apiErr.StatusCode)
			}
			if Detail(err) != tt.wantDetail {
				t.Errorf("Expected detail %q, got %q", tt.wantDetail, Detail(err))
			}
		})
	}
}

func TestSend_NoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var out map[string]any
	status, err := client.Send(context.Background(), &Request{Method: http.MethodDelete, Path: "/post-delete/x/"}, &out)

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", status)
	}
}

func TestSend_InvalidJSONResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	var out map[string]any
	_, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/categories/"}, &out)

	if err == nil || !strings.Contains(err.Error(), "failed to decode") {
		t.Errorf("Expected decode error, got: %v", err)
	}
}

func TestSend_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Send(ctx, &Request{Method: http.MethodGet, Path: "/categories/"}, nil)
	if err == nil {
		t.Error("Expected error for context timeout")
	}
}

func TestSend_NetworkError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", WithTimeout(time.Second))

	status, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/categories/"}, nil)
	if err == nil {
		t.Fatal("Expected network error")
	}
	if status != 0 || StatusCode(err) != 0 {
		t.Errorf("Expected no status for network error, got %d", status)
	}
}

func TestWithRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRateLimit(0.001, 1))

	if _, err := client.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/categories/"}, nil); err != nil {
		t.Fatalf("First request should use the burst, got: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Send(ctx, &Request{Method: http.MethodGet, Path: "/categories/"}, nil)
	if err == nil || !strings.Contains(err.Error(), "rate limiter") {
		t.Errorf("Expected rate limiter error, got: %v", err)
	}
}

func TestRequestEncode(t *testing.T) {
	body, contentType, err := (&Request{JSON: map[string]string{"refresh": "r"}}).encode()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Expected application/json, got %s", contentType)
	}
	var decoded map[string]string
	if err := json.Unmarshal(body, &decoded); err != nil || decoded["refresh"] != "r" {
		t.Errorf("Unexpected body %s", body)
	}

	body, contentType, err = (&Request{}).encode()
	if err != nil || body != nil || contentType != "" {
		t.Errorf("Expected empty body, got %q %q %v", body, contentType, err)
	}
}

func TestEndpointLabel(t *testing.T) {
	tests := map[string]string{
		"/post-detail/my-first-post/": "post-detail",
		"/post-delete/abc/":           "post-delete",
		"/post-list/":                 "post-list",
		"/token/refresh/":             "token/refresh",
		"/profile/":                   "profile",
	}
	for path, want := range tests {
		if got := endpointLabel(path); got != want {
			t.Errorf("endpointLabel(%q) = %q, want %q", path, got, want)
		}
	}
}
