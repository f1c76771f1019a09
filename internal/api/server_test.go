package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hul1hu/mediadrive/internal/auth"
	"github.com/hul1hu/mediadrive/internal/graph"
	"github.com/hul1hu/mediadrive/internal/history"
)

// fakeStore is an in-memory HistoryStore. List mirrors the real store's
// contract: newest first, capped at history.ListLimit.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]history.User
	entries   map[string][]history.Entry
	upsertErr error
	appendErr error
	listErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]history.User{},
		entries: map[string][]history.Entry{},
	}
}

func (f *fakeStore) UpsertUser(ctx context.Context, u history.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) Append(ctx context.Context, userID, itemID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	entry := history.Entry{ItemID: itemID, Name: name, Timestamp: time.Now()}
	f.entries[userID] = append([]history.Entry{entry}, f.entries[userID]...)
	return nil
}

func (f *fakeStore) List(ctx context.Context, userID string) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	entries := f.entries[userID]
	if len(entries) > history.ListLimit {
		entries = entries[:history.ListLimit]
	}
	out := make([]history.Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// graphStub fakes the Graph API and the pre-authenticated download host.
type graphStub struct {
	srv *httptest.Server

	mu       sync.Mutex
	requests int

	meStatus    int
	userJSON    string
	items       map[string]map[string]any
	children    map[string][]map[string]any
	listStatus  int
	files       map[string][]byte
	rejectRange bool
}

func newGraphStub(t *testing.T) *graphStub {
	t.Helper()
	g := &graphStub{
		meStatus: http.StatusOK,
		userJSON: `{"id":"u1","displayName":"Test User","mail":"test@example.com"}`,
		items:    map[string]map[string]any{},
		children: map[string][]map[string]any{},
		files:    map[string][]byte{},
	}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *graphStub) hits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests
}

// addFile registers an item with byte content served from the stub's
// download host.
func (g *graphStub) addFile(id, name string, data []byte, mimeType string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[id] = data
	g.items[id] = map[string]any{
		"id":   id,
		"name": name,
		"size": len(data),
		"file": map[string]any{"mimeType": mimeType},
		"@microsoft.graph.downloadUrl": g.srv.URL + "/download/" + id,
	}
}

func (g *graphStub) serve(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.requests++
	path := r.URL.Path
	g.mu.Unlock()

	switch {
	case path == "/me":
		if g.meStatus != http.StatusOK {
			w.WriteHeader(g.meStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, g.userJSON)

	case path == "/me/drive/root/children":
		g.writeList(w, g.children["root"])

	case strings.HasPrefix(path, "/me/drive/root/search"):
		g.writeList(w, g.children["search"])

	case strings.HasPrefix(path, "/me/drive/items/"):
		rest := strings.TrimPrefix(path, "/me/drive/items/")
		if id, ok := strings.CutSuffix(rest, "/children"); ok {
			g.writeList(w, g.children[id])
			return
		}
		item, ok := g.items[rest]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(item)

	case strings.HasPrefix(path, "/download/"):
		g.serveDownload(w, r, strings.TrimPrefix(path, "/download/"))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (g *graphStub) writeList(w http.ResponseWriter, items []map[string]any) {
	if g.listStatus != 0 {
		w.WriteHeader(g.listStatus)
		return
	}
	if items == nil {
		items = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"value": items})
}

func (g *graphStub) serveDownload(w http.ResponseWriter, r *http.Request, id string) {
	data, ok := g.files[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	if g.rejectRange {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var start, end int
	if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil || start < 0 || end >= len(data) || start > end {
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

const testFrontendURL = "https://app.example.com"

func newTestServer(t *testing.T, stub *graphStub, store HistoryStore) http.Handler {
	t.Helper()
	if store == nil {
		store = newFakeStore()
	}
	graphClient := graph.New(graph.Config{
		BaseURL:   stub.srv.URL,
		CacheSize: 16,
		CacheTTL:  time.Minute,
	})
	gateway := auth.New(auth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TenantID:     "common",
		RedirectURI:  "http://localhost:8080/api/auth/callback",
		StateSecret:  "test-state-secret",
	})
	return NewServer(graphClient, gateway, store, testFrontendURL).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, target, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, newGraphStub(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/api/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "healthy" {
		t.Errorf("expected status healthy, got %q", body["status"])
	}
	if body["service"] != ServiceName {
		t.Errorf("expected service %q, got %q", ServiceName, body["service"])
	}
}

func TestCORSHeadersOnResponses(t *testing.T) {
	h := newTestServer(t, newGraphStub(t), nil)

	rec := doRequest(t, h, http.MethodGet, "/api/health", "", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Access-Control-Allow-Origin *, got %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, newGraphStub(t), nil)

	rec := doRequest(t, h, http.MethodOptions, "/api/watch-history", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("expected POST in allowed methods, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("expected Authorization in allowed headers, got %q", got)
	}
}

func TestProtectedEndpointsRequireToken(t *testing.T) {
	stub := newGraphStub(t)
	h := newTestServer(t, stub, nil)

	paths := []string{
		"/api/explorer/browse",
		"/api/explorer/search?q=x",
		"/api/files",
		"/api/stream/abc",
		"/api/watch-history",
	}
	for _, path := range paths {
		rec := doRequest(t, h, http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without token, got %d", path, rec.Code)
		}
		var body ErrorResponse
		decodeBody(t, rec, &body)
		if body.Error != "Authorization required" {
			t.Errorf("%s: expected Authorization required, got %q", path, body.Error)
		}
	}
	if stub.hits() != 0 {
		t.Errorf("expected no upstream calls for unauthenticated requests, got %d", stub.hits())
	}
}

func TestTokenQueryParameterFallback(t *testing.T) {
	stub := newGraphStub(t)
	h := newTestServer(t, stub, nil)

	rec := doRequest(t, h, http.MethodGet, "/api/explorer/browse?token=tok", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token query parameter, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}
