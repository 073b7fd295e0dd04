package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-et/script-archive/archive-service/internal/lifecycle"
	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/analysis"
	"github.com/redhat-et/script-archive/pkg/auth"
	"github.com/redhat-et/script-archive/pkg/encryption"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/storage"
)

const (
	alice = "0xA11CE"
	bob   = "0xB0B"
)

// ticker returns a Now func that advances one second per call.
func ticker() func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

type testServer struct {
	handler http.Handler
	store   *storage.MemoryStorage
	events  *eventHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := storage.NewMemoryStorage()
	events := newEventHub(logger.Discard(logger.ComponentArchive))
	m, err := lifecycle.New(lifecycle.Options{
		Store:     store,
		Identity:  auth.RequestIdentity{},
		Encrypter: encryption.Opaque{},
		Analyzer:  analysis.Static{},
		Notifier:  events,
		Log:       logger.Discard(logger.ComponentLifecycle),
		Now:       ticker(),
	})
	require.NoError(t, err)

	svc := &ArchiveServer{
		manager:   m,
		pageSize:  5,
		topThemes: 5,
		log:       logger.Discard(logger.ComponentArchive),
	}
	mux := http.NewServeMux()
	svc.routes(mux)
	mux.Handle("GET /events", events)

	mw := &auth.Middleware{MockMode: true}
	return &testServer{handler: mw.Wrap(mux), store: store, events: events}
}

func (s *testServer) do(t *testing.T, method, path, account string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if account != "" {
		req.Header.Set(auth.AccountHeader, account)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(t *testing.T, title, era string) ScriptResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/scripts", alice, lifecycle.CreateRequest{
		Title: title, Era: era, Content: "Enter GHOST.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp ScriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCreateAndList(t *testing.T) {
	s := newTestServer(t)

	created := s.create(t, "Hamlet", "Elizabethan")
	assert.Equal(t, alice, created.Owner)
	assert.Equal(t, "pending", created.Status)
	assert.True(t, strings.HasPrefix(created.Content, "FHE-"))
	assert.Equal(t, []string{}, created.Themes)

	rec := s.do(t, http.MethodGet, "/scripts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, created.ID, list.Items[0].ID)
	assert.Equal(t, 1, list.Counts.Pending)
	assert.Equal(t, 5, list.PageSize)

	rec = s.do(t, http.MethodGet, "/scripts/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/scripts/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSearchAndPaging(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "Hamlet", "Elizabethan")
	s.create(t, "Medea", "Ancient")
	s.create(t, "Everyman", "Medieval")

	rec := s.do(t, http.MethodGet, "/scripts?q=ancient", "", nil)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Medea", list.Items[0].Title)
	assert.Equal(t, 3, list.Counts.Total)

	rec = s.do(t, http.MethodGet, "/scripts?page=2&page_size=2", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Page)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Items, 1)
	// newest first, so the oldest is alone on the last page
	assert.Equal(t, "Hamlet", list.Items[0].Title)
}

func TestLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "Hamlet", "Elizabethan")

	rec := s.do(t, http.MethodPost, "/scripts/"+created.ID+"/archive", alice, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "pending scripts cannot be archived")

	rec = s.do(t, http.MethodPost, "/scripts/"+created.ID+"/analyze", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analyzed ScriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analyzed))
	assert.Equal(t, "analyzed", analyzed.Status)
	assert.Equal(t, analysis.DefaultStaticResult.Themes, analyzed.Themes)

	rec = s.do(t, http.MethodGet, "/themes?top=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"theme":"Love"`)

	rec = s.do(t, http.MethodPost, "/scripts/"+created.ID+"/archive", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/scripts/"+created.ID, "", nil)
	var final ScriptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &final))
	assert.Equal(t, "archived", final.Status)
}

func TestMutationErrors(t *testing.T) {
	s := newTestServer(t)
	created := s.create(t, "Hamlet", "Elizabethan")

	tests := []struct {
		name    string
		method  string
		path    string
		account string
		body    any
		code    int
	}{
		{"no session", http.MethodPost, "/scripts", "", lifecycle.CreateRequest{Title: "X", Era: "Modern", Content: "x"}, http.StatusUnauthorized},
		{"bad era", http.MethodPost, "/scripts", alice, lifecycle.CreateRequest{Title: "X", Era: "Baroque", Content: "x"}, http.StatusBadRequest},
		{"empty title", http.MethodPost, "/scripts", alice, lifecycle.CreateRequest{Era: "Modern", Content: "x"}, http.StatusBadRequest},
		{"not owner", http.MethodPost, "/scripts/" + created.ID + "/analyze", bob, nil, http.StatusForbidden},
		{"unknown script", http.MethodPost, "/scripts/missing/analyze", alice, nil, http.StatusNotFound},
		{"repair without session", http.MethodPost, "/repair", "", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.account, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorOf(t, rec))
		})
	}
}

func TestCreate_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/scripts", strings.NewReader("{"))
	req.Header.Set(auth.AccountHeader, alice)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReload_LedgerDown(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "Hamlet", "Elizabethan")

	s.store.SetAvailable(false)
	rec := s.do(t, http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// the cached collection is still served
	rec = s.do(t, http.MethodGet, "/scripts", "", nil)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 1)

	s.store.SetAvailable(true)
	rec = s.do(t, http.MethodPost, "/reload", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRepair(t *testing.T) {
	s := newTestServer(t)
	s.create(t, "Hamlet", "Elizabethan")

	rec := s.do(t, http.MethodPost, "/repair", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report lifecycle.RepairReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Indexed)
	assert.Empty(t, report.Restored)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{lifecycle.ErrNotConnected, http.StatusUnauthorized},
		{&lifecycle.DeniedError{Reason: "caller is not the owner"}, http.StatusForbidden},
		{fmt.Errorf("x: %w", lifecycle.ErrNotFound), http.StatusNotFound},
		{lifecycle.ErrInvalidInput, http.StatusBadRequest},
		{lifecycle.ErrInvalidTransition, http.StatusConflict},
		{lifecycle.ErrInFlight, http.StatusConflict},
		{lifecycle.ErrUserRejected, http.StatusConflict},
		{&script.DecodeError{ID: "1", Reason: "not JSON"}, http.StatusUnprocessableEntity},
		{lifecycle.ErrRemoteUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}

func TestEvents_StreamNotifications(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		s.handler.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.events.clientCount() == 1 }, time.Second, 5*time.Millisecond)
	s.events.SessionChanged(auth.Event{Account: alice, Connected: true})
	s.events.Notify(lifecycle.Notification{ID: "n1", Action: lifecycle.ActionCreate, Status: lifecycle.NotifySuccess, Message: "Script encrypted and stored securely!"})

	// a received message is written before the handler selects again
	require.Eventually(t, func() bool { return backlog(s.events) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, `{"type":"connected"}`)
	assert.Contains(t, body, `"type":"session"`)
	assert.Contains(t, body, "Script encrypted and stored securely!")
}

func backlog(h *eventHub) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for ch := range h.clients {
		n += len(ch)
	}
	return n
}
