package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnlen7/teacher-sarah/internal/dispatch"
	"github.com/johnlen7/teacher-sarah/internal/domain"
	httpserver "github.com/johnlen7/teacher-sarah/internal/http"
	"github.com/johnlen7/teacher-sarah/internal/http/handlers"
	"github.com/johnlen7/teacher-sarah/internal/http/middleware"
	"github.com/johnlen7/teacher-sarah/internal/metrics"
	"github.com/johnlen7/teacher-sarah/internal/repository"
)

type testServer struct {
	server     *httptest.Server
	repo       *repository.MemoryStudentsRepository
	dispatcher *dispatch.Dispatcher
}

func newTestServer(t *testing.T, authToken string) *testServer {
	t.Helper()

	repo := repository.NewMemoryStudentsRepository()
	dispatcher := dispatch.New(func(_ context.Context, _ int64, payload any) (any, error) {
		event := payload.(domain.InboundEvent)
		return domain.Reply{
			Text:        "Hi! You said: " + event.Text,
			EnglishOnly: "Hi! You said: " + event.Text,
			ModelID:     "test-model",
		}, nil
	}, dispatch.Config{Capacity: 4})
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	api := handlers.NewAPI(dispatcher, repo, metrics.NewCollector(), middleware.NewChatLimiter(100, 100))
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:       api,
		AuthToken: authToken,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{server: server, repo: repo, dispatcher: dispatcher}
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	request, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer response.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(response.Body).Decode(&decoded)
	return response, decoded
}

func TestEventsSyncFlow(t *testing.T) {
	ts := newTestServer(t, "")

	response, body := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events",
		`{"chat_id":1,"kind":"text","text":"hello"}`, nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %v", response.StatusCode, body)
	}
	if body["event_id"] == "" {
		t.Error("missing event_id")
	}
	reply, ok := body["reply"].(map[string]any)
	if !ok {
		t.Fatalf("missing reply: %v", body)
	}
	if reply["english_only"] != "Hi! You said: hello" {
		t.Errorf("reply = %v", reply["english_only"])
	}
}

func TestEventsAsyncFlow(t *testing.T) {
	ts := newTestServer(t, "")

	response, body := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events",
		`{"chat_id":2,"kind":"text","text":"hi","async":true}`, nil)
	if response.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, body = %v", response.StatusCode, body)
	}
	if body["status"] != "queued" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["ticket_id"] == "" || body["event_id"] == "" {
		t.Errorf("missing ids: %v", body)
	}
}

func TestEventsValidation(t *testing.T) {
	ts := newTestServer(t, "")

	cases := []struct {
		name string
		body string
	}{
		{"missing chat", `{"kind":"text","text":"hi"}`},
		{"bad kind", `{"chat_id":1,"kind":"video","text":"hi"}`},
		{"text without text", `{"chat_id":1,"kind":"text"}`},
		{"voice without audio", `{"chat_id":1,"kind":"voice"}`},
		{"unknown field", `{"chat_id":1,"kind":"text","text":"hi","bogus":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			response, _ := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events", tc.body, nil)
			if response.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", response.StatusCode)
			}
		})
	}
}

func TestEventsIdempotency(t *testing.T) {
	ts := newTestServer(t, "")
	payload := `{"chat_id":3,"kind":"text","text":"same message"}`
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first, firstBody := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events", payload, headers)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d", first.StatusCode)
	}

	second, secondBody := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events", payload, headers)
	if second.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status = %d", second.StatusCode)
	}
	if secondBody["status"] != "duplicate" {
		t.Errorf("duplicate body = %v", secondBody)
	}
	if secondBody["event_id"] != firstBody["event_id"] {
		t.Errorf("event ids differ: %v vs %v", secondBody["event_id"], firstBody["event_id"])
	}

	conflict, _ := doJSON(t, http.MethodPost, ts.server.URL+"/v1/events",
		`{"chat_id":3,"kind":"text","text":"different message"}`, headers)
	if conflict.StatusCode != http.StatusConflict {
		t.Errorf("conflict status = %d, want 409", conflict.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, "secret-token")

	response, _ := doJSON(t, http.MethodGet, ts.server.URL+"/v1/status", "", nil)
	if response.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", response.StatusCode)
	}

	response, _ = doJSON(t, http.MethodGet, ts.server.URL+"/v1/status", "",
		map[string]string{"Authorization": "Bearer secret-token"})
	if response.StatusCode != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", response.StatusCode)
	}

	response, _ = doJSON(t, http.MethodGet, ts.server.URL+"/healthz", "", nil)
	if response.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", response.StatusCode)
	}
}

func TestStatusSnapshotShape(t *testing.T) {
	ts := newTestServer(t, "")

	response, body := doJSON(t, http.MethodGet, ts.server.URL+"/v1/status", "", nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}
	if body["capacity"] != float64(4) {
		t.Errorf("capacity = %v, want 4", body["capacity"])
	}
	if _, ok := body["pending_by_conversation"]; !ok {
		t.Errorf("missing pending_by_conversation: %v", body)
	}
}

func TestUsersLevelEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	response, body := doJSON(t, http.MethodPut, ts.server.URL+"/v1/users/42/level", `{"level":"c1"}`, nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("set level status = %d, body = %v", response.StatusCode, body)
	}
	if body["level"] != "C1" {
		t.Errorf("level = %v, want C1", body["level"])
	}

	response, body = doJSON(t, http.MethodGet, ts.server.URL+"/v1/users/42", "", nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("get user status = %d", response.StatusCode)
	}
	if body["english_level"] != "C1" {
		t.Errorf("english_level = %v", body["english_level"])
	}

	response, _ = doJSON(t, http.MethodPut, ts.server.URL+"/v1/users/42/level", `{"level":"Z9"}`, nil)
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid level status = %d, want 400", response.StatusCode)
	}

	response, _ = doJSON(t, http.MethodGet, ts.server.URL+"/v1/users/999", "", nil)
	if response.StatusCode != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", response.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t, "")
	ctx := context.Background()
	_ = ts.repo.AppendMessage(ctx, &domain.StoredMessage{ChatID: 5, Author: domain.MessageAuthorUser, Content: "hi"})
	_ = ts.repo.AppendMessage(ctx, &domain.StoredMessage{ChatID: 5, Author: domain.MessageAuthorSarah, Content: "Hello!"})

	response, body := doJSON(t, http.MethodGet, ts.server.URL+"/v1/history/5", "", nil)
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}
	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}

	response, _ = doJSON(t, http.MethodGet, ts.server.URL+"/v1/history/abc", "", nil)
	if response.StatusCode != http.StatusBadRequest {
		t.Errorf("bad chat id status = %d, want 400", response.StatusCode)
	}
}

func TestChatRateLimit(t *testing.T) {
	repo := repository.NewMemoryStudentsRepository()
	dispatcher := dispatch.New(func(context.Context, int64, any) (any, error) {
		return domain.Reply{Text: "ok", EnglishOnly: "ok"}, nil
	}, dispatch.Config{Capacity: 2})
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	api := handlers.NewAPI(dispatcher, repo, metrics.NewCollector(), middleware.NewChatLimiter(0.01, 1))
	server := httptest.NewServer(httpserver.NewRouter(httpserver.RouterDependencies{API: api}))
	t.Cleanup(server.Close)

	payload := `{"chat_id":9,"kind":"text","text":"hi"}`
	first, _ := doJSON(t, http.MethodPost, server.URL+"/v1/events", payload, nil)
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first status = %d", first.StatusCode)
	}
	second, _ := doJSON(t, http.MethodPost, server.URL+"/v1/events", payload, nil)
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.StatusCode)
	}
}
