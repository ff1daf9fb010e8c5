package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gatherly/internal/config"
	"gatherly/internal/db"
	"gatherly/internal/engine"
	"gatherly/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "gatherly.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = "server-test-secret"
	cfg.Auth.TokenTTL = time.Hour
	e := engine.New(conn, cfg)
	handler, err := New(Config{Engine: e, BasePath: "/api"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

type envelopeBody struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call sends a request to the API base path and decodes the envelope,
// failing unless the status matches.
func call(t *testing.T, srv *testServer, method, route, token string, body any, wantStatus int) envelopeBody {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	res, data := doJSON(t, srv.Client(), method, srv.URL+"/api"+route, body, headers)
	if res.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d: %s", method, route, wantStatus, res.StatusCode, string(data))
	}
	var env envelopeBody
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v: %s", method, route, err, string(data))
	}
	return env
}

func decodeData(t *testing.T, env envelopeBody, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v: %s", err, string(env.Data))
	}
}

func registerAndLogin(t *testing.T, srv *testServer, name string) (int64, string) {
	t.Helper()
	env := call(t, srv, http.MethodPost, "/register", "", map[string]any{
		"name":                  name,
		"email":                 name + "@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
		"gender":                "other",
		"agree_terms":           true,
	}, http.StatusCreated)
	var user UserResponse
	decodeData(t, env, &user)
	env = call(t, srv, http.MethodPost, "/login", "", map[string]any{
		"email":    name + "@example.com",
		"password": "password123",
	}, http.StatusOK)
	var login LoginResponse
	decodeData(t, env, &login)
	if login.Token == "" || login.ID != user.ID {
		t.Fatalf("unexpected login payload %+v", login)
	}
	return user.ID, login.Token
}

func createEvent(t *testing.T, srv *testServer, token string, creator int64, visibility string) EventResponse {
	t.Helper()
	env := call(t, srv, http.MethodPost, "/events", token, map[string]any{
		"title":      "Summer meetup",
		"date":       "2099-07-01 18:00:00",
		"location":   "Harbor",
		"visibility": visibility,
		"created_by": creator,
	}, http.StatusCreated)
	var ev EventResponse
	decodeData(t, env, &ev)
	return ev
}

func TestRegisterLoginInviteAcceptFlow(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	aliceID, aliceTok := registerAndLogin(t, srv, "alice")
	bobID, bobTok := registerAndLogin(t, srv, "bob")

	ev := createEvent(t, srv, aliceTok, aliceID, "private")
	if ev.CreatedBy == nil || ev.CreatedBy.ID != aliceID || ev.Date != "2099-07-01T18:00:00Z" {
		t.Fatalf("unexpected event %+v", ev)
	}

	env := call(t, srv, http.MethodGet, fmt.Sprintf("/users/event/%d", ev.ID), bobTok, nil, http.StatusNotFound)
	if env.Message != "Event not found" || env.Status != "error" || string(env.Data) != "[]" {
		t.Fatalf("unexpected not found envelope %+v", env)
	}

	env = call(t, srv, http.MethodPost, fmt.Sprintf("/users/events/%d/invitations", ev.ID), aliceTok, map[string]any{"email": "bob@example.com"}, http.StatusCreated)
	var inv InvitationResponse
	decodeData(t, env, &inv)
	if inv.UserID != aliceID || inv.Email != "bob@example.com" || inv.Status != "pending" {
		t.Fatalf("unexpected invitation %+v", inv)
	}

	env = call(t, srv, http.MethodGet, "/users/invitations?type=received", bobTok, nil, http.StatusOK)
	var received []InvitationResponse
	decodeData(t, env, &received)
	if len(received) != 1 || received[0].ID != inv.ID {
		t.Fatalf("unexpected received invitations %+v", received)
	}
	call(t, srv, http.MethodGet, "/users/invitations?type=received", aliceTok, nil, http.StatusNotFound)

	env = call(t, srv, http.MethodPatch, fmt.Sprintf("/users/invitations/%d/action", inv.ID), bobTok, map[string]any{"action": "accept"}, http.StatusOK)
	decodeData(t, env, &inv)
	if inv.Status != "accepted" {
		t.Fatalf("expected accepted, got %s", inv.Status)
	}
	env = call(t, srv, http.MethodPatch, fmt.Sprintf("/users/invitations/%d/action", inv.ID), bobTok, map[string]any{"action": "decline"}, http.StatusNotFound)
	if env.Message != "Invitation not found" {
		t.Fatalf("unexpected message %q", env.Message)
	}

	// joining makes the private event visible to bob
	call(t, srv, http.MethodPost, fmt.Sprintf("/users/event/%d/participants", ev.ID), aliceTok, map[string]any{"user_id": bobID, "status": "attending"}, http.StatusCreated)
	env = call(t, srv, http.MethodGet, fmt.Sprintf("/users/event/%d", ev.ID), bobTok, nil, http.StatusOK)
	var seen EventResponse
	decodeData(t, env, &seen)
	if len(seen.Participants) != 1 || seen.Participants[0].UserID != bobID {
		t.Fatalf("unexpected participants %+v", seen.Participants)
	}

	env = call(t, srv, http.MethodGet, "/users/events", bobTok, nil, http.StatusOK)
	var events []EventResponse
	decodeData(t, env, &events)
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Fatalf("unexpected user events %+v", events)
	}
}

func TestValidationMessagesAreAggregated(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	env := call(t, srv, http.MethodPost, "/register", "", map[string]any{
		"email":                 "not-an-email",
		"password":              "short",
		"password_confirmation": "short",
		"gender":                "robot",
	}, http.StatusUnprocessableEntity)
	want := "The name field is required. The email field must be a valid email address. " +
		"The password field must be at least 8 characters. The selected gender is invalid. You must agree to the terms."
	if env.Message != want {
		t.Fatalf("unexpected message:\n got %q\nwant %q", env.Message, want)
	}
	if env.Status != "error" || string(env.Data) != "[]" {
		t.Fatalf("unexpected envelope %+v", env)
	}

	registerAndLogin(t, srv, "alice")
	env = call(t, srv, http.MethodPost, "/register", "", map[string]any{
		"name":                  "Alice Again",
		"email":                 "ALICE@example.com",
		"password":              "password123",
		"password_confirmation": "password123",
		"gender":                "female",
		"agree_terms":           true,
	}, http.StatusUnprocessableEntity)
	if env.Message != "This email is already taken." {
		t.Fatalf("unexpected duplicate email message %q", env.Message)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	registerAndLogin(t, srv, "alice")

	env := call(t, srv, http.MethodPost, "/login", "", map[string]any{"email": "alice@example.com", "password": "wrong-password"}, http.StatusUnauthorized)
	if env.Message != "Invalid email or password." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	env = call(t, srv, http.MethodPost, "/login", "", map[string]any{"email": "alice@example.com"}, http.StatusUnprocessableEntity)
	if env.Message != "A password is required." {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	env := call(t, srv, http.MethodGet, "/users", "", nil, http.StatusUnauthorized)
	if env.Message != "Unauthenticated." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	call(t, srv, http.MethodGet, "/events", "garbage", nil, http.StatusUnauthorized)
	call(t, srv, http.MethodGet, "/health", "", nil, http.StatusOK)

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "bearerAuth") {
		t.Fatalf("openapi status %d: %s", res.StatusCode, string(data))
	}
}

func TestLogoutRevokesOnlyCurrentToken(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, first := registerAndLogin(t, srv, "alice")
	env := call(t, srv, http.MethodPost, "/login", "", map[string]any{"email": "alice@example.com", "password": "password123"}, http.StatusOK)
	var login LoginResponse
	decodeData(t, env, &login)
	second := login.Token

	call(t, srv, http.MethodPost, "/users/logout", first, nil, http.StatusOK)
	call(t, srv, http.MethodGet, "/users", first, nil, http.StatusUnauthorized)
	env = call(t, srv, http.MethodGet, "/users", second, nil, http.StatusOK)
	var me UserResponse
	decodeData(t, env, &me)
	if me.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", me)
	}

	call(t, srv, http.MethodPost, "/users/logout/all", second, nil, http.StatusOK)
	call(t, srv, http.MethodGet, "/users", second, nil, http.StatusUnauthorized)
}

func TestTaskEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	aliceID, aliceTok := registerAndLogin(t, srv, "alice")
	bobID, bobTok := registerAndLogin(t, srv, "bob")
	ev := createEvent(t, srv, aliceTok, aliceID, "public")
	route := fmt.Sprintf("/users/event/%d/task", ev.ID)
	task := map[string]any{"title": "Bring chairs", "due_date": "2099-06-30", "assigned_to": bobID}

	env := call(t, srv, http.MethodPost, route, bobTok, task, http.StatusNotFound)
	if env.Message != "Event not found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	env = call(t, srv, http.MethodPost, route, aliceTok, map[string]any{"title": "Late", "due_date": "2000-01-01", "assigned_to": 999}, http.StatusUnprocessableEntity)
	if env.Message != "The event date must be a future date. The selected assigned_to ID is invalid." {
		t.Fatalf("unexpected message %q", env.Message)
	}

	env = call(t, srv, http.MethodPost, route, aliceTok, task, http.StatusCreated)
	var created TaskResponse
	decodeData(t, env, &created)
	if created.Status != "pending" || created.AssignedTo != bobID {
		t.Fatalf("unexpected task %+v", created)
	}

	env = call(t, srv, http.MethodGet, route, aliceTok, nil, http.StatusNotFound)
	if env.Message != "No tasks found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	call(t, srv, http.MethodGet, route+"?status=later", bobTok, nil, http.StatusUnprocessableEntity)
	env = call(t, srv, http.MethodGet, route+"?status=pending", bobTok, nil, http.StatusOK)
	var tasks []TaskResponse
	decodeData(t, env, &tasks)
	if len(tasks) != 1 {
		t.Fatalf("expected one task, got %+v", tasks)
	}

	taskRoute := fmt.Sprintf("%s/%d", route, created.ID)
	env = call(t, srv, http.MethodPatch, taskRoute, aliceTok, map[string]any{"status": "completed"}, http.StatusNotFound)
	if env.Message != "Task not found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	for _, status := range []string{"completed", "pending", "ongoing"} {
		env = call(t, srv, http.MethodPatch, taskRoute, bobTok, map[string]any{"status": status}, http.StatusOK)
		decodeData(t, env, &created)
		if created.Status != status {
			t.Fatalf("expected %s, got %s", status, created.Status)
		}
	}
	call(t, srv, http.MethodGet, taskRoute+"?status=ongoing", bobTok, nil, http.StatusOK)
	call(t, srv, http.MethodGet, taskRoute+"?status=pending", bobTok, nil, http.StatusNotFound)
}

func TestSelfInviteRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	aliceID, aliceTok := registerAndLogin(t, srv, "alice")
	ev := createEvent(t, srv, aliceTok, aliceID, "public")

	env := call(t, srv, http.MethodPost, fmt.Sprintf("/users/events/%d/invitations", ev.ID), aliceTok, map[string]any{"email": "alice@example.com"}, http.StatusUnprocessableEntity)
	if env.Message != "You cannot invite yourself to an event." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	env = call(t, srv, http.MethodPost, fmt.Sprintf("/users/events/%d/invitations", ev.ID), aliceTok, map[string]any{"email": "ghost@example.com"}, http.StatusUnprocessableEntity)
	if env.Message != "The user with this email does not exist." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	call(t, srv, http.MethodGet, "/users/invitations", aliceTok, nil, http.StatusNotFound)
}

func TestEventLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	aliceID, aliceTok := registerAndLogin(t, srv, "alice")
	ev := createEvent(t, srv, aliceTok, aliceID, "")
	if ev.Visibility != "public" {
		t.Fatalf("expected default visibility, got %s", ev.Visibility)
	}

	env := call(t, srv, http.MethodPost, "/events", aliceTok, map[string]any{"title": "Past", "date": "2001-01-01", "created_by": aliceID}, http.StatusUnprocessableEntity)
	if env.Message != "The event date must be a future date." {
		t.Fatalf("unexpected message %q", env.Message)
	}

	route := fmt.Sprintf("/events/%d", ev.ID)
	env = call(t, srv, http.MethodPut, route, aliceTok, map[string]any{
		"title": "Autumn meetup", "date": "2099-10-01", "visibility": "private", "created_by": aliceID,
	}, http.StatusCreated)
	var updated EventResponse
	decodeData(t, env, &updated)
	if updated.Title != "Autumn meetup" || updated.Visibility != "private" || updated.Date != "2099-10-01T00:00:00Z" {
		t.Fatalf("unexpected update %+v", updated)
	}

	env = call(t, srv, http.MethodGet, "/events", aliceTok, nil, http.StatusOK)
	var all []EventResponse
	decodeData(t, env, &all)
	if len(all) != 1 {
		t.Fatalf("expected one event, got %d", len(all))
	}

	call(t, srv, http.MethodDelete, route, aliceTok, nil, http.StatusOK)
	env = call(t, srv, http.MethodGet, route, aliceTok, nil, http.StatusNotFound)
	if env.Message != "Event not found." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	call(t, srv, http.MethodDelete, route, aliceTok, nil, http.StatusNotFound)
	env = call(t, srv, http.MethodGet, "/events", aliceTok, nil, http.StatusOK)
	decodeData(t, env, &all)
	if len(all) != 0 {
		t.Fatalf("deleted event still listed: %+v", all)
	}
}

func TestUpdateEventKeepsOmittedFields(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	aliceID, aliceTok := registerAndLogin(t, srv, "alice")
	ev := createEvent(t, srv, aliceTok, aliceID, "private")
	route := fmt.Sprintf("/events/%d", ev.ID)

	env := call(t, srv, http.MethodPut, route, aliceTok, map[string]any{
		"title": "Harbor drinks", "date": "2099-08-01 19:00:00", "created_by": aliceID,
	}, http.StatusCreated)
	var updated EventResponse
	decodeData(t, env, &updated)
	if updated.Title != "Harbor drinks" || updated.Location != "Harbor" || updated.Visibility != "private" {
		t.Fatalf("omitted fields changed: %+v", updated)
	}

	env = call(t, srv, http.MethodPut, route, aliceTok, map[string]any{
		"title": "Harbor drinks", "date": "2099-08-01 19:00:00", "created_by": aliceID, "description": "Bring a jacket",
	}, http.StatusCreated)
	decodeData(t, env, &updated)
	if updated.Description != "Bring a jacket" || updated.Location != "Harbor" {
		t.Fatalf("unexpected update %+v", updated)
	}
}

func TestUpdateUserAndSearch(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	_, aliceTok := registerAndLogin(t, srv, "alice")
	registerAndLogin(t, srv, "bob")

	env := call(t, srv, http.MethodPut, "/users", aliceTok, nil, http.StatusUnprocessableEntity)
	if env.Message != "No fields to update." {
		t.Fatalf("unexpected empty body message %q", env.Message)
	}
	env = call(t, srv, http.MethodPut, "/users", aliceTok, map[string]any{"email": "bob@example.com"}, http.StatusUnprocessableEntity)
	if env.Message != "This email address is already in use." {
		t.Fatalf("unexpected message %q", env.Message)
	}
	env = call(t, srv, http.MethodPut, "/users", aliceTok, map[string]any{"name": "Alice Liddell", "address": "Wonderland"}, http.StatusCreated)
	var me UserResponse
	decodeData(t, env, &me)
	if me.Name != "Alice Liddell" || me.Address != "Wonderland" || me.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", me)
	}

	env = call(t, srv, http.MethodGet, "/users/search?query=LIDDELL", aliceTok, nil, http.StatusOK)
	var found []UserResponse
	decodeData(t, env, &found)
	if len(found) != 1 || found[0].ID != me.ID {
		t.Fatalf("unexpected search result %+v", found)
	}
	env = call(t, srv, http.MethodGet, "/users/search?query=nobody", aliceTok, nil, http.StatusNotFound)
	if env.Message != "No users found" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}
