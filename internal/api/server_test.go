package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
	"github.com/nerrad567/gray-logic-occupancy/internal/panel"
	_ "github.com/nerrad567/gray-logic-occupancy/migrations"
)

// testEnv bundles a server with the store behind it.
type testEnv struct {
	server *Server
	store  *occupancy.SQLiteStore
	db     *database.DB
}

func newTestEnv(t *testing.T, seeds ...occupancy.SeatSeed) *testEnv {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "occupancy.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	store := occupancy.NewSQLiteStore(db.DB)
	if _, err := store.Seed(ctx, seeds); err != nil {
		t.Fatalf("seeding test db: %v", err)
	}

	renderer, err := panel.NewRenderer("Lab 7", time.UTC)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:    logging.Discard(),
		Snapshots: occupancy.NewSnapshotService(store),
		Admin:     store,
		Renderer:  renderer,
		DB:        db,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{server: srv, store: store, db: db}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) write(t *testing.T, name string, status occupancy.Status) {
	t.Helper()
	if _, err := e.store.WriteStatus(context.Background(), name, status, status.IsPresent()); err != nil {
		t.Fatalf("WriteStatus(%s) error = %v", name, err)
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return v
}

func fourSeats() []occupancy.SeatSeed {
	return []occupancy.SeatSeed{
		{Name: "A", Address: "00:11:22:33:44:01"},
		{Name: "B", Address: "00:11:22:33:44:02"},
		{Name: "C"},
		{Name: "D"},
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without snapshot provider should fail")
	}
}

func TestSnapshot_Ordering(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	env.write(t, "A", occupancy.StatusPresent)
	env.write(t, "C", occupancy.StatusPresentViaAmbient)
	env.write(t, "B", occupancy.StatusAbsent)

	for _, path := range []string{"/snapshot", "/api/v1/snapshot"} {
		t.Run(path, func(t *testing.T) {
			rec := env.get(t, path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			snap := decodeBody[occupancy.Snapshot](t, rec)
			var names []string
			for _, s := range snap.Seats {
				names = append(names, s.Name)
			}
			if got := strings.Join(names, ","); got != "A,C,B,D" {
				t.Errorf("order = %s, want A,C,B,D", got)
			}
			if snap.Seats[0].Status != occupancy.StatusPresent || snap.Seats[0].LastPresent == nil {
				t.Errorf("seat A = %+v, want present with timestamp", snap.Seats[0])
			}
			if snap.Seats[3].LastPresent != nil {
				t.Errorf("seat D last_present_time = %v, want null", snap.Seats[3].LastPresent)
			}
			if snap.QueryTime.IsZero() {
				t.Error("query_time is zero")
			}
		})
	}
}

func TestSnapshot_EmptyTable(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/snapshot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"seats":[]`) {
		t.Errorf("body = %s, want empty seats array", rec.Body.String())
	}
}

func TestSnapshot_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	env.db.Close()

	rec := env.get(t, "/snapshot")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	body := decodeBody[Error](t, rec)
	if body.Code != ErrCodeUnavailable {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeUnavailable)
	}
}

func TestLegacyAttendance(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	env.write(t, "B", occupancy.StatusPresentViaAmbient)

	rec := env.get(t, "/api/attendance")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody[LegacyAttendance](t, rec)
	if len(body.Seats) != 4 {
		t.Fatalf("len(seats) = %d, want 4", len(body.Seats))
	}

	first := body.Seats[0]
	if first.Name != "B" || first.StatusText != "In lab" || first.Status != occupancy.StatusPresentViaAmbient {
		t.Errorf("first seat = %+v, want B in lab", first)
	}
	if _, err := time.Parse(panel.TimeLayout, first.LastPresent); err != nil {
		t.Errorf("last_present_time = %q, want %s layout", first.LastPresent, panel.TimeLayout)
	}
	if body.Seats[1].LastPresent != panel.NeverSeen {
		t.Errorf("never-seen seat shows %q, want %q", body.Seats[1].LastPresent, panel.NeverSeen)
	}
	if _, err := time.Parse(panel.TimeLayout, body.SearchTime); err != nil {
		t.Errorf("search_time = %q, want %s layout", body.SearchTime, panel.TimeLayout)
	}
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	env.write(t, "A", occupancy.StatusPresent)

	rec := env.get(t, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Lab 7", "At desk", "Absent", panel.NeverSeen} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestEditPage(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)

	rec := env.get(t, "/edit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/update_address"`) {
		t.Error("edit form does not post to /update_address")
	}
	for _, name := range []string{"A", "B", "C", "D"} {
		if !strings.Contains(body, ">"+name+"<") {
			t.Errorf("edit form missing seat %q", name)
		}
	}
}

func TestStaticStylesheet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStaticDirOverride(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "style.css"), []byte("body { color: teal; }"), 0600); err != nil {
		t.Fatalf("writing stylesheet: %v", err)
	}

	srv, err := New(Deps{
		Logger:    logging.Discard(),
		Snapshots: env.server.snapshots,
		Admin:     env.store,
		StaticDir: dir,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "color: teal") {
		t.Errorf("body = %q, want the on-disk stylesheet", rec.Body.String())
	}
}

func TestUpdateAddress_Form(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	ctx := context.Background()

	tests := []struct {
		name         string
		form         url.Values
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "known seat redirects to board",
			form:         url.Values{"name": {"C"}, "new_address": {"AA:BB:CC:DD:EE:FF"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/",
		},
		{
			name:         "unknown seat returns to form",
			form:         url.Values{"name": {"Nobody"}, "new_address": {"AA:BB:CC:DD:EE:FF"}},
			wantStatus:   http.StatusSeeOther,
			wantLocation: "/edit",
		},
		{
			name:       "missing name",
			form:       url.Values{"new_address": {"AA:BB:CC:DD:EE:FF"}},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/update_address", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			rec := env.do(t, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantLocation != "" && rec.Header().Get("Location") != tt.wantLocation {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLocation)
			}
		})
	}

	addr, err := env.store.GetAddress(ctx, "C")
	if err != nil {
		t.Fatalf("GetAddress(C) error = %v", err)
	}
	if addr != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("address = %q, want update applied", addr)
	}
}

func TestUpdateAddress_JSON(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/update_address", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		return env.do(t, req)
	}

	rec := post(`{"name":"A","new_address":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear address status = %d, want 200", rec.Code)
	}
	addr, err := env.store.GetAddress(context.Background(), "A")
	if err != nil || addr != "" {
		t.Errorf("GetAddress(A) = %q, %v; want cleared", addr, err)
	}

	rec = post(`{"name":"Nobody","new_address":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown seat status = %d, want 404", rec.Code)
	}

	rec = post(`{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)

	rec := env.get(t, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[HealthResponse](t, rec)
	if body.Status != "ok" || body.Components["database"] != "ok" {
		t.Errorf("health = %+v, want ok", body)
	}

	env.db.Close()
	rec = env.get(t, "/api/v1/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("closed db status = %d, want 503", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)

	rec := env.get(t, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[SystemMetrics](t, rec)
	if body.Version != "test" {
		t.Errorf("version = %q, want test", body.Version)
	}
	if body.Runtime.Goroutines == 0 {
		t.Error("goroutines = 0")
	}
	if body.Poller != nil || body.Ingest != nil {
		t.Error("poller and ingest sections should be omitted when not wired")
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/snapshot", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /snapshot status = %d, want 405", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/snapshot")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID response header")
	}
}

func TestWebSocket_SnapshotThenChanges(t *testing.T) {
	env := newTestEnv(t, fourSeats()...)
	env.write(t, "A", occupancy.StatusPresent)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first struct {
		Type      string             `json:"type"`
		EventType string             `json:"event_type"`
		Payload   occupancy.Snapshot `json:"payload"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading snapshot event: %v", err)
	}
	if first.EventType != ChannelSnapshot || len(first.Payload.Seats) != 4 {
		t.Fatalf("first event = %+v, want snapshot of 4 seats", first)
	}

	seat, err := env.store.WriteStatus(context.Background(), "B", occupancy.StatusPresentViaAmbient, true)
	if err != nil {
		t.Fatalf("WriteStatus() error = %v", err)
	}
	ambient := 700
	env.server.Hub().SeatUpdated(context.Background(), occupancy.Change{
		Seat:    seat,
		Source:  occupancy.SourceSensor,
		Ambient: &ambient,
		At:      time.Now(),
	})

	var change struct {
		EventType string    `json:"event_type"`
		Payload   SeatEvent `json:"payload"`
	}
	if err := conn.ReadJSON(&change); err != nil {
		t.Fatalf("reading change event: %v", err)
	}
	if change.EventType != ChannelSeatChanged {
		t.Errorf("event_type = %q, want %q", change.EventType, ChannelSeatChanged)
	}
	if change.Payload.Name != "B" || change.Payload.StatusText != "In lab" {
		t.Errorf("payload = %+v, want B in lab", change.Payload)
	}
	if change.Payload.Ambient == nil || *change.Payload.Ambient != 700 {
		t.Errorf("ambient = %v, want 700", change.Payload.Ambient)
	}
	if env.server.Hub().ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", env.server.Hub().ClientCount())
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestEnv(t)

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	if resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading snapshot event: %v", err)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading pong: %v", err)
	}
	if msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", msg)
	}
}

func TestStartClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.server.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.server.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	resp, err := http.Get("http://" + env.server.Addr().String() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	env := newTestEnv(t)
	env.server.cfg.Port = ln.Addr().(*net.TCPAddr).Port

	err = env.server.Start(context.Background())
	if !errors.Is(err, ErrListen) {
		t.Fatalf("Start() error = %v, want ErrListen", err)
	}
	if env.server.Addr() != nil {
		t.Error("Addr() should be nil after failed Start")
	}
}
