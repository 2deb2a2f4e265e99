package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SJang1/traffic-light-websocket/internal/app"
	"github.com/SJang1/traffic-light-websocket/internal/broadcast"
	"github.com/SJang1/traffic-light-websocket/internal/config"
	"github.com/SJang1/traffic-light-websocket/internal/domain"
	"github.com/SJang1/traffic-light-websocket/internal/lights"
)

type fakeIngest struct {
	result domain.BatchResult
	err    error
	body   []byte
}

func (f *fakeIngest) Ingest(_ context.Context, body []byte) (domain.BatchResult, error) {
	f.body = body
	return f.result, f.err
}

type fakeRegistry struct {
	count       int
	registerErr error
}

func (f *fakeRegistry) Register(*ws.Conn) error { return f.registerErr }
func (f *fakeRegistry) Unregister(*ws.Conn)     {}
func (f *fakeRegistry) ClientCount() int        { return f.count }

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) *goredis.StatusCmd {
	cmd := goredis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	}
	return cmd
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		Port:                  "0",
		BroadcastTickInterval: 100 * time.Millisecond,
		MaxSubscribers:        10,
		MutateRatePerSecond:   100,
		MutateRateBurst:       100,
	}
}

func newTestServer(t *testing.T, ingest *fakeIngest, registry *fakeRegistry, redis redisPinger) (*Server, *lights.Store) {
	t.Helper()
	store := lights.NewStore()
	srv := NewServer(testConfig(), ingest, registry, store, redis)
	return srv, store
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestGetLights(t *testing.T) {
	srv, store := newTestServer(t, &fakeIngest{}, &fakeRegistry{count: 3}, nil)
	_, err := store.Apply(domain.Mutation{ID: 1, Status: domain.StatusGreen, Distance: 7}, time.Now())
	require.NoError(t, err)

	rec := doRequest(srv, http.MethodGet, "/api/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	var count int
	require.NoError(t, json.Unmarshal(body["connectedusers"], &count))
	assert.Equal(t, 3, count)

	var light domain.Light
	require.NoError(t, json.Unmarshal(body["1"], &light))
	assert.Equal(t, domain.StatusGreen, light.Status)
	assert.Equal(t, 7.0, light.Distance)
}

func TestGetLights_RepeatedReadsAreByteIdentical(t *testing.T) {
	srv, store := newTestServer(t, &fakeIngest{}, &fakeRegistry{count: 2}, nil)
	_, err := store.Apply(domain.Mutation{ID: 2, Status: domain.StatusRed, Distance: 3}, time.Now())
	require.NoError(t, err)

	first := doRequest(srv, http.MethodGet, "/api/lights", "")
	second := doRequest(srv, http.MethodGet, "/api/lights", "")

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestGetLights_NoSubscribers(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{count: 0}, nil)

	rec := doRequest(srv, http.MethodGet, "/api/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connectedusers":0`)
}

func TestMutateLights_Accepted(t *testing.T) {
	ingest := &fakeIngest{result: domain.BatchResult{Applied: []domain.LightID{1}}}
	srv, _ := newTestServer(t, ingest, &fakeRegistry{}, nil)

	payload := `{"1":{"status":"green","distance":5}}`
	rec := doRequest(srv, http.MethodPut, "/api/lights", payload)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, string(ingest.body))

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []domain.LightID{1}, result.Applied)
	assert.Empty(t, result.Rejected)
}

func TestMutateLights_PartialRejection(t *testing.T) {
	ingest := &fakeIngest{result: domain.BatchResult{
		Applied:  []domain.LightID{1},
		Rejected: []domain.Rejection{{Key: "99", Reason: domain.ReasonUnknownLight}},
	}}
	srv, _ := newTestServer(t, ingest, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodPut, "/api/lights", `{"1":{"status":"green"},"99":{"status":"red"}}`)

	// Any rejection makes the overall response an error, but the applied
	// side is still reported so producers can see what landed.
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, []domain.LightID{1}, result.Applied)
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "99", result.Rejected[0].Key)
}

func TestMutateLights_Malformed(t *testing.T) {
	ingest := &fakeIngest{err: app.ErrMalformedBatch}
	srv, _ := newTestServer(t, ingest, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodPut, "/api/lights", `{broken`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"validation"`)
}

func TestMutateLights_IngestFailure(t *testing.T) {
	ingest := &fakeIngest{err: errors.New("boom")}
	srv, _ := newTestServer(t, ingest, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodPut, "/api/lights", `{}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"internal"`)
}

func TestMutateLights_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.MutateRatePerSecond = 1
	cfg.MutateRateBurst = 1

	ingest := &fakeIngest{result: domain.BatchResult{Applied: []domain.LightID{1}}}
	srv := NewServer(cfg, ingest, &fakeRegistry{}, lights.NewStore(), nil)

	first := doRequest(srv, http.MethodPut, "/api/lights", `{"1":{"status":"red"}}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(srv, http.MethodPut, "/api/lights", `{"1":{"status":"red"}}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestLiveness(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadiness_WithoutRedis(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestReadiness_RedisDown(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{}, &fakePinger{err: errors.New("connection refused")})

	rec := doRequest(srv, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"failed_check":"redis"`)
}

func TestReadiness_RedisUp(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{}, &fakePinger{})

	rec := doRequest(srv, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{}, nil)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebSocket_EndToEnd(t *testing.T) {
	store := lights.NewStore()
	broadcaster := broadcast.NewBroadcaster(store, clockwork.NewRealClock(), time.Hour, 10)
	t.Cleanup(func() { broadcaster.Stop() })

	srv := NewServer(testConfig(), &fakeIngest{}, broadcaster, store, nil)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(func() { ts.Close() })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/lights"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Priming push with the full snapshot arrives on connect.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"connectedusers":1`)

	// The query endpoint reflects the live subscriber count.
	rec := doRequest(srv, http.MethodGet, "/api/lights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"connectedusers":1`)
}

func TestWebSocket_RegistrationRefused(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngest{}, &fakeRegistry{registerErr: errors.New("subscriber limit reached")}, nil)

	ts := httptest.NewServer(srv.echo)
	t.Cleanup(func() { ts.Close() })

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/lights"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// The server closes the connection right after refusing registration.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
