package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-community/adapters/gocommand"
	"github.com/goliatone/go-community/adapters/gologger"
	"github.com/goliatone/go-community/app"
	"github.com/goliatone/go-community/command"
	"github.com/goliatone/go-community/core"
	"github.com/goliatone/go-community/query"
	"github.com/goliatone/go-community/webhooks"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testServiceKey = "community-app-service-key-0000001"
	testSigningKey = "community-app-signing-key-0123456789abcdef"
)

func testConfig(t *testing.T) core.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testServiceKey), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := core.DefaultConfig()
	cfg.Database.DSN = fmt.Sprintf("file:community-app-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	cfg.Database.AutoMigrate = true
	cfg.Auth.SigningKey = testSigningKey
	cfg.Auth.ServiceAPIKeyHashes = []string{string(hash)}
	cfg.HTTP.RateLimitRPS = 0
	return cfg
}

func newApp(t *testing.T, cfg core.Config) *app.App {
	t.Helper()
	application, err := app.New(context.Background(), cfg,
		app.WithZapLogger(gologger.NewZapLoggerFrom(zap.NewNop())),
		app.WithVersion("test"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })
	return application
}

func call(t *testing.T, handler http.Handler, method, path string, body any) (*httptest.ResponseRecorder, gjson.Result) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testServiceKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gjson.ParseBytes(rec.Body.Bytes())
}

func TestLoadConfigLayersFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "community.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service_name: guild
logs:
  retention_days: 7
http:
  addr: ":7000"
`), 0o600))
	t.Setenv("COMMUNITY_HTTP__ADDR", ":9090")
	t.Setenv("COMMUNITY_APPLICATIONS__APPROVAL_THRESHOLD", "5")

	cfg, err := app.LoadConfig(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "guild", cfg.ServiceName)
	require.Equal(t, 7, cfg.Logs.RetentionDays)
	require.Equal(t, ":9090", cfg.HTTP.Addr)
	require.Equal(t, 5, cfg.Applications.ApprovalThreshold)
	require.Equal(t, "@every 30s", cfg.Webhooks.SweepSchedule)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := app.LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	cfg, err := app.LoadConfig(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "community", cfg.ServiceName)
}

func TestNewRejectsShortSigningKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.SigningKey = "short"
	_, err := app.New(context.Background(), cfg, app.WithZapLogger(gologger.NewZapLoggerFrom(zap.NewNop())))
	require.Error(t, err)
}

type receiver struct {
	mu       sync.Mutex
	requests []capturedRequest
}

type capturedRequest struct {
	header http.Header
	body   []byte
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, capturedRequest{header: req.Header.Clone(), body: body})
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (r *receiver) captured() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.requests...)
}

func TestAppDeliversSignedWebhooks(t *testing.T) {
	application := newApp(t, testConfig(t))
	handler := application.Server().Handler()

	rec, body := call(t, handler, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "ok", body.Get("data.status").String())

	sink := &receiver{}
	target := httptest.NewServer(sink)
	defer target.Close()

	rec, body = call(t, handler, http.MethodPost, "/v1/webhooks", map[string]any{
		"url":         target.URL,
		"event_types": []string{core.EventUserCreated},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	webhookID := body.Get("data.id").String()
	secret := body.Get("data.secret").String()
	require.NotEmpty(t, secret)

	rec, body = call(t, handler, http.MethodPost, "/v1/users", map[string]any{"username": "hopper"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := body.Get("data.id").String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Dispatcher().Wait(ctx))

	requests := sink.captured()
	require.Len(t, requests, 1)
	delivered := requests[0]
	require.Equal(t, core.EventUserCreated, delivered.header.Get(webhooks.HeaderEvent))
	require.NoError(t, webhooks.Verify(
		[]byte(secret),
		delivered.header.Get(webhooks.HeaderTimestamp),
		delivered.header.Get(webhooks.HeaderSignature),
		delivered.body,
		time.Minute,
		time.Now(),
	))
	require.Equal(t, userID, gjson.GetBytes(delivered.body, "data.user.id").String())

	rec, body = call(t, handler, http.MethodGet, "/v1/webhooks/"+webhookID+"/deliveries", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(1), body.Get("meta.total").Int())
	require.Equal(t, string(core.DeliveryDelivered), body.Get("data.0.status").String())

	systemCtx := core.WithPrincipal(context.Background(), core.SystemPrincipal())
	page, err := application.Facade().Queries().ListDeliveries.Query(systemCtx, query.ListDeliveriesMessage{SubscriptionID: webhookID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, core.DeliveryDelivered, page.Items[0].Status)

	rec, _ = call(t, handler, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "community_http_requests_total")
}

func TestAppRoutesCommandsThroughBus(t *testing.T) {
	application := newApp(t, testConfig(t))
	handler := application.Server().Handler()

	rec, body := call(t, handler, http.MethodPost, "/v1/users", map[string]any{"username": "lovelace"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userID := body.Get("data.id").String()

	systemCtx := core.WithPrincipal(context.Background(), core.SystemPrincipal())
	require.NoError(t, gocommand.Dispatch(systemCtx, application.Bus(), command.SubmitApplicationMessage{
		Input: core.SubmitApplicationInput{ApplicantID: userID, Motivation: "I run the practice room"},
	}))

	rec, body = call(t, handler, http.MethodGet, "/v1/applications", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, int64(1), body.Get("meta.total").Int())
	applicationID := body.Get("data.0.id").String()

	got, err := gocommand.Query[query.GetApplicationMessage, core.Application](
		systemCtx,
		application.Bus(),
		query.GetApplicationMessage{ApplicationID: applicationID},
	)
	require.NoError(t, err)
	require.Equal(t, userID, got.ApplicantID)
	require.Equal(t, core.ApplicationPending, got.Status)

	require.True(t, application.Bus().Handles(command.TypeRetryDueDeliveries))
	_, mirrored := application.QueueCommands().Get(command.TypeCastVote)
	require.True(t, mirrored)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = "127.0.0.1:0"
	application := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Serve(ctx) }()

	require.Eventually(t, func() bool {
		return len(application.Scheduler().Scheduled()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
