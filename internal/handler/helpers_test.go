package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/require"

	"github.com/repodock/repodock/internal/adapter/cache"
	"github.com/repodock/repodock/internal/metrics"
	"github.com/repodock/repodock/internal/middleware"
	"github.com/repodock/repodock/internal/port"
	"github.com/repodock/repodock/internal/service"
)

// env wires real services over in-memory fakes behind a fiber app, the same
// way main does.
type env struct {
	app     *fiber.App
	st      *fakeStore
	tr      *stubTransport
	root    string
	auth    *service.AuthService
	imports *service.ImportService
	repos   *service.RepoService
	storage *service.StorageService
}

type envConfig struct {
	importLimit  int
	importWindow time.Duration
	apiLimit     int
	apiWindow    time.Duration
	limitBytes   int64
	staleAfter   time.Duration
}

func newTestApp(t *testing.T, mutate ...func(*envConfig)) *env {
	t.Helper()

	cfg := envConfig{
		importLimit:  10,
		importWindow: time.Minute,
		apiLimit:     1000,
		apiWindow:    time.Minute,
		staleAfter:   720 * time.Hour,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	st := newFakeStore()
	tr := newStubTransport()
	analyzer := stubAnalyzer{
		result: port.AnalysisResult{FileCount: 12, TotalSizeBytes: 4096, Description: "A widget toolkit"},
		files:  []string{"README.md", "main.go"},
	}
	processor := stubProcessor{result: &port.ProcessingResult{
		Structure: port.StructureResult{Directories: []string{"cmd"}, FilesByType: map[string]int{".go": 8}, TotalFiles: 12, SupportedFiles: 8},
		Source:    port.SourceResult{Languages: map[string]int{"Go": 8}, TotalLines: 640, Complexity: "low"},
		Metadata:  port.MetadataResult{ProjectType: "go", BuildFiles: []string{"go.mod"}},
	}}

	root := t.TempDir()
	m := metrics.New()
	tracker := service.NewProgressTracker()

	authSvc := service.NewAuthService(st, st, service.AuthConfig{
		Secret:   "test-secret",
		Issuer:   "repodock",
		TokenTTL: time.Hour,
	})
	importSvc := service.NewImportService(st, tr, analyzer, tracker, m, service.ImportConfig{
		StorageRoot: root,
		CloneDepth:  1,
		VersionKeep: 5,
	})
	repoSvc := service.NewRepoService(st, analyzer, processor, root)
	storageSvc := service.NewStorageService(st, tr, analyzer, m, service.StorageConfig{
		StorageRoot:    root,
		LimitBytes:     cfg.limitBytes,
		EvictThreshold: 0.80,
		EvictBatch:     5,
		StaleAfter:     cfg.staleAfter,
		CloneDepth:     1,
		VersionKeep:    5,
	})
	limiter := service.NewRateLimiter(cache.NewMemoryWindowStore())

	app := fiber.New()

	NewHealthHandler(st, cache.NewMemoryWindowStore()).Register(app)

	authHandler := NewAuthHandler(authSvc)
	publicAPI := app.Group("/api/v1", middleware.Audit(st))
	authHandler.RegisterPublic(publicAPI)

	api := app.Group("/api/v1",
		middleware.Auth(authSvc),
		middleware.Audit(st),
		middleware.RateLimit(limiter, m, middleware.RateLimitConfig{
			Class:  "api",
			Limit:  cfg.apiLimit,
			Window: cfg.apiWindow,
		}),
	)
	importLimit := middleware.RateLimit(limiter, m, middleware.RateLimitConfig{
		Class:  "import",
		Limit:  cfg.importLimit,
		Window: cfg.importWindow,
	})

	authHandler.RegisterProtected(api)
	NewJobsHandler(importSvc).Register(api)
	NewRepoHandler(importSvc, repoSvc, storageSvc).Register(api, importLimit)
	NewStorageHandler(storageSvc).Register(api)
	NewAuditHandler(st).Register(api)

	return &env{
		app:     app,
		st:      st,
		tr:      tr,
		root:    root,
		auth:    authSvc,
		imports: importSvc,
		repos:   repoSvc,
		storage: storageSvc,
	}
}

// doJSON performs one request against the app, optionally with a JSON body
// and a bearer token.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	return resp
}

// decodeBody reads a JSON response body into a generic map.
func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// registerAndLogin creates an account directly through the service and
// returns a usable token.
func registerAndLogin(t *testing.T, e *env, email string) string {
	t.Helper()
	_, err := e.auth.Register(t.Context(), email, "Test User")
	require.NoError(t, err)
	res, err := e.auth.Login(t.Context(), email)
	require.NoError(t, err)
	return res.Token
}

// importRepo starts an import over HTTP and returns the job and repository
// ids from the accepted response.
func importRepo(t *testing.T, e *env, token, url string) (jobID, repoID string) {
	t.Helper()
	resp := doJSON(t, e.app, fiber.MethodPost, "/api/v1/repositories/import", token, fiber.Map{"url": url})
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	jobID, _ = body["job_id"].(string)
	repoID, _ = body["repository_id"].(string)
	require.NotEmpty(t, jobID)
	require.NotEmpty(t, repoID)
	return jobID, repoID
}

// waitForJob blocks until the stored job reaches the wanted status.
func waitForJob(t *testing.T, e *env, jobID, status string) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := e.st.jobStatus(jobID)
		return ok && s == status
	}, 2*time.Second, 5*time.Millisecond)
}
