//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cloo-solutions/wizvec/internal/api/handlers"
	"github.com/cloo-solutions/wizvec/internal/openai"
	"github.com/cloo-solutions/wizvec/internal/repository"
	"github.com/cloo-solutions/wizvec/internal/server"
	"github.com/cloo-solutions/wizvec/internal/service"
	"github.com/cloo-solutions/wizvec/internal/source"
	"github.com/cloo-solutions/wizvec/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	snapshotBucket = "snapshots"
	snapshotKey    = "2026/extracted_spells.json"
	dimensions     = openai.DefaultEmbeddingDimensions
	// failMarker makes the fake embedding server reject the request that
	// contains it.
	failMarker = "Unembeddable"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Repo         *repository.KnowledgeChunkRepository
	Embeddings   *FakeEmbeddingServer
	ServerURL    string
	ServerCloser func()
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv starts Postgres and RustFS, uploads the snapshot and serves
// the API backed by a fake embedding endpoint.
func SetupE2EEnv(t *testing.T, snapshot string) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC)

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		Repo:       repository.NewKnowledgeChunkRepository(pool, ""),
		Embeddings: NewFakeEmbeddingServer(),
		HTTPClient: &http.Client{},
	}

	env.UploadSnapshot(snapshot)
	env.ServerURL, env.ServerCloser = env.startServer()

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Embeddings != nil {
		e.Embeddings.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// SnapshotURI is the s3:// location of the uploaded snapshot.
func (e *E2ETestEnv) SnapshotURI() string {
	return fmt.Sprintf("s3://%s/%s", snapshotBucket, snapshotKey)
}

// UploadSnapshot writes body to the snapshot bucket, creating it on first use.
func (e *E2ETestEnv) UploadSnapshot(body string) {
	e.RustFSC.PutSnapshot(e.Ctx, e.T, snapshotBucket, snapshotKey, body)
}

func (e *E2ETestEnv) startServer() (string, func()) {
	s3Client := e.RustFSC.S3Client(e.Ctx, e.T)

	embedder, err := openai.NewClient(openai.Config{
		APIKey:     "test-key",
		BaseURL:    e.Embeddings.URL(),
		Dimensions: dimensions,
	})
	if err != nil {
		e.T.Fatalf("failed to create embedding client: %v", err)
	}

	cfg := service.DefaultPipelineConfig()
	cfg.BatchSize = 2
	cfg.Backoff = 0

	pipeline := service.NewPipeline(source.NewReader(s3Client, nil), embedder, e.Repo, cfg, nil)
	ingestSvc := service.NewIngestService(pipeline, e.SnapshotURI())

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		RunHandler: handlers.NewRunHandler(ingestSvc),
	}))
	return srv.URL, srv.Close
}

// APIResponse represents a standard API response
type APIResponse struct {
	Status int             `json:"-"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return apiResp, nil
}

// RunReport mirrors handlers.RunResponse on the wire.
type RunReport struct {
	RunID            string   `json:"run_id"`
	Categories       []string `json:"categories"`
	ChunksGenerated  int      `json:"chunks_generated"`
	ChunksSubmitted  int      `json:"chunks_submitted"`
	ChunksUpserted   int      `json:"chunks_upserted"`
	BatchesTotal     int      `json:"batches_total"`
	BatchesSucceeded int      `json:"batches_succeeded"`
	FailedBatches    []struct {
		Index   int    `json:"index"`
		Start   int    `json:"start"`
		End     int    `json:"end"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"failed_batches"`
	Cancelled bool   `json:"cancelled"`
	Status    string `json:"status"`
	Summary   string `json:"summary"`
}

// DecodeReport unmarshals the data field of a run response.
func DecodeReport(t *testing.T, resp *APIResponse) RunReport {
	t.Helper()
	var report RunReport
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		t.Fatalf("failed to decode report: %v (%s)", err, resp.Data)
	}
	return report
}

// BuildBinary builds the wizvec binary into a temp dir.
func (e *E2ETestEnv) BuildBinary() {
	tmpDir, err := os.MkdirTemp("", "wizvec-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "wizvec"), "./cmd/wizvec")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build wizvec: %v\n%s", err, out)
	}
}

// RunWizvec runs the CLI against the test database and fake embedding
// server. It returns stdout, stderr and the exit code.
func (e *E2ETestEnv) RunWizvec(extraEnv []string, args ...string) (string, string, int) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "wizvec"), args...)
	cmd.Env = append(os.Environ(),
		"WIZVEC_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"WIZVEC_OPENAI_API_KEY=test-key",
		"WIZVEC_EMBEDDING_BASE_URL="+e.Embeddings.URL(),
		"WIZVEC_S3_ENDPOINT="+e.RustFSC.Endpoint(),
		"WIZVEC_S3_ACCESS_KEY_ID="+testutil.RustFSCredential,
		"WIZVEC_S3_SECRET_ACCESS_KEY="+testutil.RustFSCredential,
		"WIZVEC_S3_USE_PATH_STYLE=true",
		"WIZVEC_BACKOFF=0s",
		"WIZVEC_LOG_FORMAT=json",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.T.Fatalf("failed to run wizvec: %v", err)
		}
		code = exitErr.ExitCode()
	}
	return stdout.String(), stderr.String(), code
}

// FakeEmbeddingServer answers OpenAI-style /embeddings requests with
// deterministic vectors. Requests containing failMarker get a 500.
type FakeEmbeddingServer struct {
	srv      *httptest.Server
	requests atomic.Int64
}

func NewFakeEmbeddingServer() *FakeEmbeddingServer {
	f := &FakeEmbeddingServer{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *FakeEmbeddingServer) URL() string { return f.srv.URL }

func (f *FakeEmbeddingServer) Close() { f.srv.Close() }

// Requests returns how many embedding requests were received.
func (f *FakeEmbeddingServer) Requests() int64 { return f.requests.Load() }

func (f *FakeEmbeddingServer) handle(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)

	var req struct {
		Input      []string `json:"input"`
		Dimensions int      `json:"dimensions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	for _, text := range req.Input {
		if strings.Contains(text, failMarker) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "upstream overloaded", "type": "server_error"}}`))
			return
		}
	}

	dims := req.Dimensions
	if dims == 0 {
		dims = dimensions
	}

	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	for i, text := range req.Input {
		vec := make([]float32, dims)
		for j := range vec {
			vec[j] = float32(len(text)%97+j%7) / 100
		}
		data[i] = item{Object: "embedding", Index: i, Embedding: vec}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "text-embedding-3-small",
		"data":   data,
	})
}
