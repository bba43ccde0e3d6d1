package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/finsight/internal/chunker"
	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/embedding"
	"github.com/finsight/finsight/internal/extract"
	"github.com/finsight/finsight/internal/generator"
	"github.com/finsight/finsight/internal/rag"
	"github.com/finsight/finsight/internal/vectorstore"
	"github.com/finsight/finsight/internal/watcher"
)

// stubClient answers every chat completion with a fixed string.
type stubClient struct{ answer string }

func (c stubClient) Complete(context.Context, string, string, string) (string, error) {
	return c.answer, nil
}

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "chunks.db")
	cfg.RAG.ChunkSize = 5
	cfg.RAG.ChunkOverlap = 0

	store, err := vectorstore.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	gen := generator.New(stubClient{answer: "stub answer"}, generator.Config{
		Models:      []string{"model-a"},
		MaxRetries:  1,
		Timeout:     time.Second,
		BackoffBase: time.Millisecond,
	}, nil)
	svc := rag.NewService(ch, embedding.NewMockEmbedder(8), store, gen,
		cfg.RAG.TopK, cfg.RAG.MaxConcurrent, nil)
	ingester := rag.NewFileIngester(svc, extract.NewExtractor(), nil)
	return NewServer(svc, ingester, cfg, zap.NewNop(), opts...)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHandleUpload(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, "report.txt", "Revenue grew 10% in Q3. Expenses remained flat.")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["source"] != "report.txt" {
		t.Errorf("source: %v", body["source"])
	}
	if body["chunks"].(float64) != 2 {
		t.Errorf("chunks: %v", body["chunks"])
	}
}

func TestHandleUpload_replacesSameFilename(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 2; i++ {
		buf, contentType := multipartUpload(t, "doc.txt", "some document content here")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
		req.Header.Set("Content-Type", contentType)
		if rec := doRequest(srv, req); rec.Code != http.StatusOK {
			t.Fatalf("upload %d: status %d", i, rec.Code)
		}
	}
	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	body := decodeBody(t, rec)
	if body["chunks"].(float64) != 1 {
		t.Errorf("re-upload should replace chunks, got %v", body["chunks"])
	}
}

func TestHandleUpload_unsupportedType(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, "virus.exe", "binary")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(srv, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, ok := body["detail"]; !ok {
		t.Errorf("error body must carry detail: %v", body)
	}
}

func TestHandleUpload_missingFile(t *testing.T) {
	srv := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := doRequest(srv, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleIngest_file(t *testing.T) {
	srv := newTestServer(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("server side ingestion of a local file"), 0600); err != nil {
		t.Fatal(err)
	}
	payload, _ := json.Marshal(map[string]string{"path": path})
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if src, _ := body["source"].(string); !strings.HasPrefix(src, "notes.txt#") {
		t.Errorf("source: %v", body["source"])
	}
	if body["chunks"].(float64) == 0 {
		t.Errorf("chunks: %v", body["chunks"])
	}
}

func TestHandleIngest_directory(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("directory document body"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	payload, _ := json.Marshal(map[string]string{"path": dir})
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["files"].(float64) != 2 {
		t.Errorf("files: %v", body["files"])
	}
}

func TestHandleIngest_missingPath(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ingest",
		strings.NewReader(`{"path": ""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
	rec = doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ingest",
		strings.NewReader(`{"path": "/no/such/file.txt"}`)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, "report.txt", "Revenue grew 10% in Q3. Expenses remained flat.")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", contentType)
	if rec := doRequest(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d", rec.Code)
	}

	askBody := strings.NewReader(`{"question": "What happened to revenue?"}`)
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ask", askBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["answer"] != "stub answer" || body["model"] != "model-a" {
		t.Errorf("body: %v", body)
	}
	if body["chunk_count"].(float64) != 2 {
		t.Errorf("chunk_count: %v", body["chunk_count"])
	}
	if body["context"].(string) == "" {
		t.Error("context missing")
	}
}

func TestHandleAsk_emptyQuestion(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"question": "   "}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["detail"] != "question is required" {
		t.Errorf("detail: %v", body["detail"])
	}
}

func TestHandleAsk_emptyStore(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"question": "anything?"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["model"] != "none" {
		t.Errorf("model: %v", body["model"])
	}
	if body["chunk_count"].(float64) != 0 {
		t.Errorf("chunk_count: %v", body["chunk_count"])
	}
}

func TestHandleClearAndStatus(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, "doc.txt", "content to be cleared")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", contentType)
	if rec := doRequest(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d", rec.Code)
	}

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/clear", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["removed"].(float64) != 1 {
		t.Errorf("removed: %v", body["removed"])
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	body := decodeBody(t, rec)
	if body["chunks"].(float64) != 0 {
		t.Errorf("chunks after clear: %v", body["chunks"])
	}
	if _, ok := body["config"]; !ok {
		t.Error("status should include config")
	}
}

func TestHandleDeleteSource(t *testing.T) {
	srv := newTestServer(t)
	buf, contentType := multipartUpload(t, "doomed.txt", "short lived document")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", buf)
	req.Header.Set("Content-Type", contentType)
	if rec := doRequest(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("upload: %d", rec.Code)
	}

	rec := doRequest(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/documents?source=doomed.txt", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["removed"].(float64) != 1 {
		t.Errorf("removed: %v", body["removed"])
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/documents", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing source should 400, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestWatchEndpoints_disabled(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status %d", rec.Code)
	}
}

func TestWatchEndpoints_addListRemove(t *testing.T) {
	w := watcher.NewWatcher(nil, true, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	srv := newTestServer(t, WithWatch(w, ""))

	dir := t.TempDir()
	addBody, _ := json.Marshal(map[string]interface{}{"path": dir, "sync": false})
	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/v1/watch/directories", bytes.NewReader(addBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	body := decodeBody(t, rec)
	dirs := body["directories"].([]interface{})
	if len(dirs) != 1 {
		t.Fatalf("directories: %v", dirs)
	}

	rec = doRequest(srv, httptest.NewRequest(http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: %d", rec.Code)
	}
	rec = doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/v1/watch/directories", nil))
	body = decodeBody(t, rec)
	if dirs, ok := body["directories"].([]interface{}); ok && len(dirs) != 0 {
		t.Errorf("directories after remove: %v", dirs)
	}
}
