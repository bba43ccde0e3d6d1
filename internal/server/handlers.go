package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/finsight/finsight/internal/config"
	"github.com/finsight/finsight/internal/extract"
	"github.com/finsight/finsight/internal/models"
)

// handleUpload accepts a multipart document upload, extracts its text, and
// ingests it. Re-uploading a file with the same name replaces its chunks.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := filepath.Ext(filename)
	if !extract.IsSupported(ext) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type "+ext)
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	s.logger.Debug("upload request", zap.String("filename", filename), zap.Int("bytes", len(content)))

	text, err := extract.NewExtractor().ExtractBytes(content, ext)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not extract text: "+err.Error())
		return
	}
	ids, err := s.service.ReplaceSource(r.Context(), filename, text)
	if err != nil {
		s.respondPipelineError(w, "ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "ingested " + filename,
		"source":  filename,
		"chunks":  len(ids),
	})
}

type ingestRequest struct {
	Path string `json:"path"`
}

// handleIngest ingests a file or directory that already exists on the server
// host, the same flow the watcher and CLI use.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "path not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if info.IsDir() {
		n, err := s.ingester.IngestDirectory(r.Context(), req.Path)
		if err != nil {
			s.respondPipelineError(w, "directory ingestion failed", err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"path": req.Path, "files": n})
		return
	}
	source, ids, err := s.ingester.IngestFile(r.Context(), req.Path)
	if err != nil {
		s.respondPipelineError(w, "file ingestion failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"path":   req.Path,
		"source": source,
		"chunks": len(ids),
	})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question))
	answer, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		s.respondPipelineError(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondPipelineError(w, "status failed", err)
		return
	}
	resp := map[string]interface{}{
		"chunks":    stats.ChunkCount,
		"dimension": stats.Dimension,
		"config": map[string]interface{}{
			"chunk_size":      s.config.RAG.ChunkSize,
			"chunk_overlap":   s.config.RAG.ChunkOverlap,
			"top_k":           s.config.RAG.TopK,
			"embedding_model": s.config.Embedding.Model,
			"llm_models":      s.config.LLM.Models,
			"database_path":   s.config.Storage.DatabasePath,
		},
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Clear(r.Context())
	if err != nil {
		s.respondPipelineError(w, "clear failed", err)
		return
	}
	s.logger.Info("index cleared", zap.Int("removed", n))
	s.respondJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		s.respondError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}
	n, err := s.service.DeleteSource(r.Context(), source)
	if err != nil {
		s.respondPipelineError(w, "delete failed", err)
		return
	}
	s.logger.Debug("source deleted", zap.String("source", source), zap.Int("removed", n))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"source": source, "removed": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// respondPipelineError maps core pipeline errors to HTTP statuses: bad input
// to 400, dimension conflicts to 409, upstream provider failures to 502,
// everything else to 500.
func (s *Server) respondPipelineError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	switch {
	case models.IsValidation(err):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case models.IsDimensionMismatch(err):
		s.respondError(w, http.StatusConflict, err.Error())
	case models.IsProvider(err):
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"detail": message})
}
