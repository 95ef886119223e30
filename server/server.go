// Package server exposes the fill pipeline over HTTP.
//
// A client uploads a workbook, which is resolved into a batch and kept under a
// new id, then downloads the filled artifact for that id. POST /api/fill does
// both in one request.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/javajack/sheetform"
	"go.uber.org/zap"
)

// Engine is the fill pipeline the server drives.
type Engine interface {
	Resolve(wb *sheetform.Workbook) *sheetform.Batch
	RunBatch(ctx context.Context, batch *sheetform.Batch) (*sheetform.Artifact, error)
	Fields(ctx context.Context, template string) ([]sheetform.FieldInfo, error)
	Describe(ctx context.Context, template string) (string, error)
}

// Config holds server settings.
type Config struct {
	MaxUploads     int   // uploads kept before the oldest is evicted
	MaxUploadBytes int64 // request body limit for uploads
}

const defaultMaxUploadBytes = 32 << 20

// Error codes returned in JSON error bodies.
const (
	CodeNoDataUploaded  = "NO_DATA_UPLOADED"
	CodeInvalidWorkbook = "INVALID_WORKBOOK"
	CodeInvalidTemplate = "INVALID_TEMPLATE_NAME"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL"
)

// Server routes HTTP requests to an Engine.
type Server struct {
	router   *chi.Mux
	engine   Engine
	uploads  *uploadStore
	logger   *zap.Logger
	maxBytes int64
}

// New creates a server. A nil logger discards logs.
func New(engine Engine, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		router:   chi.NewRouter(),
		engine:   engine,
		uploads:  newUploadStore(cfg.MaxUploads),
		logger:   logger,
		maxBytes: cfg.MaxUploadBytes,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/uploads", s.handleUpload)
		r.Get("/uploads/{id}", s.handleGetUpload)
		r.Get("/uploads/{id}/download", s.handleDownload)
		r.Post("/fill", s.handleFill)
		r.Get("/templates/{name}/fields", s.handleTemplateFields)
	})
}

// sheetSummary is the JSON view of one resolved sheet.
type sheetSummary struct {
	Template   string   `json:"template"`
	TableFound bool     `json:"tableFound"`
	Fields     []string `json:"fields"`
	Dropped    []string `json:"dropped"`
}

type uploadResponse struct {
	ID       string         `json:"id"`
	FileName string         `json:"fileName"`
	Received time.Time      `json:"received"`
	Sheets   []sheetSummary `json:"sheets"`
}

func summarize(u *upload) uploadResponse {
	resp := uploadResponse{ID: u.ID, FileName: u.FileName, Received: u.Received, Sheets: []sheetSummary{}}
	for _, res := range u.Batch.Resolutions() {
		dropped := res.Dropped
		if dropped == nil {
			dropped = []string{}
		}
		resp.Sheets = append(resp.Sheets, sheetSummary{
			Template:   res.Template,
			TableFound: res.TableFound,
			Fields:     res.Values.Fields(),
			Dropped:    dropped,
		})
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "uploads": s.uploads.len()})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.receiveWorkbook(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, summarize(u))
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.uploads.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNoDataUploaded, "no upload with this id", "")
		return
	}
	writeJSON(w, http.StatusOK, summarize(u))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	u, ok := s.uploads.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, CodeNoDataUploaded, "no upload with this id", "")
		return
	}
	s.runAndSend(w, r, u.Batch)
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	u, ok := s.receiveWorkbook(w, r)
	if !ok {
		return
	}
	s.runAndSend(w, r, u.Batch)
}

func (s *Server) handleTemplateFields(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !sheetform.ValidTemplateName(name) {
		writeError(w, http.StatusBadRequest, CodeInvalidTemplate, "invalid template name", name)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		text, err := s.engine.Describe(r.Context(), name)
		if err != nil {
			s.writeFillError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(text))
		return
	}
	fields, err := s.engine.Fields(r.Context(), name)
	if err != nil {
		s.writeFillError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"template": name, "fields": fields})
}

// receiveWorkbook reads the "workbook" multipart file, resolves it and stores
// the batch. On failure it writes the error response and returns false.
func (s *Server) receiveWorkbook(w http.ResponseWriter, r *http.Request) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)

	file, header, err := r.FormFile("workbook")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBadRequest,
				fmt.Sprintf("upload exceeds %d bytes", s.maxBytes), "")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "multipart field \"workbook\" is required", "")
		return nil, false
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		writeError(w, http.StatusBadRequest, CodeInvalidWorkbook, "only .xlsx workbooks are accepted", "")
		return nil, false
	}

	wb, err := sheetform.ReadWorkbook(file)
	if err != nil {
		s.logger.Warn("unreadable workbook", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, CodeInvalidWorkbook, err.Error(), "")
		return nil, false
	}

	u := s.uploads.add(header.Filename, s.engine.Resolve(wb))
	s.logger.Info("workbook uploaded",
		zap.String("id", u.ID),
		zap.String("file", header.Filename),
		zap.Strings("sheets", wb.SheetNames()))
	return u, true
}

// runAndSend runs batch and writes the artifact as an attachment.
func (s *Server) runAndSend(w http.ResponseWriter, r *http.Request, batch *sheetform.Batch) {
	artifact, err := s.engine.RunBatch(r.Context(), batch)
	if err != nil {
		s.writeFillError(w, err)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Warn("download interrupted", zap.String("file", artifact.FileName), zap.Error(err))
	}
}

// writeFillError maps pipeline errors onto HTTP responses.
func (s *Server) writeFillError(w http.ResponseWriter, err error) {
	var te *sheetform.TemplateError
	switch {
	case errors.Is(err, sheetform.ErrNoDataUploaded):
		writeError(w, http.StatusBadRequest, CodeNoDataUploaded, err.Error(), "")
	case errors.As(err, &te):
		status := http.StatusUnprocessableEntity
		if te.Kind == sheetform.TemplateNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, te.Kind.String(), err.Error(), te.Template)
	case errors.Is(err, sheetform.ErrInvalidTemplateName):
		writeError(w, http.StatusBadRequest, CodeInvalidTemplate, err.Error(), "")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "internal error", "")
	}
}

type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	Template string `json:"template,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg, template string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Template: template})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
