package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"recomo/internal/config"
	"recomo/internal/logging"
)

const (
	fieldVideo = "video"
	fieldData  = "data"

	// multipart parts above this size spill to temporary files.
	formMemory = 32 << 20
)

// File describes one stored upload.
type File struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

// Response is the JSON body of a successful upload.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Files   []File `json:"files"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Health is the GET /health body.
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Error   string `json:"error,omitempty"`
}

// Server is the upload relay HTTP server.
type Server struct {
	bind     string
	token    string
	maxBytes int64
	storage  *Storage
	logger   *slog.Logger
	router   *mux.Router

	listener net.Listener
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithClock overrides the time source used for dated directories.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.storage = NewStorage(s.storage.Base(), now) }
}

// New builds a relay server from cfg.Relay.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("relay: config required")
	}
	s := &Server{
		bind:     cfg.Relay.Bind,
		token:    cfg.Relay.Token,
		maxBytes: int64(cfg.Relay.MaxUploadMiB) << 20,
		storage:  NewStorage(cfg.Relay.StorageBasePath, nil),
		logger:   logging.NewComponentLogger(logger, "relay"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/upload", authMiddleware(s.token, s.handleUpload)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.Use(corsMiddleware)
	s.router = r

	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler exposes the router for embedding and tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Start checks storage, binds the listener and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if err := s.storage.Preflight(); err != nil {
		return fmt.Errorf("relay storage preflight: %w", err)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("relay listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("relay server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("relay listening",
		logging.String("address", listener.Addr().String()),
		logging.String("storage", s.storage.Base()),
		logging.Bool("auth", s.token != ""))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight uploads.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := s.logger.With(logging.String(logging.FieldCorrelationID, requestID))
	w.Header().Set("X-Request-ID", requestID)

	if s.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	}
	files, err := s.storeUpload(r)
	if err != nil {
		logging.ErrorWithContext(logger, "upload failed", "relay_upload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the storage path and the multipart fields"),
			logging.String(logging.FieldImpact, "the capture was not stored"))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Success: false, Message: err.Error()}, logger)
		return
	}

	logger.Info("upload stored",
		logging.String(logging.FieldEventType, "relay_upload_stored"),
		logging.Int("files", len(files)))
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Files uploaded successfully", Files: files}, logger)
}

func (s *Server) storeUpload(r *http.Request) ([]File, error) {
	if err := r.ParseMultipartForm(formMemory); err != nil {
		return nil, fmt.Errorf("parse upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	if err := s.storage.Preflight(); err != nil {
		return nil, err
	}
	files := []File{}
	for _, field := range []string{fieldVideo, fieldData} {
		headers := r.MultipartForm.File[field]
		if len(headers) == 0 {
			continue
		}
		path, err := s.storage.Save(headers[0])
		if err != nil {
			return nil, err
		}
		files = append(files, File{Type: field, Path: path})
	}
	return files, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Preflight(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Health{Status: "degraded", Storage: s.storage.Base(), Error: err.Error()}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, Health{Status: "ok", Storage: s.storage.Base()}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", logging.Error(err))
	}
}
