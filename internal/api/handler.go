package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"medtriage/internal/models"
)

const (
	defaultMaxBodySize = 1024 * 1024 // 1MB
	defaultTimeout     = 60 * time.Second
)

// StorageChecker verifies the backing database is reachable
type StorageChecker interface {
	Check(ctx context.Context) error
}

// TriageHandler handles triage API requests
type TriageHandler struct {
	service     *TriageService
	storage     StorageChecker
	logger      *zap.Logger
	timeout     time.Duration
	maxBodySize int64
}

// HandlerConfig contains settings for the triage handler
type HandlerConfig struct {
	Timeout     time.Duration
	MaxBodySize int64
}

// NewTriageHandler creates a new triage API handler. storage may be nil.
func NewTriageHandler(service *TriageService, storage StorageChecker, logger *zap.Logger, config HandlerConfig) *TriageHandler {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxBodySize == 0 {
		config.MaxBodySize = defaultMaxBodySize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TriageHandler{
		service:     service,
		storage:     storage,
		logger:      logger,
		timeout:     config.Timeout,
		maxBodySize: config.MaxBodySize,
	}
}

// RegisterRoutes registers the API routes
func (h *TriageHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/triage", h.HandleTriage)
	mux.HandleFunc("/api/v1/triage", h.HandleTriage)
	mux.HandleFunc("/api/v1/health", h.HandleHealthCheck)
	mux.HandleFunc("/api/v1/health/storage", h.HandleStorageCheck)
}

// triageRequestBody is the JSON body accepted by HandleTriage
type triageRequestBody struct {
	Symptoms []string           `json:"symptoms"`
	Vitals   map[string]float64 `json:"vitals"`
	AgeYears *int               `json:"age_years"`
	Sex      *string            `json:"sex"`
}

// HandleTriage assesses one patient
func (h *TriageHandler) HandleTriage(w http.ResponseWriter, r *http.Request) {
	// Only allow POST method
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}

	// Limit the request body size
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	defer r.Body.Close()

	var body triageRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	req, err := models.NewTriageRequest(body.Symptoms, body.Vitals, body.AgeYears, body.Sex)
	if err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Assess(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("Triage assessment failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "Triage assessment failed",
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleHealthCheck provides a basic health check endpoint
func (h *TriageHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"path":      string(h.service.Path()),
	})
}

// HandleStorageCheck reports whether the database accepts queries
func (h *TriageHandler) HandleStorageCheck(w http.ResponseWriter, r *http.Request) {
	if h.storage == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "storage check not configured",
		})
		return
	}

	if err := h.storage.Check(r.Context()); err != nil {
		h.logger.Warn("Storage check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure can only be dropped.
	_ = json.NewEncoder(w).Encode(v)
}
