package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"career-pulse/internal/schema"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// maxRequestBytes bounds a prediction request body.
const maxRequestBytes = 64 << 10

// ModelServer provides HTTP API for career predictions
type ModelServer struct {
	predictor *CareerPredictor
	versions  *ModelManager
	server    *http.Server
}

// PredictionRequest carries either named features or a vector in schema
// order. Exactly one must be set.
type PredictionRequest struct {
	Features  map[string]float64 `json:"features,omitempty"`
	Vector    []float64          `json:"vector,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// CareerScore is one ranked career.
type CareerScore struct {
	Career      string  `json:"career"`
	Probability float64 `json:"probability"`
}

// PredictionResponse represents the prediction result
type PredictionResponse struct {
	Prediction
	Top       []CareerScore `json:"top"`
	Warning   string        `json:"warning,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Latency   float64       `json:"latency_ms"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Warning     string `json:"warning,omitempty"`
}

// InfoResponse is the /model/info payload.
type InfoResponse struct {
	ModelInfo
	ActiveVersion *ModelVersion `json:"active_version,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// topN is the number of ranked careers in a prediction response.
const topN = 3

// NewModelServer creates a new HTTP server for model serving. versions may
// be nil. gatherer backs the /metrics endpoint; nil disables it.
func NewModelServer(predictor *CareerPredictor, versions *ModelManager, gatherer prometheus.Gatherer, port int) *ModelServer {
	ms := &ModelServer{
		predictor: predictor,
		versions:  versions,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return ms
}

// Handler returns the server's HTTP handler.
func (ms *ModelServer) Handler() http.Handler {
	return ms.server.Handler
}

// ReloadModel re-reads the version registry and loads the active
// version's artifact. Without a registry, or with no active version, the
// predictor's current path is reloaded. It returns the path now served.
func (ms *ModelServer) ReloadModel() (string, error) {
	path := ms.predictor.Info().Path
	if ms.versions != nil {
		if err := ms.versions.Refresh(); err != nil {
			return path, err
		}
		if active := ms.versions.GetCurrentVersion(); active != nil {
			path = active.Path
		}
	}
	if err := ms.predictor.ReloadFrom(path); err != nil {
		return ms.predictor.Info().Path, err
	}
	return path, nil
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start := time.Now()

	var req PredictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	var (
		pred Prediction
		err  error
	)
	switch {
	case req.Features != nil && req.Vector != nil:
		writeError(w, http.StatusBadRequest, "set either features or vector, not both")
		return
	case req.Features != nil:
		pred, err = ms.predictor.PredictCareer(req.Features)
	case req.Vector != nil:
		pred, err = ms.predictor.PredictVector(req.Vector)
	default:
		writeError(w, http.StatusBadRequest, "features cannot be empty")
		return
	}
	if err != nil {
		if errors.Is(err, schema.ErrInvalidVector) || errors.Is(err, schema.ErrUnknownFeature) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("prediction failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		Prediction: pred,
		Top:        rank(pred.Probabilities, topN),
		Warning:    ms.predictor.Warning(),
		RequestID:  req.RequestID,
		Latency:    float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:  time.Now(),
	})
}

// rank returns the n most likely careers, ties in career order.
func rank(proba []float64, n int) []CareerScore {
	idx := make([]int, len(proba))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return proba[idx[a]] > proba[idx[b]]
	})
	if n > len(idx) {
		n = len(idx)
	}

	top := make([]CareerScore, 0, n)
	for _, i := range idx[:n] {
		name, err := schema.CareerName(i)
		if err != nil {
			continue
		}
		top = append(top, CareerScore{Career: name, Probability: proba[i]})
	}
	return top
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:      "ok",
		ModelLoaded: ms.predictor.Available(),
		Warning:     ms.predictor.Warning(),
	}
	if !health.ModelLoaded {
		health.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := InfoResponse{ModelInfo: ms.predictor.Info()}
	if ms.versions != nil {
		info.ActiveVersion = ms.versions.GetCurrentVersion()
	}
	writeJSON(w, http.StatusOK, info)
}
