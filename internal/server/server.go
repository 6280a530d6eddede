// Package server exposes the ingestion pipeline and patient lookups over
// HTTP. Patient reads are consent-gated: without data_sharing consent the
// API refuses to return the record.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/audit"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/metrics"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/storage/redis"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/pipeline"
)

// Server wires the pipeline, stores and audit trail behind the HTTP API.
type Server struct {
	pipeline    *pipeline.Pipeline
	store       *redis.Store
	audit       *audit.Logger
	metrics     *metrics.Metrics
	logger      *slog.Logger
	environment string
}

// New creates a Server. All collaborators are injected; the server owns no
// global state.
func New(p *pipeline.Pipeline, store *redis.Store, auditLog *audit.Logger, m *metrics.Metrics, logger *slog.Logger, environment string) *Server {
	return &Server{
		pipeline:    p,
		store:       store,
		audit:       auditLog,
		metrics:     m,
		logger:      logger,
		environment: environment,
	}
}

// Handler builds the chi router for the API surface.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/ingest", s.handleIngest)
		r.Get("/patients", s.handleListPatients)
		r.Get("/patients/{id}", s.handleGetPatient)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	database := "connected"
	if err := s.store.Ping(r.Context()); err != nil {
		database = "disconnected"
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "healthy",
		Environment: s.environment,
		Database:    database,
	})
}

// handleIngest accepts a batch of patient records, runs them through the
// ETL graph and persists the results.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Records) == 0 {
		s.writeError(w, http.StatusBadRequest, "records must not be empty")
		return
	}
	if len(req.Records) > maxBatchSize {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("batch exceeds %d records", maxBatchSize))
		return
	}

	graph, err := s.pipeline.Build()
	if err != nil {
		s.logger.Error("failed to build pipeline", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build pipeline")
		return
	}

	startedAt := time.Now().UTC()
	summary, err := graph.Run(dag.Context{pipeline.KeyRawRecords: req.Records})
	if err != nil {
		// Only schedule-time failures reach here; task faults are contained
		// inside the summary.
		s.logger.Error("pipeline run rejected", "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	completedAt := time.Now().UTC()
	s.metrics.ObserveRun(summary)

	counts := recordCounts(graph)
	s.metrics.ObserveRecords(counts)

	loaded, _ := graph.Task(pipeline.StageLoad).Result[pipeline.KeyLoadedRecords].([]pipeline.TransformedRecord)

	persisted := 0
	for _, record := range loaded {
		patient := &redis.Patient{
			ID:            uuid.NewString(),
			MRN:           record.MRN,
			EncryptedName: record.EncryptedName,
			EncryptedDOB:  record.EncryptedDOB,
			EncryptedSSN:  record.EncryptedSSN,
			Gender:        record.Gender,
			Consents:      consentFlags(record.FHIRResource),
			FHIRResource:  record.FHIRResource,
			CreatedAt:     time.Now().UTC(),
		}

		if err := s.store.SavePatient(r.Context(), patient); err != nil {
			if errors.Is(err, redis.ErrDuplicateMRN) {
				s.logger.Warn("skipping already-ingested patient", "mrn", record.MRN)
				continue
			}
			s.logger.Error("failed to persist patient", "mrn", record.MRN, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to persist patients")
			return
		}

		if err := s.audit.Log(r.Context(), "etl_pipeline", "create", "Patient", patient.ID,
			map[string]any{"mrn": record.MRN, "pipeline": summary.Pipeline}); err != nil {
			s.logger.Error("failed to write audit entry", "error", err)
		}
		persisted++
	}

	run := &redis.RunRecord{
		ID:          uuid.NewString(),
		Pipeline:    summary.Pipeline,
		Status:      summary.Status,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		InputCount:  len(req.Records),
		OutputCount: persisted,
		Tasks:       summary.Tasks,
		Definition:  graph.Definition(),
	}
	if err := s.store.SaveRun(r.Context(), run); err != nil {
		s.logger.Error("failed to record pipeline run", "error", err)
	}

	s.writeJSON(w, http.StatusOK, PipelineResult{
		Pipeline:     summary.Pipeline,
		Status:       summary.Status,
		RunID:        run.ID,
		Tasks:        summary.Tasks,
		RecordCounts: counts,
	})
}

// handleGetPatient returns one patient, refusing records without
// data_sharing consent.
func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patient, err := s.store.GetPatient(r.Context(), id)
	if err != nil {
		if errors.Is(err, redis.ErrPatientNotFound) {
			s.writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		s.logger.Error("failed to load patient", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load patient")
		return
	}

	if !patient.HasDataSharingConsent() {
		s.writeError(w, http.StatusForbidden, "patient has not granted data sharing consent")
		return
	}

	if err := s.audit.Log(r.Context(), "api_user", "read", "Patient", patient.ID, nil); err != nil {
		s.logger.Error("failed to write audit entry", "error", err)
	}

	s.writeJSON(w, http.StatusOK, toPatientResponse(patient))
}

// handleListPatients returns every patient who granted data sharing consent.
func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.store.ListPatients(r.Context())
	if err != nil {
		s.logger.Error("failed to list patients", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list patients")
		return
	}

	results := []PatientResponse{}
	for _, patient := range patients {
		if patient.HasDataSharingConsent() {
			results = append(results, toPatientResponse(patient))
		}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, redis.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "pipeline run not found")
			return
		}
		s.logger.Error("failed to load run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

func toPatientResponse(p *redis.Patient) PatientResponse {
	return PatientResponse{
		ID:                    p.ID,
		MRN:                   p.MRN,
		Gender:                p.Gender,
		CreatedAt:             p.CreatedAt,
		HasDataSharingConsent: p.HasDataSharingConsent(),
	}
}

// consentFlags pulls the consent object out of the raw FHIR payload.
func consentFlags(resource map[string]any) map[string]bool {
	flags := map[string]bool{}
	consent, _ := resource["consent"].(map[string]any)
	for key, value := range consent {
		granted, _ := value.(bool)
		flags[key] = granted
	}
	return flags
}

// recordCounts gathers every *_count result produced by the stages.
func recordCounts(graph *dag.Graph) map[string]int {
	counts := map[string]int{}
	for _, stage := range []string{
		pipeline.StageExtract,
		pipeline.StageValidate,
		pipeline.StageCheckConsent,
		pipeline.StageTransform,
		pipeline.StageLoad,
	} {
		task := graph.Task(stage)
		if task == nil {
			continue
		}
		for key, value := range task.Result {
			if count, ok := value.(int); ok && strings.HasSuffix(key, "_count") {
				counts[key] = count
			}
		}
	}
	return counts
}
