package server

import (
	"time"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
)

// IngestRequest is a batch of raw FHIR Patient payloads.
type IngestRequest struct {
	Records []map[string]any `json:"records"`
}

// maxBatchSize bounds one ingestion request.
const maxBatchSize = 1000

// PipelineResult is the response to a successful ingestion call.
type PipelineResult struct {
	Pipeline     string                     `json:"pipeline"`
	Status       dag.RunStatus              `json:"status"`
	RunID        string                     `json:"run_id"`
	Tasks        map[string]dag.TaskSummary `json:"tasks"`
	RecordCounts map[string]int             `json:"record_counts"`
}

// PatientResponse is the non-PHI view of a stored patient.
type PatientResponse struct {
	ID                    string    `json:"id"`
	MRN                   string    `json:"mrn"`
	Gender                string    `json:"gender,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	HasDataSharingConsent bool      `json:"has_data_sharing_consent"`
}

// HealthResponse reports service and backend status.
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Detail string `json:"detail"`
}
