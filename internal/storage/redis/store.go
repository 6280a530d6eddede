// Package redis persists patients and pipeline run records in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
)

var (
	// ErrPatientNotFound is returned when a patient ID has no stored row.
	ErrPatientNotFound = errors.New("patient not found")
	// ErrRunNotFound is returned when a run ID has no stored row.
	ErrRunNotFound = errors.New("pipeline run not found")
	// ErrDuplicateMRN is returned when saving a patient whose MRN is taken.
	ErrDuplicateMRN = errors.New("duplicate mrn")
)

// Patient is the stored form of an ingested patient. PHI fields arrive
// already encrypted; this layer never sees plaintext.
type Patient struct {
	ID            string          `json:"id"`
	MRN           string          `json:"mrn"`
	EncryptedName string          `json:"encrypted_name"`
	EncryptedDOB  string          `json:"encrypted_dob"`
	EncryptedSSN  string          `json:"encrypted_ssn,omitempty"`
	Gender        string          `json:"gender,omitempty"`
	Consents      map[string]bool `json:"consents"`
	FHIRResource  map[string]any  `json:"fhir_resource"`
	CreatedAt     time.Time       `json:"created_at"`
}

// HasDataSharingConsent reports whether the patient granted data sharing.
func (p *Patient) HasDataSharingConsent() bool {
	return p.Consents["data_sharing"]
}

// RunRecord is the stored history of one pipeline execution, including the
// definition snapshot of the graph that was run.
type RunRecord struct {
	ID          string                     `json:"id"`
	Pipeline    string                     `json:"pipeline"`
	Status      dag.RunStatus              `json:"status"`
	StartedAt   time.Time                  `json:"started_at"`
	CompletedAt time.Time                  `json:"completed_at"`
	InputCount  int                        `json:"input_record_count"`
	OutputCount int                        `json:"output_record_count"`
	Tasks       map[string]dag.TaskSummary `json:"tasks"`
	Definition  dag.Definition             `json:"dag_definition"`
}

// Store implements patient and run persistence on Redis.
type Store struct {
	client *backend.Client
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store with its own client.
func New(addr, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "etl:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) patientKey(id string) string { return s.prefix + "patient:" + id }
func (s *Store) mrnKey(mrn string) string    { return s.prefix + "patient:mrn:" + mrn }
func (s *Store) patientIndexKey() string     { return s.prefix + "patient:index" }
func (s *Store) runKey(id string) string     { return s.prefix + "run:" + id }
func (s *Store) runIndexKey() string         { return s.prefix + "run:index" }

// SavePatient persists a patient, enforcing MRN uniqueness.
func (s *Store) SavePatient(ctx context.Context, patient *Patient) error {
	data, err := json.Marshal(patient)
	if err != nil {
		return fmt.Errorf("failed to marshal patient: %w", err)
	}

	// Claim the MRN first; losing the claim means a duplicate.
	claimed, err := s.client.SetNX(ctx, s.mrnKey(patient.MRN), patient.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve mrn: %w", err)
	}
	if !claimed {
		return fmt.Errorf("%w: %s", ErrDuplicateMRN, patient.MRN)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.patientKey(patient.ID), data, 0)
	pipe.ZAdd(ctx, s.patientIndexKey(), backend.Z{
		Score:  float64(patient.CreatedAt.Unix()),
		Member: patient.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}
	return nil
}

// GetPatient loads one patient by ID.
func (s *Store) GetPatient(ctx context.Context, id string) (*Patient, error) {
	val, err := s.client.Get(ctx, s.patientKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	var patient Patient
	if err := json.Unmarshal([]byte(val), &patient); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patient: %w", err)
	}
	return &patient, nil
}

// ListPatients returns all stored patients in insertion order. Consent
// filtering is the caller's policy, not the store's.
func (s *Store) ListPatients(ctx context.Context) ([]*Patient, error) {
	ids, err := s.client.ZRange(ctx, s.patientIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	patients := make([]*Patient, 0, len(ids))
	for _, id := range ids {
		patient, err := s.GetPatient(ctx, id)
		if err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				continue // index entry outlived the row
			}
			return nil, err
		}
		patients = append(patients, patient)
	}
	return patients, nil
}

// SaveRun persists one pipeline run record.
func (s *Store) SaveRun(ctx context.Context, run *RunRecord) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.runKey(run.ID), data, 0)
	pipe.ZAdd(ctx, s.runIndexKey(), backend.Z{
		Score:  float64(run.StartedAt.UnixNano()),
		Member: run.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads one run record by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	val, err := s.client.Get(ctx, s.runKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run RunRecord
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// ListRuns returns run IDs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.runIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Client exposes the underlying client so collaborators (the audit trail)
// can share one connection pool.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Ping verifies connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
