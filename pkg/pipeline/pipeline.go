// Package pipeline wires the patient ingestion stages onto a dag.Graph:
// extract -> validate -> check_consent -> transform -> load.
//
// Stages communicate through documented context keys; each stage reads the
// keys of its upstream neighbours and contributes its own. Records lacking
// explicit data_sharing consent are dropped at the gate: no consent, no
// processing.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/fhir"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/phi"
)

// GraphName identifies the patient ingestion graph in run records.
const GraphName = "patient_ingestion"

// Context keys produced and consumed by the stages.
const (
	KeyRawRecords         = "raw_records"
	KeyExtractedRecords   = "extracted_records"
	KeyExtractCount       = "extract_count"
	KeyValidRecords       = "valid_records"
	KeyValidationErrors   = "validation_errors"
	KeyValidCount         = "valid_count"
	KeyConsentedRecords   = "consented_records"
	KeyConsentBlocked     = "consent_blocked"
	KeyConsentedCount     = "consented_count"
	KeyTransformedRecords = "transformed_records"
	KeyTransformCount     = "transform_count"
	KeyLoadedRecords      = "loaded_records"
	KeyLoadCount          = "load_count"
)

// Stage names, in execution order.
const (
	StageExtract      = "extract"
	StageValidate     = "validate"
	StageCheckConsent = "check_consent"
	StageTransform    = "transform"
	StageLoad         = "load"
)

// Pipeline builds patient ingestion graphs. Dependencies are injected
// explicitly; there is no package-level encryption state.
type Pipeline struct {
	encryptor *phi.Encryptor
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used by the stages and the graph executor.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline around the given PHI encryptor.
func New(encryptor *phi.Encryptor, opts ...Option) *Pipeline {
	p := &Pipeline{encryptor: encryptor}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Build constructs a fresh patient ingestion graph. Graphs hold run state,
// so every run needs its own.
func (p *Pipeline) Build() (*dag.Graph, error) {
	g := dag.New(GraphName, dag.WithLogger(p.logger))

	steps := []struct {
		name string
		fn   dag.TaskFunc
		deps []string
	}{
		{StageExtract, p.extract, nil},
		{StageValidate, p.validate, []string{StageExtract}},
		{StageCheckConsent, p.checkConsent, []string{StageValidate}},
		{StageTransform, p.transform, []string{StageCheckConsent}},
		{StageLoad, p.load, []string{StageTransform}},
	}
	for _, step := range steps {
		if err := g.Add(step.name, step.fn, step.deps...); err != nil {
			return nil, fmt.Errorf("failed to assemble pipeline: %w", err)
		}
	}
	return g, nil
}

// extract lifts the raw records out of the initial context. In a larger
// deployment this stage would pull from object storage or an HL7 feed.
func (p *Pipeline) extract(ctx dag.Context) (dag.Result, error) {
	raw := recordsAt(ctx, KeyRawRecords)
	p.logger.Info("extracted raw records", "count", len(raw))
	return dag.Result{
		KeyExtractedRecords: raw,
		KeyExtractCount:     len(raw),
	}, nil
}

// validate runs every record through the FHIR Patient schema. Invalid
// records are collected with their full error lists; they never halt the
// stage.
func (p *Pipeline) validate(ctx dag.Context) (dag.Result, error) {
	records := recordsAt(ctx, KeyExtractedRecords)

	valid := []map[string]any{}
	invalid := []InvalidRecord{}
	for _, record := range records {
		if errs := fhir.Validate(record, fhir.PatientSchema); len(errs) > 0 {
			invalid = append(invalid, InvalidRecord{Record: record, Errors: errs})
		} else {
			valid = append(valid, record)
		}
	}

	p.logger.Info("validation finished", "valid", len(valid), "invalid", len(invalid))
	return dag.Result{
		KeyValidRecords:     valid,
		KeyValidationErrors: invalid,
		KeyValidCount:       len(valid),
	}, nil
}

// checkConsent drops every record without an explicit data_sharing consent.
func (p *Pipeline) checkConsent(ctx dag.Context) (dag.Result, error) {
	records := recordsAt(ctx, KeyValidRecords)

	consented := []map[string]any{}
	blocked := []BlockedRecord{}
	for _, record := range records {
		if hasDataSharingConsent(record) {
			consented = append(consented, record)
		} else {
			mrn, _ := record["mrn"].(string)
			blocked = append(blocked, BlockedRecord{MRN: mrn, Reason: "no data_sharing consent"})
		}
	}

	p.logger.Info("consent gate finished", "consented", len(consented), "blocked", len(blocked))
	return dag.Result{
		KeyConsentedRecords: consented,
		KeyConsentBlocked:   blocked,
		KeyConsentedCount:   len(consented),
	}, nil
}

// transform decodes each consented record into its typed form, encrypts the
// PHI fields and normalizes to the internal storage shape.
func (p *Pipeline) transform(ctx dag.Context) (dag.Result, error) {
	records := recordsAt(ctx, KeyConsentedRecords)

	transformed := make([]TransformedRecord, 0, len(records))
	for _, raw := range records {
		var record PatientRecord
		if err := mapstructure.Decode(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}

		name, err := p.encryptor.Encrypt(record.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt name for %s: %w", record.MRN, err)
		}
		dob, err := p.encryptor.Encrypt(record.BirthDate)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt birth date for %s: %w", record.MRN, err)
		}
		ssn, err := p.encryptor.Encrypt(record.SSN)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt ssn for %s: %w", record.MRN, err)
		}

		transformed = append(transformed, TransformedRecord{
			MRN:           record.MRN,
			EncryptedName: name,
			EncryptedDOB:  dob,
			EncryptedSSN:  ssn,
			Gender:        record.Gender,
			ResourceType:  "Patient",
			FHIRResource:  raw,
		})
	}

	p.logger.Info("transformed records", "count", len(transformed))
	return dag.Result{
		KeyTransformedRecords: transformed,
		KeyTransformCount:     len(transformed),
	}, nil
}

// load stages transformed records for the caller to persist.
func (p *Pipeline) load(ctx dag.Context) (dag.Result, error) {
	records, _ := ctx[KeyTransformedRecords].([]TransformedRecord)
	p.logger.Info("records ready for persistence", "count", len(records))
	return dag.Result{
		KeyLoadedRecords: records,
		KeyLoadCount:     len(records),
	}, nil
}

func recordsAt(ctx dag.Context, key string) []map[string]any {
	records, _ := ctx[key].([]map[string]any)
	return records
}

func hasDataSharingConsent(record map[string]any) bool {
	consent, _ := record["consent"].(map[string]any)
	granted, _ := consent["data_sharing"].(bool)
	return granted
}
