package pipeline

// PatientRecord is the typed form of an incoming FHIR Patient payload.
// Raw records travel through the early stages as maps (the schema validator
// and consent gate work structurally) and are decoded into this shape at the
// transform boundary.
type PatientRecord struct {
	ResourceType string          `json:"resourceType" mapstructure:"resourceType"`
	MRN          string          `json:"mrn" mapstructure:"mrn"`
	Name         string          `json:"name" mapstructure:"name"`
	BirthDate    string          `json:"birthDate" mapstructure:"birthDate"`
	Gender       string          `json:"gender" mapstructure:"gender"`
	SSN          string          `json:"ssn" mapstructure:"ssn"`
	Consent      map[string]bool `json:"consent" mapstructure:"consent"`
}

// TransformedRecord is the internal storage form of a patient: PHI fields
// encrypted, the original FHIR payload kept verbatim for clinical storage.
type TransformedRecord struct {
	MRN           string         `json:"mrn"`
	EncryptedName string         `json:"encrypted_name"`
	EncryptedDOB  string         `json:"encrypted_dob"`
	EncryptedSSN  string         `json:"encrypted_ssn,omitempty"`
	Gender        string         `json:"gender,omitempty"`
	ResourceType  string         `json:"resource_type"`
	FHIRResource  map[string]any `json:"fhir_resource"`
}

// InvalidRecord pairs a rejected record with every validation error found.
type InvalidRecord struct {
	Record map[string]any `json:"record"`
	Errors []string       `json:"errors"`
}

// BlockedRecord identifies a record stopped at the consent gate.
type BlockedRecord struct {
	MRN    string `json:"mrn"`
	Reason string `json:"reason"`
}
