// Package fhir carries simplified FHIR R4 resource schemas and the
// validation used to gate records entering the ingestion pipeline.
//
// Real FHIR schemas are enormous; these capture the structural subset the
// pipeline actually depends on.
package fhir

import "github.com/getkin/kin-openapi/openapi3"

// PatientSchema is a pragmatic subset of the HL7 FHIR R4 Patient resource.
var PatientSchema = buildPatientSchema()

// ObservationSchema is a pragmatic subset of the FHIR R4 Observation resource.
var ObservationSchema = buildObservationSchema()

func buildPatientSchema() *openapi3.Schema {
	consent := openapi3.NewObjectSchema().
		WithProperty("data_sharing", openapi3.NewBoolSchema()).
		WithProperty("research", openapi3.NewBoolSchema())
	consent.Description = "Consent flags. data_sharing must be true for a record to pass the gate."

	s := openapi3.NewObjectSchema().
		WithProperty("resourceType", openapi3.NewStringSchema().WithEnum("Patient")).
		WithProperty("mrn", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("name", openapi3.NewStringSchema().WithMinLength(1)).
		WithProperty("birthDate", openapi3.NewStringSchema().WithPattern(`^\d{4}-\d{2}-\d{2}$`)).
		WithProperty("gender", openapi3.NewStringSchema().WithEnum("male", "female", "other", "unknown")).
		WithProperty("ssn", openapi3.NewStringSchema().WithPattern(`^\d{3}-\d{2}-\d{4}$`)).
		WithProperty("consent", consent)
	s.Title = "FHIR Patient (simplified)"
	s.Required = []string{"resourceType", "mrn", "name"}
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: boolPtr(false)}
	return s
}

func buildObservationSchema() *openapi3.Schema {
	codingItem := openapi3.NewObjectSchema().
		WithProperty("system", openapi3.NewStringSchema()).
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("display", openapi3.NewStringSchema())
	codingItem.Required = []string{"system", "code"}

	coding := openapi3.NewArraySchema().WithItems(codingItem)

	code := openapi3.NewObjectSchema().WithProperty("coding", coding)
	code.Description = "LOINC or SNOMED coded value."
	code.Required = []string{"coding"}

	value := openapi3.NewObjectSchema().
		WithProperty("value", openapi3.NewFloat64Schema()).
		WithProperty("unit", openapi3.NewStringSchema())

	s := openapi3.NewObjectSchema().
		WithProperty("resourceType", openapi3.NewStringSchema().WithEnum("Observation")).
		WithProperty("status", openapi3.NewStringSchema().WithEnum("registered", "preliminary", "final", "amended")).
		WithProperty("code", code).
		WithProperty("valueQuantity", value)
	s.Title = "FHIR Observation (simplified)"
	s.Required = []string{"resourceType", "status", "code"}
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: boolPtr(false)}
	return s
}

func boolPtr(b bool) *bool {
	return &b
}
