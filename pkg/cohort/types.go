// Package cohort selects the patient population feeding the co-occurrence
// graph. Sources yield per-event observations (one row per diagnosed
// condition); assembly groups qualifying events into patient records, and
// the filter admits records matching the cohort's age window.
package cohort

import (
	"context"

	"github.com/go-playground/validator/v10"
)

// Observation is one diagnosed condition event for one patient, with the
// patient's age at the time of the event.
type Observation struct {
	PatientID  uint64  `json:"patient_id"`
	ConceptID  uint64  `json:"concept_id"`
	AgeAtEvent float64 `json:"age_at_event"`
}

// Record is a patient-level input record: an identifier, an age, and the
// set of diagnosed disease concept IDs.
type Record struct {
	PatientID uint64   `json:"patient_id" validate:"required"`
	Age       float64  `json:"age" validate:"gte=0,lte=130"`
	Diseases  []uint64 `json:"diseases" validate:"required,min=1,dive,required"`
}

// Patient is an admitted cohort member. Immutable once created; Diseases
// is sorted ascending with duplicates removed.
type Patient struct {
	ID       uint64
	Age      float64
	Diseases []uint64
}

// Source loads observations plus a concept-ID-to-name map from an external
// store. The ETL that canonicalizes raw condition codes happens upstream.
type Source interface {
	Load(ctx context.Context) ([]Observation, map[uint64]string, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord reports whether a record is well-formed: a non-zero
// patient identifier, a plausible age, and a non-empty disease set.
func ValidateRecord(r Record) error {
	return validate.Struct(r)
}
