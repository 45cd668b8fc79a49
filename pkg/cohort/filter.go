package cohort

import (
	"sort"
)

// Filter is an age-window cohort predicate. MaxAge of 0 means unbounded.
type Filter struct {
	MinAge float64
	MaxAge float64
}

// Matches reports whether an age falls inside the cohort window.
func (f Filter) Matches(age float64) bool {
	if age < f.MinAge {
		return false
	}
	if f.MaxAge > 0 && age > f.MaxAge {
		return false
	}
	return true
}

// Apply validates and filters patient-level records. Malformed records are
// rejected individually; the run continues and the rejected count is
// returned to the caller. Admitted patients keep input order.
func (f Filter) Apply(records []Record) ([]Patient, int) {
	patients := make([]Patient, 0, len(records))
	rejected := 0

	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			rejected++
			continue
		}
		if !f.Matches(r.Age) {
			continue
		}
		patients = append(patients, Patient{
			ID:       r.PatientID,
			Age:      r.Age,
			Diseases: distinctSorted(r.Diseases),
		})
	}

	return patients, rejected
}

// Assemble groups per-event observations into patient-level records using
// the original event semantics: only events inside the age window count
// toward a patient's disease set, and the record age is the age at the
// first qualifying event. Observations with a zero patient or concept ID
// are rejected; the rejected count is returned. Output is sorted by
// patient ID for deterministic downstream processing.
func Assemble(observations []Observation, f Filter) ([]Record, int) {
	type agg struct {
		age      float64
		diseases map[uint64]struct{}
	}

	byPatient := make(map[uint64]*agg)
	rejected := 0

	for _, o := range observations {
		if o.PatientID == 0 || o.ConceptID == 0 || o.AgeAtEvent < 0 {
			rejected++
			continue
		}
		if !f.Matches(o.AgeAtEvent) {
			continue
		}
		a, ok := byPatient[o.PatientID]
		if !ok {
			a = &agg{age: o.AgeAtEvent, diseases: make(map[uint64]struct{})}
			byPatient[o.PatientID] = a
		}
		if o.AgeAtEvent < a.age {
			a.age = o.AgeAtEvent
		}
		a.diseases[o.ConceptID] = struct{}{}
	}

	ids := make([]uint64, 0, len(byPatient))
	for id := range byPatient {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		a := byPatient[id]
		diseases := make([]uint64, 0, len(a.diseases))
		for d := range a.diseases {
			diseases = append(diseases, d)
		}
		sort.Slice(diseases, func(i, j int) bool { return diseases[i] < diseases[j] })
		records = append(records, Record{PatientID: id, Age: a.age, Diseases: diseases})
	}

	return records, rejected
}

func distinctSorted(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
