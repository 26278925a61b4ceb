package domain

// EntityType classifies a medical entity extracted from free text.
type EntityType string

const (
	EntityTestResult    EntityType = "test_result"
	EntityLabValue      EntityType = "lab_value"
	EntityAbnormalValue EntityType = "abnormal_value"
	EntityDisease       EntityType = "disease"
	EntitySymptom       EntityType = "symptom"
	EntityPathogen      EntityType = "pathogen"
	EntityTreatment     EntityType = "treatment"
)

// MedicalEntity is a term extracted from symptoms or document text.
// Entities are transient: built per request, never persisted.
type MedicalEntity struct {
	Text       string
	Type       EntityType
	Confidence float64
}

// isValidEntityType checks if an EntityType is one of the known kinds.
func isValidEntityType(t EntityType) bool {
	switch t {
	case EntityTestResult, EntityLabValue, EntityAbnormalValue,
		EntityDisease, EntitySymptom, EntityPathogen, EntityTreatment:
		return true
	}
	return false
}

// ValidateMedicalEntity validates a MedicalEntity instance.
func ValidateMedicalEntity(e *MedicalEntity) error {
	if e == nil {
		return ErrMissingRequiredField
	}
	if e.Text == "" {
		return NewDomainError(ErrCodeValidation, "entity text is required")
	}
	if !isValidEntityType(e.Type) {
		return ErrInvalidEntityType
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return NewDomainError(ErrCodeValidation, "entity confidence must be in [0,1]")
	}
	return nil
}
