package vc

import (
	"encoding/json"
	"fmt"
)

// Subject field names in the portable document, in validation order.
const (
	fldSubjectID       = "id"
	FldStudentID       = "studentId"
	FldStudentName     = "studentName"
	FldProgramName     = "programName"
	FldInstitutionName = "institutionName"
	FldGraduationDate  = "graduationDate"
)

// RequiredSubjectFields is the fixed required-field order; validation reports
// the first absent field so error messages are deterministic.
var RequiredSubjectFields = []string{
	FldStudentID,
	FldStudentName,
	FldProgramName,
	FldInstitutionName,
	FldGraduationDate,
}

// Subject is the credential subject: a fixed required set plus an open bag of
// extension fields restricted to JSON value kinds.
type Subject struct {
	ID              string
	StudentID       string
	StudentName     string
	ProgramName     string
	InstitutionName string
	GraduationDate  string

	// Extra holds extension fields (gpa, major, honors, achievements, ...).
	Extra map[string]interface{}
}

// MissingFieldError reports the first absent required subject field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required subject field: %s", e.Field)
}

// Validate checks the required-field set in fixed order.
func (s *Subject) Validate() error {
	values := map[string]string{
		FldStudentID:       s.StudentID,
		FldStudentName:     s.StudentName,
		FldProgramName:     s.ProgramName,
		FldInstitutionName: s.InstitutionName,
		FldGraduationDate:  s.GraduationDate,
	}
	for _, field := range RequiredSubjectFields {
		if values[field] == "" {
			return &MissingFieldError{Field: field}
		}
	}
	return nil
}

func (s *Subject) knownFields() map[string]string {
	return map[string]string{
		fldSubjectID:       s.ID,
		FldStudentID:       s.StudentID,
		FldStudentName:     s.StudentName,
		FldProgramName:     s.ProgramName,
		FldInstitutionName: s.InstitutionName,
		FldGraduationDate:  s.GraduationDate,
	}
}

// MarshalJSON flattens known fields and extensions into one JSON object.
// Empty known fields are omitted so that "absent" and "empty" hash the same.
func (s Subject) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(s.Extra)+6)
	for k, v := range s.Extra {
		out[k] = v
	}
	// Known fields win over colliding extension keys.
	for k, v := range s.knownFields() {
		if v != "" {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a JSON object into known fields and extensions.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("credentialSubject must be an object: %w", err)
	}

	take := func(field string) string {
		v, ok := raw[field]
		if !ok {
			return ""
		}
		str, ok := v.(string)
		if !ok {
			return ""
		}
		delete(raw, field)
		return str
	}

	s.ID = take(fldSubjectID)
	s.StudentID = take(FldStudentID)
	s.StudentName = take(FldStudentName)
	s.ProgramName = take(FldProgramName)
	s.InstitutionName = take(FldInstitutionName)
	s.GraduationDate = take(FldGraduationDate)

	if len(raw) > 0 {
		s.Extra = raw
	} else {
		s.Extra = nil
	}
	return nil
}
