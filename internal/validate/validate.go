// Package validate holds the two validators shared across package
// boundaries that would otherwise create an import cycle: the technical_id
// shape check (used by the ingestion server, deep links, and the
// --open-tid flag) and the patient-safe JSON walk (used wherever a payload
// is about to leave the host).
package validate

import (
	"encoding/json"
	"regexp"
	"strings"
)

// technicalIDPattern matches the same shape everywhere a tid is accepted.
var technicalIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// TechnicalID reports whether s is a well-formed technical_id.
func TechnicalID(s string) bool {
	return technicalIDPattern.MatchString(s)
}

// patientIdentifyingSubstrings is checked against the lowercased form of
// every key in a JSON document bound for the Hub. Any match rejects the
// document outright.
var patientIdentifyingSubstrings = []string{
	"patient", "name", "birth", "dob", "address", "phone", "mrn",
	"ssn", "insurance", "guardian", "next_of_kin",
	"study_instance_uid", "sop_instance_uid", "series_instance_uid",
}

// ErrPatientIdentifying is returned when a payload destined for the Hub
// contains a key that looks personally identifying.
type ErrPatientIdentifying struct {
	Key string
}

func (e *ErrPatientIdentifying) Error() string {
	return "validate: key " + e.Key + " looks patient-identifying and may not leave this host"
}

// PatientSafe recursively walks a JSON document, rejecting any key whose
// lowercase form contains a known PII substring. Applied only to data
// flowing off-host to the Hub — never to the loopback-only
// POST /pending-report body.
func PatientSafe(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return walkPatientSafe(v)
}

func walkPatientSafe(v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, sub := range t {
			lower := strings.ToLower(k)
			for _, bad := range patientIdentifyingSubstrings {
				if strings.Contains(lower, bad) {
					return &ErrPatientIdentifying{Key: k}
				}
			}
			if err := walkPatientSafe(sub); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range t {
			if err := walkPatientSafe(item); err != nil {
				return err
			}
		}
	}
	return nil
}
