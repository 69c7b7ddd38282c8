package model

import (
	"fmt"
	"strings"
)

// MissingInputError reports every required input file that could not be found.
type MissingInputError struct {
	Missing []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input files: %s", strings.Join(e.Missing, ", "))
}

// SchemaMismatchError reports declared feature columns absent from an input.
// Training narrows the feature set instead; inference fails with this error.
type SchemaMismatchError struct {
	Model   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("model %s: missing features: %s", e.Model, strings.Join(e.Missing, ", "))
}

// UntrainedModelError is returned when a model is requested before a training
// pass has produced it.
type UntrainedModelError struct {
	Model string
}

func (e *UntrainedModelError) Error() string {
	return fmt.Sprintf("model not trained: %s", e.Model)
}

// DistrictNotFoundError is returned when no row matches the requested district.
type DistrictNotFoundError struct {
	District string
}

func (e *DistrictNotFoundError) Error() string {
	return fmt.Sprintf("district not found: %s", e.District)
}

// InconsistentArtifactsError is returned when a persisted model is missing its
// paired scaler, a scaler is missing its model, or a file was written by a
// different training pass than the manifest (Stale names that file).
type InconsistentArtifactsError struct {
	Model   string
	Missing string
	Stale   string
}

func (e *InconsistentArtifactsError) Error() string {
	if e.Stale != "" {
		return fmt.Sprintf("model %s: %s belongs to another training pass", e.Model, e.Stale)
	}
	return fmt.Sprintf("model %s: artifact set incomplete, missing %s", e.Model, e.Missing)
}

// NotFoundError is returned by stores when a record does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}
