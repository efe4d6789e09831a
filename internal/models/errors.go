package models

import (
	"errors"
	"fmt"
)

// Stage names a step of the question answering pipeline.
type Stage string

const (
	StageEmbed             Stage = "embed"
	StageSearch            Stage = "search"
	StageRerank            Stage = "rerank"
	StageEvaluateRetrieval Stage = "evaluate_retrieval"
	StageSynthesize        Stage = "synthesize"
	StageEvaluateAnswer    Stage = "evaluate_answer"
	StageIngest            Stage = "ingest"
)

// ServiceError is a failure of an external dependency (embedding, vector index, model).
type ServiceError struct {
	Stage   Stage
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Stage != "" && e.Service != "":
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Service, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	case e.Service != "":
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewServiceError wraps err as a failure of the named service.
func NewServiceError(service string, err error) error {
	return &ServiceError{Service: service, Err: err}
}

// ValidationError rejects malformed input before any external call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConfigurationError reports a missing or inconsistent setting detected at startup.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Message)
}

// AtStage tags err with the pipeline stage that produced it.
// Validation errors pass through unchanged; any other error becomes a ServiceError.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return &ServiceError{Stage: stage, Service: se.Service, Err: se.Err}
	}
	return &ServiceError{Stage: stage, Err: err}
}
