package helper

import (
	"errors"
	"fmt"
)

// NewError wraps err with the operation that failed.
func NewError(context string, err error) error {
	return fmt.Errorf("%s: %w", context, err)
}

// DataIntegrityError reports input data that would corrupt the partition,
// e.g. an edge referencing an unknown mention or a score outside [0,1].
// It is fatal for the whole batch.
type DataIntegrityError struct {
	Reason string
	ID     string
}

func (e *DataIntegrityError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("data integrity: %s", e.Reason)
	}
	return fmt.Sprintf("data integrity: %s (%s)", e.Reason, e.ID)
}

// NewDataIntegrityError creates a DataIntegrityError for the given id.
func NewDataIntegrityError(reason string, id string) error {
	return &DataIntegrityError{Reason: reason, ID: id}
}

// ConfigurationError reports an invalid run configuration.
// It is returned before any processing starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for a config field.
func NewConfigurationError(field string, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// AmbiguousAssignmentWarning is raised when the two best candidates of a
// cluster tie exactly and the entity id order decided the winner.
type AmbiguousAssignmentWarning struct {
	ClusterID int
	Chosen    int64
	RunnerUp  int64
	Score     float64
}

func (w *AmbiguousAssignmentWarning) Error() string {
	return fmt.Sprintf("ambiguous assignment for cluster %d: entities %d and %d tie at %.4f, chose %d",
		w.ClusterID, w.Chosen, w.RunnerUp, w.Score, w.Chosen)
}

// IsDataIntegrityError reports whether err is or wraps a DataIntegrityError.
func IsDataIntegrityError(err error) bool {
	var target *DataIntegrityError
	return errors.As(err, &target)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
