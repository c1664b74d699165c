package contracts

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is checks
var (
	ErrDataIntegrity      = errors.New("data integrity violation")
	ErrNoSnapshot         = errors.New("no usable rows on decision date")
	ErrModelRegistryEmpty = errors.New("model registry is empty")
	ErrClusterPrediction  = errors.New("cluster prediction failed")
	ErrNoUsableCluster    = errors.New("no usable cluster")

	// ErrNotFound is returned by stores when nothing matches
	ErrNotFound = errors.New("not found")
)

// DataIntegrityError is raised when input cannot be parsed into bars
type DataIntegrityError struct {
	Source string
	Column string
	Line   int
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s line %d column %s: %s", e.Source, e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("%s column %s: %s", e.Source, e.Column, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// NoSnapshotError means no feature row survived the decision-date filter
type NoSnapshotError struct {
	DecisionDate time.Time
	TotalRows    int
}

func (e *NoSnapshotError) Error() string {
	return fmt.Sprintf("no complete feature rows on %s (table has %d rows)",
		e.DecisionDate.Format(DateLayout), e.TotalRows)
}

func (e *NoSnapshotError) Unwrap() error { return ErrNoSnapshot }

// ClusterPredictionError is a recoverable failure of one cluster's model
type ClusterPredictionError struct {
	ClusterID int
	Symbol    string
	Err       error
}

func (e *ClusterPredictionError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("cluster %d: predict %s: %v", e.ClusterID, e.Symbol, e.Err)
	}
	return fmt.Sprintf("cluster %d: %v", e.ClusterID, e.Err)
}

func (e *ClusterPredictionError) Unwrap() []error { return []error{ErrClusterPrediction, e.Err} }

// NoUsableClusterError means every cluster failed during selection
type NoUsableClusterError struct {
	DecisionDate time.Time
	Failures     []ClusterFailure
}

func (e *NoUsableClusterError) Error() string {
	return fmt.Sprintf("all %d clusters failed on %s", len(e.Failures), e.DecisionDate.Format(DateLayout))
}

func (e *NoUsableClusterError) Unwrap() error { return ErrNoUsableCluster }
