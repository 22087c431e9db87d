package oembed

import (
	"context"
	"time"

	"github.com/fiam/dboembed/internal/models"
)

// Store persists resolved resources.
type Store interface {
	// Create inserts res with a generated ID and creation time. When res.Provider
	// is set it is replaced by the stored identity with the same name and url,
	// creating one if none exists.
	Create(ctx context.Context, res models.EmbedResource) (models.EmbedResource, error)
}

// Recorder observes resolution outcomes. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveResolution(provider, outcome string)
	ObserveFetch(provider string, duration time.Duration)
}

// Outcome labels reported to a Recorder.
const (
	OutcomeResolved       = "resolved"
	OutcomeNoProvider     = "no_provider"
	OutcomeUnreachable    = "unreachable"
	OutcomeMalformed      = "malformed"
	OutcomeInvalidVersion = "invalid_version"
	OutcomeInvalidType    = "invalid_type"
	OutcomeMissingFields  = "missing_fields"
	OutcomeStoreError     = "store_error"
)

type nopRecorder struct{}

func (nopRecorder) ObserveResolution(string, string)   {}
func (nopRecorder) ObserveFetch(string, time.Duration) {}
