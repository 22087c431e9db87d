package oembed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fiam/dboembed/internal/models"
)

var (
	// ErrNoProvider indicates no registered provider matches the URL.
	ErrNoProvider = errors.New("no oembed provider matches url")
	// ErrUnreachable indicates the provider endpoint could not be fetched.
	ErrUnreachable = errors.New("oembed endpoint unreachable")
	// ErrMalformedDocument indicates the provider response is not a well-formed document.
	ErrMalformedDocument = errors.New("malformed oembed document")
	// ErrInvalidVersion indicates the response declares a protocol version other than 1.0.
	ErrInvalidVersion = errors.New("invalid oembed protocol version")
	// ErrInvalidType indicates the resource type is missing or unknown.
	ErrInvalidType = errors.New("invalid oembed resource type")
	// ErrMissingFields indicates mandatory fields for the resource type are absent.
	ErrMissingFields = errors.New("missing mandatory oembed fields")
	// ErrStoreUnavailable indicates the resolver has no store configured.
	ErrStoreUnavailable = errors.New("embed store unavailable")
)

// VersionError carries the offending version value.
type VersionError struct {
	Value string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("invalid protocol version: %q", e.Value)
}

func (e *VersionError) Unwrap() error { return ErrInvalidVersion }

// TypeError carries the offending resource type value.
type TypeError struct {
	Value string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("invalid resource type: %q", e.Value)
}

func (e *TypeError) Unwrap() error { return ErrInvalidType }

// MissingFieldsError lists the mandatory fields absent for Type, sorted by name.
type MissingFieldsError struct {
	Type   models.ResourceType
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing fields for type %s: %q", e.Type, strings.Join(e.Fields, ","))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingFields }

// IsProtocolViolation reports whether err means a matched provider answered
// but broke the oEmbed contract.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrInvalidVersion) || errors.Is(err, ErrInvalidType) || errors.Is(err, ErrMissingFields)
}
