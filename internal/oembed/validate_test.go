package oembed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiam/dboembed/internal/models"
)

func TestValidatePhoto(t *testing.T) {
	err := Validate(Properties{"type": "P", "url": "http://x/cat.jpg", "width": "100", "height": "80"})
	assert.NoError(t, err)
}

func TestValidatePhotoMissingWidth(t *testing.T) {
	err := Validate(Properties{"type": "P", "url": "http://x/cat.jpg", "height": "80"})
	require.ErrorIs(t, err, ErrMissingFields)

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, models.ResourceTypePhoto, missing.Type)
	assert.Equal(t, []string{"width"}, missing.Fields)
}

func TestValidateMissingFieldsAreSorted(t *testing.T) {
	err := Validate(Properties{"type": "V"})

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"height", "html", "width"}, missing.Fields)
	assert.Contains(t, err.Error(), "height,html,width")
}

func TestValidateRich(t *testing.T) {
	assert.NoError(t, Validate(Properties{"type": "R", "html": "<b>x</b>", "width": "1", "height": "1"}))
	assert.ErrorIs(t, Validate(Properties{"type": "R", "width": "1", "height": "1"}), ErrMissingFields)
}

func TestValidateLinkRequiresNothing(t *testing.T) {
	assert.NoError(t, Validate(Properties{"type": "L"}))
}

func TestValidateOnlyChecksPresence(t *testing.T) {
	assert.NoError(t, Validate(Properties{"type": "P", "url": "", "width": "wide", "height": ""}))
}

func TestValidateInvalidType(t *testing.T) {
	assert.ErrorIs(t, Validate(Properties{}), ErrInvalidType)
	assert.ErrorIs(t, Validate(Properties{"type": "photo"}), ErrInvalidType)
	assert.ErrorIs(t, Validate(Properties{"type": "X", "url": "u"}), ErrInvalidType)
}

func TestMandatoryFieldsReturnsCopy(t *testing.T) {
	fields, ok := MandatoryFields(models.ResourceTypePhoto)
	require.True(t, ok)
	fields[0] = "mutated"

	again, _ := MandatoryFields(models.ResourceTypePhoto)
	assert.Equal(t, []string{"url", "width", "height"}, again)

	_, ok = MandatoryFields("Z")
	assert.False(t, ok)
}

func TestIsProtocolViolation(t *testing.T) {
	assert.True(t, IsProtocolViolation(&VersionError{Value: "2.0"}))
	assert.True(t, IsProtocolViolation(&TypeError{}))
	assert.True(t, IsProtocolViolation(&MissingFieldsError{Type: models.ResourceTypeVideo}))
	assert.False(t, IsProtocolViolation(ErrUnreachable))
	assert.False(t, IsProtocolViolation(ErrMalformedDocument))
}
