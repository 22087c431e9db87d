package oembed

import (
	"sort"

	"github.com/fiam/dboembed/internal/models"
)

var mandatoryFields = map[models.ResourceType][]string{
	models.ResourceTypePhoto: {"url", "width", "height"},
	models.ResourceTypeVideo: {"html", "width", "height"},
	models.ResourceTypeLink:  {},
	models.ResourceTypeRich:  {"html", "width", "height"},
}

// MandatoryFields returns the fields a resource of type t must carry.
func MandatoryFields(t models.ResourceType) ([]string, bool) {
	fields, ok := mandatoryFields[t]
	if !ok {
		return nil, false
	}
	return append([]string(nil), fields...), true
}

// Validate checks that the properties carry a known type code and every
// mandatory field for it. Only presence is checked, not values.
func Validate(props Properties) error {
	code, ok := props["type"]
	if !ok {
		return &TypeError{}
	}
	typ := models.ResourceType(code)
	required, ok := mandatoryFields[typ]
	if !ok {
		return &TypeError{Value: code}
	}

	var missing []string
	for _, field := range required {
		if !props.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingFieldsError{Type: typ, Fields: missing}
	}
	return nil
}
