package models

import (
	"fmt"
	"strconv"
	"time"
)

// ResourceType identifies the oEmbed resource kind using its single-letter storage code.
type ResourceType string

const (
	ResourceTypePhoto ResourceType = "P"
	ResourceTypeVideo ResourceType = "V"
	ResourceTypeLink  ResourceType = "L"
	ResourceTypeRich  ResourceType = "R"
)

var resourceTypeNames = map[ResourceType]string{
	ResourceTypePhoto: "photo",
	ResourceTypeVideo: "video",
	ResourceTypeLink:  "link",
	ResourceTypeRich:  "rich",
}

// ParseResourceType maps a protocol type name (photo, video, link, rich) to its code.
func ParseResourceType(name string) (ResourceType, bool) {
	for code, n := range resourceTypeNames {
		if n == name {
			return code, true
		}
	}
	return "", false
}

// Valid reports whether t is one of the four known codes.
func (t ResourceType) Valid() bool {
	_, ok := resourceTypeNames[t]
	return ok
}

// String returns the protocol name of the type.
func (t ResourceType) String() string {
	if name, ok := resourceTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// MarshalText encodes the type using its protocol name.
func (t ResourceType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid resource type %q", string(t))
	}
	return []byte(t.String()), nil
}

const (
	MaxNameLength = 64
	MaxURLLength  = 512
)

// ProviderIdentity is the deduplicated (name, url) pair of the service that served a resource.
// Empty strings are stored as NULL.
type ProviderIdentity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	URL  string `json:"url,omitempty"`
}

func (p ProviderIdentity) String() string {
	return fmt.Sprintf("%s, %s", p.Name, p.URL)
}

// EmbedResource is a resolved oEmbed resource. Records are never updated once created.
type EmbedResource struct {
	ID              string            `json:"id"`
	Type            ResourceType      `json:"type"`
	Title           string            `json:"title,omitempty"`
	AuthorName      string            `json:"author_name,omitempty"`
	AuthorURL       string            `json:"author_url,omitempty"`
	Provider        *ProviderIdentity `json:"provider,omitempty"`
	ThumbnailURL    string            `json:"thumbnail_url,omitempty"`
	ThumbnailWidth  *int              `json:"thumbnail_width,omitempty"`
	ThumbnailHeight *int              `json:"thumbnail_height,omitempty"`
	URL             string            `json:"url,omitempty"`
	Width           *int              `json:"width,omitempty"`
	Height          *int              `json:"height,omitempty"`
	HTML            string            `json:"html,omitempty"`
	CacheAge        *int              `json:"cache_age,omitempty"`
	Created         time.Time         `json:"created"`
}

// RenderHTML returns the markup used to embed the resource. Provider supplied
// html is returned verbatim; photos without html get a synthesized img tag.
func (r EmbedResource) RenderHTML() string {
	if r.HTML != "" {
		return r.HTML
	}
	if r.Type != ResourceTypePhoto {
		return ""
	}
	return fmt.Sprintf(`<img alt="%s" src="%s" width="%s" height="%s" />`,
		r.Title, r.URL, formatDimension(r.Width), formatDimension(r.Height))
}

func formatDimension(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
