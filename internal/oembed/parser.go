package oembed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/fiam/dboembed/internal/models"
)

// ProtocolVersion is the only oEmbed version accepted.
const ProtocolVersion = "1.0"

var (
	providerFields = map[string]struct{}{
		"provider_name": {},
		"provider_url":  {},
	}
	resourceFields = map[string]struct{}{
		"title":            {},
		"author_name":      {},
		"author_url":       {},
		"thumbnail_url":    {},
		"thumbnail_width":  {},
		"thumbnail_height": {},
		"url":              {},
		"width":            {},
		"height":           {},
		"html":             {},
		"cache_age":        {},
	}
)

// Properties maps element names to their text. A present key with an empty
// value means the element carried no text.
type Properties map[string]string

// Has reports whether the key was present in the document.
func (p Properties) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Response is the decoded content of a provider document. Properties holds
// the resource fields plus the "type" code; Provider holds identity fields.
type Response struct {
	Properties Properties
	Provider   Properties
}

// Type returns the resource type code recorded from the document, if any.
func (r Response) Type() models.ResourceType {
	return models.ResourceType(r.Properties["type"])
}

type frame struct {
	text     strings.Builder
	hasChild bool
}

// Parse decodes a provider XML document element by element. Unknown elements
// are ignored; version and type are checked as soon as they are read.
func Parse(r io.Reader) (Response, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	resp := Response{Properties: Properties{}, Provider: Properties{}}

	var (
		stack      []*frame
		sawRoot    bool
		sawVersion bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if n := len(stack); n > 0 {
				stack[n-1].hasChild = true
			}
			sawRoot = true
			stack = append(stack, &frame{})
		case xml.CharData:
			if n := len(stack); n > 0 && !stack[n-1].hasChild {
				stack[n-1].text.Write(t)
			}
		case xml.EndElement:
			n := len(stack)
			if n == 0 {
				return Response{}, fmt.Errorf("%w: unbalanced end element %s", ErrMalformedDocument, t.Name.Local)
			}
			text := stack[n-1].text.String()
			stack = stack[:n-1]

			tag := t.Name.Local
			if tag == "version" {
				sawVersion = true
			}
			if err := resp.record(tag, text); err != nil {
				return Response{}, err
			}
		}
	}

	if !sawRoot {
		return Response{}, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	if !sawVersion {
		return Response{}, &VersionError{}
	}

	return resp, nil
}

func (r *Response) record(tag, text string) error {
	switch tag {
	case "version":
		if text != ProtocolVersion {
			return &VersionError{Value: text}
		}
	case "type":
		code, ok := models.ParseResourceType(text)
		if !ok {
			return &TypeError{Value: text}
		}
		r.Properties["type"] = string(code)
	default:
		if _, ok := providerFields[tag]; ok {
			r.Provider[tag] = text
		} else if _, ok := resourceFields[tag]; ok {
			r.Properties[tag] = text
		}
	}
	return nil
}
