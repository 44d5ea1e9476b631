// Package model defines data structures used throughout the application.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
)

// Known record field names.
const (
	FieldID      = "id"
	FieldName    = "name"
	FieldPrice   = "price"
	FieldStoreID = "store_id"
)

// Payload validation errors.
var (
	ErrInvalidBody         = errors.New("invalid request body")
	ErrStoreFieldsRequired = errors.New("ensure 'name' is included in JSON payload")
	ErrItemFieldsRequired  = errors.New(
		"ensure 'name', 'price', 'store_id' are included in JSON payload",
	)
	ErrItemUpdateFieldsRequired = errors.New(
		"ensure 'name', 'price' are included in JSON payload",
	)
	ErrNameNotString    = errors.New("'name' must be a string")
	ErrStoreIDNotString = errors.New("'store_id' must be a string")

	errTrailingData = errors.New("unexpected data after JSON object")
)

// Payload is a decoded JSON object from a request body.
// Numbers are kept as json.Number so they round-trip verbatim.
type Payload map[string]any

// DecodePayload reads a single JSON object from r.
func DecodePayload(r io.Reader) (Payload, error) {
	p, err := decodeObject(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	if p == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidBody)
	}

	return p, nil
}

func unmarshalPayload(data []byte) (Payload, error) {
	return decodeObject(bytes.NewReader(data))
}

// decodeObject decodes exactly one JSON value from r. Anything but
// whitespace after it is an error.
func decodeObject(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return p, nil
}

// Has reports whether every key is present. A null value counts as present.
func (p Payload) Has(keys ...string) bool {
	for _, key := range keys {
		if _, ok := p[key]; !ok {
			return false
		}
	}
	return true
}

// stringField returns the string value stored under key.
func (p Payload) stringField(key string, typeErr error) (string, error) {
	s, ok := p[key].(string)
	if !ok {
		return "", typeErr
	}
	return s, nil
}

// Fields owned by each record type.
var (
	storeFields = []string{FieldID, FieldName}
	itemFields  = []string{FieldID, FieldName, FieldPrice, FieldStoreID}
)

// attributes returns the payload without the given known fields,
// or nil if nothing is left.
func (p Payload) attributes(known []string) map[string]any {
	var attrs map[string]any
	for k, v := range p {
		if slices.Contains(known, k) {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]any)
		}
		attrs[k] = v
	}
	return attrs
}

// flatten merges attributes and the known fields into one JSON object.
func flatten(attrs map[string]any, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(attrs)+len(known))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func mergeAttributes(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
