// Package seed loads initial catalog data from a YAML or JSON file.
//
// A seed file lists stores; each store may carry an items list. Every other
// key is stored verbatim, the same as fields in an API payload:
//
//	stores:
//	  - name: Shoe Shop
//	    city: Berlin
//	    items:
//	      - name: Sneaker
//	        price: 49.99
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/store-catalog/internal/model"
	"github.com/vyrodovalexey/store-catalog/internal/repository"
)

const itemsKey = "items"

// Seed errors.
var (
	ErrEmptyFile    = errors.New("seed file is empty")
	ErrInvalidItems = errors.New("store items must be a list of objects")
	ErrNotJSON      = errors.New("value cannot be represented as JSON")
)

// File is the decoded content of a seed file.
type File struct {
	Stores []map[string]any `yaml:"stores" json:"stores"`
}

// Result counts what Apply created.
type Result struct {
	Stores int
	Items  int
}

// Load reads and parses a seed file. Files ending in .json are parsed as
// JSON, everything else as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	return Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// Parse decodes seed data as JSON or YAML.
func Parse(data []byte, isJSON bool) (*File, error) {
	var f File

	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("parsing seed JSON: %w", err)
		}
		return &f, nil
	}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing seed YAML: %w", err)
	}
	return &f, nil
}

// Apply creates every store and item in f through repo, so seeding obeys
// the same rules as API requests. It stops at the first failure.
func Apply(ctx context.Context, repo repository.Repository, f *File) (Result, error) {
	var res Result

	for i, entry := range f.Stores {
		payload := make(model.Payload, len(entry))
		for k, v := range entry {
			if k != itemsKey {
				payload[k] = v
			}
		}

		if err := checkJSONValue("", map[string]any(payload)); err != nil {
			return res, fmt.Errorf("store %d: %w", i, err)
		}

		input, err := model.StoreFromPayload(payload)
		if err != nil {
			return res, fmt.Errorf("store %d: %w", i, err)
		}

		store, err := repo.CreateStore(ctx, input)
		if err != nil {
			return res, fmt.Errorf("store %q: %w", input.Name, err)
		}
		res.Stores++

		items, err := itemPayloads(entry[itemsKey])
		if err != nil {
			return res, fmt.Errorf("store %q: %w", input.Name, err)
		}

		for j, payload := range items {
			if err := checkJSONValue("", map[string]any(payload)); err != nil {
				return res, fmt.Errorf("store %q item %d: %w", input.Name, j, err)
			}
			payload[model.FieldStoreID] = store.ID

			item, err := model.ItemFromPayload(payload)
			if err != nil {
				return res, fmt.Errorf("store %q item %d: %w", input.Name, j, err)
			}

			if _, err := repo.CreateItem(ctx, item); err != nil {
				return res, fmt.Errorf("store %q item %q: %w", input.Name, item.Name, err)
			}
			res.Items++
		}
	}

	return res, nil
}

func itemPayloads(raw any) ([]model.Payload, error) {
	if raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, ErrInvalidItems
	}

	out := make([]model.Payload, 0, len(list))
	for _, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, ErrInvalidItems
		}
		payload := make(model.Payload, len(m))
		for k, val := range m {
			payload[k] = val
		}
		out = append(out, payload)
	}
	return out, nil
}

// checkJSONValue rejects values that YAML can express but JSON cannot:
// mappings with non-string keys and non-finite floats. path names the
// offending field in the error.
func checkJSONValue(path string, v any) error {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			if err := checkJSONValue(joinPath(path, k), child); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range val {
			if err := checkJSONValue(path+"["+strconv.Itoa(i)+"]", child); err != nil {
				return err
			}
		}
	case map[any]any:
		return fmt.Errorf("%w: %s has non-string keys", ErrNotJSON, path)
	case float64:
		if math.IsInf(val, 0) || math.IsNaN(val) {
			return fmt.Errorf("%w: %s is not a finite number", ErrNotJSON, path)
		}
	}
	return nil
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
