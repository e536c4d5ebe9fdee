// Package model defines the core data types shared by every heliassets command.
// In Go, we use structs instead of classes. Struct tags (the `yaml:"..."` and
// `db:"..."` annotations) tell serialization libraries how to map fields.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Category drives the styling of generated images.
type Category string

const (
	CategoryCivilian Category = "civilian"
	CategoryMilitary Category = "military"
)

// Item is one unit of work: one helicopter model processed by a batch job.
// The same record feeds both the search (Query) and generation (Name,
// Category, Description) commands.
type Item struct {
	ID          string   `yaml:"id"`
	Query       string   `yaml:"query,omitempty"`
	Name        string   `yaml:"name,omitempty"`
	Category    Category `yaml:"type,omitempty"`
	Description string   `yaml:"desc,omitempty"`
}

// DisplayName returns the most human-friendly label available for logs.
func (it Item) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	if it.Query != "" {
		return it.Query
	}
	return it.ID
}

// idPattern restricts IDs to safe file stems: the ID becomes the output filename.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate checks a list of items for empty or duplicate IDs.
func Validate(items []Item) error {
	seen := make(map[string]bool, len(items))
	var errs []error
	for i, it := range items {
		if it.ID == "" {
			errs = append(errs, fmt.Errorf("item %d: missing id", i))
			continue
		}
		if !idPattern.MatchString(it.ID) {
			errs = append(errs, fmt.Errorf("item %d: id %q must match %s", i, it.ID, idPattern))
		}
		if seen[it.ID] {
			errs = append(errs, fmt.Errorf("item %d: duplicate id %q", i, it.ID))
		}
		seen[it.ID] = true
		switch it.Category {
		case "", CategoryCivilian, CategoryMilitary:
		default:
			errs = append(errs, fmt.Errorf("item %q: unknown type %q", it.ID, it.Category))
		}
	}
	return errors.Join(errs...)
}

// LoadItems reads a YAML list of items from path and validates it.
func LoadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading items file: %w", err)
	}
	return ParseItems(data)
}

// ParseItems decodes a YAML list of items. Unknown keys are rejected so a typo
// in the items file doesn't silently drop a field.
func ParseItems(data []byte) ([]Item, error) {
	var items []Item
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("parsing items: %w", err)
	}
	for i := range items {
		items[i].ID = strings.TrimSpace(items[i].ID)
	}
	if err := Validate(items); err != nil {
		return nil, err
	}
	return items, nil
}

// Select returns the items whose IDs appear in ids, preserving file order.
// An empty ids list returns all items. Unknown IDs are an error.
func Select(items []Item, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return items, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		// "--only h125," leaves an empty entry behind.
		if id = strings.TrimSpace(id); id != "" {
			want[id] = true
		}
	}
	if len(want) == 0 {
		return items, nil
	}
	var out []Item
	for _, it := range items {
		if want[it.ID] {
			out = append(out, it)
			delete(want, it.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		return nil, fmt.Errorf("unknown item ids: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
