// Package cfg decodes the loosely typed [http.services.*] and interceptor
// profile tables into typed config structs.
package cfg

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults.
// ApplyDefaults runs after decoding.
type Setter interface {
	ApplyDefaults()
}

// Decode decodes input into c. Numeric strings and "1s" style durations are
// accepted so env-derived tables decode the same as TOML ones.
func Decode(input map[string]any, c any) error {
	return decode(input, c, nil)
}

// DecodeWithUnused is Decode that also returns the input keys no field
// consumed, sorted.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	if err := decode(input, c, &md); err != nil {
		return nil, err
	}
	unused := slices.Clone(md.Unused)
	slices.Sort(unused)
	return unused, nil
}

// DecodeStrict is DecodeWithUnused that fails on any unused key.
func DecodeStrict(input map[string]any, c any) error {
	unused, err := DecodeWithUnused(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("unused config keys: %v", unused)
	}
	return nil
}

func decode(input map[string]any, c any, md *mapstructure.Metadata) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         md,
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return err
	}
	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}
	return nil
}
