// Package cfg decodes raw TOML sub-tables (map[string]any) into typed driver configs.
package cfg

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults.
type Setter interface {
	ApplyDefaults()
}

func newDecoder(md *mapstructure.Metadata, c any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         md,
		Result:           c,
		TagName:          "mapstructure",
		WeaklyTypedInput: true, // TOML integers arrive as int64, env-style values as strings
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
}

// Decode decodes the given raw input map to the target pointer c.
// If c implements Setter, ApplyDefaults() is called automatically.
func Decode(input map[string]any, c any) error {
	_, err := DecodeWithUnused(input, c)
	return err
}

// DecodeWithUnused decodes input to c and returns any unused keys (sorted).
// If c implements Setter, ApplyDefaults() is called automatically.
func DecodeWithUnused(input map[string]any, c any) ([]string, error) {
	var md mapstructure.Metadata
	decoder, err := newDecoder(&md, c)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(input); err != nil {
		return nil, err
	}

	if s, ok := c.(Setter); ok {
		s.ApplyDefaults()
	}

	unused := md.Unused
	sort.Strings(unused)
	return unused, nil
}

// MustDecodeStrict decodes input to c and returns an error if any keys are unused.
// Use this in tests to catch dead config.
func MustDecodeStrict(input map[string]any, c any) error {
	unused, err := DecodeWithUnused(input, c)
	if err != nil {
		return err
	}
	if len(unused) > 0 {
		return fmt.Errorf("unused config keys: %v", unused)
	}
	return nil
}
