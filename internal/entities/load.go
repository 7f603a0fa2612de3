// Package entities holds the admin list views: which columns each entity
// shows, where its rows come from and how it exports. The built-in set is
// embedded from tables.yaml and registered at init; a deployment can
// override or add entities with its own file (see LoadFile).
package entities

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var builtin []byte

type definitionsFile struct {
	Entities []Definition `yaml:"entities"`
}

func init() {
	defs, err := Parse(bytes.NewReader(builtin))
	if err != nil {
		panic(fmt.Sprintf("built-in entity definitions: %v", err))
	}
	for _, def := range defs {
		Register(def)
	}
}

// Parse decodes a definitions document, applies defaults and validates
// every entry. Unknown fields are rejected.
func Parse(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f definitionsFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode definitions: %w", err)
	}

	seen := make(map[string]bool, len(f.Entities))
	defs := make([]Definition, 0, len(f.Entities))
	for _, def := range f.Entities {
		def.applyDefaults()
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.Key] {
			return nil, fmt.Errorf("duplicate entity %q", def.Key)
		}
		seen[def.Key] = true
		defs = append(defs, def)
	}
	return defs, nil
}

// LoadFile parses the file at path and registers its definitions,
// replacing built-ins with the same key. It returns how many were loaded.
func LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open definitions: %w", err)
	}
	defer f.Close()

	defs, err := Parse(f)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	for _, def := range defs {
		Replace(def)
	}
	return len(defs), nil
}
