// Package contract validates records and artifacts against embedded JSON Schemas.
package contract

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SetupContextV1 = "setup_context.v1"
	ScoreboardV1   = "scoreboard.v1"
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func load() (map[string]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		out := make(map[string]*jsonschema.Schema)
		for _, name := range []string{SetupContextV1, ScoreboardV1} {
			raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			url := name + ".json"
			if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
				compileErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := compiler.Compile(url)
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			out[name] = s
		}
		compiled = out
	})
	return compiled, compileErr
}

// Validate checks raw JSON against the named schema.
func Validate(name string, raw []byte) error {
	schemas, err := load()
	if err != nil {
		return err
	}
	s, ok := schemas[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%s: decode: %w", name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ValidateSetupContext checks one setup_context row.
func ValidateSetupContext(raw []byte) error {
	return Validate(SetupContextV1, raw)
}

// ValidateSnapshot checks a serialized scoreboard artifact.
func ValidateSnapshot(raw []byte) error {
	return Validate(ScoreboardV1, raw)
}
