package config

import (
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// validateSchema unifies the decoded YAML document with the embedded CUE
// schema so constraint violations are reported with their field path
// before the typed decode runs.
func validateSchema(path string, data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ConfigurationError{Path: path, Reason: err.Error()}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return &ConfigurationError{Path: path, Reason: "internal schema error: " + err.Error()}
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return &ConfigurationError{Path: path, Reason: "internal schema error: " + err.Error()}
	}

	unified := def.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		details := strings.TrimSpace(cueerrors.Details(err, nil))
		return &ConfigurationError{Path: path, Reason: details}
	}
	return nil
}
