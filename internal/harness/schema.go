package harness

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce sync.Once
	schemaMu   sync.Mutex
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func loadSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = err
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Scenario"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// Schema returns the CUE source scenarios are checked against.
func Schema() string {
	return schemaSource
}

// validateSchema unifies the scenario with #Scenario and reports every
// conflict.
func validateSchema(s *Scenario) []ValidationError {
	ctx, def, err := loadSchema()
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if err != nil {
		return []ValidationError{{Field: "schema", Code: ErrSchema, Message: err.Error()}}
	}

	v := ctx.Encode(s)
	if err := v.Err(); err != nil {
		return formatCUEErrors(err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return formatCUEErrors(err)
	}
	return nil
}

// formatCUEErrors flattens a CUE error list into validation errors keyed by
// the offending path.
func formatCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range errors.Errors(err) {
		field := "scenario"
		if path := e.Path(); len(path) > 0 {
			field = strings.Join(path, ".")
		}
		format, args := e.Msg()
		out = append(out, ValidationError{Field: field, Code: ErrSchema, Message: fmt.Sprintf(format, args...)})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "scenario", Code: ErrSchema, Message: err.Error()})
	}
	return out
}
