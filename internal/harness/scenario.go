package harness

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/crosscheck/internal/actor"
)

// Scenario is a scripted interaction between one or more actors.
type Scenario struct {
	// Name uniquely identifies the scenario; it also names the artifact
	// directory and the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario verifies.
	Description string `yaml:"description" json:"description"`

	// Actors lists the role labels taking part, in open order.
	Actors []string `yaml:"actors" json:"actors"`

	// Steps run strictly in order.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Step is one action or one expectation performed by one actor.
type Step struct {
	Actor string `yaml:"actor" json:"actor"`

	// Do is an action: visit, reload, click, fill or capture_session_id.
	Do string `yaml:"do,omitempty" json:"do,omitempty"`

	// Expect is an assertion: text, text_matches, visible, hidden, enabled,
	// disabled, count or title.
	Expect string `yaml:"expect,omitempty" json:"expect,omitempty"`

	// Target names a UI element from the vocabulary, e.g.
	// gamemaster.player[0].fate_points.
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// Value is the path to visit, the text to fill or the expected text or
	// pattern. May reference captured variables as ${name}.
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Count is the expected number of matches for expect: count.
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// Wait selects the timeout of an expectation: default, extended or a Go
	// duration such as 500ms.
	Wait string `yaml:"wait,omitempty" json:"wait,omitempty"`

	// Into names the variable capture_session_id stores into.
	Into string `yaml:"into,omitempty" json:"into,omitempty"`
}

// Action kinds.
const (
	DoVisit            = "visit"
	DoReload           = "reload"
	DoClick            = "click"
	DoFill             = "fill"
	DoCaptureSessionID = "capture_session_id"
)

// Expectation kinds.
const (
	ExpectText        = "text"
	ExpectTextMatches = "text_matches"
	ExpectVisible     = "visible"
	ExpectHidden      = "hidden"
	ExpectEnabled     = "enabled"
	ExpectDisabled    = "disabled"
	ExpectCount       = "count"
	ExpectTitle       = "title"
)

// Wait tiers.
const (
	WaitDefault  = "default"
	WaitExtended = "extended"
)

// DefaultCaptureVar is where capture_session_id stores by default.
const DefaultCaptureVar = "session_id"

// Op returns "do:<kind>" or "expect:<kind>".
func (s Step) Op() string {
	if s.Do != "" {
		return "do:" + s.Do
	}
	return "expect:" + s.Expect
}

// CaptureVar returns the variable a capture step stores into.
func (s Step) CaptureVar() string {
	if s.Into == "" {
		return DefaultCaptureVar
	}
	return s.Into
}

// LoadScenario reads, parses and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML. Unknown fields are
// rejected so typos like "expects:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if errs := Validate(&scenario); len(errs) > 0 {
		return nil, &InvalidScenarioError{Scenario: scenario.Name, Errors: errs}
	}
	return &scenario, nil
}

// InvalidScenarioError lists every problem found in a scenario.
type InvalidScenarioError struct {
	Scenario string
	Errors   []ValidationError
}

// Error implements the error interface.
func (e *InvalidScenarioError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	name := e.Scenario
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("invalid scenario %s: %s", name, strings.Join(msgs, "; "))
}

// Validation error codes.
const (
	ErrMissingField    = "S001" // required field absent
	ErrInvalidName     = "S002" // name or actor label malformed
	ErrDuplicateActor  = "S003" // actor listed twice
	ErrUnknownActor    = "S004" // step names an actor not in actors
	ErrStepKind        = "S005" // neither or both of do/expect, or unknown kind
	ErrUnknownTarget   = "S006" // target not in the vocabulary
	ErrTargetKind      = "S007" // target cannot serve this step
	ErrBadValue        = "S008" // value missing, unexpected or unparsable
	ErrBadWait         = "S009" // wait not default, extended or a duration
	ErrUndefinedVar    = "S010" // ${var} used before any capture into it
	ErrSchema          = "S011" // rejected by the CUE schema
	ErrUnexpectedField = "S012" // field set that the step kind ignores
	ErrModalNotShown   = "S013" // modal fill or confirm without expect: visible modal first
)

// ValidationError is one problem in a scenario.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

var (
	namePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	varPattern   = regexp.MustCompile(`\$\{([a-z_][a-z0-9_]*)\}`)
)

// Validate checks a scenario against the schema and the step rules.
// Returns all errors found (does not fail-fast).
func Validate(s *Scenario) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if s.Name == "" {
		add("name", ErrMissingField, "name is required")
	} else if !namePattern.MatchString(s.Name) {
		add("name", ErrInvalidName, "name %q must be lower_snake_case", s.Name)
	}
	if s.Description == "" {
		add("description", ErrMissingField, "description is required")
	}
	if len(s.Actors) == 0 {
		add("actors", ErrMissingField, "actors list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		add("steps", ErrMissingField, "steps list is required and must be non-empty")
	}

	actors := make(map[string]bool, len(s.Actors))
	for i, name := range s.Actors {
		field := fmt.Sprintf("actors[%d]", i)
		switch {
		case !actor.ValidName(name):
			add(field, ErrInvalidName, "actor %q must be lower_snake_case", name)
		case actors[name]:
			add(field, ErrDuplicateActor, "actor %q listed twice", name)
		}
		actors[name] = true
	}

	defined := map[string]bool{}
	shown := map[string]bool{}
	for i, step := range s.Steps {
		field := fmt.Sprintf("steps[%d]", i)
		errs = append(errs, validateStep(field, step, actors, defined)...)
		if step.Do == DoCaptureSessionID {
			defined[step.CaptureVar()] = true
		}
		if ve := trackModal(field, step, shown); ve != nil {
			errs = append(errs, *ve)
		}
	}

	errs = append(errs, validateSchema(s)...)
	return errs
}

func validateStep(field string, step Step, actors, defined map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if step.Actor == "" {
		add(ErrMissingField, "actor is required")
	} else if !actors[step.Actor] {
		add(ErrUnknownActor, "actor %q is not listed in actors", step.Actor)
	}

	switch {
	case step.Do == "" && step.Expect == "":
		add(ErrStepKind, "one of do or expect is required")
		return errs
	case step.Do != "" && step.Expect != "":
		add(ErrStepKind, "do and expect are mutually exclusive")
		return errs
	}

	for _, m := range varPattern.FindAllStringSubmatch(step.Value, -1) {
		if !defined[m[1]] {
			add(ErrUndefinedVar, "${%s} is used before any capture_session_id into it", m[1])
		}
	}

	needTarget := func(kind TargetKind) {
		if step.Target == "" {
			add(ErrMissingField, "target is required for %s", step.Op())
			return
		}
		b, err := lookupTarget(step.Target)
		if err != nil {
			add(ErrUnknownTarget, "%v", err)
			return
		}
		if kind == KindField && !b.field {
			add(ErrTargetKind, "target %q is not an input field", step.Target)
		}
	}
	noTarget := func() {
		if step.Target != "" {
			add(ErrUnexpectedField, "target is not used by %s", step.Op())
		}
	}
	noValue := func() {
		if step.Value != "" {
			add(ErrUnexpectedField, "value is not used by %s", step.Op())
		}
	}

	if step.Do != "" {
		if step.Wait != "" {
			add(ErrUnexpectedField, "wait only applies to expect steps")
		}
		if step.Count != nil {
			add(ErrUnexpectedField, "count only applies to expect: count")
		}
		if step.Into != "" && step.Do != DoCaptureSessionID {
			add(ErrUnexpectedField, "into only applies to capture_session_id")
		}
		switch step.Do {
		case DoVisit:
			noTarget()
			if step.Value != "" && !strings.HasPrefix(step.Value, "/") {
				add(ErrBadValue, "visit path %q must start with /", step.Value)
			}
		case DoReload:
			noTarget()
			noValue()
		case DoClick:
			needTarget(KindAny)
			noValue()
		case DoFill:
			needTarget(KindField)
		case DoCaptureSessionID:
			noTarget()
			noValue()
			if step.Into != "" && !identPattern.MatchString(step.Into) {
				add(ErrInvalidName, "into %q must be lower_snake_case", step.Into)
			}
		default:
			add(ErrStepKind, "unknown action %q", step.Do)
		}
		return errs
	}

	if step.Into != "" {
		add(ErrUnexpectedField, "into only applies to capture_session_id")
	}
	if _, err := parseWait(step.Wait, waitTiers{}); err != nil {
		add(ErrBadWait, "%v", err)
	}
	if step.Count != nil && step.Expect != ExpectCount {
		add(ErrUnexpectedField, "count only applies to expect: count")
	}

	switch step.Expect {
	case ExpectText:
		needTarget(KindAny)
	case ExpectTextMatches:
		needTarget(KindAny)
		if step.Value == "" {
			add(ErrBadValue, "text_matches needs a pattern in value")
		} else if _, err := regexp.Compile(step.Value); err != nil && !varPattern.MatchString(step.Value) {
			add(ErrBadValue, "bad pattern: %v", err)
		}
	case ExpectVisible, ExpectHidden, ExpectEnabled, ExpectDisabled:
		needTarget(KindAny)
		noValue()
	case ExpectCount:
		needTarget(KindAny)
		noValue()
		if step.Count == nil {
			add(ErrMissingField, "count is required for expect: count")
		} else if *step.Count < 0 {
			add(ErrBadValue, "count must be non-negative")
		}
	case ExpectTitle:
		noTarget()
	default:
		add(ErrStepKind, "unknown expectation %q", step.Expect)
	}
	return errs
}

// trackModal checks that a modal fill or confirm comes after an
// expect: visible modal by the same actor. Modal fills and confirms do not
// wait for the overlay, so the wait has to be an explicit step. Navigation,
// clicks and expect: hidden modal all end what that step established.
func trackModal(field string, step Step, shown map[string]bool) *ValidationError {
	switch {
	case step.Expect == ExpectVisible && step.Target == modalTarget:
		shown[step.Actor] = true
		return nil
	case step.Expect == ExpectHidden && step.Target == modalTarget,
		step.Do == DoVisit, step.Do == DoReload:
		shown[step.Actor] = false
		return nil
	case step.Do != DoFill && step.Do != DoClick:
		return nil
	}

	t, err := lookupTarget(step.Target)
	if err != nil {
		return nil
	}
	needsModal := t.confirm || (step.Do == DoFill && t.field)
	ok := shown[step.Actor]
	if step.Do == DoClick {
		shown[step.Actor] = false
	}
	if !needsModal || ok {
		return nil
	}
	return &ValidationError{
		Field:   field,
		Code:    ErrModalNotShown,
		Message: fmt.Sprintf("%s %s needs a preceding expect: visible modal by %s", step.Do, step.Target, step.Actor),
	}
}

// waitTiers carries the engine's tier durations into parseWait.
type waitTiers struct {
	Default  time.Duration
	Extended time.Duration
}

func parseWait(wait string, tiers waitTiers) (time.Duration, error) {
	switch wait {
	case "", WaitDefault:
		return tiers.Default, nil
	case WaitExtended:
		return tiers.Extended, nil
	}
	d, err := time.ParseDuration(wait)
	if err != nil {
		return 0, fmt.Errorf("wait %q is not default, extended or a duration", wait)
	}
	if d <= 0 {
		return 0, fmt.Errorf("wait %q must be positive", wait)
	}
	return d, nil
}

// expand replaces ${name} references with captured values.
func expand(s string, vars map[string]string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := varPattern.FindStringSubmatch(ref)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable %s", strings.Join(missing, ", "))
	}
	return out, nil
}
