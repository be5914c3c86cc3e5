// Package form implements the finite-step form state machine shared by the
// sign-up wizard and the single-step hub forms.
package form

import (
	"context"
	"errors"
	"strings"

	"musanzehub.com/hub-web/internal/hub/submission"
)

var (
	// ErrSubmitting is returned by Submit while a previous submission is unsettled.
	ErrSubmitting = errors.New("form: submission in progress")
	// ErrNotFinalStep is returned by Submit before the last step is reached.
	ErrNotFinalStep = errors.New("form: not at final step")
	// ErrInvalid is returned by Submit when any field fails validation.
	ErrInvalid = errors.New("form: validation failed")
)

// Field is one input bound to a step.
type Field struct {
	Name  string
	Label string
	Rules []Rule
	// Secret fields are never persisted in drafts nor rendered back.
	Secret bool
}

// Step groups the fields shown on one screen.
type Step struct {
	Title  string
	Fields []Field
}

// Definition is the static shape of a form.
type Definition struct {
	Name  string
	Steps []Step

	fields  map[string]Field
	stepOf  map[string]int
	readers map[string][]string
}

// NewDefinition indexes steps for lookup. It panics on an empty or duplicated layout.
func NewDefinition(name string, steps ...Step) *Definition {
	if len(steps) == 0 {
		panic("form: definition " + name + " has no steps")
	}
	def := &Definition{
		Name:    name,
		Steps:   steps,
		fields:  make(map[string]Field),
		stepOf:  make(map[string]int),
		readers: make(map[string][]string),
	}
	for i, step := range steps {
		for _, field := range step.Fields {
			if _, dup := def.fields[field.Name]; dup {
				panic("form: duplicate field " + field.Name + " in " + name)
			}
			def.fields[field.Name] = field
			def.stepOf[field.Name] = i + 1
			for _, rule := range field.Rules {
				dep, ok := rule.(Dependent)
				if !ok {
					continue
				}
				for _, other := range dep.DependsOn() {
					def.readers[other] = append(def.readers[other], field.Name)
				}
			}
		}
	}
	return def
}

// StepCount returns N, the number of steps.
func (d *Definition) StepCount() int {
	return len(d.Steps)
}

// Field looks up a field by name.
func (d *Definition) Field(name string) (Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// StepOf returns the 1-based step that owns name, or 0.
func (d *Definition) StepOf(name string) int {
	return d.stepOf[name]
}

// FieldNames returns every field name in step order.
func (d *Definition) FieldNames() []string {
	var names []string
	for _, step := range d.Steps {
		for _, f := range step.Fields {
			names = append(names, f.Name)
		}
	}
	return names
}

// NewState returns a pristine state at step 1.
func (d *Definition) NewState() *State {
	return &State{
		Values:      make(map[string]string),
		Errors:      make(map[string]string),
		CurrentStep: 1,
		Outcome:     submission.Idle(),
	}
}

// State is the mutable form state owned by one visitor's page.
type State struct {
	Values      map[string]string  `json:"values"`
	Errors      map[string]string  `json:"errors,omitempty"`
	CurrentStep int                `json:"step"`
	Submitting  bool               `json:"submitting,omitempty"`
	Outcome     submission.Outcome `json:"outcome"`
}

// Value returns the current value of name.
func (s *State) Value(name string) string {
	return s.Values[name]
}

// Error returns the current error for name.
func (s *State) Error(name string) string {
	return s.Errors[name]
}

// Flow drives a State through a Definition.
type Flow struct {
	def   *Definition
	state *State
}

// NewFlow binds def to state, repairing a state loaded from an older layout.
func NewFlow(def *Definition, state *State) *Flow {
	if state == nil {
		state = def.NewState()
	}
	if state.Values == nil {
		state.Values = make(map[string]string)
	}
	if state.Errors == nil {
		state.Errors = make(map[string]string)
	}
	if state.CurrentStep < 1 {
		state.CurrentStep = 1
	}
	if state.CurrentStep > def.StepCount() {
		state.CurrentStep = def.StepCount()
	}
	if state.Outcome.Status == "" {
		state.Outcome = submission.Idle()
	}
	return &Flow{def: def, state: state}
}

// Definition returns the bound definition.
func (f *Flow) Definition() *Definition {
	return f.def
}

// State returns the bound state.
func (f *Flow) State() *State {
	return f.state
}

// SetField stores value and revalidates name plus every field whose rules read name.
// Unknown fields are ignored.
func (f *Flow) SetField(name, value string) {
	if _, ok := f.def.fields[name]; !ok {
		return
	}
	f.state.Values[name] = value
	f.validateField(name)
	for _, reader := range f.def.readers[name] {
		// Only re-check a dependent once it has been filled in.
		if _, touched := f.state.Values[reader]; touched {
			f.validateField(reader)
		}
	}
}

// SetFields applies SetField for every known field present in values, in definition order.
func (f *Flow) SetFields(values map[string]string) {
	for _, name := range f.def.FieldNames() {
		if value, ok := values[name]; ok {
			f.SetField(name, value)
		}
	}
}

// Next advances one step if every field on the current step validates.
func (f *Flow) Next() bool {
	if !f.validateStep(f.state.CurrentStep) {
		return false
	}
	if f.state.CurrentStep >= f.def.StepCount() {
		return false
	}
	f.state.CurrentStep++
	return true
}

// Back moves one step back without revalidating.
func (f *Flow) Back() bool {
	if f.state.CurrentStep <= 1 {
		return false
	}
	f.state.CurrentStep--
	return true
}

// Valid reports whether every field of every step validates, recording errors.
func (f *Flow) Valid() bool {
	ok := true
	for step := 1; step <= f.def.StepCount(); step++ {
		if !f.validateStep(step) {
			ok = false
		}
	}
	return ok
}

// Runner executes submissions; *submission.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, key string, call submission.Call) (submission.Outcome, error)
}

// SubmitFunc receives a copy of the validated values.
type SubmitFunc func(ctx context.Context, values map[string]string) error

// Submit runs call through runner under key. It is a no-op returning ErrSubmitting
// while a previous submission is unsettled. On success the values are cleared.
func (f *Flow) Submit(ctx context.Context, runner Runner, key string, call SubmitFunc) error {
	if f.state.Submitting {
		return ErrSubmitting
	}
	if f.state.CurrentStep != f.def.StepCount() {
		return ErrNotFinalStep
	}
	if !f.Valid() {
		return ErrInvalid
	}

	f.state.Submitting = true
	f.state.Outcome = submission.Idle()
	values := f.Values()

	outcome, err := runner.Run(ctx, key, func(ctx context.Context) error {
		return call(ctx, values)
	})
	f.state.Submitting = false
	if err != nil {
		return err
	}

	f.state.Outcome = outcome
	if outcome.Succeeded() {
		f.state.Values = make(map[string]string)
		f.state.Errors = make(map[string]string)
		f.state.CurrentStep = 1
	}
	return nil
}

// Values returns a copy of the current values.
func (f *Flow) Values() map[string]string {
	out := make(map[string]string, len(f.state.Values))
	for k, v := range f.state.Values {
		out[k] = v
	}
	return out
}

// ResetOutcome returns the outcome to idle, as when the visitor starts over.
func (f *Flow) ResetOutcome() {
	f.state.Outcome = submission.Idle()
}

// Persistable returns a copy of the state with secret fields removed.
func (f *Flow) Persistable() *State {
	out := &State{
		Values:      make(map[string]string, len(f.state.Values)),
		Errors:      make(map[string]string, len(f.state.Errors)),
		CurrentStep: f.state.CurrentStep,
		Submitting:  f.state.Submitting,
		Outcome:     f.state.Outcome,
	}
	for name, value := range f.state.Values {
		if field, ok := f.def.fields[name]; ok && field.Secret {
			continue
		}
		out.Values[name] = value
	}
	for name, msg := range f.state.Errors {
		out.Errors[name] = msg
	}
	return out
}

func (f *Flow) validateStep(step int) bool {
	if step < 1 || step > f.def.StepCount() {
		return false
	}
	ok := true
	for _, field := range f.def.Steps[step-1].Fields {
		if !f.validateField(field.Name) {
			ok = false
		}
	}
	return ok
}

func (f *Flow) validateField(name string) bool {
	field := f.def.fields[name]
	value := f.state.Values[name]
	if !field.Secret {
		value = strings.TrimSpace(value)
	}
	for _, rule := range field.Rules {
		if msg := rule.Check(value, f.state.Values); msg != "" {
			f.state.Errors[name] = msg
			return false
		}
	}
	delete(f.state.Errors, name)
	return true
}
