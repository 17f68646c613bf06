package field

import (
	"errors"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Validator is implemented by fields that carry WithValidation predicates.
type Validator interface {
	Validations() []string
}

var programs sync.Map // source -> *vm.Program

func compileValidation(source string) (*vm.Program, error) {
	if p, ok := programs.Load(source); ok {
		return p.(*vm.Program), nil
	}
	p, err := expr.Compile(source, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	actual, _ := programs.LoadOrStore(source, p)
	return actual.(*vm.Program), nil
}

// Check evaluates the predicates attached to f alone. The environment binds
// value (the plain field value), name and bits (the MSB-first bit string).
func Check(f Field) error {
	v, ok := f.(Validator)
	if !ok {
		return nil
	}
	var errs []error
	for _, source := range v.Validations() {
		if err := check(f, source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func check(f Field, source string) error {
	p, err := compileValidation(source)
	if err != nil {
		return newError(f, "validate", ErrValidation, "compile %q: %v", source, err)
	}
	env := map[string]any{
		"value": scalar(f),
		"name":  f.Name(),
		"bits":  f.Bits().String(),
	}
	out, err := expr.Run(p, env)
	if err != nil {
		return newError(f, "validate", ErrValidation, "%q: %v", source, err)
	}
	if ok, _ := out.(bool); !ok {
		return newError(f, "validate", ErrValidation, "%q is false for %s", source, fmt.Sprint(scalar(f)))
	}
	return nil
}

// Validate walks the tree under root, checking every predicate and verifying
// every checksum. Dicts holding two children of the same name fail with
// ErrStructural. All failures are joined.
func Validate(root Field) error {
	var errs []error
	_ = Walk(root, func(f Field, _ int) error {
		if d, ok := f.(*Dict); ok {
			if err := uniqueNames(d); err != nil {
				errs = append(errs, err)
			}
		}
		if err := Check(f); err != nil {
			errs = append(errs, err)
		}
		if c, ok := f.(*Checksum); ok {
			if err := c.Verify(); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	return errors.Join(errs...)
}

func uniqueNames(d *Dict) error {
	seen := make(map[string]bool, d.Len())
	for _, name := range d.Keys() {
		if seen[name] {
			return newError(d, "validate", ErrStructural, "duplicate child %q", name)
		}
		seen[name] = true
	}
	return nil
}
