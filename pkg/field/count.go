package field

import (
	"fmt"
	"strconv"

	"github.com/twinfer/bitwire/internal/cel"
)

// Count tells a sized field how many elements or bytes to expect.
type Count interface {
	// Resolve returns the count for owner. Sibling-based sources look at the
	// fields declared before owner in its parent.
	Resolve(owner Field) (int, error)
	// Fixed returns the constant count, if there is one.
	Fixed() (int, bool)
	String() string
}

// Const is a constant count. It panics on negative n.
func Const(n int) Count {
	if n < 0 {
		panic(fmt.Sprintf("negative constant count %d", n))
	}
	return constCount(n)
}

type constCount int

func (c constCount) Resolve(Field) (int, error) { return int(c), nil }
func (c constCount) Fixed() (int, bool)         { return int(c), true }
func (c constCount) String() string             { return strconv.Itoa(int(c)) }

// Ref reads the count from the current value of the sibling integer field
// called name. The sibling must be declared before the owner.
func Ref(name string) Count {
	return refCount(name)
}

type refCount string

func (r refCount) Fixed() (int, bool) { return 0, false }
func (r refCount) String() string     { return string(r) }

func (r refCount) Resolve(owner Field) (int, error) {
	sib, err := r.sibling(owner)
	if err != nil {
		return 0, err
	}
	n, ok := integerOf(sib)
	if !ok {
		return 0, newError(owner, "count", ErrStructural, "count source %q is a %s, not an integer", string(r), sib.TypeName())
	}
	if n < 0 {
		return 0, newError(owner, "count", ErrStructural, "count source %q is negative (%d)", string(r), n)
	}
	return int(n), nil
}

// sibling finds the named field among the siblings preceding owner.
func (r refCount) sibling(owner Field) (Field, error) {
	parent := owner.Parent()
	if parent == nil {
		return nil, newError(owner, "count", ErrStructural, "count source %q needs a parent", string(r))
	}
	for _, c := range parent.Children() {
		if c == owner {
			break
		}
		if c.Name() == string(r) {
			return c, nil
		}
	}
	for _, c := range parent.Children() {
		if c.Name() == string(r) {
			return nil, newError(owner, "count", ErrStructural, "count source %q is declared after %q", string(r), owner.Name())
		}
	}
	return nil, newError(owner, "count", ErrStructural, "count source %q not found", string(r))
}

// follow writes n back into the referenced sibling after a resize.
func (r refCount) follow(owner Field, n int) error {
	sib, err := r.sibling(owner)
	if err != nil {
		return err
	}
	return sib.SetValue(n)
}

// CountExpr evaluates a CEL expression over the values of the siblings that
// precede the owner, e.g. "ByteCount * 8" or "ceilDiv(Bits, 8)".
func CountExpr(expression string) Count {
	return exprCount(expression)
}

type exprCount string

func (e exprCount) Fixed() (int, bool) { return 0, false }
func (e exprCount) String() string     { return string(e) }

func (e exprCount) Resolve(owner Field) (int, error) {
	pool, err := cel.DefaultPool()
	if err != nil {
		return 0, newError(owner, "count", ErrStructural, "%v", err)
	}

	params := make(map[string]any)
	if parent := owner.Parent(); parent != nil {
		for _, c := range parent.Children() {
			if c == owner {
				break
			}
			params[c.Name()] = scalar(c)
		}
	}

	n, err := pool.EvaluateInt(string(e), params)
	if err != nil {
		return 0, newError(owner, "count", ErrStructural, "%v (with %s)", err, cel.Describe(params))
	}
	if n < 0 {
		return 0, newError(owner, "count", ErrStructural, "count expression %q is negative (%d)", string(e), n)
	}
	return int(n), nil
}
