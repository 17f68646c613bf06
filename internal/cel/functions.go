package cel

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// BitwiseFunctions declares bitAnd, bitOr, bitXor, bitShiftLeft and
// bitShiftRight over int and uint operands.
func BitwiseFunctions() cel.EnvOption {
	return cel.Lib(&bitwiseLib{})
}

// MathFunctions declares abs, min, max and ceilDiv over integers.
func MathFunctions() cel.EnvOption {
	return cel.Lib(&mathLib{})
}

func toUint64(v ref.Val) (uint64, bool) {
	switch x := v.(type) {
	case types.Int:
		return uint64(x), true
	case types.Uint:
		return uint64(x), true
	case types.Double:
		return uint64(x), true
	case types.Bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toInt64(v ref.Val) (int64, bool) {
	switch x := v.(type) {
	case types.Int:
		return int64(x), true
	case types.Uint:
		return int64(x), true
	case types.Double:
		if float64(x) != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// performBitwiseOp promotes both operands to uint64. Results that fit an
// int64 come back as Int so they mix with ordinary arithmetic.
func performBitwiseOp(lhs, rhs ref.Val, op func(uint64, uint64) uint64) ref.Val {
	l, lOk := toUint64(lhs)
	r, rOk := toUint64(rhs)
	if !lOk || !rOk {
		return types.NewErr("bitwise arguments must be numeric, got %s and %s", lhs.Type().TypeName(), rhs.Type().TypeName())
	}

	result := op(l, r)
	if result <= uint64(^uint64(0)>>1) {
		return types.Int(result)
	}
	return types.Uint(result)
}

func binaryDyn(name, id string, fn func(lhs, rhs ref.Val) ref.Val) cel.EnvOption {
	return cel.Function(name,
		cel.Overload(id, []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
			cel.BinaryBinding(fn),
		),
	)
}

type bitwiseLib struct{}

func (*bitwiseLib) CompileOptions() []cel.EnvOption {
	shift := func(left bool) func(lhs, rhs ref.Val) ref.Val {
		return func(lhs, rhs ref.Val) ref.Val {
			n, ok := toInt64(rhs)
			if !ok || n < 0 || n > 63 {
				return types.NewErr("shift amount must be an integer in [0, 63], got %v", rhs.Value())
			}
			return performBitwiseOp(lhs, types.Int(n), func(a, b uint64) uint64 {
				if left {
					return a << b
				}
				return a >> b
			})
		}
	}

	return []cel.EnvOption{
		binaryDyn("bitAnd", "bitand_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a & b })
		}),
		binaryDyn("bitOr", "bitor_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a | b })
		}),
		binaryDyn("bitXor", "bitxor_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			return performBitwiseOp(lhs, rhs, func(a, b uint64) uint64 { return a ^ b })
		}),
		binaryDyn("bitShiftLeft", "bitshiftleft_dyn_dyn", shift(true)),
		binaryDyn("bitShiftRight", "bitshiftright_dyn_dyn", shift(false)),
	}
}

func (*bitwiseLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

type mathLib struct{}

func (*mathLib) CompileOptions() []cel.EnvOption {
	ints := func(name string, lhs, rhs ref.Val) (int64, int64, ref.Val) {
		x, ok1 := toInt64(lhs)
		y, ok2 := toInt64(rhs)
		if !ok1 || !ok2 {
			return 0, 0, types.NewErr("arguments to %s must be integers", name)
		}
		return x, y, nil
	}

	return []cel.EnvOption{
		cel.Function("abs",
			cel.Overload("abs_dyn", []*cel.Type{cel.DynType}, cel.IntType,
				cel.UnaryBinding(func(val ref.Val) ref.Val {
					x, ok := toInt64(val)
					if !ok {
						return types.NewErr("expected integer argument to abs, got %s", val.Type().TypeName())
					}
					if x < 0 {
						return types.Int(-x)
					}
					return types.Int(x)
				}),
			),
		),
		binaryDyn("min", "min_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			x, y, errVal := ints("min", lhs, rhs)
			if errVal != nil {
				return errVal
			}
			return types.Int(min(x, y))
		}),
		binaryDyn("max", "max_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			x, y, errVal := ints("max", lhs, rhs)
			if errVal != nil {
				return errVal
			}
			return types.Int(max(x, y))
		}),
		// ceilDiv(bits, 8) is the number of bytes needed for a bit count
		binaryDyn("ceilDiv", "ceildiv_dyn_dyn", func(lhs, rhs ref.Val) ref.Val {
			x, y, errVal := ints("ceilDiv", lhs, rhs)
			if errVal != nil {
				return errVal
			}
			if y == 0 {
				return types.NewErr("ceilDiv by zero")
			}
			q := x / y
			if x%y != 0 && (x < 0) == (y < 0) {
				q++
			}
			return types.Int(q)
		}),
	}
}

func (*mathLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}
