// Package guard implements the guard-predicate and rate/weight expression
// evaluator (spec §4.2). A Value is a tagged sum of four cases — boolean
// constant, numeric constant, source-string expression, or opaque callable
// — never a dynamically typed slot (spec §9). Evaluation is fail-safe: any
// error yields the safe default that prevents firing (guard → false,
// weight/rate → 0) and the error is returned for the caller to log, never
// thrown across the evaluator boundary.
package guard

import (
	"fmt"
	"sync"
)

// Kind tags which case of Value is populated.
type Kind int

const (
	// KindAbsent marks a guard that was never set; it evaluates to true.
	KindAbsent Kind = iota
	KindBool
	KindNumber
	KindString
	KindFunc
)

// Func is the opaque-callable case: invoked with the current marking and
// time, its return value is cast to the target type (spec §4.2).
type Func func(vars Vars) (float64, error)

// Value is a guard predicate or a rate/weight expression.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	f    Func
}

// Absent is the zero Value; used for transitions with no guard (≡ true).
var Absent = Value{kind: KindAbsent}

// Bool constructs a boolean-constant guard.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number constructs a numeric-constant guard or weight/rate.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Expr constructs a source-string expression, parsed and cached on first
// evaluation, keyed by the source text (spec §4.2).
func Expr(s string) Value { return Value{kind: KindString, s: s} }

// Callable constructs an opaque-callable guard/rate.
func Callable(f Func) Value { return Value{kind: KindFunc, f: f} }

// exprCache holds parsed programs keyed by source string, shared across
// every Value in the process — the cache is global, not per-Value,
// matching "the parse result is cached keyed by the source string".
var exprCache sync.Map // map[string]*program

func cachedProgram(src string) (*program, error) {
	if v, ok := exprCache.Load(src); ok {
		return v.(*program), nil
	}
	prog, err := parse(src)
	if err != nil {
		return nil, err
	}
	exprCache.Store(src, prog)
	return prog, nil
}

// Guard evaluates v as a guard predicate against vars. On any evaluation
// error it returns (false, err) — the fail-safe default that prevents
// firing (spec §4.2, §7a). Callers should forward a non-nil err to the
// host's diagnostic log but must still use the returned bool, which is
// already the safe default.
func (v Value) Guard(vars Vars) (bool, error) {
	switch v.kind {
	case KindAbsent:
		return true, nil
	case KindBool:
		return v.b, nil
	case KindNumber:
		return v.n > 0, nil
	case KindString:
		result, err := v.evalString(vars)
		if err != nil {
			return false, err
		}
		b, ok := result.(bool)
		if !ok {
			return false, fmt.Errorf("guard expression %q did not evaluate to a boolean", v.s)
		}
		return b, nil
	case KindFunc:
		n, err := v.f(vars)
		if err != nil {
			return false, fmt.Errorf("guard callable failed: %w", err)
		}
		return n != 0, nil
	default:
		return false, fmt.Errorf("unrecognized guard kind %d", v.kind)
	}
}

// Rate evaluates v as a rate or arc-weight expression against vars. On any
// evaluation error, or a negative result, it returns (0, err) — the
// fail-safe default (spec §4.2, §7a).
func (v Value) Rate(vars Vars) (float64, error) {
	switch v.kind {
	case KindAbsent:
		return 0, fmt.Errorf("rate/weight value is absent")
	case KindBool:
		return 0, fmt.Errorf("boolean value used as rate/weight")
	case KindNumber:
		if v.n < 0 {
			return 0, fmt.Errorf("constant rate/weight %g is negative", v.n)
		}
		return v.n, nil
	case KindString:
		result, err := v.evalString(vars)
		if err != nil {
			return 0, err
		}
		n, ok := result.(float64)
		if !ok {
			return 0, fmt.Errorf("rate/weight expression %q did not evaluate to a number", v.s)
		}
		if n < 0 {
			return 0, fmt.Errorf("rate/weight expression %q evaluated negative (%g)", v.s, n)
		}
		return n, nil
	case KindFunc:
		n, err := v.f(vars)
		if err != nil {
			return 0, fmt.Errorf("rate/weight callable failed: %w", err)
		}
		if n < 0 {
			return 0, fmt.Errorf("rate/weight callable returned negative value (%g)", n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unrecognized rate/weight kind %d", v.kind)
	}
}

func (v Value) evalString(vars Vars) (interface{}, error) {
	prog, err := cachedProgram(v.s)
	if err != nil {
		return nil, fmt.Errorf("parse expression %q: %w", v.s, err)
	}
	result, err := evalNode(prog.root, vars)
	if err != nil {
		return nil, fmt.Errorf("eval expression %q: %w", v.s, err)
	}
	return result, nil
}

// IsAbsent reports whether v is the unset/absent guard.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Source returns the expression source text for a KindString value, or
// "" for any other kind — useful for diagnostics.
func (v Value) Source() string { return v.s }

// KindName returns a short tag for v's case — "absent", "bool", "number",
// "string", or "func" — for callers (e.g. netio) that need to serialize a
// Value without a type switch on the unexported kind field.
func (v Value) KindName() string {
	switch v.kind {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunc:
		return "func"
	default:
		return "absent"
	}
}

// AsBool returns v's boolean constant and true, or (false, false) if v is
// not a KindBool value.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsNumber returns v's numeric constant and true, or (0, false) if v is
// not a KindNumber value.
func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}
