package types

import (
	"sort"
	"strings"

	set "github.com/hashicorp/go-set/v3"

	"github.com/cottand/kor/frontend/ir"
)

// Capture is one capability a computation may use. Identity is what
// matters: two captures are the same capability iff they are equal
// values. All implementations are comparable structs.
type Capture interface {
	captureKey() string
	String() string
}

// CaptureOf names the capability of a bound block, region, or handler
// capability symbol.
type CaptureOf struct {
	Sym *ir.Symbol
}

func (c CaptureOf) captureKey() string { return "sym:" + c.Sym.String() }
func (c CaptureOf) String() string     { return c.Sym.Name }

// ContinuationCapture is a frame token: it stands for the stack frame
// of a resumed continuation or of a running function, keeping state
// bound to the frame apart from named capabilities. Minted fresh per
// handler clause and per checked body.
type ContinuationCapture struct {
	ID uint64
}

func (c ContinuationCapture) captureKey() string { return "k:" + itoa(c.ID) }
func (c ContinuationCapture) String() string     { return "k" + itoa(c.ID) }

// CaptureVar is a unification variable over capture sets, owned by the
// unification scope that minted it.
type CaptureVar struct {
	ID    uint64
	Hint  string
	Level int
}

func (c CaptureVar) captureKey() string { return "cv:" + itoa(c.ID) }
func (c CaptureVar) String() string {
	if c.Hint != "" {
		return "?" + c.Hint + itoa(c.ID)
	}
	return "?c" + itoa(c.ID)
}

func itoa(v uint64) string {
	// small ids dominate; avoid strconv import churn in callers
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// CaptureSet is an immutable set of captures. The zero value is the
// pure (empty) set, the identity for Union.
type CaptureSet struct {
	items *set.Set[Capture]
}

func Pure() CaptureSet {
	return CaptureSet{}
}

func CaptureSetOf(cs ...Capture) CaptureSet {
	if len(cs) == 0 {
		return CaptureSet{}
	}
	return CaptureSet{items: set.From(cs)}
}

func (c CaptureSet) Size() int {
	if c.items == nil {
		return 0
	}
	return c.items.Size()
}

func (c CaptureSet) IsPure() bool { return c.Size() == 0 }

func (c CaptureSet) Contains(cap Capture) bool {
	return c.items != nil && c.items.Contains(cap)
}

// Union is ++ in the surface syntax.
func (c CaptureSet) Union(other CaptureSet) CaptureSet {
	if c.IsPure() {
		return other
	}
	if other.IsPure() {
		return c
	}
	merged := set.New[Capture](c.Size() + other.Size())
	merged.InsertSet(c.items)
	merged.InsertSet(other.items)
	return CaptureSet{items: merged}
}

// Difference is -- in the surface syntax.
func (c CaptureSet) Difference(other CaptureSet) CaptureSet {
	if c.IsPure() || other.IsPure() {
		return c
	}
	out := set.New[Capture](c.Size())
	for item := range c.items.Items() {
		if !other.Contains(item) {
			out.Insert(item)
		}
	}
	if out.Size() == 0 {
		return CaptureSet{}
	}
	return CaptureSet{items: out}
}

// Intersect keeps the captures present in both sets.
func (c CaptureSet) Intersect(other CaptureSet) CaptureSet {
	if c.IsPure() || other.IsPure() {
		return CaptureSet{}
	}
	out := set.New[Capture](min(c.Size(), other.Size()))
	for item := range c.items.Items() {
		if other.Contains(item) {
			out.Insert(item)
		}
	}
	if out.Size() == 0 {
		return CaptureSet{}
	}
	return CaptureSet{items: out}
}

// SubsetOf is the subsumption relation: every capability of c is also
// one of other.
func (c CaptureSet) SubsetOf(other CaptureSet) bool {
	if c.IsPure() {
		return true
	}
	for item := range c.items.Items() {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}

func (c CaptureSet) Equal(other CaptureSet) bool {
	return c.Size() == other.Size() && c.SubsetOf(other)
}

func (c CaptureSet) Slice() []Capture {
	if c.items == nil {
		return nil
	}
	out := c.items.Slice()
	sort.Slice(out, func(i, j int) bool { return out[i].captureKey() < out[j].captureKey() })
	return out
}

// Vars returns the unification variables mentioned in the set.
func (c CaptureSet) Vars() []CaptureVar {
	var vars []CaptureVar
	if c.items == nil {
		return nil
	}
	for item := range c.items.Items() {
		if v, ok := item.(CaptureVar); ok {
			vars = append(vars, v)
		}
	}
	return vars
}

// HasVars reports whether solving could still change the set.
func (c CaptureSet) HasVars() bool {
	if c.items == nil {
		return false
	}
	for item := range c.items.Items() {
		if _, ok := item.(CaptureVar); ok {
			return true
		}
	}
	return false
}

// AsSingleVar returns the variable when the set is exactly one
// unification variable.
func (c CaptureSet) AsSingleVar() (CaptureVar, bool) {
	if c.Size() != 1 {
		return CaptureVar{}, false
	}
	for item := range c.items.Items() {
		if v, ok := item.(CaptureVar); ok {
			return v, true
		}
	}
	return CaptureVar{}, false
}

func (c CaptureSet) String() string {
	parts := make([]string, 0, c.Size())
	for _, item := range c.Slice() {
		parts = append(parts, item.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Names renders the capability names for diagnostics, sorted.
func (c CaptureSet) Names() []string {
	names := make([]string, 0, c.Size())
	for _, item := range c.Slice() {
		names = append(names, item.String())
	}
	return names
}
