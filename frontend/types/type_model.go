package types

import (
	"fmt"
	"strings"

	"github.com/cottand/kor/frontend/ir"
)

// ValueType is the type of a first-class value.
type ValueType interface {
	valueType()
	String() string
}

// RigidLevel marks variables that stand for declared type parameters:
// they unify only with themselves.
const RigidLevel = -1

// Var is a type variable. Identity is the ID; no two Vars minted in a
// run share one. Level is the depth of the unification scope that owns
// it, or RigidLevel.
type Var struct {
	ID    uint64
	Hint  string
	Level int
}

func (v *Var) valueType() {}
func (v *Var) Rigid() bool {
	return v.Level == RigidLevel
}
func (v *Var) String() string {
	if v.Rigid() {
		return v.Hint
	}
	if v.Hint != "" {
		return "?" + v.Hint + itoa(v.ID)
	}
	return "?t" + itoa(v.ID)
}

// Data is a data or record type application. Builtins are nullary Data.
type Data struct {
	Sym  *ir.Symbol
	Args []ValueType
}

func (Data) valueType() {}
func (d Data) String() string {
	if len(d.Args) == 0 {
		return d.Sym.Name
	}
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = a.String()
	}
	return d.Sym.Name + "[" + strings.Join(parts, ", ") + "]"
}

// Boxed wraps a block type so it can flow first-class. The capture set
// records what running the block may use; it is what the non-escape
// check reads off a result type.
type Boxed struct {
	Block BlockType
	Capt  CaptureSet
}

func (Boxed) valueType() {}
func (b Boxed) String() string {
	return b.Block.String() + " at " + b.Capt.String()
}

// BlockType is the type of a second-class computation.
type BlockType interface {
	blockType()
	String() string
}

// FunctionType: TParams are rigid variables bound by the function,
// CParams are its capture parameters (one per block parameter by
// convention), EParams are evidence names kept only for printing.
type FunctionType struct {
	TParams []*Var
	CParams []CaptureVar
	EParams []string
	VParams []ValueType
	BParams []BlockType
	Result  ValueType
}

func (*FunctionType) blockType() {}
func (f *FunctionType) String() string {
	sb := &strings.Builder{}
	if len(f.TParams) > 0 {
		parts := make([]string, len(f.TParams))
		for i, p := range f.TParams {
			parts[i] = p.String()
		}
		fmt.Fprintf(sb, "[%s]", strings.Join(parts, ", "))
	}
	sb.WriteString("(")
	for i, p := range f.VParams {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteString(")")
	for _, b := range f.BParams {
		sb.WriteString(" {")
		sb.WriteString(b.String())
		sb.WriteString("}")
	}
	sb.WriteString(" => ")
	sb.WriteString(f.Result.String())
	return sb.String()
}

type InterfaceType struct {
	Sym  *ir.Symbol
	Args []ValueType
}

func (InterfaceType) blockType() {}
func (i InterfaceType) String() string {
	if len(i.Args) == 0 {
		return i.Sym.Name
	}
	parts := make([]string, len(i.Args))
	for j, a := range i.Args {
		parts[j] = a.String()
	}
	return i.Sym.Name + "[" + strings.Join(parts, ", ") + "]"
}

// Builtin nullary types.
var (
	IntType    = Data{Sym: ir.IntSym}
	BoolType   = Data{Sym: ir.BoolSym}
	StringType = Data{Sym: ir.StringSym}
	UnitType   = Data{Sym: ir.UnitSym}
	TopType    = Data{Sym: ir.TopSym}
	BottomType = Data{Sym: ir.BottomSym}
)

func IsBottom(t ValueType) bool {
	d, ok := t.(Data)
	return ok && d.Sym == ir.BottomSym
}

// RefType is the implicit state wrapper bound for `var` definitions.
func RefType(elem ValueType) Data {
	return Data{Sym: ir.RefSym, Args: []ValueType{elem}}
}

// Subst maps solved variables to their solutions. Applying it is pure.
type Subst struct {
	types    map[uint64]ValueType
	captures map[uint64]CaptureSet
}

func NewSubst() Subst {
	return Subst{
		types:    make(map[uint64]ValueType),
		captures: make(map[uint64]CaptureSet),
	}
}

func (s Subst) IsEmpty() bool {
	return len(s.types) == 0 && len(s.captures) == 0
}

func (s Subst) bindType(id uint64, t ValueType) {
	// keep existing bindings in solved form
	for k, v := range s.types {
		s.types[k] = substValue(v, map[uint64]ValueType{id: t}, nil)
	}
	s.types[id] = t
}

func (s Subst) bindCapture(id uint64, c CaptureSet) {
	single := map[uint64]CaptureSet{id: c}
	for k, v := range s.captures {
		s.captures[k] = substCaptureSet(v, single)
	}
	for k, v := range s.types {
		s.types[k] = substValue(v, nil, single)
	}
	s.captures[id] = c
}

func (s Subst) ApplyValue(t ValueType) ValueType {
	return substValue(t, s.types, s.captures)
}

func (s Subst) ApplyBlock(b BlockType) BlockType {
	return substBlock(b, s.types, s.captures)
}

func (s Subst) ApplyCaptures(c CaptureSet) CaptureSet {
	return substCaptureSet(c, s.captures)
}

// substValue substitutes type variables and capture variables in one
// pass. Either map may be nil.
func substValue(t ValueType, ts map[uint64]ValueType, cs map[uint64]CaptureSet) ValueType {
	switch t := t.(type) {
	case *Var:
		if t.Rigid() {
			return t
		}
		if found, ok := ts[t.ID]; ok {
			// solutions may themselves mention solved variables
			return substValue(found, ts, cs)
		}
		return t
	case Data:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]ValueType, len(t.Args))
		for i, a := range t.Args {
			args[i] = substValue(a, ts, cs)
		}
		return Data{Sym: t.Sym, Args: args}
	case Boxed:
		return Boxed{
			Block: substBlock(t.Block, ts, cs),
			Capt:  substCaptureSet(t.Capt, cs),
		}
	}
	return t
}

func substBlock(b BlockType, ts map[uint64]ValueType, cs map[uint64]CaptureSet) BlockType {
	switch b := b.(type) {
	case *FunctionType:
		vparams := make([]ValueType, len(b.VParams))
		for i, p := range b.VParams {
			vparams[i] = substValue(p, ts, cs)
		}
		bparams := make([]BlockType, len(b.BParams))
		for i, p := range b.BParams {
			bparams[i] = substBlock(p, ts, cs)
		}
		return &FunctionType{
			TParams: b.TParams,
			CParams: b.CParams,
			EParams: b.EParams,
			VParams: vparams,
			BParams: bparams,
			Result:  substValue(b.Result, ts, cs),
		}
	case InterfaceType:
		if len(b.Args) == 0 {
			return b
		}
		args := make([]ValueType, len(b.Args))
		for i, a := range b.Args {
			args[i] = substValue(a, ts, cs)
		}
		return InterfaceType{Sym: b.Sym, Args: args}
	}
	return b
}

func substCaptureSet(c CaptureSet, cs map[uint64]CaptureSet) CaptureSet {
	if len(cs) == 0 || !c.HasVars() {
		return c
	}
	out := Pure()
	for _, item := range c.Slice() {
		if v, ok := item.(CaptureVar); ok {
			if solved, found := cs[v.ID]; found {
				out = out.Union(substCaptureSet(solved, cs))
				continue
			}
		}
		out = out.Union(CaptureSetOf(item))
	}
	return out
}

// FreeCaptures collects every capture mentioned anywhere in the type,
// boxed capture annotations included. The non-escape check intersects
// this with the captures a closing scope bound.
func FreeCaptures(t ValueType) CaptureSet {
	switch t := t.(type) {
	case *Var:
		return Pure()
	case Data:
		out := Pure()
		for _, a := range t.Args {
			out = out.Union(FreeCaptures(a))
		}
		return out
	case Boxed:
		return t.Capt.Union(freeBlockCaptures(t.Block))
	}
	return Pure()
}

func freeBlockCaptures(b BlockType) CaptureSet {
	switch b := b.(type) {
	case *FunctionType:
		out := Pure()
		for _, p := range b.VParams {
			out = out.Union(FreeCaptures(p))
		}
		for _, p := range b.BParams {
			out = out.Union(freeBlockCaptures(p))
		}
		return out.Union(FreeCaptures(b.Result))
	case InterfaceType:
		out := Pure()
		for _, a := range b.Args {
			out = out.Union(FreeCaptures(a))
		}
		return out
	}
	return Pure()
}

// Instantiate renames the function's bound type parameters to fresh
// unification variables and its capture parameters to fresh capture
// variables. The fresh variables are returned so explicit arguments
// can be unified against them.
func Instantiate(f *FunctionType, fresher *Fresher, level int) (*FunctionType, []*Var, []CaptureVar) {
	tvars := make([]*Var, len(f.TParams))
	ts := make(map[uint64]ValueType, len(f.TParams))
	for i, p := range f.TParams {
		tvars[i] = fresher.NewTypeVar(level, p.Hint)
		ts[p.ID] = tvars[i]
	}
	cvars := make([]CaptureVar, len(f.CParams))
	cs := make(map[uint64]CaptureSet, len(f.CParams))
	for i, p := range f.CParams {
		cvars[i] = fresher.NewCaptVar(level, p.Hint)
		cs[p.ID] = CaptureSetOf(cvars[i])
	}
	vparams := make([]ValueType, len(f.VParams))
	for i, p := range f.VParams {
		vparams[i] = substRigid(p, ts, cs)
	}
	bparams := make([]BlockType, len(f.BParams))
	for i, p := range f.BParams {
		bparams[i] = substRigidBlock(p, ts, cs)
	}
	inst := &FunctionType{
		CParams: cvars,
		EParams: f.EParams,
		VParams: vparams,
		BParams: bparams,
		Result:  substRigid(f.Result, ts, cs),
	}
	return inst, tvars, cvars
}

// substRigid is substValue but also willing to replace rigid variables;
// only instantiation may do that.
func substRigid(t ValueType, ts map[uint64]ValueType, cs map[uint64]CaptureSet) ValueType {
	switch t := t.(type) {
	case *Var:
		if found, ok := ts[t.ID]; ok {
			return found
		}
		return t
	case Data:
		if len(t.Args) == 0 {
			return t
		}
		args := make([]ValueType, len(t.Args))
		for i, a := range t.Args {
			args[i] = substRigid(a, ts, cs)
		}
		return Data{Sym: t.Sym, Args: args}
	case Boxed:
		return Boxed{
			Block: substRigidBlock(t.Block, ts, cs),
			Capt:  substCaptureSet(t.Capt, cs),
		}
	}
	return t
}

func substRigidBlock(b BlockType, ts map[uint64]ValueType, cs map[uint64]CaptureSet) BlockType {
	switch b := b.(type) {
	case *FunctionType:
		vparams := make([]ValueType, len(b.VParams))
		for i, p := range b.VParams {
			vparams[i] = substRigid(p, ts, cs)
		}
		bparams := make([]BlockType, len(b.BParams))
		for i, p := range b.BParams {
			bparams[i] = substRigidBlock(p, ts, cs)
		}
		return &FunctionType{
			TParams: b.TParams,
			CParams: b.CParams,
			EParams: b.EParams,
			VParams: vparams,
			BParams: bparams,
			Result:  substRigid(b.Result, ts, cs),
		}
	case InterfaceType:
		if len(b.Args) == 0 {
			return b
		}
		args := make([]ValueType, len(b.Args))
		for i, a := range b.Args {
			args[i] = substRigid(a, ts, cs)
		}
		return InterfaceType{Sym: b.Sym, Args: args}
	}
	return b
}
