package types

import (
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
)

type typeConstraint struct {
	lhs ValueType
	rhs ValueType
	pos ir.Positioner
}

type captConstraint struct {
	lhs CaptureSet
	rhs CaptureSet
	// sub means lhs must be contained in rhs; otherwise equality
	sub bool
	pos ir.Positioner
}

// UnificationScope owns a generation of fresh variables and the
// constraints accumulated while checking under it. Scopes nest
// strictly LIFO with the lexical structure of the tree; solving
// happens once, when the scope closes.
type UnificationScope struct {
	parent *UnificationScope
	depth  int

	ownedVars map[uint64]struct{}
	// captVarIDs is the subset of ownedVars minted as capture variables
	captVarIDs map[uint64]struct{}
	typeCs     []typeConstraint
	captCs     []captConstraint
}

func newRootScope() *UnificationScope {
	return &UnificationScope{
		depth:      0,
		ownedVars:  make(map[uint64]struct{}),
		captVarIDs: make(map[uint64]struct{}),
	}
}

func (s *UnificationScope) owns(id uint64) bool {
	_, ok := s.ownedVars[id]
	return ok
}

func (s *UnificationScope) own(id uint64) {
	s.ownedVars[id] = struct{}{}
}

// FreshTypeVar mints a unification type variable owned by the current
// scope.
func (ctx *TypeCtx) FreshTypeVar(hint string) *Var {
	v := ctx.fresher.NewTypeVar(ctx.scope.depth, hint)
	ctx.scope.own(v.ID)
	return v
}

// FreshCaptVar mints a unification capture variable owned by the
// current scope.
func (ctx *TypeCtx) FreshCaptVar(hint string) CaptureVar {
	v := ctx.fresher.NewCaptVar(ctx.scope.depth, hint)
	ctx.scope.own(v.ID)
	ctx.scope.captVarIDs[v.ID] = struct{}{}
	return v
}

// RequireEqual enqueues an equality constraint between two value types.
// Head-constructor clashes are reported immediately: they can never be
// fixed by later solving. Variable constraints are deferred to solve.
func (ctx *TypeCtx) RequireEqual(a, b ValueType) {
	pendingT := []typeConstraint{{lhs: a, rhs: b, pos: ctx.currentPos}}
	var pendingC []captConstraint
	for len(pendingT) > 0 {
		c := pendingT[len(pendingT)-1]
		pendingT = pendingT[:len(pendingT)-1]
		lv, lok := c.lhs.(*Var)
		rv, rok := c.rhs.(*Var)
		if lok && rok && lv.ID == rv.ID {
			continue
		}
		if lok && !lv.Rigid() || rok && !rv.Rigid() {
			ctx.scope.typeCs = append(ctx.scope.typeCs, c)
			continue
		}
		if lok || rok {
			// rigid variable against a different term
			ctx.reportMismatch(c.lhs, c.rhs, c.pos)
			continue
		}
		ts, cs, ok := decomposeValue(c.lhs, c.rhs, c.pos)
		if !ok {
			ctx.reportMismatch(c.lhs, c.rhs, c.pos)
			continue
		}
		pendingT = append(pendingT, ts...)
		pendingC = append(pendingC, cs...)
	}
	ctx.scope.captCs = append(ctx.scope.captCs, pendingC...)
}

// RequireEqualBlock is RequireEqual over block types.
func (ctx *TypeCtx) RequireEqualBlock(a, b BlockType) {
	ts, cs, ok := decomposeBlock(a, b, ctx.currentPos)
	if !ok {
		ctx.reportMismatchBlock(a, b, ctx.currentPos)
		return
	}
	for _, c := range ts {
		ctx.RequireEqual(c.lhs, c.rhs)
	}
	ctx.scope.captCs = append(ctx.scope.captCs, cs...)
}

// RequireEqualCapt enqueues a capture-set equality.
func (ctx *TypeCtx) RequireEqualCapt(a, b CaptureSet) {
	ctx.scope.captCs = append(ctx.scope.captCs, captConstraint{lhs: a, rhs: b, pos: ctx.currentPos})
}

// RequireSubCapt enqueues a subsumption edge: a must use no more than b.
func (ctx *TypeCtx) RequireSubCapt(a, b CaptureSet) {
	ctx.scope.captCs = append(ctx.scope.captCs, captConstraint{lhs: a, rhs: b, sub: true, pos: ctx.currentPos})
}

// decomposeValue performs one structural step over concrete heads. Not
// called with variables on either side. Returns ok=false on a clash.
func decomposeValue(a, b ValueType, pos ir.Positioner) (ts []typeConstraint, cs []captConstraint, ok bool) {
	switch a := a.(type) {
	case Data:
		b, isData := b.(Data)
		if !isData || a.Sym != b.Sym || len(a.Args) != len(b.Args) {
			return nil, nil, false
		}
		for i := range a.Args {
			ts = append(ts, typeConstraint{lhs: a.Args[i], rhs: b.Args[i], pos: pos})
		}
		return ts, nil, true
	case Boxed:
		b, isBoxed := b.(Boxed)
		if !isBoxed {
			return nil, nil, false
		}
		ts, cs, ok = decomposeBlock(a.Block, b.Block, pos)
		if !ok {
			return nil, nil, false
		}
		cs = append(cs, captConstraint{lhs: a.Capt, rhs: b.Capt, pos: pos})
		return ts, cs, true
	}
	return nil, nil, false
}

func decomposeBlock(a, b BlockType, pos ir.Positioner) (ts []typeConstraint, cs []captConstraint, ok bool) {
	switch a := a.(type) {
	case *FunctionType:
		b, isFun := b.(*FunctionType)
		if !isFun {
			return nil, nil, false
		}
		if len(a.TParams) != len(b.TParams) ||
			len(a.VParams) != len(b.VParams) ||
			len(a.BParams) != len(b.BParams) {
			return nil, nil, false
		}
		// alpha-rename b's bound type parameters to a's before comparing
		rhs := b
		if len(b.TParams) > 0 {
			rename := make(map[uint64]ValueType, len(b.TParams))
			for i, p := range b.TParams {
				rename[p.ID] = a.TParams[i]
			}
			rhs = substRigidBlock(b, rename, nil).(*FunctionType)
		}
		for i := range a.VParams {
			ts = append(ts, typeConstraint{lhs: a.VParams[i], rhs: rhs.VParams[i], pos: pos})
		}
		for i := range a.BParams {
			subT, subC, subOk := decomposeBlock(a.BParams[i], rhs.BParams[i], pos)
			if !subOk {
				return nil, nil, false
			}
			ts = append(ts, subT...)
			cs = append(cs, subC...)
		}
		// capture parameters are aligned by slot where both declare them
		for i := 0; i < len(a.CParams) && i < len(rhs.CParams); i++ {
			cs = append(cs, captConstraint{
				lhs: CaptureSetOf(a.CParams[i]),
				rhs: CaptureSetOf(rhs.CParams[i]),
				pos: pos,
			})
		}
		ts = append(ts, typeConstraint{lhs: a.Result, rhs: rhs.Result, pos: pos})
		return ts, cs, true
	case InterfaceType:
		b, isIface := b.(InterfaceType)
		if !isIface || a.Sym != b.Sym || len(a.Args) != len(b.Args) {
			return nil, nil, false
		}
		for i := range a.Args {
			ts = append(ts, typeConstraint{lhs: a.Args[i], rhs: b.Args[i], pos: pos})
		}
		return ts, nil, true
	}
	return nil, nil, false
}

// occursIn reports whether the variable appears inside a candidate
// solution. Binding such a solution would make the substitution cyclic,
// so the equation has no finite answer.
func occursIn(id uint64, t ValueType) bool {
	switch t := t.(type) {
	case *Var:
		return !t.Rigid() && t.ID == id
	case Data:
		for _, a := range t.Args {
			if occursIn(id, a) {
				return true
			}
		}
	case Boxed:
		return occursInBlock(id, t.Block)
	}
	return false
}

func occursInBlock(id uint64, b BlockType) bool {
	switch b := b.(type) {
	case *FunctionType:
		for _, p := range b.VParams {
			if occursIn(id, p) {
				return true
			}
		}
		for _, p := range b.BParams {
			if occursInBlock(id, p) {
				return true
			}
		}
		return occursIn(id, b.Result)
	case InterfaceType:
		for _, a := range b.Args {
			if occursIn(id, a) {
				return true
			}
		}
	}
	return false
}

func (ctx *TypeCtx) reportInfiniteType(v *Var, t ValueType, pos ir.Positioner) {
	ctx.addError(korerr.New(korerr.NewTypeMismatch{
		Positioner: ir.RangeOf(pos),
		First:      v.String(),
		Second:     t.String(),
		Reason:     "the type would be infinitely large",
	}))
}

func (ctx *TypeCtx) reportMismatch(a, b ValueType, pos ir.Positioner) {
	ctx.addError(korerr.New(korerr.NewTypeMismatch{
		Positioner: ir.RangeOf(pos),
		First:      a.String(),
		Second:     b.String(),
	}))
}

func (ctx *TypeCtx) reportMismatchBlock(a, b BlockType, pos ir.Positioner) {
	ctx.addError(korerr.New(korerr.NewTypeMismatch{
		Positioner: ir.RangeOf(pos),
		First:      a.String(),
		Second:     b.String(),
	}))
}

// deferredCheck is a capture relation validated only once the scope's
// substitution is complete.
type deferredCheck struct {
	lhs CaptureSet
	rhs CaptureSet
	sub bool
	pos ir.Positioner
}

// solveScope resolves the scope's worklist and returns the most general
// substitution for the variables this scope owns. Constraints that
// mention only outer-scope variables are re-packaged for the parent.
func (ctx *TypeCtx) solveScope(scope *UnificationScope) Subst {
	subst := NewSubst()
	var residualT []typeConstraint

	work := scope.typeCs
	scope.typeCs = nil
	for i := 0; i < len(work); i++ {
		c := work[i]
		lhs := subst.ApplyValue(c.lhs)
		rhs := subst.ApplyValue(c.rhs)
		lv, lok := lhs.(*Var)
		rv, rok := rhs.(*Var)
		switch {
		case lok && rok && lv.ID == rv.ID:
			// solved
		case lok && !lv.Rigid() && scope.owns(lv.ID):
			if occursIn(lv.ID, rhs) {
				ctx.reportInfiniteType(lv, rhs, c.pos)
				continue
			}
			subst.bindType(lv.ID, rhs)
		case rok && !rv.Rigid() && scope.owns(rv.ID):
			if occursIn(rv.ID, lhs) {
				ctx.reportInfiniteType(rv, lhs, c.pos)
				continue
			}
			subst.bindType(rv.ID, lhs)
		case lok && !lv.Rigid(), rok && !rv.Rigid():
			residualT = append(residualT, typeConstraint{lhs: lhs, rhs: rhs, pos: c.pos})
		case lok, rok:
			ctx.reportMismatch(lhs, rhs, c.pos)
		default:
			ts, cs, ok := decomposeValue(lhs, rhs, c.pos)
			if !ok {
				ctx.reportMismatch(lhs, rhs, c.pos)
				continue
			}
			work = append(work, ts...)
			scope.captCs = append(scope.captCs, cs...)
		}
	}

	residualC := ctx.solveCaptures(scope, subst)

	// sweep unresolved owned variables left in solutions by cycles:
	// their least solution is the empty set
	for id, sol := range subst.captures {
		subst.captures[id] = dropOwnedVars(sol, scope)
	}

	if scope.parent != nil {
		for _, c := range residualT {
			scope.parent.typeCs = append(scope.parent.typeCs, typeConstraint{
				lhs: subst.ApplyValue(c.lhs),
				rhs: subst.ApplyValue(c.rhs),
				pos: c.pos,
			})
		}
		for _, c := range residualC {
			scope.parent.captCs = append(scope.parent.captCs, captConstraint{
				lhs: subst.ApplyCaptures(c.lhs),
				rhs: subst.ApplyCaptures(c.rhs),
				sub: c.sub,
				pos: c.pos,
			})
		}
	} else {
		// the root scope has no outer variables, so a residual here is
		// either fully concrete (check now) or a checker bug
		for _, c := range residualT {
			lhs, rhs := subst.ApplyValue(c.lhs), subst.ApplyValue(c.rhs)
			ctx.reportMismatch(lhs, rhs, c.pos)
		}
		for _, c := range residualC {
			ctx.checkConcreteCapt(deferredCheck(c), subst)
		}
	}
	return subst
}

func (ctx *TypeCtx) solveCaptures(scope *UnificationScope, subst Subst) []captConstraint {
	var residual []captConstraint
	var checks []deferredCheck

	pinned := make(map[uint64]bool)
	lower := make(map[uint64]CaptureSet)

	work := scope.captCs
	scope.captCs = nil
	for _, c := range work {
		lhs := subst.ApplyCaptures(c.lhs)
		rhs := subst.ApplyCaptures(c.rhs)
		if c.sub {
			if v, ok := rhs.AsSingleVar(); ok && scope.owns(v.ID) && !pinned[v.ID] {
				lower[v.ID] = lower[v.ID].Union(lhs)
				continue
			}
			if ownedVarsIn(lhs, scope) == 0 && ownedVarsIn(rhs, scope) == 0 {
				if lhs.HasVars() || rhs.HasVars() {
					residual = append(residual, captConstraint{lhs: lhs, rhs: rhs, sub: true, pos: c.pos})
				} else if !lhs.SubsetOf(rhs) {
					ctx.reportCaptMismatch(lhs, rhs, true, c.pos)
				}
				continue
			}
			// owned variables on the contained side: check after solving
			checks = append(checks, deferredCheck{lhs: lhs, rhs: rhs, sub: true, pos: c.pos})
			continue
		}
		// equality
		if v, ok := lhs.AsSingleVar(); ok && scope.owns(v.ID) && !pinned[v.ID] {
			subst.bindCapture(v.ID, rhs.Difference(CaptureSetOf(v)))
			pinned[v.ID] = true
			continue
		}
		if v, ok := rhs.AsSingleVar(); ok && scope.owns(v.ID) && !pinned[v.ID] {
			subst.bindCapture(v.ID, lhs.Difference(CaptureSetOf(v)))
			pinned[v.ID] = true
			continue
		}
		if ownedVarsIn(lhs, scope) == 0 && ownedVarsIn(rhs, scope) == 0 {
			if lhs.HasVars() || rhs.HasVars() {
				residual = append(residual, captConstraint{lhs: lhs, rhs: rhs, pos: c.pos})
			} else if !lhs.Equal(rhs) {
				ctx.reportCaptMismatch(lhs, rhs, false, c.pos)
			}
			continue
		}
		checks = append(checks, deferredCheck{lhs: lhs, rhs: rhs, pos: c.pos})
	}

	// accumulated lower bounds become the least solution of anything
	// not pinned by an equality
	for id, lb := range lower {
		if pinned[id] {
			checks = append(checks, deferredCheck{lhs: lb, rhs: CaptureSetOf(CaptureVar{ID: id}), sub: true})
			continue
		}
		subst.bindCapture(id, lb)
	}
	// everything owned and still unconstrained solves to pure
	for id := range scope.captVarIDs {
		if _, done := subst.captures[id]; !done {
			subst.captures[id] = Pure()
		}
	}

	for _, check := range checks {
		ctx.checkConcreteCapt(check, subst)
	}
	return residual
}

// checkConcreteCapt validates a deferred capture relation under the
// final substitution, skipping it if outer variables remain.
func (ctx *TypeCtx) checkConcreteCapt(check deferredCheck, subst Subst) {
	lhs := subst.ApplyCaptures(check.lhs)
	rhs := subst.ApplyCaptures(check.rhs)
	if lhs.HasVars() || rhs.HasVars() {
		return
	}
	if check.sub {
		if !lhs.SubsetOf(rhs) {
			ctx.reportCaptMismatch(lhs, rhs, true, check.pos)
		}
		return
	}
	if !lhs.Equal(rhs) {
		ctx.reportCaptMismatch(lhs, rhs, false, check.pos)
	}
}

func (ctx *TypeCtx) reportCaptMismatch(lhs, rhs CaptureSet, sub bool, pos ir.Positioner) {
	if pos == nil {
		pos = ctx.currentPos
	}
	if sub {
		ctx.addError(korerr.New(korerr.NewCaptureNotSubsumed{
			Positioner: ir.RangeOf(pos),
			Inferred:   lhs.String(),
			Annotated:  rhs.String(),
		}))
		return
	}
	ctx.addError(korerr.New(korerr.NewCaptureMismatch{
		Positioner: ir.RangeOf(pos),
		First:      rhs.String(),
		Second:     lhs.String(),
	}))
}

func ownedVarsIn(c CaptureSet, scope *UnificationScope) int {
	n := 0
	for _, v := range c.Vars() {
		if scope.owns(v.ID) {
			n++
		}
	}
	return n
}

func dropOwnedVars(c CaptureSet, scope *UnificationScope) CaptureSet {
	out := c
	for _, v := range c.Vars() {
		if scope.owns(v.ID) {
			out = out.Difference(CaptureSetOf(v))
		}
	}
	return out
}
