package types

import (
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
)

// InferExpr is the inference judgment for expressions in value
// position. Every call records the result in the annotation table.
func (ctx *TypeCtx) InferExpr(e ir.Expr) (ValueType, CaptureSet) {
	focused := ctx.at(e)
	t, capt := focused.inferExpr(e)
	ctx.recordValue(e, t, capt)
	return t, capt
}

// InferExprAsBlock is the inference judgment for expressions in block
// position.
func (ctx *TypeCtx) InferExprAsBlock(e ir.Expr) (BlockType, CaptureSet) {
	focused := ctx.at(e)
	b, capt := focused.inferExprAsBlock(e)
	ctx.recordBlock(e, b, capt)
	return b, capt
}

// CheckAgainst infers e and unifies the inferred type with expected.
// The expected type is never pushed further down than this one
// unification.
func (ctx *TypeCtx) CheckAgainst(e ir.Expr, expected ValueType) (ValueType, CaptureSet) {
	t, capt := ctx.InferExpr(e)
	ctx.at(e).RequireEqual(t, expected)
	return t, capt
}

func (ctx *TypeCtx) inferExpr(e ir.Expr) (ValueType, CaptureSet) {
	switch e := e.(type) {
	case *ir.IntLit:
		return IntType, Pure()
	case *ir.BoolLit:
		return BoolType, Pure()
	case *ir.StringLit:
		return StringType, Pure()
	case *ir.UnitLit:
		return UnitType, Pure()

	case *ir.Var:
		if info, ok := ctx.lookupBlock(e.Sym); ok {
			// second-class binding in value position: box coercion,
			// allowed only for bare variable references
			return Boxed{Block: info.Type, Capt: info.Capt}, Pure()
		}
		if t, ok := ctx.lookupValue(e.Sym); ok {
			if region, mutable := ctx.stateRegion[e.Sym.ID]; mutable {
				ref, isRef := t.(Data)
				if !isRef || ref.Sym != ir.RefSym || len(ref.Args) != 1 {
					ctx.fatalf("mutable binding %s bound to non-state type %s", e.Sym, t)
				}
				return ref.Args[0], region
			}
			return t, Pure()
		}
		ctx.addError(korerr.New(korerr.NewUndefinedVariable{
			Positioner: ir.RangeOf(e),
			Name:       e.Sym.Name,
		}))
		return ctx.FreshTypeVar(e.Sym.Name), Pure()

	case *ir.MakeExpr:
		return ctx.inferMake(e)

	case *ir.Box:
		block, capt := ctx.withUnificationScopeBlock(func(inner *TypeCtx) (BlockType, CaptureSet) {
			return inner.InferExprAsBlock(e.Arg)
		})
		if e.Capt != nil {
			annotated := ctx.resolveCaptureNode(e.Capt)
			ctx.RequireSubCapt(capt, annotated)
			capt = annotated
		}
		return Boxed{Block: block, Capt: capt}, Pure()

	case *ir.Unbox, *ir.BlockLit:
		// block-producing expressions other than bare variables cannot
		// be boxed implicitly; report, then box anyway to keep going
		ctx.addError(korerr.New(korerr.NewAutoBoxNonVariable{
			Positioner: ir.RangeOf(e),
		}))
		block, capt := ctx.InferExprAsBlock(e)
		return Boxed{Block: block, Capt: capt}, Pure()

	case *ir.New:
		iface, capt, ok := ctx.checkImplementation(e.Impl, nil, nil)
		if !ok {
			return ctx.FreshTypeVar("new"), Pure()
		}
		return Boxed{Block: iface, Capt: capt}, Pure()

	case *ir.Call:
		return ctx.inferCall(e)

	case *ir.OpCall:
		return ctx.inferOpCall(e)

	case *ir.If:
		_, condCapt := ctx.CheckAgainst(e.Cond, BoolType)
		thenT, thenCapt := ctx.withUnificationScope(func(inner *TypeCtx) (ValueType, CaptureSet) {
			return inner.checkBody(e.Then)
		})
		elseT, elseCapt := ctx.withUnificationScope(func(inner *TypeCtx) (ValueType, CaptureSet) {
			return inner.checkBody(e.Else)
		})
		merged := ctx.mergeBranchTypes(thenT, elseT)
		return merged, condCapt.Union(thenCapt).Union(elseCapt)

	case *ir.Match:
		return ctx.inferMatch(e)

	case *ir.TryHandle:
		return ctx.checkTryHandle(e)

	case *ir.RegionExpr:
		return ctx.checkRegion(e)
	}
	ctx.fatalf("unhandled expression %T in value position", e)
	return nil, Pure()
}

func (ctx *TypeCtx) inferMake(e *ir.MakeExpr) (ValueType, CaptureSet) {
	decl, ok := ctx.variantOwner[e.Tag.ID]
	if !ok {
		ctx.fatalf("constructor %s does not belong to any data declaration", e.Tag)
	}
	var variant *ir.Variant
	for _, v := range decl.Variants {
		if v.Sym == e.Tag {
			variant = v
		}
	}
	if variant == nil {
		ctx.fatalf("constructor %s missing from data %s", e.Tag, decl.Sym)
	}

	var args []ValueType
	for _, p := range decl.TParams {
		args = append(args, ctx.FreshTypeVar(p.Name))
	}
	if len(e.TArgs) > 0 && len(e.TArgs) != len(args) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "type arguments",
			Expected:   len(args),
			Got:        len(e.TArgs),
		}))
	}
	for i := 0; i < len(e.TArgs) && i < len(args); i++ {
		ctx.at(e.TArgs[i]).RequireEqual(args[i], ctx.resolveValueType(e.TArgs[i]))
	}

	fields := ctx.variantFieldTypes(decl, variant, args)
	if len(e.Args) != len(fields) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "value arguments",
			Expected:   len(fields),
			Got:        len(e.Args),
		}))
	}
	capt := Pure()
	for i := 0; i < len(e.Args) && i < len(fields); i++ {
		_, c := ctx.CheckAgainst(e.Args[i], fields[i])
		capt = capt.Union(c)
	}
	return Data{Sym: decl.Sym, Args: args}, capt
}

func (ctx *TypeCtx) inferCall(e *ir.Call) (ValueType, CaptureSet) {
	callee, calleeCapt := ctx.InferExprAsBlock(e.Callee)
	fun, ok := callee.(*FunctionType)
	if !ok {
		ctx.addError(korerr.New(korerr.NewNotAFunction{
			Positioner: ir.RangeOf(e.Callee),
			Found:      callee.String(),
		}))
		return ctx.FreshTypeVar("call"), calleeCapt
	}
	if len(e.TArgs) > 0 && len(e.TArgs) != len(fun.TParams) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "type arguments",
			Expected:   len(fun.TParams),
			Got:        len(e.TArgs),
		}))
	}
	inst, tvars, cvars := ctx.instantiate(fun)
	for i := 0; i < len(e.TArgs) && i < len(tvars); i++ {
		ctx.at(e.TArgs[i]).RequireEqual(tvars[i], ctx.resolveValueType(e.TArgs[i]))
	}

	capt := calleeCapt
	if len(e.VArgs) != len(inst.VParams) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "value arguments",
			Expected:   len(inst.VParams),
			Got:        len(e.VArgs),
		}))
	}
	for i := 0; i < len(e.VArgs) && i < len(inst.VParams); i++ {
		_, c := ctx.CheckAgainst(e.VArgs[i], inst.VParams[i])
		capt = capt.Union(c)
	}

	if len(e.BArgs) != len(inst.BParams) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "block arguments",
			Expected:   len(inst.BParams),
			Got:        len(e.BArgs),
		}))
	}
	for i := 0; i < len(e.BArgs) && i < len(inst.BParams); i++ {
		argBlock, argCapt := ctx.InferExprAsBlock(e.BArgs[i])
		ctx.at(e.BArgs[i]).RequireEqualBlock(argBlock, inst.BParams[i])
		if i < len(cvars) {
			// the block argument's capabilities flow into the call
			// through the matching capture parameter
			ctx.at(e.BArgs[i]).RequireEqualCapt(CaptureSetOf(cvars[i]), argCapt)
			capt = capt.Union(CaptureSetOf(cvars[i]))
		}
		capt = capt.Union(argCapt)
	}
	return inst.Result, capt
}

// inferOpCall invokes one operation on a capability. Using an
// operation always captures the capability it goes through.
func (ctx *TypeCtx) inferOpCall(e *ir.OpCall) (ValueType, CaptureSet) {
	info, ok := ctx.lookupBlock(e.Cap)
	if !ok {
		ctx.addError(korerr.New(korerr.NewUndefinedVariable{
			Positioner: ir.RangeOf(e),
			Name:       e.Cap.Name,
		}))
		return ctx.FreshTypeVar(e.Op.Name), Pure()
	}
	iface, isIface := info.Type.(InterfaceType)
	if !isIface {
		ctx.addError(korerr.New(korerr.NewNotABlock{
			Positioner: ir.RangeOf(e),
			Found:      info.Type.String(),
		}))
		return ctx.FreshTypeVar(e.Op.Name), Pure()
	}
	decl, registered := ctx.interfaces[iface.Sym.ID]
	if !registered {
		ctx.fatalf("interface %s has no registered declaration", iface.Sym)
	}
	var op *ir.OpDecl
	for _, candidate := range decl.Ops {
		if candidate.Sym == e.Op {
			op = candidate
		}
	}
	if op == nil {
		ctx.fatalf("operation %s is not part of interface %s", e.Op, decl.Sym)
	}
	vparams, result := ctx.operationSignature(decl, op, iface.Args)
	if len(e.VArgs) != len(vparams) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(e),
			What:       "value arguments",
			Expected:   len(vparams),
			Got:        len(e.VArgs),
		}))
	}
	capt := info.Capt
	for i := 0; i < len(e.VArgs) && i < len(vparams); i++ {
		_, c := ctx.CheckAgainst(e.VArgs[i], vparams[i])
		capt = capt.Union(c)
	}
	return result, capt
}

// instantiate freshens a function type's bound parameters, registering
// the fresh variables with the current unification scope.
func (ctx *TypeCtx) instantiate(f *FunctionType) (*FunctionType, []*Var, []CaptureVar) {
	inst, tvars, cvars := Instantiate(f, ctx.fresher, ctx.scope.depth)
	for _, v := range tvars {
		ctx.scope.own(v.ID)
	}
	for _, v := range cvars {
		ctx.scope.own(v.ID)
		ctx.scope.captVarIDs[v.ID] = struct{}{}
	}
	return inst, tvars, cvars
}

func (ctx *TypeCtx) inferMatch(e *ir.Match) (ValueType, CaptureSet) {
	scrutT, capt := ctx.InferExpr(e.Scrutinee)

	patterns := make([]ir.Pattern, len(e.Clauses))
	for i, clause := range e.Clauses {
		patterns[i] = clause.Pattern
	}
	ctx.at(e).checkExhaustivity(scrutT, patterns)

	var result ValueType = BottomType
	for _, clause := range e.Clauses {
		clauseT, clauseCapt := ctx.withUnificationScope(func(inner *TypeCtx) (ValueType, CaptureSet) {
			bound := inner.bindPattern(clause.Pattern, scrutT)
			return bound.checkBody(clause.Body)
		})
		result = ctx.at(clause).mergeBranchTypes(result, clauseT)
		capt = capt.Union(clauseCapt)
	}
	return result, capt
}

// bindPattern introduces the pattern's binders, checking sub-pattern
// shapes against the scrutinee type.
func (ctx *TypeCtx) bindPattern(p ir.Pattern, scrut ValueType) *TypeCtx {
	switch p := p.(type) {
	case *ir.AnyPattern:
		return ctx
	case *ir.BindPattern:
		return ctx.bindValue(p.Sym, scrut)
	case *ir.LiteralPattern:
		litT, _ := ctx.InferExpr(p.Lit)
		ctx.at(p).RequireEqual(litT, scrut)
		return ctx
	case *ir.TagPattern:
		decl, ok := ctx.variantOwner[p.Tag.ID]
		if !ok {
			ctx.fatalf("pattern constructor %s does not belong to any data declaration", p.Tag)
		}
		var variant *ir.Variant
		for _, v := range decl.Variants {
			if v.Sym == p.Tag {
				variant = v
			}
		}
		var args []ValueType
		for _, tp := range decl.TParams {
			args = append(args, ctx.FreshTypeVar(tp.Name))
		}
		ctx.at(p).RequireEqual(Data{Sym: decl.Sym, Args: args}, scrut)
		fields := ctx.variantFieldTypes(decl, variant, args)
		if len(p.Patterns) != len(fields) {
			ctx.addError(korerr.New(korerr.NewWrongArity{
				Positioner: ir.RangeOf(p),
				What:       "pattern fields",
				Expected:   len(fields),
				Got:        len(p.Patterns),
			}))
		}
		bound := ctx
		for i := 0; i < len(p.Patterns) && i < len(fields); i++ {
			bound = bound.bindPattern(p.Patterns[i], fields[i])
		}
		return bound
	}
	ctx.fatalf("unhandled pattern %T", p)
	return ctx
}

// mergeBranchTypes unifies two branch results, with Bottom as the
// identity so empty or diverging branches merge with anything.
func (ctx *TypeCtx) mergeBranchTypes(a, b ValueType) ValueType {
	if IsBottom(a) {
		return b
	}
	if IsBottom(b) {
		return a
	}
	ctx.RequireEqual(a, b)
	return a
}

func (ctx *TypeCtx) checkRegion(e *ir.RegionExpr) (ValueType, CaptureSet) {
	capability := CaptureSetOf(CaptureOf{Sym: e.Sym})
	inner := ctx.withRegion(capability)
	t, capt := inner.withUnificationScope(func(in *TypeCtx) (ValueType, CaptureSet) {
		return in.checkBody(e.Body)
	})
	if escaped := FreeCaptures(t).Intersect(capability); !escaped.IsPure() {
		ctx.addError(korerr.New(korerr.NewCaptureEscape{
			Positioner:   ir.RangeOf(e),
			Capabilities: escaped.Names(),
			Scope:        "region " + e.Sym.Name,
		}))
	}
	return t, capt.Difference(capability)
}

func (ctx *TypeCtx) inferExprAsBlock(e ir.Expr) (BlockType, CaptureSet) {
	switch e := e.(type) {
	case *ir.Var:
		if info, ok := ctx.lookupBlock(e.Sym); ok {
			return info.Type, info.Capt
		}
		if t, ok := ctx.lookupValue(e.Sym); ok {
			// a boxed value in block position is unboxed implicitly
			if boxed, isBoxed := t.(Boxed); isBoxed {
				return boxed.Block, boxed.Capt
			}
			ctx.addError(korerr.New(korerr.NewNotABlock{
				Positioner: ir.RangeOf(e),
				Found:      t.String(),
			}))
			return ctx.errorBlockType(), Pure()
		}
		ctx.addError(korerr.New(korerr.NewUndefinedVariable{
			Positioner: ir.RangeOf(e),
			Name:       e.Sym.Name,
		}))
		return ctx.errorBlockType(), Pure()

	case *ir.Unbox:
		t, capt := ctx.InferExpr(e.Arg)
		if boxed, ok := t.(Boxed); ok {
			return boxed.Block, boxed.Capt.Union(capt)
		}
		ctx.addError(korerr.New(korerr.NewTypeMismatch{
			Positioner: ir.RangeOf(e),
			First:      "a boxed block type",
			Second:     t.String(),
		}))
		return ctx.errorBlockType(), capt

	case *ir.BlockLit:
		return ctx.checkBlockLit(e)

	case *ir.New:
		iface, capt, ok := ctx.checkImplementation(e.Impl, nil, nil)
		if !ok {
			return ctx.errorBlockType(), Pure()
		}
		return iface, capt
	}
	ctx.addError(korerr.New(korerr.NewNotABlock{
		Positioner: ir.RangeOf(e),
		Found:      ir.ExprString(e),
	}))
	return ctx.errorBlockType(), Pure()
}
