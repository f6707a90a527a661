package types

import (
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
)

// checkBody threads the context through a statement sequence. The
// body's type is the type of its last statement, Unit for binders.
func (ctx *TypeCtx) checkBody(b *ir.Body) (ValueType, CaptureSet) {
	var result ValueType = UnitType
	capt := Pure()
	cur := ctx
	for _, s := range b.Stmts {
		var c CaptureSet
		cur, result, c = cur.checkStmt(s)
		capt = capt.Union(c)
	}
	return result, capt
}

func (ctx *TypeCtx) checkBodyAgainst(b *ir.Body, expected ValueType) (ValueType, CaptureSet) {
	t, capt := ctx.checkBody(b)
	ctx.at(b).RequireEqual(t, expected)
	return t, capt
}

func (ctx *TypeCtx) checkStmt(s ir.Stmt) (*TypeCtx, ValueType, CaptureSet) {
	switch s := s.(type) {
	case *ir.ValStmt:
		var t ValueType
		var capt CaptureSet
		if s.Annot != nil {
			t, capt = ctx.CheckAgainst(s.Binding, ctx.resolveValueType(s.Annot))
		} else {
			t, capt = ctx.InferExpr(s.Binding)
		}
		return ctx.bindValue(s.Sym, t), UnitType, capt

	case *ir.VarStmt:
		region := ctx.region
		if s.Region != nil {
			region = CaptureSetOf(CaptureOf{Sym: s.Region})
		}
		var t ValueType
		var capt CaptureSet
		if s.Annot != nil {
			t, capt = ctx.CheckAgainst(s.Binding, ctx.resolveValueType(s.Annot))
			t = ctx.resolveValueType(s.Annot)
		} else {
			t, capt = ctx.InferExpr(s.Binding)
		}
		bound := ctx.bindValue(s.Sym, RefType(t))
		ctx.stateRegion[s.Sym.ID] = region
		return bound, UnitType, capt.Union(region)

	case *ir.AssignStmt:
		t, ok := ctx.lookupValue(s.Sym)
		if !ok {
			ctx.addError(korerr.New(korerr.NewUndefinedVariable{
				Positioner: ir.RangeOf(s),
				Name:       s.Sym.Name,
			}))
			_, capt := ctx.InferExpr(s.E)
			return ctx, UnitType, capt
		}
		ref, isRef := t.(Data)
		if !isRef || ref.Sym != ir.RefSym || len(ref.Args) != 1 {
			ctx.addError(korerr.New(korerr.NewAssignToImmutable{
				Positioner: ir.RangeOf(s),
				Name:       s.Sym.Name,
			}))
			_, capt := ctx.InferExpr(s.E)
			return ctx, UnitType, capt
		}
		_, capt := ctx.CheckAgainst(s.E, ref.Args[0])
		if region, mutable := ctx.stateRegion[s.Sym.ID]; mutable {
			capt = capt.Union(region)
		}
		return ctx, UnitType, capt

	case *ir.DefStmt:
		return ctx.checkDefGroup(s.Group), UnitType, Pure()

	case *ir.ExprStmt:
		t, capt := ctx.InferExpr(s.E)
		return ctx, t, capt
	}
	ctx.fatalf("unhandled statement %T", s)
	return ctx, nil, Pure()
}

// checkDefGroup checks one binding group. Mutually recursive groups
// (and self-recursive singletons) are prechecked from their annotated
// signatures so every member sees the others' types, with a placeholder
// capture variable standing in for the not-yet-known captures.
func (ctx *TypeCtx) checkDefGroup(g *ir.DefGroup) *TypeCtx {
	if !g.Recursive() {
		def := g.Defs[0]
		fun, capt := ctx.checkFunDef(def, nil)
		ctx.stage(def.Sym, SymbolInfo{Block: fun, Capt: capt})
		return ctx.bindBlock(def.Sym, BlockInfo{Type: fun, Capt: capt})
	}

	cur := ctx
	placeholders := make(map[ir.SymbolID]CaptureVar, len(g.Defs))
	signatures := make(map[ir.SymbolID]*FunctionType, len(g.Defs))
	for _, def := range g.Defs {
		sig := ctx.at(def).recursiveSignature(def)
		cv := ctx.FreshCaptVar(def.Sym.Name)
		placeholders[def.Sym.ID] = cv
		signatures[def.Sym.ID] = sig
		cur = cur.bindBlock(def.Sym, BlockInfo{Type: sig, Capt: CaptureSetOf(cv)})
	}
	for _, def := range g.Defs {
		_, capt := cur.checkFunDef(def, signatures[def.Sym.ID])
		cur.at(def).RequireEqualCapt(CaptureSetOf(placeholders[def.Sym.ID]), capt)
		ctx.stage(def.Sym, SymbolInfo{
			Block: signatures[def.Sym.ID],
			Capt:  CaptureSetOf(placeholders[def.Sym.ID]),
		})
	}
	return cur
}

// recursiveSignature builds a function type from annotations alone.
// Members of a recursive group must spell out their full signature;
// anything missing is reported once and padded with fresh variables.
func (ctx *TypeCtx) recursiveSignature(def *ir.FunDef) *FunctionType {
	annotated := def.Ret != nil
	for _, p := range def.VParams {
		annotated = annotated && p.Annot != nil
	}
	if !annotated {
		ctx.addError(korerr.New(korerr.NewMissingRecursiveAnnotation{
			Positioner: ir.RangeOf(def),
			Name:       def.Sym.Name,
		}))
	}

	tparams := make([]*Var, len(def.TParams))
	for i, tp := range def.TParams {
		tparams[i] = ctx.rigidFor(tp)
	}
	vparams := make([]ValueType, len(def.VParams))
	for i, p := range def.VParams {
		if p.Annot != nil {
			vparams[i] = ctx.resolveValueType(p.Annot)
		} else {
			vparams[i] = ctx.FreshTypeVar(p.Sym.Name)
		}
	}
	bparams := make([]BlockType, len(def.BParams))
	cparams := make([]CaptureVar, len(def.BParams))
	eparams := make([]string, len(def.BParams))
	for i, p := range def.BParams {
		bparams[i] = ctx.resolveBlockType(p.Annot)
		cparams[i] = ctx.fresher.NewCaptVar(RigidLevel, p.Sym.Name)
		eparams[i] = p.Sym.Name
	}
	var result ValueType
	if def.Ret != nil {
		result = ctx.resolveValueType(def.Ret)
	} else {
		result = ctx.FreshTypeVar(def.Sym.Name)
	}
	return &FunctionType{
		TParams: tparams,
		CParams: cparams,
		EParams: eparams,
		VParams: vparams,
		BParams: bparams,
		Result:  result,
	}
}

// checkFunDef checks one definition body. When declared is non-nil the
// parameters and result come from the prechecked signature; otherwise
// they are resolved from annotations, with fresh variables where the
// author left a parameter open.
func (ctx *TypeCtx) checkFunDef(def *ir.FunDef, declared *FunctionType) (*FunctionType, CaptureSet) {
	ctx = ctx.at(def)
	inner := ctx

	var tparams []*Var
	var vparams []ValueType
	var bparams []BlockType
	var cparams []CaptureVar
	var eparams []string
	var expected ValueType

	if declared != nil {
		tparams, vparams, bparams = declared.TParams, declared.VParams, declared.BParams
		cparams, eparams = declared.CParams, declared.EParams
		expected = declared.Result
	} else {
		tparams = make([]*Var, len(def.TParams))
		for i, tp := range def.TParams {
			tparams[i] = ctx.rigidFor(tp)
		}
		vparams = make([]ValueType, len(def.VParams))
		for i, p := range def.VParams {
			if p.Annot != nil {
				vparams[i] = ctx.resolveValueType(p.Annot)
			} else {
				vparams[i] = ctx.FreshTypeVar(p.Sym.Name)
			}
		}
		bparams = make([]BlockType, len(def.BParams))
		cparams = make([]CaptureVar, len(def.BParams))
		eparams = make([]string, len(def.BParams))
		for i, p := range def.BParams {
			bparams[i] = ctx.resolveBlockType(p.Annot)
			cparams[i] = ctx.fresher.NewCaptVar(RigidLevel, p.Sym.Name)
			eparams[i] = p.Sym.Name
		}
		if def.Ret != nil {
			expected = ctx.resolveValueType(def.Ret)
		}
	}

	for i, p := range def.VParams {
		inner = inner.bindValue(p.Sym, vparams[i])
	}
	bparamCaps := Pure()
	for i, p := range def.BParams {
		capability := CaptureSetOf(CaptureOf{Sym: p.Sym})
		inner = inner.bindBlock(p.Sym, BlockInfo{Type: bparams[i], Capt: capability})
		bparamCaps = bparamCaps.Union(capability)
	}
	// state declared inside the function lives in its own frame, which
	// dies when the function returns
	frame := CaptureSetOf(ctx.fresher.NewContinuationCapture())
	inner = inner.withRegion(frame)

	bodyType, bodyCapt := inner.withUnificationScope(func(in *TypeCtx) (ValueType, CaptureSet) {
		if expected != nil {
			return in.checkBodyAgainst(def.Body, expected)
		}
		return in.checkBody(def.Body)
	})
	if escaped := FreeCaptures(bodyType).Intersect(bparamCaps.Union(frame)); !escaped.IsPure() {
		ctx.addError(korerr.New(korerr.NewCaptureEscape{
			Positioner:   ir.RangeOf(def),
			Capabilities: escaped.Names(),
			Scope:        "def " + def.Sym.Name,
		}))
	}

	capt := bodyCapt.Difference(bparamCaps).Difference(frame).Difference(CaptureSetOf(CaptureOf{Sym: def.Sym}))
	fun := declared
	if fun == nil {
		result := bodyType
		if expected != nil {
			result = expected
		}
		fun = &FunctionType{
			TParams: tparams,
			CParams: cparams,
			EParams: eparams,
			VParams: vparams,
			BParams: bparams,
			Result:  result,
		}
	}
	ctx.logger.Debug("checked definition", "def", def.Sym.Name, "type", fun.String(), "capt", capt.String())
	return fun, capt
}

// checkBlockLit checks an anonymous block. Its block parameters become
// fresh capabilities for the extent of the body and must not escape
// through the result type.
func (ctx *TypeCtx) checkBlockLit(lit *ir.BlockLit) (*FunctionType, CaptureSet) {
	ctx = ctx.at(lit)
	inner := ctx

	tparams := make([]*Var, len(lit.TParams))
	for i, tp := range lit.TParams {
		tparams[i] = ctx.rigidFor(tp)
	}
	vparams := make([]ValueType, len(lit.VParams))
	for i, p := range lit.VParams {
		if p.Annot != nil {
			vparams[i] = ctx.resolveValueType(p.Annot)
		} else {
			vparams[i] = ctx.FreshTypeVar(p.Sym.Name)
		}
		inner = inner.bindValue(p.Sym, vparams[i])
	}
	bparams := make([]BlockType, len(lit.BParams))
	cparams := make([]CaptureVar, len(lit.BParams))
	eparams := make([]string, len(lit.BParams))
	bparamCaps := Pure()
	for i, p := range lit.BParams {
		bparams[i] = ctx.resolveBlockType(p.Annot)
		cparams[i] = ctx.fresher.NewCaptVar(RigidLevel, p.Sym.Name)
		eparams[i] = p.Sym.Name
		capability := CaptureSetOf(CaptureOf{Sym: p.Sym})
		inner = inner.bindBlock(p.Sym, BlockInfo{Type: bparams[i], Capt: capability})
		bparamCaps = bparamCaps.Union(capability)
	}
	frame := CaptureSetOf(ctx.fresher.NewContinuationCapture())
	inner = inner.withRegion(frame)

	bodyType, bodyCapt := inner.withUnificationScope(func(in *TypeCtx) (ValueType, CaptureSet) {
		return in.checkBody(lit.Body)
	})
	if escaped := FreeCaptures(bodyType).Intersect(bparamCaps.Union(frame)); !escaped.IsPure() {
		ctx.addError(korerr.New(korerr.NewCaptureEscape{
			Positioner:   ir.RangeOf(lit),
			Capabilities: escaped.Names(),
			Scope:        "block literal",
		}))
	}

	fun := &FunctionType{
		TParams: tparams,
		CParams: cparams,
		EParams: eparams,
		VParams: vparams,
		BParams: bparams,
		Result:  bodyType,
	}
	return fun, bodyCapt.Difference(bparamCaps).Difference(frame)
}
