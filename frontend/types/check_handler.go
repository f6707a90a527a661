package types

import (
	"sort"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/cottand/kor/util"
)

// checkTryHandle checks a handled program. The answer type and the
// shared resume capture variable are owned by a scope wrapping the body
// and every clause, so both are fully solved before the non-escape
// check runs.
func (ctx *TypeCtx) checkTryHandle(e *ir.TryHandle) (ValueType, CaptureSet) {
	capabilities := Pure()
	for _, h := range e.Handlers {
		capabilities = capabilities.Union(CaptureSetOf(CaptureOf{Sym: h.Cap.Sym}))
	}

	result, capt := ctx.withUnificationScope(func(outer *TypeCtx) (ValueType, CaptureSet) {
		answer := outer.FreshTypeVar("answer")
		resume := outer.FreshCaptVar("resume")

		inner := outer
		for _, h := range e.Handlers {
			capability := CaptureSetOf(CaptureOf{Sym: h.Cap.Sym})
			inner = inner.bindBlock(h.Cap.Sym, BlockInfo{
				Type: outer.resolveBlockType(h.Cap.Annot),
				Capt: capability,
			})
		}

		// the body may use the handled capabilities as part of its region
		bodyCtx := inner.withRegion(outer.region.Union(capabilities))
		_, bodyCapt := bodyCtx.withUnificationScope(func(in *TypeCtx) (ValueType, CaptureSet) {
			return in.checkBodyAgainst(e.Body, answer)
		})

		clauseCapt := Pure()
		for _, h := range e.Handlers {
			_, c, _ := outer.at(h).checkImplementation(h.Impl, answer, &resume)
			clauseCapt = clauseCapt.Union(c)
		}

		overall := bodyCapt.Difference(capabilities).Union(clauseCapt)
		outer.RequireEqualCapt(CaptureSetOf(resume), overall)
		return answer, overall
	})

	if escaped := FreeCaptures(result).Intersect(capabilities); !escaped.IsPure() {
		ctx.addError(korerr.New(korerr.NewCaptureEscape{
			Positioner:   ir.RangeOf(e),
			Capabilities: escaped.Names(),
			Scope:        "try/handle",
		}))
	}
	return result, capt
}

// checkImplementation checks a clause set against its interface:
// operation coverage, clause arities, and every clause body. Under a
// handler (answer non-nil) clause bodies check against the answer type
// with resume in scope; under New they check against the operation's
// declared result.
func (ctx *TypeCtx) checkImplementation(impl *ir.Implementation, answer ValueType, resume *CaptureVar) (InterfaceType, CaptureSet, bool) {
	block := ctx.resolveBlockType(impl.Interface)
	iface, ok := block.(InterfaceType)
	if !ok {
		ctx.addError(korerr.New(korerr.NewNotABlock{
			Positioner: ir.RangeOf(impl),
			Found:      block.String(),
		}))
		return InterfaceType{}, Pure(), false
	}
	decl, ok := ctx.interfaces[iface.Sym.ID]
	if !ok {
		ctx.fatalf("interface %s has no registered declaration", iface.Sym)
	}
	ctx.checkOperationCoverage(decl, impl)

	capt := Pure()
	for _, clause := range impl.Clauses {
		capt = capt.Union(ctx.checkOpClause(decl, iface, clause, answer, resume))
	}
	return iface, capt, true
}

// checkOperationCoverage reports missing and duplicate operation
// definitions, each at most once per implementation.
func (ctx *TypeCtx) checkOperationCoverage(decl *ir.InterfaceDecl, impl *ir.Implementation) {
	declared := make([]string, len(decl.Ops))
	for i, op := range decl.Ops {
		declared[i] = op.Sym.Name
	}
	sort.Strings(declared)

	provided := make([]string, len(impl.Clauses))
	for i, clause := range impl.Clauses {
		provided[i] = clause.Op.Name
	}
	sort.Strings(provided)

	if dups := util.DupsSorted(provided); len(dups) > 0 {
		ctx.addError(korerr.New(korerr.NewDuplicateOperations{
			Positioner: ir.RangeOf(impl),
			Ops:        dups,
		}))
	}
	unique := provided[:0:0]
	for i, name := range provided {
		if i == 0 || provided[i-1] != name {
			unique = append(unique, name)
		}
	}
	if missing := util.DiffSorted(declared, unique); len(missing) > 0 {
		ctx.addError(korerr.New(korerr.NewMissingOperations{
			Positioner: ir.RangeOf(impl),
			Interface:  decl.Sym.Name,
			Ops:        missing,
		}))
	}
}

func (ctx *TypeCtx) checkOpClause(decl *ir.InterfaceDecl, iface InterfaceType, clause *ir.OpClause, answer ValueType, resume *CaptureVar) CaptureSet {
	ctx = ctx.at(clause)
	var op *ir.OpDecl
	for _, candidate := range decl.Ops {
		if candidate.Sym == clause.Op {
			op = candidate
		}
	}
	if op == nil {
		ctx.fatalf("operation %s is not part of interface %s", clause.Op, decl.Sym)
	}
	vparams, opResult := ctx.operationSignature(decl, op, iface.Args)

	if len(clause.VParams) != len(vparams) {
		ctx.addError(korerr.New(korerr.NewWrongArity{
			Positioner: ir.RangeOf(clause),
			What:       "operation parameters",
			Expected:   len(vparams),
			Got:        len(clause.VParams),
		}))
	}
	inner := ctx
	for i := 0; i < len(clause.VParams) && i < len(vparams); i++ {
		inner = inner.bindValue(clause.VParams[i].Sym, vparams[i])
	}

	expected := opResult
	if answer != nil {
		expected = answer
		if clause.ResumeSym != nil {
			continuation := &FunctionType{
				VParams: []ValueType{opResult},
				Result:  answer,
			}
			inner = inner.bindBlock(clause.ResumeSym, BlockInfo{
				Type: continuation,
				Capt: CaptureSetOf(*resume),
			})
		}
		// state allocated in a clause lives in the continuation's frame
		inner = inner.withRegion(ctx.region.Union(CaptureSetOf(ctx.fresher.NewContinuationCapture())))
	}

	_, capt := inner.withUnificationScope(func(in *TypeCtx) (ValueType, CaptureSet) {
		return in.checkBodyAgainst(clause.Body, expected)
	})
	return capt
}
