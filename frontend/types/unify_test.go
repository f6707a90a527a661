package types

import (
	"testing"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errCodes(ctx *TypeCtx) []korerr.ErrCode {
	var codes []korerr.ErrCode
	for _, e := range ctx.Errors.Errors() {
		codes = append(codes, e.Code())
	}
	return codes
}

func TestSolveBindsOwnedTypeVar(t *testing.T) {
	ctx := NewTypeCtx(nil)
	v := ctx.FreshTypeVar("a")
	ctx.RequireEqual(v, IntType)

	subst := ctx.solveScope(ctx.scope)
	assert.False(t, ctx.Errors.HasError())
	assert.Equal(t, IntType, subst.ApplyValue(v))
}

func TestHeadClashIsReportedEagerly(t *testing.T) {
	ctx := NewTypeCtx(nil)
	ctx.RequireEqual(IntType, BoolType)

	require.True(t, ctx.Errors.HasError())
	assert.Equal(t, []korerr.ErrCode{korerr.TypeMismatch}, errCodes(ctx))
	// nothing is left for the solver
	assert.Empty(t, ctx.scope.typeCs)
}

func TestDataDecomposition(t *testing.T) {
	ctx := NewTypeCtx(nil)
	elem := ctx.FreshTypeVar("e")
	ctx.RequireEqual(RefType(elem), RefType(BoolType))

	subst := ctx.solveScope(ctx.scope)
	assert.False(t, ctx.Errors.HasError())
	assert.Equal(t, BoolType, subst.ApplyValue(elem))
}

func TestCyclicEquationIsReportedNotSolved(t *testing.T) {
	ctx := NewTypeCtx(nil)
	v := ctx.FreshTypeVar("x")
	opt := &ir.Symbol{ID: 200, Name: "Opt", Kind: ir.TypeSymbol}
	ctx.RequireEqual(v, Data{Sym: opt, Args: []ValueType{v}})

	subst := ctx.solveScope(ctx.scope)
	require.Equal(t, []korerr.ErrCode{korerr.TypeMismatch}, errCodes(ctx))
	assert.Contains(t, ctx.Errors.Errors()[0].Error(), "infinitely large")
	// the variable stays unsolved instead of looping through itself
	assert.Equal(t, v, subst.ApplyValue(v))
}

func TestResidualPropagatesToParentScope(t *testing.T) {
	ctx := NewTypeCtx(nil)
	outer := ctx.FreshTypeVar("outer")

	returned, _ := ctx.withUnificationScope(func(inner *TypeCtx) (ValueType, CaptureSet) {
		w := inner.FreshTypeVar("w")
		inner.RequireEqual(w, outer)
		inner.RequireEqual(w, IntType)
		return w, Pure()
	})
	assert.False(t, ctx.Errors.HasError())

	subst := ctx.solveScope(ctx.scope)
	assert.False(t, ctx.Errors.HasError())
	assert.Equal(t, IntType, subst.ApplyValue(outer))
	assert.Equal(t, IntType, subst.ApplyValue(returned))
}

func TestRigidVarOnlyUnifiesWithItself(t *testing.T) {
	ctx := NewTypeCtx(nil)
	rigid := ctx.fresher.NewRigidVar("T")

	ctx.RequireEqual(rigid, rigid)
	assert.False(t, ctx.Errors.HasError())

	ctx.RequireEqual(rigid, IntType)
	assert.Equal(t, []korerr.ErrCode{korerr.TypeMismatch}, errCodes(ctx))
}

func TestCaptureVarPinnedByEquality(t *testing.T) {
	ctx := NewTypeCtx(nil)
	io := capOf(100, "io")
	exc := capOf(101, "exc")
	cv := ctx.FreshCaptVar("c")

	ctx.RequireEqualCapt(CaptureSetOf(cv), CaptureSetOf(io, exc))
	subst := ctx.solveScope(ctx.scope)

	assert.False(t, ctx.Errors.HasError())
	assert.True(t, subst.ApplyCaptures(CaptureSetOf(cv)).Equal(CaptureSetOf(io, exc)))
}

func TestCaptureVarAccumulatesLowerBounds(t *testing.T) {
	ctx := NewTypeCtx(nil)
	io := capOf(100, "io")
	exc := capOf(101, "exc")
	cv := ctx.FreshCaptVar("c")

	ctx.RequireSubCapt(CaptureSetOf(io), CaptureSetOf(cv))
	ctx.RequireSubCapt(CaptureSetOf(exc), CaptureSetOf(cv))
	subst := ctx.solveScope(ctx.scope)

	assert.False(t, ctx.Errors.HasError())
	assert.True(t, subst.ApplyCaptures(CaptureSetOf(cv)).Equal(CaptureSetOf(io, exc)))
}

func TestUnconstrainedCaptureVarSolvesToPure(t *testing.T) {
	ctx := NewTypeCtx(nil)
	cv := ctx.FreshCaptVar("c")

	subst := ctx.solveScope(ctx.scope)
	assert.False(t, ctx.Errors.HasError())
	assert.True(t, subst.ApplyCaptures(CaptureSetOf(cv)).IsPure())
}

func TestConcreteSubsumptionFailureIsReported(t *testing.T) {
	ctx := NewTypeCtx(nil)
	io := capOf(100, "io")
	exc := capOf(101, "exc")

	ctx.RequireSubCapt(CaptureSetOf(io, exc), CaptureSetOf(io))
	ctx.solveScope(ctx.scope)

	assert.Equal(t, []korerr.ErrCode{korerr.CaptureNotSubsumed}, errCodes(ctx))
}

func TestCaptureEqualitySelfCycleDropsToConcrete(t *testing.T) {
	ctx := NewTypeCtx(nil)
	io := capOf(100, "io")
	cv := ctx.FreshCaptVar("c")

	// c = {io} ∪ {c} pins c to the concrete remainder
	ctx.RequireEqualCapt(CaptureSetOf(cv), CaptureSetOf(io, cv))
	subst := ctx.solveScope(ctx.scope)

	assert.False(t, ctx.Errors.HasError())
	assert.True(t, subst.ApplyCaptures(CaptureSetOf(cv)).Equal(CaptureSetOf(io)))
}

func TestBlockDecompositionAlphaRenames(t *testing.T) {
	ctx := NewTypeCtx(nil)
	ta := ctx.fresher.NewRigidVar("A")
	tb := ctx.fresher.NewRigidVar("B")

	fa := &FunctionType{TParams: []*Var{ta}, VParams: []ValueType{ta}, Result: ta}
	fb := &FunctionType{TParams: []*Var{tb}, VParams: []ValueType{tb}, Result: tb}
	ctx.RequireEqualBlock(fa, fb)

	ctx.solveScope(ctx.scope)
	assert.False(t, ctx.Errors.HasError())
}

func TestBlockArityClash(t *testing.T) {
	ctx := NewTypeCtx(nil)
	fa := &FunctionType{VParams: []ValueType{IntType}, Result: UnitType}
	fb := &FunctionType{VParams: []ValueType{IntType, IntType}, Result: UnitType}

	ctx.RequireEqualBlock(fa, fb)
	assert.Equal(t, []korerr.ErrCode{korerr.TypeMismatch}, errCodes(ctx))
}

func TestBoxedTypesUnifyStructurally(t *testing.T) {
	ctx := NewTypeCtx(nil)
	io := capOf(100, "io")
	cv := ctx.FreshCaptVar("c")

	lhs := Boxed{Block: &FunctionType{Result: IntType}, Capt: CaptureSetOf(cv)}
	rhs := Boxed{Block: &FunctionType{Result: IntType}, Capt: CaptureSetOf(io)}
	ctx.RequireEqual(lhs, rhs)
	subst := ctx.solveScope(ctx.scope)

	assert.False(t, ctx.Errors.HasError())
	assert.True(t, subst.ApplyCaptures(CaptureSetOf(cv)).Equal(CaptureSetOf(io)))
}
