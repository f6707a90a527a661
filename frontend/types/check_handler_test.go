package types

import (
	"testing"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterInterface declares Counter { get(): Int, set(Int): Unit }.
func counterInterface(syms *symtab) (*ir.InterfaceDecl, *ir.Symbol, *ir.Symbol) {
	iface := syms.sym("Counter", ir.InterfaceSymbol)
	get := syms.sym("get", ir.OperationSymbol)
	set := syms.sym("set", ir.OperationSymbol)
	decl := &ir.InterfaceDecl{
		Sym: iface,
		Ops: []*ir.OpDecl{
			{Sym: get, Result: intNode()},
			{Sym: set, VParams: []ir.TypeNode{intNode()}, Result: unitNode()},
		},
	}
	return decl, get, set
}

func getClause(syms *symtab, get *ir.Symbol) *ir.OpClause {
	resume := syms.sym("resume", ir.ResumeSymbol)
	return &ir.OpClause{
		Op:        get,
		ResumeSym: resume,
		Body:      mkBody(expr(&ir.Call{Callee: ref(resume), VArgs: []ir.Expr{lit(1)}})),
	}
}

func setClause(syms *symtab, set *ir.Symbol) *ir.OpClause {
	resume := syms.sym("resume", ir.ResumeSymbol)
	v := syms.sym("v", ir.ValueSymbol)
	return &ir.OpClause{
		Op:        set,
		VParams:   []*ir.ValueParam{{Sym: v}},
		ResumeSym: resume,
		Body:      mkBody(expr(&ir.Call{Callee: ref(resume), VArgs: []ir.Expr{&ir.UnitLit{}}})),
	}
}

func TestTryHandleInfersAnswerType(t *testing.T) {
	syms := newSymtab()
	decl, get, set := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)

	opCall := &ir.OpCall{Cap: c, Op: get}
	try := &ir.TryHandle{
		Body: mkBody(expr(opCall)),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses:   []*ir.OpClause{getClause(syms, get), setClause(syms, set)},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, db := checkModule(t, m)
	require.False(t, ctx.Errors.HasError(), "unexpected: %v", ctx.Errors.Errors())

	// the answer type was pinned by the handled body
	annot, ok := ctx.AnnotationFor(try)
	require.True(t, ok)
	assert.Equal(t, IntType, annot.Value)

	// using an operation captures the capability it goes through
	opAnnot, ok := ctx.AnnotationFor(opCall)
	require.True(t, ok)
	assert.True(t, opAnnot.Capt.Contains(CaptureOf{Sym: c}))

	// the handler discharges its own capability
	info, _ := db.Lookup(main.ID)
	assert.True(t, info.Capt.IsPure())
	assert.Equal(t, IntType, info.Block.(*FunctionType).Result)
}

func TestHandlerCapabilityMustNotEscape(t *testing.T) {
	syms := newSymtab()
	decl, get, set := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)

	// the handled body leaks its own capability inside a box
	try := &ir.TryHandle{
		Body: mkBody(expr(&ir.Box{Arg: ref(c)})),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses:   []*ir.OpClause{getClause(syms, get), setClause(syms, set)},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.Equal(t, []korerr.ErrCode{korerr.CaptureEscape}, errCodes(ctx))
	assert.Equal(t,
		"capability c bound by try/handle escapes through the result type",
		ctx.Errors.Errors()[0].Error())
}

func TestHandlerCapabilityConsumedInternallyIsFine(t *testing.T) {
	syms := newSymtab()
	decl, get, set := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)
	v := syms.sym("v", ir.ValueSymbol)

	// boxing the capability is fine while the box stays inside and the
	// handled result is a plain value
	try := &ir.TryHandle{
		Body: mkBody(
			&ir.ValStmt{Sym: v, Binding: &ir.Box{Arg: ref(c)}},
			expr(&ir.OpCall{Cap: c, Op: get}),
		),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses:   []*ir.OpClause{getClause(syms, get), setClause(syms, set)},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, db := checkModule(t, m)
	require.False(t, ctx.Errors.HasError(), "unexpected: %v", ctx.Errors.Errors())

	info, _ := db.Lookup(main.ID)
	assert.True(t, info.Capt.IsPure())
	assert.Equal(t, IntType, info.Block.(*FunctionType).Result)
}

func TestHandlerMissingOperation(t *testing.T) {
	syms := newSymtab()
	decl, get, _ := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)

	try := &ir.TryHandle{
		Body: mkBody(expr(&ir.OpCall{Cap: c, Op: get})),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses:   []*ir.OpClause{getClause(syms, get)},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.Equal(t, []korerr.ErrCode{korerr.MissingOperations}, errCodes(ctx))
	assert.Equal(t,
		"Missing definitions for operations: set of interface Counter",
		ctx.Errors.Errors()[0].Error())
}

func TestHandlerDuplicateOperation(t *testing.T) {
	syms := newSymtab()
	decl, get, set := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)

	try := &ir.TryHandle{
		Body: mkBody(expr(&ir.OpCall{Cap: c, Op: get})),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses: []*ir.OpClause{
					getClause(syms, get),
					getClause(syms, get),
					setClause(syms, set),
				},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.Equal(t, []korerr.ErrCode{korerr.DuplicateOperations}, errCodes(ctx))
	assert.Equal(t,
		"Duplicate definitions of operations: get",
		ctx.Errors.Errors()[0].Error())
}

func TestNewChecksClausesAgainstDeclaredResults(t *testing.T) {
	syms := newSymtab()
	iface := syms.sym("Greeter", ir.InterfaceSymbol)
	hello := syms.sym("hello", ir.OperationSymbol)
	decl := &ir.InterfaceDecl{
		Sym: iface,
		Ops: []*ir.OpDecl{{Sym: hello, Result: intNode()}},
	}
	main := syms.sym("main", ir.BlockSymbol)
	g := syms.sym("g", ir.ValueSymbol)

	newExpr := &ir.New{Impl: &ir.Implementation{
		Interface: &ir.NamedTypeNode{Sym: iface},
		Clauses: []*ir.OpClause{{
			Op:   hello,
			Body: mkBody(expr(lit(1))),
		}},
	}}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym: main,
			Ret: intNode(),
			Body: mkBody(
				&ir.ValStmt{Sym: g, Binding: newExpr},
				expr(lit(0)),
			),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.False(t, ctx.Errors.HasError(), "unexpected: %v", ctx.Errors.Errors())

	annot, ok := ctx.AnnotationFor(newExpr)
	require.True(t, ok)
	boxed, isBoxed := annot.Value.(Boxed)
	require.True(t, isBoxed)
	assert.Equal(t, InterfaceType{Sym: iface}, boxed.Block)
}

func TestNewClauseResultMismatch(t *testing.T) {
	syms := newSymtab()
	iface := syms.sym("Greeter", ir.InterfaceSymbol)
	hello := syms.sym("hello", ir.OperationSymbol)
	decl := &ir.InterfaceDecl{
		Sym: iface,
		Ops: []*ir.OpDecl{{Sym: hello, Result: intNode()}},
	}
	main := syms.sym("main", ir.BlockSymbol)
	g := syms.sym("g", ir.ValueSymbol)

	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym: main,
			Ret: intNode(),
			Body: mkBody(
				&ir.ValStmt{Sym: g, Binding: &ir.New{Impl: &ir.Implementation{
					Interface: &ir.NamedTypeNode{Sym: iface},
					Clauses: []*ir.OpClause{{
						Op:   hello,
						Body: mkBody(expr(&ir.BoolLit{Value: true})),
					}},
				}}},
				expr(lit(0)),
			),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.Equal(t, []korerr.ErrCode{korerr.TypeMismatch}, errCodes(ctx))
}

func TestHandlerClauseArityMismatch(t *testing.T) {
	syms := newSymtab()
	decl, get, set := counterInterface(syms)
	main := syms.sym("main", ir.BlockSymbol)
	c := syms.sym("c", ir.BlockSymbol)

	// set takes one parameter, the clause declares two
	badSet := setClause(syms, set)
	badSet.VParams = append(badSet.VParams, &ir.ValueParam{Sym: syms.sym("w", ir.ValueSymbol)})

	try := &ir.TryHandle{
		Body: mkBody(expr(&ir.OpCall{Cap: c, Op: get})),
		Handlers: []*ir.Handler{{
			Cap: &ir.BlockParam{Sym: c, Annot: &ir.NamedTypeNode{Sym: decl.Sym}},
			Impl: &ir.Implementation{
				Interface: &ir.NamedTypeNode{Sym: decl.Sym},
				Clauses:   []*ir.OpClause{getClause(syms, get), badSet},
			},
		}},
	}
	m := &ir.Module{
		Name:       "main",
		Interfaces: []*ir.InterfaceDecl{decl},
		Defs: []*ir.DefGroup{group(&ir.FunDef{
			Sym:  main,
			Body: mkBody(expr(try)),
		})},
	}

	ctx, _ := checkModule(t, m)
	require.Equal(t, []korerr.ErrCode{korerr.WrongArity}, errCodes(ctx))
	assert.Equal(t, "wrong number of operation parameters: expected 1, got 2", ctx.Errors.Errors()[0].Error())
}
