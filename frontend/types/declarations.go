package types

import (
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
)

// registerDecls indexes the module's data and interface declarations so
// checking can look up variants, operations, and coverage shapes.
func (ctx *TypeCtx) registerDecls(m *ir.Module) {
	for _, d := range m.Datas {
		ctx.datas[d.Sym.ID] = d
		for _, v := range d.Variants {
			ctx.variantOwner[v.Sym.ID] = d
		}
	}
	for _, i := range m.Interfaces {
		ctx.interfaces[i.Sym.ID] = i
		for _, op := range i.Ops {
			ctx.opOwner[op.Sym.ID] = i
		}
	}
}

// rigidFor returns the one rigid variable standing for a declared type
// parameter, minting it on first use.
func (ctx *TypeCtx) rigidFor(sym *ir.Symbol) *Var {
	if v, ok := ctx.tparamVars[sym.ID]; ok {
		return v
	}
	v := ctx.fresher.NewRigidVar(sym.Name)
	ctx.tparamVars[sym.ID] = v
	return v
}

// resolveValueType turns a type annotation into a value type. Errors
// are reported and recovered with a fresh variable so checking can
// continue.
func (ctx *TypeCtx) resolveValueType(node ir.TypeNode) ValueType {
	switch node := node.(type) {
	case *ir.NamedTypeNode:
		switch node.Sym.Kind {
		case ir.TypeParamSymbol:
			if len(node.Args) > 0 {
				ctx.at(node).addError(korerr.New(korerr.NewWrongArity{
					Positioner: ir.RangeOf(node),
					What:       "type arguments",
					Expected:   0,
					Got:        len(node.Args),
				}))
			}
			return ctx.rigidFor(node.Sym)
		case ir.TypeSymbol:
			// zero-argument applications stay in the interned form, so
			// they compare equal to the builtin singletons
			var args []ValueType
			for _, a := range node.Args {
				args = append(args, ctx.resolveValueType(a))
			}
			if decl, ok := ctx.datas[node.Sym.ID]; ok && len(decl.TParams) != len(args) {
				ctx.at(node).addError(korerr.New(korerr.NewWrongArity{
					Positioner: ir.RangeOf(node),
					What:       "type arguments",
					Expected:   len(decl.TParams),
					Got:        len(args),
				}))
			}
			return Data{Sym: node.Sym, Args: args}
		}
		ctx.at(node).addError(korerr.New(korerr.NewTypeMismatch{
			Positioner: ir.RangeOf(node),
			First:      "a value type",
			Second:     node.Sym.Name,
			Reason:     "second-class types need to be boxed to appear in value position",
		}))
		return ctx.FreshTypeVar("err")
	case *ir.FunTypeNode:
		ctx.at(node).addError(korerr.New(korerr.NewTypeMismatch{
			Positioner: ir.RangeOf(node),
			First:      "a value type",
			Second:     "a function type",
			Reason:     "second-class types need to be boxed to appear in value position",
		}))
		return ctx.FreshTypeVar("err")
	case *ir.BoxedTypeNode:
		capt := Pure()
		if node.Capt != nil {
			capt = ctx.resolveCaptureNode(node.Capt)
		}
		return Boxed{Block: ctx.resolveBlockType(node.Block), Capt: capt}
	}
	ctx.fatalf("unhandled type annotation node %T", node)
	return nil
}

// resolveBlockType turns a type annotation in block position into a
// block type.
func (ctx *TypeCtx) resolveBlockType(node ir.TypeNode) BlockType {
	switch node := node.(type) {
	case *ir.NamedTypeNode:
		if node.Sym.Kind == ir.InterfaceSymbol {
			var args []ValueType
			for _, a := range node.Args {
				args = append(args, ctx.resolveValueType(a))
			}
			if decl, ok := ctx.interfaces[node.Sym.ID]; ok && len(decl.TParams) != len(args) {
				ctx.at(node).addError(korerr.New(korerr.NewWrongArity{
					Positioner: ir.RangeOf(node),
					What:       "type arguments",
					Expected:   len(decl.TParams),
					Got:        len(args),
				}))
			}
			return InterfaceType{Sym: node.Sym, Args: args}
		}
		ctx.at(node).addError(korerr.New(korerr.NewNotABlock{
			Positioner: ir.RangeOf(node),
			Found:      node.Sym.Name,
		}))
		return ctx.errorBlockType()
	case *ir.FunTypeNode:
		tparams := make([]*Var, len(node.TParams))
		for i, p := range node.TParams {
			tparams[i] = ctx.rigidFor(p)
		}
		vparams := make([]ValueType, len(node.VParams))
		for i, p := range node.VParams {
			vparams[i] = ctx.resolveValueType(p)
		}
		bparams := make([]BlockType, len(node.BParams))
		cparams := make([]CaptureVar, len(node.BParams))
		for i, p := range node.BParams {
			bparams[i] = ctx.resolveBlockType(p)
			cparams[i] = ctx.fresher.NewCaptVar(RigidLevel, "c")
		}
		return &FunctionType{
			TParams: tparams,
			CParams: cparams,
			VParams: vparams,
			BParams: bparams,
			Result:  ctx.resolveValueType(node.Result),
		}
	case *ir.BoxedTypeNode:
		ctx.at(node).addError(korerr.New(korerr.NewNotABlock{
			Positioner: ir.RangeOf(node),
			Found:      "a boxed type",
		}))
		return ctx.errorBlockType()
	}
	ctx.fatalf("unhandled type annotation node %T in block position", node)
	return nil
}

func (ctx *TypeCtx) resolveCaptureNode(c *ir.CaptureNode) CaptureSet {
	out := Pure()
	for _, sym := range c.Syms {
		out = out.Union(CaptureSetOf(CaptureOf{Sym: sym}))
	}
	return out
}

// errorBlockType is the recovery shape after reporting a bad block
// annotation.
func (ctx *TypeCtx) errorBlockType() BlockType {
	return &FunctionType{Result: ctx.FreshTypeVar("err")}
}

// variantFieldTypes instantiates a variant's declared field types with
// the data type's arguments.
func (ctx *TypeCtx) variantFieldTypes(decl *ir.DataDecl, variant *ir.Variant, args []ValueType) []ValueType {
	// arity errors on the application were already reported when the
	// annotation was resolved; recover with fresh variables here
	rename := make(map[uint64]ValueType, len(decl.TParams))
	for i, p := range decl.TParams {
		if i < len(args) {
			rename[ctx.rigidFor(p).ID] = args[i]
		} else {
			rename[ctx.rigidFor(p).ID] = ctx.FreshTypeVar(p.Name)
		}
	}
	fields := make([]ValueType, len(variant.Fields))
	for i, f := range variant.Fields {
		fields[i] = substRigid(ctx.resolveValueType(f), rename, nil)
	}
	return fields
}

// operationSignature instantiates an operation's declared signature
// with the interface's type arguments.
func (ctx *TypeCtx) operationSignature(decl *ir.InterfaceDecl, op *ir.OpDecl, args []ValueType) (vparams []ValueType, result ValueType) {
	rename := make(map[uint64]ValueType, len(decl.TParams))
	for i, p := range decl.TParams {
		if i < len(args) {
			rename[ctx.rigidFor(p).ID] = args[i]
		} else {
			rename[ctx.rigidFor(p).ID] = ctx.FreshTypeVar(p.Name)
		}
	}
	vparams = make([]ValueType, len(op.VParams))
	for i, p := range op.VParams {
		vparams[i] = substRigid(ctx.resolveValueType(p), rename, nil)
	}
	return vparams, substRigid(ctx.resolveValueType(op.Result), rename, nil)
}
