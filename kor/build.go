package kor

import (
	"fmt"
	"go/token"

	"gopkg.in/yaml.v3"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/util"
)

// builder turns a decoded module fixture into a named tree: every
// occurrence of a name is resolved to one symbol with a unique ID, the
// way a full frontend's namer would.
type builder struct {
	nextID ir.SymbolID
	scopes []map[string]*ir.Symbol

	datas      map[string]*ir.DataDecl
	variants   map[string]variantRef
	interfaces map[string]*ir.InterfaceDecl
	ops        map[string]opRef

	// topLevel tracks every name declared at module scope, so a
	// duplicate is rejected instead of silently shadowing
	topLevel util.MSet[string]

	// capabilities in binding order, innermost last; used to resolve
	// operation calls that do not name their capability
	capabilities []*ir.Symbol
	capIface     map[ir.SymbolID]string

	// enclosing defs, for self-recursion detection
	defStack []*ir.FunDef
}

type variantRef struct {
	data    *ir.DataDecl
	variant *ir.Variant
}

type opRef struct {
	iface *ir.InterfaceDecl
	op    *ir.OpDecl
}

func newBuilder() *builder {
	b := &builder{
		nextID:     ir.FirstUserSymbolID,
		datas:      make(map[string]*ir.DataDecl),
		variants:   make(map[string]variantRef),
		interfaces: make(map[string]*ir.InterfaceDecl),
		ops:        make(map[string]opRef),
		topLevel:   util.NewEmptySet[string](),
		capIface:   make(map[ir.SymbolID]string),
	}
	root := make(map[string]*ir.Symbol)
	for _, sym := range ir.BuiltinTypeSymbols() {
		root[sym.Name] = sym
	}
	b.scopes = append(b.scopes, root)
	return b
}

func (b *builder) fresh(name string, kind ir.SymbolKind) *ir.Symbol {
	sym := &ir.Symbol{ID: b.nextID, Name: name, Kind: kind}
	b.nextID++
	return sym
}

func (b *builder) push() { b.scopes = append(b.scopes, make(map[string]*ir.Symbol)) }
func (b *builder) pop()  { b.scopes = b.scopes[:len(b.scopes)-1] }

func (b *builder) bind(sym *ir.Symbol) {
	b.scopes[len(b.scopes)-1][sym.Name] = sym
}

func (b *builder) resolve(name string) (*ir.Symbol, bool) {
	for i := len(b.scopes) - 1; i >= 0; i-- {
		if sym, ok := b.scopes[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

func rangeAt(n *yaml.Node) ir.Range {
	return ir.Range{PosStart: token.Pos(n.Line), PosEnd: token.Pos(n.Line)}
}

func (b *builder) buildModule(doc *moduleDoc) (*ir.Module, error) {
	m := &ir.Module{Name: doc.Module}
	if m.Name == "" {
		m.Name = "main"
	}

	// declarations first, so defs can reference them in any order
	for _, d := range doc.Datas {
		if b.topLevel.Contains(d.Name) {
			return nil, fmt.Errorf("type %q declared twice", d.Name)
		}
		b.topLevel.Add(d.Name)
		decl := &ir.DataDecl{Sym: b.fresh(d.Name, ir.TypeSymbol)}
		b.bind(decl.Sym)
		b.datas[d.Name] = decl
		m.Datas = append(m.Datas, decl)
	}
	for _, i := range doc.Interfaces {
		if b.topLevel.Contains(i.Name) {
			return nil, fmt.Errorf("interface %q declared twice", i.Name)
		}
		b.topLevel.Add(i.Name)
		decl := &ir.InterfaceDecl{Sym: b.fresh(i.Name, ir.InterfaceSymbol)}
		b.bind(decl.Sym)
		b.interfaces[i.Name] = decl
		m.Interfaces = append(m.Interfaces, decl)
	}
	for _, d := range doc.Datas {
		if err := b.fillData(d); err != nil {
			return nil, err
		}
	}
	for _, i := range doc.Interfaces {
		if err := b.fillInterface(i); err != nil {
			return nil, err
		}
	}

	groups, err := b.buildGroups(doc.Defs)
	if err != nil {
		return nil, err
	}
	m.Defs = groups
	return m, nil
}

func (b *builder) fillData(doc dataDoc) error {
	decl := b.datas[doc.Name]
	b.push()
	defer b.pop()
	for _, p := range doc.TParams {
		sym := b.fresh(p, ir.TypeParamSymbol)
		b.bind(sym)
		decl.TParams = append(decl.TParams, sym)
	}
	for _, v := range doc.Variants {
		if _, taken := b.variants[v.Name]; taken {
			return fmt.Errorf("constructor %q declared twice", v.Name)
		}
		variant := &ir.Variant{Sym: b.fresh(v.Name, ir.ConstructorSymbol)}
		for _, f := range v.Fields {
			field, err := b.buildType(f)
			if err != nil {
				return err
			}
			variant.Fields = append(variant.Fields, field)
		}
		decl.Variants = append(decl.Variants, variant)
		b.variants[v.Name] = variantRef{data: decl, variant: variant}
	}
	return nil
}

func (b *builder) fillInterface(doc interfaceDoc) error {
	decl := b.interfaces[doc.Name]
	b.push()
	defer b.pop()
	for _, p := range doc.TParams {
		sym := b.fresh(p, ir.TypeParamSymbol)
		b.bind(sym)
		decl.TParams = append(decl.TParams, sym)
	}
	for _, o := range doc.Ops {
		if _, taken := b.ops[o.Name]; taken {
			return fmt.Errorf("operation %q declared twice", o.Name)
		}
		op := &ir.OpDecl{Sym: b.fresh(o.Name, ir.OperationSymbol)}
		for _, p := range o.Params {
			param, err := b.buildType(p)
			if err != nil {
				return err
			}
			op.VParams = append(op.VParams, param)
		}
		if isNull(&o.Result) {
			op.Result = &ir.NamedTypeNode{Sym: ir.UnitSym}
		} else {
			result, err := b.buildType(o.Result)
			if err != nil {
				return err
			}
			op.Result = result
		}
		decl.Ops = append(decl.Ops, op)
		b.ops[o.Name] = opRef{iface: decl, op: op}
	}
	return nil
}

// buildGroups handles the def list: a mapping is a group of one, a
// sequence is a mutually recursive group whose members see each other.
func (b *builder) buildGroups(entries []yaml.Node) ([]*ir.DefGroup, error) {
	var groups []*ir.DefGroup
	for i := range entries {
		entry := &entries[i]
		group, err := b.buildGroup(entry)
		if err != nil {
			return nil, err
		}
		// later top-level defs see earlier ones
		for _, def := range group.Defs {
			if b.topLevel.Contains(def.Sym.Name) {
				return nil, errAt(entry, "def %q declared twice", def.Sym.Name)
			}
			b.topLevel.Add(def.Sym.Name)
			b.bind(def.Sym)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (b *builder) buildGroup(entry *yaml.Node) (*ir.DefGroup, error) {
	var docs []defDoc
	switch entry.Kind {
	case yaml.MappingNode:
		var doc defDoc
		if err := entry.Decode(&doc); err != nil {
			return nil, errAt(entry, "bad def: %v", err)
		}
		docs = []defDoc{doc}
	case yaml.SequenceNode:
		if err := entry.Decode(&docs); err != nil {
			return nil, errAt(entry, "bad def group: %v", err)
		}
	default:
		return nil, errAt(entry, "expected a def or a def group, got %s", kindName(entry))
	}

	group := &ir.DefGroup{Range: rangeAt(entry)}
	syms := make([]*ir.Symbol, len(docs))
	b.push()
	defer b.pop()
	// forward-declare the whole group before any body
	for i, doc := range docs {
		syms[i] = b.fresh(doc.Name, ir.BlockSymbol)
		b.bind(syms[i])
	}
	for i, doc := range docs {
		def, err := b.buildDef(doc, syms[i], entry)
		if err != nil {
			return nil, err
		}
		group.Defs = append(group.Defs, def)
	}
	return group, nil
}

func (b *builder) buildDef(doc defDoc, sym *ir.Symbol, at *yaml.Node) (*ir.FunDef, error) {
	def := &ir.FunDef{Sym: sym, Range: rangeAt(at)}
	b.push()
	defer b.pop()
	capDepth := len(b.capabilities)
	defer func() { b.capabilities = b.capabilities[:capDepth] }()

	for _, p := range doc.TParams {
		tp := b.fresh(p, ir.TypeParamSymbol)
		b.bind(tp)
		def.TParams = append(def.TParams, tp)
	}
	for _, p := range doc.Params {
		param := &ir.ValueParam{Sym: b.fresh(p.Name, ir.ValueSymbol)}
		if !isNull(&p.Type) {
			annot, err := b.buildType(p.Type)
			if err != nil {
				return nil, err
			}
			param.Annot = annot
		}
		b.bind(param.Sym)
		def.VParams = append(def.VParams, param)
	}
	for _, p := range doc.Blocks {
		param, err := b.buildBlockParam(p)
		if err != nil {
			return nil, err
		}
		def.BParams = append(def.BParams, param)
	}
	if !isNull(&doc.Ret) {
		ret, err := b.buildType(doc.Ret)
		if err != nil {
			return nil, err
		}
		def.Ret = ret
	}

	b.defStack = append(b.defStack, def)
	body, err := b.buildBody(doc.Body)
	b.defStack = b.defStack[:len(b.defStack)-1]
	if err != nil {
		return nil, err
	}
	def.Body = body
	return def, nil
}

func (b *builder) buildBlockParam(p paramDoc) (*ir.BlockParam, error) {
	if isNull(&p.Type) {
		return nil, fmt.Errorf("block parameter %q needs a type annotation", p.Name)
	}
	annot, err := b.buildType(p.Type)
	if err != nil {
		return nil, err
	}
	param := &ir.BlockParam{Sym: b.fresh(p.Name, ir.BlockSymbol), Annot: annot}
	b.bind(param.Sym)
	if named, ok := annot.(*ir.NamedTypeNode); ok && named.Sym.Kind == ir.InterfaceSymbol {
		b.capIface[param.Sym.ID] = named.Sym.Name
		b.capabilities = append(b.capabilities, param.Sym)
	}
	return param, nil
}

// buildType accepts a bare name, {name, args}, {fun: ...}, or
// {boxed: ...}.
func (b *builder) buildType(n yaml.Node) (ir.TypeNode, error) {
	node := &n
	if node.Kind == yaml.ScalarNode {
		sym, ok := b.resolve(node.Value)
		if !ok {
			return nil, errAt(node, "unknown type %q", node.Value)
		}
		return &ir.NamedTypeNode{Range: rangeAt(node), Sym: sym}, nil
	}
	entries, _, err := mapEntries(node)
	if err != nil {
		return nil, err
	}
	if funNode, ok := entries["fun"]; ok {
		return b.buildFunType(funNode)
	}
	if boxedNode, ok := entries["boxed"]; ok {
		return b.buildBoxedType(boxedNode)
	}
	nameNode, ok := entries["name"]
	if !ok {
		return nil, errAt(node, "type mapping needs one of name, fun, boxed")
	}
	sym, found := b.resolve(nameNode.Value)
	if !found {
		return nil, errAt(nameNode, "unknown type %q", nameNode.Value)
	}
	out := &ir.NamedTypeNode{Range: rangeAt(node), Sym: sym}
	if argsNode, hasArgs := entries["args"]; hasArgs {
		for i := range argsNode.Content {
			arg, err := b.buildType(*argsNode.Content[i])
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, arg)
		}
	}
	return out, nil
}

func (b *builder) buildFunType(node *yaml.Node) (ir.TypeNode, error) {
	entries, _, err := mapEntries(node)
	if err != nil {
		return nil, err
	}
	out := &ir.FunTypeNode{Range: rangeAt(node)}
	b.push()
	defer b.pop()
	if tparams, ok := entries["tparams"]; ok {
		for _, p := range tparams.Content {
			sym := b.fresh(p.Value, ir.TypeParamSymbol)
			b.bind(sym)
			out.TParams = append(out.TParams, sym)
		}
	}
	if params, ok := entries["params"]; ok {
		for i := range params.Content {
			p, err := b.buildType(*params.Content[i])
			if err != nil {
				return nil, err
			}
			out.VParams = append(out.VParams, p)
		}
	}
	if blocks, ok := entries["blocks"]; ok {
		for i := range blocks.Content {
			p, err := b.buildType(*blocks.Content[i])
			if err != nil {
				return nil, err
			}
			out.BParams = append(out.BParams, p)
		}
	}
	result, ok := entries["result"]
	if !ok {
		out.Result = &ir.NamedTypeNode{Sym: ir.UnitSym}
		return out, nil
	}
	out.Result, err = b.buildType(*result)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *builder) buildBoxedType(node *yaml.Node) (ir.TypeNode, error) {
	entries, _, err := mapEntries(node)
	if err != nil {
		return nil, err
	}
	blockNode, ok := entries["block"]
	if !ok {
		return nil, errAt(node, "boxed type needs a block")
	}
	block, err := b.buildType(*blockNode)
	if err != nil {
		return nil, err
	}
	out := &ir.BoxedTypeNode{Range: rangeAt(node), Block: block}
	if captNode, hasCapt := entries["capt"]; hasCapt {
		capt, err := b.buildCapture(captNode)
		if err != nil {
			return nil, err
		}
		out.Capt = capt
	}
	return out, nil
}

func (b *builder) buildCapture(node *yaml.Node) (*ir.CaptureNode, error) {
	out := &ir.CaptureNode{Range: rangeAt(node)}
	for _, item := range node.Content {
		sym, ok := b.resolve(item.Value)
		if !ok {
			return nil, errAt(item, "unknown capability %q", item.Value)
		}
		out.Syms = append(out.Syms, sym)
	}
	return out, nil
}
