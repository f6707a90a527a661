package kor

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cottand/kor/frontend/ir"
)

func (b *builder) buildBody(stmts []yaml.Node) (*ir.Body, error) {
	body := &ir.Body{}
	if len(stmts) > 0 {
		body.Range = rangeAt(&stmts[0])
	}
	for i := range stmts {
		stmt, err := b.buildStmt(&stmts[i])
		if err != nil {
			return nil, err
		}
		body.Stmts = append(body.Stmts, stmt)
	}
	return body, nil
}

func (b *builder) buildStmt(n *yaml.Node) (ir.Stmt, error) {
	if n.Kind != yaml.MappingNode {
		return b.buildExprStmt(n)
	}
	entries, order, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, errAt(n, "empty statement")
	}
	switch order[0] {
	case "val":
		return b.buildValStmt(n, entries)
	case "var":
		return b.buildVarStmt(n, entries)
	case "set":
		return b.buildAssignStmt(n, entries)
	case "def":
		group, err := b.buildGroup(entries["def"])
		if err != nil {
			return nil, err
		}
		for _, def := range group.Defs {
			b.bind(def.Sym)
		}
		return &ir.DefStmt{Range: rangeAt(n), Group: group}, nil
	default:
		return b.buildExprStmt(n)
	}
}

func (b *builder) buildExprStmt(n *yaml.Node) (ir.Stmt, error) {
	e, err := b.buildExpr(n)
	if err != nil {
		return nil, err
	}
	return &ir.ExprStmt{Range: rangeAt(n), E: e}, nil
}

func (b *builder) buildValStmt(n *yaml.Node, entries map[string]*yaml.Node) (ir.Stmt, error) {
	stmt := &ir.ValStmt{Range: rangeAt(n)}
	if annot, ok := entries["type"]; ok {
		t, err := b.buildType(*annot)
		if err != nil {
			return nil, err
		}
		stmt.Annot = t
	}
	binding, ok := entries["to"]
	if !ok {
		return nil, errAt(n, "val needs a to: expression")
	}
	e, err := b.buildExpr(binding)
	if err != nil {
		return nil, err
	}
	stmt.Binding = e
	// the binding cannot see the new name
	stmt.Sym = b.fresh(entries["val"].Value, ir.ValueSymbol)
	b.bind(stmt.Sym)
	return stmt, nil
}

func (b *builder) buildVarStmt(n *yaml.Node, entries map[string]*yaml.Node) (ir.Stmt, error) {
	stmt := &ir.VarStmt{Range: rangeAt(n)}
	if annot, ok := entries["type"]; ok {
		t, err := b.buildType(*annot)
		if err != nil {
			return nil, err
		}
		stmt.Annot = t
	}
	if region, ok := entries["region"]; ok {
		sym, found := b.resolve(region.Value)
		if !found {
			return nil, errAt(region, "unknown region %q", region.Value)
		}
		stmt.Region = sym
	}
	binding, ok := entries["to"]
	if !ok {
		return nil, errAt(n, "var needs a to: expression")
	}
	e, err := b.buildExpr(binding)
	if err != nil {
		return nil, err
	}
	stmt.Binding = e
	stmt.Sym = b.fresh(entries["var"].Value, ir.ValueSymbol)
	b.bind(stmt.Sym)
	return stmt, nil
}

func (b *builder) buildAssignStmt(n *yaml.Node, entries map[string]*yaml.Node) (ir.Stmt, error) {
	name := entries["set"].Value
	sym, ok := b.resolve(name)
	if !ok {
		return nil, errAt(n, "unknown variable %q", name)
	}
	to, hasTo := entries["to"]
	if !hasTo {
		return nil, errAt(n, "set needs a to: expression")
	}
	e, err := b.buildExpr(to)
	if err != nil {
		return nil, err
	}
	return &ir.AssignStmt{Range: rangeAt(n), Sym: sym, E: e}, nil
}

func (b *builder) buildExpr(n *yaml.Node) (ir.Expr, error) {
	if n.Kind == yaml.ScalarNode {
		return b.buildScalarExpr(n)
	}
	entries, order, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, errAt(n, "empty expression")
	}
	switch order[0] {
	case "str":
		return &ir.StringLit{Range: rangeAt(n), Value: entries["str"].Value}, nil
	case "call":
		return b.buildCall(n, entries)
	case "op":
		return b.buildOpCall(n, entries)
	case "if":
		return b.buildIf(entries["if"])
	case "match":
		return b.buildMatch(entries["match"])
	case "box":
		return b.buildBox(entries["box"])
	case "unbox":
		arg, err := b.buildExpr(entries["unbox"])
		if err != nil {
			return nil, err
		}
		return &ir.Unbox{Range: rangeAt(n), Arg: arg}, nil
	case "block":
		return b.buildBlockLit(entries["block"])
	case "try":
		return b.buildTry(n, entries)
	case "new":
		impl, err := b.buildImplementation(entries["new"], false)
		if err != nil {
			return nil, err
		}
		return &ir.New{Range: rangeAt(n), Impl: impl}, nil
	case "region":
		return b.buildRegion(entries["region"])
	case "make":
		return b.buildMake(entries["make"])
	default:
		return nil, errAt(n, "unknown expression form %q", order[0])
	}
}

func (b *builder) buildScalarExpr(n *yaml.Node) (ir.Expr, error) {
	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, errAt(n, "bad integer literal %q", n.Value)
		}
		return &ir.IntLit{Range: rangeAt(n), Value: v}, nil
	case "!!bool":
		v, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, errAt(n, "bad boolean literal %q", n.Value)
		}
		return &ir.BoolLit{Range: rangeAt(n), Value: v}, nil
	}
	if n.Value == "()" {
		return &ir.UnitLit{Range: rangeAt(n)}, nil
	}
	sym, ok := b.resolve(n.Value)
	if !ok {
		return nil, errAt(n, "unknown variable %q", n.Value)
	}
	b.markSelfRecursive(sym)
	return &ir.Var{Range: rangeAt(n), Sym: sym}, nil
}

// markSelfRecursive flags the enclosing def when its own name occurs in
// its body, so the checker demands a signature annotation.
func (b *builder) markSelfRecursive(sym *ir.Symbol) {
	for _, def := range b.defStack {
		if def.Sym == sym {
			def.SelfRecursive = true
		}
	}
}

func (b *builder) buildCall(n *yaml.Node, entries map[string]*yaml.Node) (ir.Expr, error) {
	callee, err := b.buildExpr(entries["call"])
	if err != nil {
		return nil, err
	}
	out := &ir.Call{Range: rangeAt(n), Callee: callee}
	if targs, ok := entries["targs"]; ok {
		for _, arg := range targs.Content {
			t, err := b.buildType(*arg)
			if err != nil {
				return nil, err
			}
			out.TArgs = append(out.TArgs, t)
		}
	}
	if args, ok := entries["args"]; ok {
		for _, arg := range args.Content {
			e, err := b.buildExpr(arg)
			if err != nil {
				return nil, err
			}
			out.VArgs = append(out.VArgs, e)
		}
	}
	if blocks, ok := entries["blocks"]; ok {
		for _, arg := range blocks.Content {
			e, err := b.buildExpr(arg)
			if err != nil {
				return nil, err
			}
			out.BArgs = append(out.BArgs, e)
		}
	}
	return out, nil
}

func (b *builder) buildOpCall(n *yaml.Node, entries map[string]*yaml.Node) (ir.Expr, error) {
	opName := entries["op"].Value
	ref, known := b.ops[opName]
	if !known {
		return nil, errAt(n, "unknown operation %q", opName)
	}
	out := &ir.OpCall{Range: rangeAt(n), Op: ref.op.Sym}
	if capNode, ok := entries["cap"]; ok {
		sym, found := b.resolve(capNode.Value)
		if !found {
			return nil, errAt(capNode, "unknown capability %q", capNode.Value)
		}
		out.Cap = sym
	} else {
		out.Cap = b.innermostCapability(ref.iface.Sym.Name)
		if out.Cap == nil {
			return nil, errAt(n, "no capability for %s in scope around %q", ref.iface.Sym.Name, opName)
		}
	}
	if args, ok := entries["args"]; ok {
		for _, arg := range args.Content {
			e, err := b.buildExpr(arg)
			if err != nil {
				return nil, err
			}
			out.VArgs = append(out.VArgs, e)
		}
	}
	return out, nil
}

func (b *builder) innermostCapability(ifaceName string) *ir.Symbol {
	for i := len(b.capabilities) - 1; i >= 0; i-- {
		if b.capIface[b.capabilities[i].ID] == ifaceName {
			return b.capabilities[i]
		}
	}
	return nil
}

func (b *builder) buildIf(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	condNode, ok := entries["cond"]
	if !ok {
		return nil, errAt(n, "if needs a cond")
	}
	cond, err := b.buildExpr(condNode)
	if err != nil {
		return nil, err
	}
	out := &ir.If{Range: rangeAt(n), Cond: cond}
	out.Then, err = b.buildScopedBody(entries["then"])
	if err != nil {
		return nil, err
	}
	out.Else, err = b.buildScopedBody(entries["else"])
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *builder) buildScopedBody(n *yaml.Node) (*ir.Body, error) {
	var stmts []yaml.Node
	if !isNull(n) {
		if err := n.Decode(&stmts); err != nil {
			return nil, errAt(n, "bad body: %v", err)
		}
	}
	b.push()
	defer b.pop()
	return b.buildBody(stmts)
}

func (b *builder) buildMatch(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	onNode, ok := entries["on"]
	if !ok {
		return nil, errAt(n, "match needs an on: scrutinee")
	}
	scrutinee, err := b.buildExpr(onNode)
	if err != nil {
		return nil, err
	}
	out := &ir.Match{Range: rangeAt(n), Scrutinee: scrutinee}
	clausesNode, ok := entries["clauses"]
	if !ok {
		return nil, errAt(n, "match needs clauses")
	}
	for _, clauseNode := range clausesNode.Content {
		clauseEntries, _, err := mapEntries(clauseNode)
		if err != nil {
			return nil, err
		}
		clause := &ir.MatchClause{Range: rangeAt(clauseNode)}
		b.push()
		patNode, hasPat := clauseEntries["pattern"]
		if !hasPat {
			b.pop()
			return nil, errAt(clauseNode, "match clause needs a pattern")
		}
		clause.Pattern, err = b.buildPattern(patNode)
		if err == nil {
			clause.Body, err = b.clauseBody(clauseEntries["body"], clauseNode)
		}
		b.pop()
		if err != nil {
			return nil, err
		}
		out.Clauses = append(out.Clauses, clause)
	}
	return out, nil
}

func (b *builder) clauseBody(n *yaml.Node, at *yaml.Node) (*ir.Body, error) {
	if isNull(n) {
		return nil, errAt(at, "clause needs a body")
	}
	var stmts []yaml.Node
	if err := n.Decode(&stmts); err != nil {
		return nil, errAt(n, "bad body: %v", err)
	}
	return b.buildBody(stmts)
}

func (b *builder) buildPattern(n *yaml.Node) (ir.Pattern, error) {
	if n.Kind == yaml.ScalarNode {
		switch {
		case n.Value == "_":
			return &ir.AnyPattern{Range: rangeAt(n)}, nil
		case n.Tag == "!!int" || n.Tag == "!!bool":
			lit, err := b.buildScalarExpr(n)
			if err != nil {
				return nil, err
			}
			return &ir.LiteralPattern{Range: rangeAt(n), Lit: lit}, nil
		default:
			sym := b.fresh(n.Value, ir.ValueSymbol)
			b.bind(sym)
			return &ir.BindPattern{Range: rangeAt(n), Sym: sym}, nil
		}
	}
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	tagNode, ok := entries["tag"]
	if !ok {
		return nil, errAt(n, "pattern mapping needs a tag")
	}
	ref, known := b.variants[tagNode.Value]
	if !known {
		return nil, errAt(tagNode, "unknown constructor %q", tagNode.Value)
	}
	out := &ir.TagPattern{Range: rangeAt(n), Tag: ref.variant.Sym}
	if fields, hasFields := entries["fields"]; hasFields {
		for _, field := range fields.Content {
			sub, err := b.buildPattern(field)
			if err != nil {
				return nil, err
			}
			out.Patterns = append(out.Patterns, sub)
		}
	}
	return out, nil
}

func (b *builder) buildBox(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	ofNode, ok := entries["of"]
	if !ok {
		return nil, errAt(n, "box needs an of: expression")
	}
	arg, err := b.buildExpr(ofNode)
	if err != nil {
		return nil, err
	}
	out := &ir.Box{Range: rangeAt(n), Arg: arg}
	if captNode, hasCapt := entries["capt"]; hasCapt {
		capt, err := b.buildCapture(captNode)
		if err != nil {
			return nil, err
		}
		out.Capt = capt
	}
	return out, nil
}

func (b *builder) buildBlockLit(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	out := &ir.BlockLit{Range: rangeAt(n)}
	b.push()
	defer b.pop()
	capDepth := len(b.capabilities)
	defer func() { b.capabilities = b.capabilities[:capDepth] }()

	if tparams, ok := entries["tparams"]; ok {
		for _, p := range tparams.Content {
			sym := b.fresh(p.Value, ir.TypeParamSymbol)
			b.bind(sym)
			out.TParams = append(out.TParams, sym)
		}
	}
	if params, ok := entries["params"]; ok {
		var docs []paramDoc
		if err := params.Decode(&docs); err != nil {
			return nil, errAt(params, "bad params: %v", err)
		}
		for _, p := range docs {
			param := &ir.ValueParam{Sym: b.fresh(p.Name, ir.ValueSymbol)}
			if !isNull(&p.Type) {
				param.Annot, err = b.buildType(p.Type)
				if err != nil {
					return nil, err
				}
			}
			b.bind(param.Sym)
			out.VParams = append(out.VParams, param)
		}
	}
	if blocks, ok := entries["blocks"]; ok {
		var docs []paramDoc
		if err := blocks.Decode(&docs); err != nil {
			return nil, errAt(blocks, "bad blocks: %v", err)
		}
		for _, p := range docs {
			param, err := b.buildBlockParam(p)
			if err != nil {
				return nil, err
			}
			out.BParams = append(out.BParams, param)
		}
	}
	var stmts []yaml.Node
	if bodyNode, ok := entries["body"]; ok {
		if err := bodyNode.Decode(&stmts); err != nil {
			return nil, errAt(bodyNode, "bad body: %v", err)
		}
	}
	out.Body, err = b.buildBody(stmts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *builder) buildTry(n *yaml.Node, entries map[string]*yaml.Node) (ir.Expr, error) {
	out := &ir.TryHandle{Range: rangeAt(n)}
	b.push()
	defer b.pop()
	capDepth := len(b.capabilities)
	defer func() { b.capabilities = b.capabilities[:capDepth] }()

	handlersNode, ok := entries["handlers"]
	if !ok {
		return nil, errAt(n, "try needs handlers")
	}
	// bind every capability before walking the body
	for _, handlerNode := range handlersNode.Content {
		handler, err := b.buildHandler(handlerNode)
		if err != nil {
			return nil, err
		}
		out.Handlers = append(out.Handlers, handler)
	}
	var stmts []yaml.Node
	if err := entries["try"].Decode(&stmts); err != nil {
		return nil, errAt(entries["try"], "bad body: %v", err)
	}
	body, err := b.buildBody(stmts)
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func (b *builder) buildHandler(n *yaml.Node) (*ir.Handler, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	capNode, ok := entries["cap"]
	if !ok {
		return nil, errAt(n, "handler needs a cap: name")
	}
	ifaceNode, hasIface := entries["interface"]
	if !hasIface {
		return nil, errAt(n, "handler needs an interface")
	}
	cap, err := b.buildBlockParam(paramDoc{Name: capNode.Value, Type: *ifaceNode})
	if err != nil {
		return nil, err
	}
	impl, err := b.buildImplementation(n, true)
	if err != nil {
		return nil, err
	}
	return &ir.Handler{Range: rangeAt(n), Cap: cap, Impl: impl}, nil
}

// buildImplementation reads {interface, clauses}; handler clauses bind
// a resume symbol, New clauses do not.
func (b *builder) buildImplementation(n *yaml.Node, withResume bool) (*ir.Implementation, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	ifaceNode, ok := entries["interface"]
	if !ok {
		return nil, errAt(n, "implementation needs an interface")
	}
	iface, err := b.buildType(*ifaceNode)
	if err != nil {
		return nil, err
	}
	out := &ir.Implementation{Range: rangeAt(n), Interface: iface}
	clausesNode, hasClauses := entries["clauses"]
	if !hasClauses {
		return out, nil
	}
	for _, clauseNode := range clausesNode.Content {
		clause, err := b.buildOpClause(clauseNode, withResume)
		if err != nil {
			return nil, err
		}
		out.Clauses = append(out.Clauses, clause)
	}
	return out, nil
}

func (b *builder) buildOpClause(n *yaml.Node, withResume bool) (*ir.OpClause, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	opNode, ok := entries["op"]
	if !ok {
		return nil, errAt(n, "clause needs an op: name")
	}
	ref, known := b.ops[opNode.Value]
	if !known {
		return nil, errAt(opNode, "unknown operation %q", opNode.Value)
	}
	out := &ir.OpClause{Range: rangeAt(n), Op: ref.op.Sym}
	b.push()
	defer b.pop()
	if params, hasParams := entries["params"]; hasParams {
		for _, p := range params.Content {
			param := &ir.ValueParam{Sym: b.fresh(p.Value, ir.ValueSymbol)}
			b.bind(param.Sym)
			out.VParams = append(out.VParams, param)
		}
	}
	if withResume {
		name := "resume"
		if resumeNode, hasResume := entries["resume"]; hasResume {
			name = resumeNode.Value
		}
		out.ResumeSym = b.fresh(name, ir.ResumeSymbol)
		b.bind(out.ResumeSym)
	}
	out.Body, err = b.clauseBody(entries["body"], n)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *builder) buildRegion(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	nameNode, ok := entries["name"]
	if !ok {
		return nil, errAt(n, "region needs a name")
	}
	out := &ir.RegionExpr{Range: rangeAt(n), Sym: b.fresh(nameNode.Value, ir.RegionSymbol)}
	b.push()
	defer b.pop()
	b.bind(out.Sym)
	var stmts []yaml.Node
	if bodyNode, hasBody := entries["body"]; hasBody {
		if err := bodyNode.Decode(&stmts); err != nil {
			return nil, errAt(bodyNode, "bad body: %v", err)
		}
	}
	out.Body, err = b.buildBody(stmts)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *builder) buildMake(n *yaml.Node) (ir.Expr, error) {
	entries, _, err := mapEntries(n)
	if err != nil {
		return nil, err
	}
	tagNode, ok := entries["tag"]
	if !ok {
		return nil, errAt(n, "make needs a tag")
	}
	ref, known := b.variants[tagNode.Value]
	if !known {
		return nil, errAt(tagNode, "unknown constructor %q", tagNode.Value)
	}
	out := &ir.MakeExpr{Range: rangeAt(n), Data: ref.data.Sym, Tag: ref.variant.Sym}
	if targs, hasTArgs := entries["targs"]; hasTArgs {
		for _, arg := range targs.Content {
			t, err := b.buildType(*arg)
			if err != nil {
				return nil, err
			}
			out.TArgs = append(out.TArgs, t)
		}
	}
	if args, hasArgs := entries["args"]; hasArgs {
		for _, arg := range args.Content {
			e, err := b.buildExpr(arg)
			if err != nil {
				return nil, err
			}
			out.Args = append(out.Args, e)
		}
	}
	return out, nil
}
