package ir

import (
	"fmt"
	"strings"
)

// ExprString renders an expression for diagnostics and logs. Output is
// source-like but makes no roundtrip promise.
func ExprString(expr Expr) string {
	sb := &strings.Builder{}
	showExpr(sb, expr)
	return sb.String()
}

func showExpr(sb *strings.Builder, expr Expr) {
	if expr == nil {
		sb.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Var:
		sb.WriteString(expr.Sym.Name)
	case *IntLit:
		fmt.Fprintf(sb, "%d", expr.Value)
	case *BoolLit:
		fmt.Fprintf(sb, "%v", expr.Value)
	case *StringLit:
		fmt.Fprintf(sb, "%q", expr.Value)
	case *UnitLit:
		sb.WriteString("()")
	case *Box:
		sb.WriteString("box ")
		if expr.Capt != nil {
			sb.WriteString(expr.Capt.String())
			sb.WriteString(" ")
		}
		showExpr(sb, expr.Arg)
	case *Unbox:
		sb.WriteString("unbox ")
		showExpr(sb, expr.Arg)
	case *Call:
		showExpr(sb, expr.Callee)
		sb.WriteString("(")
		for i, arg := range expr.VArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			showExpr(sb, arg)
		}
		sb.WriteString(")")
		for _, b := range expr.BArgs {
			sb.WriteString(" ")
			showExpr(sb, b)
		}
	case *If:
		sb.WriteString("if (")
		showExpr(sb, expr.Cond)
		sb.WriteString(") { ... } else { ... }")
	case *Match:
		showExpr(sb, expr.Scrutinee)
		fmt.Fprintf(sb, " match { %d clauses }", len(expr.Clauses))
	case *TryHandle:
		fmt.Fprintf(sb, "try { ... } with %d handlers", len(expr.Handlers))
	case *OpCall:
		fmt.Fprintf(sb, "%s.%s(", expr.Cap.Name, expr.Op.Name)
		for i, arg := range expr.VArgs {
			if i > 0 {
				sb.WriteString(", ")
			}
			showExpr(sb, arg)
		}
		sb.WriteString(")")
	case *New:
		sb.WriteString("new ")
		sb.WriteString(typeNodeName(expr.Impl.Interface))
	case *RegionExpr:
		fmt.Fprintf(sb, "region %s { ... }", expr.Sym.Name)
	case *BlockLit:
		sb.WriteString("{ ")
		for i, p := range expr.VParams {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Sym.Name)
		}
		sb.WriteString(" => ... }")
	case *MakeExpr:
		sb.WriteString(expr.Tag.Name)
		sb.WriteString("(")
		for i, arg := range expr.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			showExpr(sb, arg)
		}
		sb.WriteString(")")
	default:
		fmt.Fprintf(sb, "<%T>", expr)
	}
}

func (c *CaptureNode) String() string {
	names := make([]string, len(c.Syms))
	for i, s := range c.Syms {
		names[i] = s.Name
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// PatternString renders a pattern the way coverage errors quote it.
func PatternString(p Pattern) string {
	switch p := p.(type) {
	case *AnyPattern:
		return "_"
	case *BindPattern:
		return p.Sym.Name
	case *TagPattern:
		if len(p.Patterns) == 0 {
			return p.Tag.Name
		}
		parts := make([]string, len(p.Patterns))
		for i, sub := range p.Patterns {
			parts[i] = PatternString(sub)
		}
		return p.Tag.Name + "(" + strings.Join(parts, ", ") + ")"
	case *LiteralPattern:
		return ExprString(p.Lit)
	}
	return fmt.Sprintf("<%T>", p)
}

func typeNodeName(t TypeNode) string {
	switch t := t.(type) {
	case *NamedTypeNode:
		return t.Sym.Name
	case *FunTypeNode:
		return "<function>"
	case *BoxedTypeNode:
		return typeNodeName(t.Block) + " at ..."
	}
	return "<type>"
}
