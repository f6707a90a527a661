package ir

// Module is one fully name-resolved compilation unit, ready for
// checking. Dependencies are not part of the tree; their symbols are
// looked up through the symbol database.
type Module struct {
	Range
	Name       string
	Datas      []*DataDecl
	Interfaces []*InterfaceDecl
	Defs       []*DefGroup
}

// DataDecl declares an algebraic data type. A record is a data type
// with exactly one variant.
type DataDecl struct {
	Range
	Sym      *Symbol
	TParams  []*Symbol
	Variants []*Variant
}

func (d *DataDecl) IsRecord() bool { return len(d.Variants) == 1 }

type Variant struct {
	Range
	Sym    *Symbol
	Fields []TypeNode
}

// InterfaceDecl declares a capability interface: the set of operations
// a handler for it must implement.
type InterfaceDecl struct {
	Range
	Sym     *Symbol
	TParams []*Symbol
	Ops     []*OpDecl
}

type OpDecl struct {
	Range
	Sym     *Symbol
	VParams []TypeNode
	Result  TypeNode
}

// DefGroup is a group of function definitions checked together.
// A group with more than one member, or whose single member refers to
// itself, is (mutually) recursive and must be fully annotated.
type DefGroup struct {
	Range
	Defs []*FunDef
}

// Recursive reports whether the group needs the two-pass
// precheck/check treatment.
func (g *DefGroup) Recursive() bool {
	if len(g.Defs) > 1 {
		return true
	}
	if len(g.Defs) == 1 {
		return g.Defs[0].SelfRecursive
	}
	return false
}

type FunDef struct {
	Range
	Sym     *Symbol
	TParams []*Symbol
	VParams []*ValueParam
	BParams []*BlockParam
	// Ret may be nil for non-recursive definitions
	Ret  TypeNode
	Body *Body
	// SelfRecursive is set by the namer when the body mentions Sym
	SelfRecursive bool
}

type ValueParam struct {
	Range
	Sym *Symbol
	// Annot may be nil on operation-clause parameters, whose types come
	// from the operation signature
	Annot TypeNode
}

type BlockParam struct {
	Range
	Sym *Symbol
	// Annot denotes a block type (function or interface)
	Annot TypeNode
}

// Body is a statement sequence; its value is the value of the last
// statement, or Unit when empty.
type Body struct {
	Range
	Stmts []Stmt
}

type Stmt interface {
	Positioner
	stmtNode()
}

// ValStmt binds the value of Binding to Sym for the rest of the
// enclosing sequence.
type ValStmt struct {
	Range
	Sym     *Symbol
	Annot   TypeNode // may be nil
	Binding Expr
}

// VarStmt introduces mutable state in Region (nil means the current
// lexical region).
type VarStmt struct {
	Range
	Sym     *Symbol
	Annot   TypeNode // may be nil
	Region  *Symbol  // may be nil
	Binding Expr
}

type AssignStmt struct {
	Range
	Sym *Symbol
	E   Expr
}

// DefStmt nests a definition group inside a body.
type DefStmt struct {
	Range
	Group *DefGroup
}

type ExprStmt struct {
	Range
	E Expr
}

func (*ValStmt) stmtNode()    {}
func (*VarStmt) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*DefStmt) stmtNode()    {}
func (*ExprStmt) stmtNode()   {}

type Expr interface {
	Positioner
	exprNode()
}

type Var struct {
	Range
	Sym *Symbol
}

type IntLit struct {
	Range
	Value int64
}

type BoolLit struct {
	Range
	Value bool
}

type StringLit struct {
	Range
	Value string
}

type UnitLit struct {
	Range
}

// Box moves a block into value position. Capt is the optional
// user-annotated capture set.
type Box struct {
	Range
	Capt *CaptureNode
	Arg  Expr
}

// Unbox moves a boxed value back into block position.
type Unbox struct {
	Range
	Arg Expr
}

type Call struct {
	Range
	Callee Expr
	TArgs  []TypeNode
	VArgs  []Expr
	BArgs  []Expr
}

type If struct {
	Range
	Cond Expr
	Then *Body
	Else *Body
}

type Match struct {
	Range
	Scrutinee Expr
	Clauses   []*MatchClause
}

type MatchClause struct {
	Range
	Pattern Pattern
	Body    *Body
}

// TryHandle installs one or more handlers around Body.
type TryHandle struct {
	Range
	Body     *Body
	Handlers []*Handler
}

// Handler binds one capability symbol to an implementation of its
// interface for the dynamic extent of the handled body.
type Handler struct {
	Range
	Cap  *BlockParam
	Impl *Implementation
}

// Implementation is a clause set for one interface; shared between
// handlers and New.
type Implementation struct {
	Range
	Interface TypeNode
	Clauses   []*OpClause
}

type OpClause struct {
	Range
	Op      *Symbol
	VParams []*ValueParam
	// ResumeSym is bound inside handler clauses only; nil under New
	ResumeSym *Symbol
	Body      *Body
}

// OpCall invokes one operation on a capability in scope. The namer
// resolves Cap to the innermost binding of the operation's interface.
type OpCall struct {
	Range
	Cap   *Symbol
	Op    *Symbol
	VArgs []Expr
}

// New produces a first-class capability object from an implementation.
type New struct {
	Range
	Impl *Implementation
}

// RegionExpr opens a lexical region whose capability is Sym.
type RegionExpr struct {
	Range
	Sym  *Symbol
	Body *Body
}

// BlockLit is an anonymous block (function literal in block position).
type BlockLit struct {
	Range
	TParams []*Symbol
	VParams []*ValueParam
	BParams []*BlockParam
	Body    *Body
}

// MakeExpr constructs a data variant. Positional arguments match the
// variant's declared fields.
type MakeExpr struct {
	Range
	Data  *Symbol
	Tag   *Symbol
	TArgs []TypeNode
	Args  []Expr
}

func (*Var) exprNode()        {}
func (*IntLit) exprNode()     {}
func (*BoolLit) exprNode()    {}
func (*StringLit) exprNode()  {}
func (*UnitLit) exprNode()    {}
func (*Box) exprNode()        {}
func (*Unbox) exprNode()      {}
func (*Call) exprNode()       {}
func (*If) exprNode()         {}
func (*Match) exprNode()      {}
func (*TryHandle) exprNode()  {}
func (*OpCall) exprNode()     {}
func (*New) exprNode()        {}
func (*RegionExpr) exprNode() {}
func (*BlockLit) exprNode()   {}
func (*MakeExpr) exprNode()   {}

type Pattern interface {
	Positioner
	patternNode()
}

// AnyPattern ignores the scrutinee: `_`.
type AnyPattern struct {
	Range
}

// BindPattern binds the whole scrutinee to a name. Like AnyPattern it
// covers everything.
type BindPattern struct {
	Range
	Sym *Symbol
}

// TagPattern matches one data variant and destructures its fields.
type TagPattern struct {
	Range
	Tag      *Symbol
	Patterns []Pattern
}

type LiteralPattern struct {
	Range
	Lit Expr
}

func (*AnyPattern) patternNode()     {}
func (*BindPattern) patternNode()    {}
func (*TagPattern) patternNode()     {}
func (*LiteralPattern) patternNode() {}

// IsCatchAll reports whether the pattern matches any scrutinee.
func IsCatchAll(p Pattern) bool {
	switch p.(type) {
	case *AnyPattern, *BindPattern:
		return true
	}
	return false
}

// TypeNode is an unresolved type annotation in the tree. Symbols inside
// it are already resolved; the checker turns nodes into types.
type TypeNode interface {
	Positioner
	typeNode()
}

// NamedTypeNode references a data type, interface, or type parameter
// (told apart by Sym.Kind).
type NamedTypeNode struct {
	Range
	Sym  *Symbol
	Args []TypeNode
}

type FunTypeNode struct {
	Range
	TParams []*Symbol
	VParams []TypeNode
	BParams []TypeNode
	Result  TypeNode
}

// BoxedTypeNode is a block type in value position: `T at {c1, c2}`.
type BoxedTypeNode struct {
	Range
	Block TypeNode
	Capt  *CaptureNode
}

type CaptureNode struct {
	Range
	Syms []*Symbol
}

func (*NamedTypeNode) typeNode() {}
func (*FunTypeNode) typeNode()   {}
func (*BoxedTypeNode) typeNode() {}
