package types

import (
	"fmt"
	"log/slog"

	"github.com/benbjohnson/immutable"
	pkgerrors "github.com/pkg/errors"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/cottand/kor/internal/log"
)

// BlockInfo is what the context knows about a second-class binding.
type BlockInfo struct {
	Type BlockType
	Capt CaptureSet
}

// Annotation is the checker's output for one tree node. Value and Block
// are mutually exclusive.
type Annotation struct {
	Value ValueType
	Block BlockType
	Capt  CaptureSet
}

// TypeCtx is the typing context threaded through every check call. It
// is copied on binding so sibling scopes never observe each other's
// bindings; the embedded TypeState is shared across all copies of one
// run.
type TypeCtx struct {
	values *immutable.Map[ir.SymbolID, ValueType]
	blocks *immutable.Map[ir.SymbolID, BlockInfo]

	// region approximates what the nearest enclosing mutable-state or
	// handler scope may use
	region CaptureSet

	// currentPos is the focus position errors are reported against,
	// here to avoid passing a position on every function call
	currentPos ir.Positioner

	logger *slog.Logger

	*TypeState
}

// TypeState is shared across all copies of a TypeCtx during a single
// run. It is not concurrency safe.
type TypeState struct {
	fresher *Fresher
	scope   *UnificationScope
	db      SymbolDB

	// Errors are language problems a malformed program can cause
	Errors *korerr.Errors
	// Failures are irrecoverable scenarios a well-formed input should
	// never hit; any entry aborts the run
	Failures []error

	annotations map[ir.Expr]Annotation

	datas        map[ir.SymbolID]*ir.DataDecl
	interfaces   map[ir.SymbolID]*ir.InterfaceDecl
	variantOwner map[ir.SymbolID]*ir.DataDecl
	opOwner      map[ir.SymbolID]*ir.InterfaceDecl

	// tparamVars gives each declared type parameter one stable rigid var
	tparamVars map[ir.SymbolID]*Var

	// stateRegion records the region capture backing each mutable binding
	stateRegion map[ir.SymbolID]CaptureSet

	// staged definition results, committed to db only on clean runs
	staged map[ir.SymbolID]SymbolInfo
}

type symbolIDHasher struct{}

func (symbolIDHasher) Hash(k ir.SymbolID) uint32 {
	v := uint64(k)
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return uint32(v)
}

func (symbolIDHasher) Equal(a, b ir.SymbolID) bool { return a == b }

// NewTypeCtx is the entry point to get a TypeCtx; derive further ones
// from it via bindings.
func NewTypeCtx(db SymbolDB) *TypeCtx {
	if db == nil {
		db = NewMemoryDB()
	}
	return &TypeCtx{
		values: immutable.NewMap[ir.SymbolID, ValueType](symbolIDHasher{}),
		blocks: immutable.NewMap[ir.SymbolID, BlockInfo](symbolIDHasher{}),
		region: Pure(),
		logger: log.DefaultLogger.With("section", "check"),
		TypeState: &TypeState{
			fresher:      NewFresher(),
			scope:        newRootScope(),
			db:           db,
			annotations:  make(map[ir.Expr]Annotation),
			datas:        make(map[ir.SymbolID]*ir.DataDecl),
			interfaces:   make(map[ir.SymbolID]*ir.InterfaceDecl),
			variantOwner: make(map[ir.SymbolID]*ir.DataDecl),
			opOwner:      make(map[ir.SymbolID]*ir.InterfaceDecl),
			tparamVars:   make(map[ir.SymbolID]*Var),
			stateRegion:  make(map[ir.SymbolID]CaptureSet),
			staged:       make(map[ir.SymbolID]SymbolInfo),
		},
	}
}

func (ctx *TypeCtx) copy() *TypeCtx {
	copied := *ctx
	return &copied
}

// at focuses subsequent error reporting on pos.
func (ctx *TypeCtx) at(pos ir.Positioner) *TypeCtx {
	copied := ctx.copy()
	copied.currentPos = pos
	return copied
}

func (ctx *TypeCtx) bindValue(sym *ir.Symbol, t ValueType) *TypeCtx {
	copied := ctx.copy()
	copied.values = ctx.values.Set(sym.ID, t)
	return copied
}

func (ctx *TypeCtx) bindBlock(sym *ir.Symbol, info BlockInfo) *TypeCtx {
	copied := ctx.copy()
	copied.blocks = ctx.blocks.Set(sym.ID, info)
	return copied
}

func (ctx *TypeCtx) withRegion(region CaptureSet) *TypeCtx {
	copied := ctx.copy()
	copied.region = region
	return copied
}

func (ctx *TypeCtx) lookupValue(sym *ir.Symbol) (ValueType, bool) {
	if t, ok := ctx.values.Get(sym.ID); ok {
		return t, true
	}
	if info, ok := ctx.db.Lookup(sym.ID); ok && info.Value != nil {
		return info.Value, true
	}
	return nil, false
}

func (ctx *TypeCtx) lookupBlock(sym *ir.Symbol) (BlockInfo, bool) {
	if info, ok := ctx.blocks.Get(sym.ID); ok {
		return info, true
	}
	if info, ok := ctx.db.Lookup(sym.ID); ok && info.Block != nil {
		return BlockInfo{Type: info.Block, Capt: info.Capt}, true
	}
	return BlockInfo{}, false
}

func (ctx *TypeCtx) addError(err korerr.KorError) {
	ctx.logger.Warn("error during checking", "message", err.Error())
	ctx.Errors = ctx.Errors.With(err)
}

// checkerBug aborts the run: a preceding pass's contract was violated
// and continuing risks corrupting the symbol table.
type checkerBug struct {
	err error
}

// BugFrom extracts the internal error from a recovered panic, if the
// panic came from the checker's invariant checks.
func BugFrom(recovered any) (error, bool) {
	if bug, ok := recovered.(checkerBug); ok {
		return bug.err, true
	}
	return nil, false
}

func (ctx *TypeCtx) fatalf(format string, args ...any) {
	err := pkgerrors.Errorf(format, args...)
	ctx.logger.Error("invariant violation during checking", "message", err)
	ctx.Failures = append(ctx.Failures, err)
	panic(checkerBug{err: err})
}

func (state *TypeState) recordValue(e ir.Expr, t ValueType, capt CaptureSet) {
	state.annotations[e] = Annotation{Value: t, Capt: capt}
}

func (state *TypeState) recordBlock(e ir.Expr, b BlockType, capt CaptureSet) {
	state.annotations[e] = Annotation{Block: b, Capt: capt}
}

// stage queues a checked definition for commit to the symbol database
// once the whole module checks without errors.
func (state *TypeState) stage(sym *ir.Symbol, info SymbolInfo) {
	state.staged[sym.ID] = info
}

// AnnotationFor exposes the inferred annotation for a checked subtree.
func (state *TypeState) AnnotationFor(e ir.Expr) (Annotation, bool) {
	a, ok := state.annotations[e]
	return a, ok
}

// withUnificationScope checks body under a fresh nested unification
// scope. On exit the scope is solved; the substitution is pushed
// through the receiver's bindings and through every recorded
// annotation, residual constraints are folded into the parent scope,
// and the returned type and captures come back substituted.
func (ctx *TypeCtx) withUnificationScope(body func(inner *TypeCtx) (ValueType, CaptureSet)) (ValueType, CaptureSet) {
	var t ValueType
	var capt CaptureSet
	subst := ctx.scoped(func(inner *TypeCtx) {
		t, capt = body(inner)
	})
	if t != nil {
		t = subst.ApplyValue(t)
	}
	return t, subst.ApplyCaptures(capt)
}

// withUnificationScopeBlock is withUnificationScope for checks that
// produce a block type.
func (ctx *TypeCtx) withUnificationScopeBlock(body func(inner *TypeCtx) (BlockType, CaptureSet)) (BlockType, CaptureSet) {
	var b BlockType
	var capt CaptureSet
	subst := ctx.scoped(func(inner *TypeCtx) {
		b, capt = body(inner)
	})
	if b != nil {
		b = subst.ApplyBlock(b)
	}
	return b, subst.ApplyCaptures(capt)
}

func (ctx *TypeCtx) scoped(body func(inner *TypeCtx)) Subst {
	parent := ctx.scope
	scope := &UnificationScope{
		parent:     parent,
		depth:      parent.depth + 1,
		ownedVars:  make(map[uint64]struct{}),
		captVarIDs: make(map[uint64]struct{}),
	}
	ctx.TypeState.scope = scope

	body(ctx.copy())

	subst := ctx.solveScope(scope)
	ctx.TypeState.scope = parent
	if !subst.IsEmpty() {
		ctx.rewriteBindings(subst)
		ctx.TypeState.rewriteRecorded(subst)
	}
	return subst
}

func (ctx *TypeCtx) rewriteBindings(subst Subst) {
	values := immutable.NewMap[ir.SymbolID, ValueType](symbolIDHasher{})
	it := ctx.values.Iterator()
	for !it.Done() {
		k, v, _ := it.Next()
		values = values.Set(k, subst.ApplyValue(v))
	}
	ctx.values = values

	blocks := immutable.NewMap[ir.SymbolID, BlockInfo](symbolIDHasher{})
	bit := ctx.blocks.Iterator()
	for !bit.Done() {
		k, v, _ := bit.Next()
		blocks = blocks.Set(k, BlockInfo{
			Type: subst.ApplyBlock(v.Type),
			Capt: subst.ApplyCaptures(v.Capt),
		})
	}
	ctx.blocks = blocks
	ctx.region = subst.ApplyCaptures(ctx.region)
}

func (state *TypeState) rewriteRecorded(subst Subst) {
	for e, a := range state.annotations {
		if a.Value != nil {
			a.Value = subst.ApplyValue(a.Value)
		}
		if a.Block != nil {
			a.Block = subst.ApplyBlock(a.Block)
		}
		a.Capt = subst.ApplyCaptures(a.Capt)
		state.annotations[e] = a
	}
	for sym, region := range state.stateRegion {
		state.stateRegion[sym] = subst.ApplyCaptures(region)
	}
	for sym, info := range state.staged {
		if info.Value != nil {
			info.Value = subst.ApplyValue(info.Value)
		}
		if info.Block != nil {
			info.Block = subst.ApplyBlock(info.Block)
		}
		info.Capt = subst.ApplyCaptures(info.Capt)
		state.staged[sym] = info
	}
}

func (ctx *TypeCtx) String() string {
	return fmt.Sprintf("TypeCtx(depth=%d, region=%s)", ctx.scope.depth, ctx.region)
}
