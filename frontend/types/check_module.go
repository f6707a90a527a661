package types

import (
	"github.com/cottand/kor/frontend/ir"
)

// CheckModule checks a whole module: declarations are registered
// first, then every top-level definition group in order. The root
// unification scope is solved at the end, and checked signatures are
// committed to the symbol database only when the module is clean.
func (ctx *TypeCtx) CheckModule(m *ir.Module) {
	ctx.registerDecls(m)

	cur := ctx.copy()
	for _, group := range m.Defs {
		cur = cur.checkDefGroup(group)
	}

	subst := ctx.solveScope(ctx.scope)
	if !subst.IsEmpty() {
		cur.rewriteBindings(subst)
		ctx.rewriteRecorded(subst)
	}

	if ctx.Errors.HasError() || len(ctx.Failures) > 0 {
		ctx.logger.Debug("module had errors, discarding staged signatures", "module", m.Name)
		return
	}
	for id, info := range ctx.staged {
		ctx.db.Commit(id, info)
	}
	ctx.logger.Debug("module checked", "module", m.Name, "committed", len(ctx.staged))
}
