package frontend

import (
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/cottand/kor/frontend/types"
)

// CheckResult is the outcome of checking one module: the reported
// errors plus the annotation table for every checked subtree.
type CheckResult struct {
	Module *ir.Module
	Ctx    *types.TypeCtx
}

func (r *CheckResult) Errors() *korerr.Errors {
	return r.Ctx.Errors
}

// CheckPhase runs semantic analysis over a named module. User-level
// problems come back inside the result; an error return means the
// checker itself hit an invariant violation and the result is partial.
func CheckPhase(m *ir.Module, db types.SymbolDB) (result *CheckResult, err error) {
	ctx := types.NewTypeCtx(db)
	result = &CheckResult{Module: m, Ctx: ctx}
	defer func() {
		if recovered := recover(); recovered == nil {
			return
		} else if bug, ok := types.BugFrom(recovered); ok {
			err = bug
		} else {
			panic(recovered)
		}
	}()
	ctx.CheckModule(m)
	return result, nil
}
