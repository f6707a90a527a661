package types

import (
	"sort"

	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/korerr"
	"github.com/cottand/kor/util"
)

// checkExhaustivity reports one error per match whose pattern column
// fails to cover the scrutinee type. A catch-all pattern covers any
// type; scrutinees that are not locally declared data (builtins, type
// variables) are conservatively considered covered only by a
// catch-all, but never produce an error themselves.
func (ctx *TypeCtx) checkExhaustivity(scrut ValueType, patterns []ir.Pattern) {
	for _, p := range patterns {
		if ir.IsCatchAll(p) {
			return
		}
	}
	data, ok := scrut.(Data)
	if !ok {
		return
	}
	decl, ok := ctx.datas[data.Sym.ID]
	if !ok {
		// opaque type, nothing to enumerate
		return
	}

	declared := make([]string, len(decl.Variants))
	for i, v := range decl.Variants {
		declared[i] = v.Sym.Name
	}
	sort.Strings(declared)

	var covered []string
	for _, p := range patterns {
		if tag, isTag := p.(*ir.TagPattern); isTag {
			covered = append(covered, tag.Tag.Name)
		}
	}
	sort.Strings(covered)
	unique := covered[:0:0]
	for i, name := range covered {
		if i == 0 || covered[i-1] != name {
			unique = append(unique, name)
		}
	}

	if missing := util.DiffSorted(declared, unique); len(missing) > 0 {
		ctx.addError(korerr.New(korerr.NewNonExhaustiveMatch{
			Positioner: ir.RangeOf(ctx.currentPos),
			Missing:    missing,
		}))
		return
	}

	// every variant is named at least once; recurse column-wise into
	// the sub-patterns matched against each variant's fields
	for _, variant := range decl.Variants {
		var matching []*ir.TagPattern
		for _, p := range patterns {
			if tag, isTag := p.(*ir.TagPattern); isTag && tag.Tag == variant.Sym {
				matching = append(matching, tag)
			}
		}
		if len(matching) == 0 {
			continue
		}
		fields := ctx.variantFieldTypes(decl, variant, data.Args)
		for col := range fields {
			var column []ir.Pattern
			for _, m := range matching {
				if col < len(m.Patterns) {
					column = append(column, m.Patterns[col])
				}
			}
			ctx.checkExhaustivity(fields[col], column)
		}
	}
}
