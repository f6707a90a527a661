// Package kor loads module fixtures from their yaml form and runs the
// checking pipeline over them. The yaml form is the module tree after
// parsing, with names still textual; loading resolves every name to a
// symbol, which is all the frontend the checker needs.
package kor

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cottand/kor/frontend"
	"github.com/cottand/kor/frontend/ir"
	"github.com/cottand/kor/frontend/types"
)

// LoadModule decodes a yaml module fixture and resolves its names.
func LoadModule(src []byte) (*ir.Module, error) {
	var doc moduleDoc
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding module")
	}
	m, err := newBuilder().buildModule(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "resolving module")
	}
	return m, nil
}

// Check loads a module and type-checks it against a fresh in-memory
// symbol database.
func Check(src []byte) (*frontend.CheckResult, *types.MemoryDB, error) {
	m, err := LoadModule(src)
	if err != nil {
		return nil, nil, err
	}
	db := types.NewMemoryDB()
	result, err := frontend.CheckPhase(m, db)
	if err != nil {
		return nil, nil, err
	}
	return result, db, nil
}
