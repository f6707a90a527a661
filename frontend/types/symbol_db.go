package types

import "github.com/cottand/kor/frontend/ir"

// SymbolInfo is everything later stages (and dependent modules) need
// about one checked definition. Value and Block are mutually exclusive.
type SymbolInfo struct {
	Value ValueType
	Block BlockType
	Capt  CaptureSet
}

// SymbolDB is the append-only symbol store shared across module runs.
// The checker looks dependencies up through it and commits this run's
// definitions into it, but only when the run recorded zero errors.
type SymbolDB interface {
	Lookup(sym ir.SymbolID) (SymbolInfo, bool)
	Commit(sym ir.SymbolID, info SymbolInfo)
}

// MemoryDB is the in-memory SymbolDB used by the driver and by tests.
type MemoryDB struct {
	infos map[ir.SymbolID]SymbolInfo
}

var _ SymbolDB = (*MemoryDB)(nil)

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{infos: make(map[ir.SymbolID]SymbolInfo)}
}

func (db *MemoryDB) Lookup(sym ir.SymbolID) (SymbolInfo, bool) {
	info, ok := db.infos[sym]
	return info, ok
}

func (db *MemoryDB) Commit(sym ir.SymbolID, info SymbolInfo) {
	db.infos[sym] = info
}

func (db *MemoryDB) Size() int {
	return len(db.infos)
}
