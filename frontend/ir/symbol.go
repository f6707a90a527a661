package ir

import "fmt"

// SymbolID identifies a binder uniquely across a whole checker run.
// The namer assigns IDs; the checker never compares symbols by name.
type SymbolID uint64

type SymbolKind uint8

const (
	ValueSymbol SymbolKind = iota
	// BlockSymbol covers functions, block parameters and capabilities:
	// anything second-class that needs boxing to flow as a value
	BlockSymbol
	RegionSymbol
	TypeSymbol
	TypeParamSymbol
	InterfaceSymbol
	OperationSymbol
	ConstructorSymbol
	ResumeSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case ValueSymbol:
		return "value"
	case BlockSymbol:
		return "block"
	case RegionSymbol:
		return "region"
	case TypeSymbol:
		return "type"
	case TypeParamSymbol:
		return "type param"
	case InterfaceSymbol:
		return "interface"
	case OperationSymbol:
		return "operation"
	case ConstructorSymbol:
		return "constructor"
	case ResumeSymbol:
		return "resume"
	}
	return "unknown"
}

// Symbol is a resolved binder. Two occurrences denote the same binder
// iff they hold the same *Symbol (pointer identity matches ID identity;
// the namer never mints two Symbols with one ID).
type Symbol struct {
	ID   SymbolID
	Name string
	Kind SymbolKind
}

func (s *Symbol) String() string {
	return fmt.Sprintf("%s@%d", s.Name, s.ID)
}

// IsSecondClass reports whether a reference to this symbol in value
// position needs boxing.
func (s *Symbol) IsSecondClass() bool {
	return s.Kind == BlockSymbol || s.Kind == RegionSymbol || s.Kind == ResumeSymbol
}
