package ir

// Builtin type symbols. They have reserved IDs below FirstUserSymbolID;
// the namer starts handing out IDs at FirstUserSymbolID.
var (
	IntSym    = &Symbol{ID: 1, Name: "Int", Kind: TypeSymbol}
	BoolSym   = &Symbol{ID: 2, Name: "Bool", Kind: TypeSymbol}
	StringSym = &Symbol{ID: 3, Name: "String", Kind: TypeSymbol}
	UnitSym   = &Symbol{ID: 4, Name: "Unit", Kind: TypeSymbol}
	TopSym    = &Symbol{ID: 5, Name: "Top", Kind: TypeSymbol}
	BottomSym = &Symbol{ID: 6, Name: "Bottom", Kind: TypeSymbol}

	// RefSym is the implicit state-wrapper type for mutable bindings.
	// A `var` bound in region r has type Ref[T] whose capture is r's.
	RefSym = &Symbol{ID: 7, Name: "Ref", Kind: TypeSymbol}
)

const FirstUserSymbolID SymbolID = 64

func BuiltinTypeSymbols() []*Symbol {
	return []*Symbol{IntSym, BoolSym, StringSym, UnitSym, TopSym, BottomSym, RefSym}
}
