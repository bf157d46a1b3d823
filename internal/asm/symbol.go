package asm

import (
	"sort"
	"strings"
)

// Symbol is one entry in the assembler's symbol table.
type Symbol struct {
	Name       string
	Address    uint32
	Resolved   bool // False until an address has been assigned.
	Relative   bool // True if Address is subject to load-time relocation.
	ExtDef     bool // Exported via EXTDEF.
	External   bool // Imported via EXTREF; Address is always treated as zero locally.
	Referenced bool // Set for EXTREF symbols, which by definition are referenced.
}

// SymbolTable holds every label, EQU value, and EXTDEF/EXTREF name seen during Pass 1. Symbol
// names are unique within an assembly unit; a second definition of the same name is a fatal
// error for that line.
type SymbolTable map[string]*Symbol

// NewSymbolTable returns an empty symbol table.
func NewSymbolTable() SymbolTable {
	return make(SymbolTable)
}

// Lookup returns the named symbol, if any.
func (s SymbolTable) Lookup(name string) (*Symbol, bool) {
	sym, ok := s[strings.ToUpper(name)]
	return sym, ok
}

// Define adds a new relocatable or absolute symbol at the given address. It returns an error if
// the symbol already has a resolved address (a redefinition).
func (s SymbolTable) Define(name string, addr uint32, relative bool) error {
	name = strings.ToUpper(name)

	if existing, ok := s[name]; ok {
		if existing.Resolved {
			return &SymbolError{Symbol: name, Err: ErrRedefined}
		}

		// Pre-declared by EXTDEF; keep its flags and fill in the address.
		existing.Address = addr
		existing.Resolved = true
		existing.Relative = relative

		return nil
	}

	s[name] = &Symbol{Name: name, Address: addr, Resolved: true, Relative: relative}

	return nil
}

// DefineExternal marks name as imported (EXTREF). Its address is unknown until load time and is
// always treated as zero during assembly.
func (s SymbolTable) DefineExternal(name string) {
	name = strings.ToUpper(name)

	if sym, ok := s[name]; ok {
		sym.External = true
		sym.Referenced = true
		sym.Relative = false
	} else {
		s[name] = &Symbol{Name: name, External: true, Referenced: true}
	}
}

// DefineExported marks name as exported (EXTDEF). If the symbol is not yet known it is created
// unresolved; Pass 1 is expected to resolve its address before Pass 2 runs.
func (s SymbolTable) DefineExported(name string) {
	name = strings.ToUpper(name)

	if sym, ok := s[name]; ok {
		sym.ExtDef = true
		sym.Relative = true
	} else {
		s[name] = &Symbol{Name: name, ExtDef: true, Relative: true}
	}
}

// Names returns every symbol name in sorted order, for listing output.
func (s SymbolTable) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
