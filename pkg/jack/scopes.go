package jack

import (
	"fmt"
	"strings"
)

// A Scope holds the variables declared under a single name, in declaration order.
// The slice index a Variable is stored at doubles as its symbol table offset, since
// Jack requires declaration-order, non-shadowing, unique names within a scope.
type Scope struct {
	name    string
	entries []Variable
}

func (s *Scope) register(new Variable) (uint16, error) {
	for _, entry := range s.entries {
		if entry.Name == new.Name {
			return 0, fmt.Errorf("'%s' is already declared in scope '%s'", new.Name, s.name)
		}
	}

	offset := uint16(len(s.entries))
	s.entries = append(s.entries, new)
	return offset, nil
}

func (s *Scope) resolve(name string) (uint16, Variable, bool) {
	for idx, entry := range s.entries {
		if entry.Name == name {
			return uint16(idx), entry, true
		}
	}
	return 0, Variable{}, false
}

// ScopeTable tracks the variables visible at any given point during lowering/type
// checking. A class' fields and statics live for as long as the class is being
// visited, a subroutine's locals and parameters only for as long as it is.
type ScopeTable struct {
	static Scope

	local     Scope
	field     Scope
	parameter Scope
}

func NewScopeTable() *ScopeTable { return &ScopeTable{} }

func (st *ScopeTable) PushClassScope(class string) {
	newScope := fmt.Sprintf("%s.Global", class)
	st.field = Scope{name: newScope}
	st.static = Scope{name: newScope}
}

func (st *ScopeTable) PopClassScope() { st.field, st.static = Scope{}, Scope{} }

func (st *ScopeTable) PushSubRoutineScope(method string) {
	newScope := strings.ReplaceAll(st.GetScope(), "Global", method)
	st.local = Scope{name: newScope}
	st.parameter = Scope{name: newScope}
}

func (st *ScopeTable) PopSubroutineScope() { st.local, st.parameter = Scope{}, Scope{} }

func (st *ScopeTable) GetScope() string {
	if st.local.name != "" && st.parameter.name != "" {
		return st.local.name
	}

	if st.field.name != "" {
		return st.field.name
	}

	return "Global"
}

// RegisterVariable adds 'new' to the scope matching its VarType. Jack does not allow
// shadowing: registering a name already present in its target scope is an error, and the
// parameters and locals of a subroutine share one scope for this check.
func (st *ScopeTable) RegisterVariable(new Variable) (uint16, error) {
	switch new.VarType {
	case Local:
		if _, _, found := st.parameter.resolve(new.Name); found {
			return 0, fmt.Errorf("variable '%s' already declared as a parameter", new.Name)
		}
		return st.local.register(new)
	case Field:
		return st.field.register(new)
	case Parameter:
		if _, _, found := st.local.resolve(new.Name); found {
			return 0, fmt.Errorf("variable '%s' already declared as a local", new.Name)
		}
		return st.parameter.register(new)
	case Static:
		return st.static.register(new)
	default:
		return 0, fmt.Errorf("unrecognized variable kind '%s' for '%s'", new.VarType, new.Name)
	}
}

// ResolveVariable looks up 'name' across every live scope, innermost first: locals and
// parameters of the current subroutine, then the enclosing class' fields and statics.
func (st *ScopeTable) ResolveVariable(name string) (uint16, Variable, error) {
	scopes := []*Scope{&st.local, &st.parameter, &st.field, &st.static}

	for _, scope := range scopes {
		if offset, variable, found := scope.resolve(name); found {
			return offset, variable, nil
		}
	}

	return 0, Variable{}, fmt.Errorf("variable '%s' undeclared, not found in any scope", name)
}
