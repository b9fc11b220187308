package jack

import (
	"fmt"
	"strconv"
	"strings"
)

// ----------------------------------------------------------------------------
// Jack Type Checker
//
// The TypeChecker walks a 'jack.Program' the same way the Lowerer does (class by
// class, statement by statement) but instead of emitting VM operations it computes
// the 'DataType' of every expression and rejects a program the moment two types
// don't agree (a let assigning a String to an int local, a return type mismatch,
// a function called with the wrong number of arguments, ...).
//
// Jack's own type system is intentionally weak: int, char and bool are considered
// interchangeable (they're all a single word on the stack) and object types are
// only loosely checked, since Jack has no notion of generics or subtyping.

type TypeChecker struct {
	program       Program
	scopes        ScopeTable
	className     string   // The class currently being checked, used to resolve 'this'
	currentReturn DataType // The declared return type of the subroutine currently being checked
}

func NewTypeChecker(program Program) TypeChecker {
	return TypeChecker{program: program}
}

func (tc *TypeChecker) Check() (bool, error) {
	if tc.program == nil || len(tc.program) == 0 {
		return false, fmt.Errorf("the given 'program' is empty or nil")
	}

	for name, class := range tc.program {
		if _, err := tc.HandleClass(class); err != nil {
			return false, fmt.Errorf("error type-checking class '%s': %w", name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Class' and its nested fields/subroutines.
func (tc *TypeChecker) HandleClass(class Class) (bool, error) {
	tc.scopes.PushClassScope(class.Name)
	tc.className = class.Name
	defer tc.scopes.PopClassScope()

	for _, field := range class.Fields.Entries() {
		if _, err := tc.HandleVarStmt(VarStmt{Vars: []Variable{field}}); err != nil {
			return false, fmt.Errorf("error handling field '%s' in class '%s': %w", field.Name, class.Name, err)
		}
	}

	for _, subroutine := range class.Subroutines.Entries() {
		if _, err := tc.HandleSubroutine(subroutine); err != nil {
			return false, fmt.Errorf("error handling subroutine '%s' in class '%s': %w", subroutine.Name, class.Name, err)
		}
	}

	return true, nil
}

// Specialized function to type-check a 'jack.Subroutine' and its nested statements.
func (tc *TypeChecker) HandleSubroutine(subroutine Subroutine) (bool, error) {
	tc.scopes.PushSubRoutineScope(subroutine.Name)
	defer tc.scopes.PopSubroutineScope()

	tc.currentReturn = subroutine.Return

	if subroutine.Type == Method {
		if _, err := tc.scopes.RegisterVariable(Variable{Name: "__obj", VarType: Parameter, DataType: DataType{Main: Object, Subtype: tc.className}}); err != nil {
			return false, fmt.Errorf("error registering implicit object argument: %w", err)
		}
	}

	for _, arg := range subroutine.Arguments {
		if _, err := tc.scopes.RegisterVariable(arg); err != nil {
			return false, fmt.Errorf("error registering argument '%s': %w", arg.Name, err)
		}
	}

	for _, stmt := range subroutine.Statements {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling nested statement %T: %w", stmt, err)
		}
	}

	return true, nil
}

// Generalized function to type-check multiple statement types.
func (tc *TypeChecker) HandleStatement(stmt Statement) (bool, error) {
	switch tStmt := stmt.(type) {
	case DoStmt:
		return tc.HandleDoStmt(tStmt)
	case VarStmt:
		return tc.HandleVarStmt(tStmt)
	case LetStmt:
		return tc.HandleLetStmt(tStmt)
	case IfStmt:
		return tc.HandleIfStmt(tStmt)
	case WhileStmt:
		return tc.HandleWhileStmt(tStmt)
	case ReturnStmt:
		return tc.HandleReturnStmt(tStmt)
	default:
		return false, fmt.Errorf("unrecognized statement: %T", stmt)
	}
}

func (tc *TypeChecker) HandleDoStmt(statement DoStmt) (bool, error) {
	if _, err := tc.HandleExpression(statement.FuncCall); err != nil {
		return false, fmt.Errorf("error handling nested function call expression: %w", err)
	}
	return true, nil
}

func (tc *TypeChecker) HandleVarStmt(statement VarStmt) (bool, error) {
	for _, variable := range statement.Vars {
		if _, err := tc.scopes.RegisterVariable(variable); err != nil {
			return false, fmt.Errorf("error registering variable '%s': %w", variable.Name, err)
		}
	}
	return true, nil
}

func (tc *TypeChecker) HandleLetStmt(statement LetStmt) (bool, error) {
	rhsType, err := tc.HandleExpression(statement.Rhs)
	if err != nil {
		return false, fmt.Errorf("error handling RHS expression: %w", err)
	}

	switch lhs := statement.Lhs.(type) {
	case VarExpr:
		_, variable, err := tc.scopes.ResolveVariable(lhs.Var)
		if err != nil {
			return false, fmt.Errorf("error resolving LHS variable '%s': %w", lhs.Var, err)
		}
		if !compatible(rhsType, variable.DataType) {
			return false, fmt.Errorf("cannot assign value of type %s to '%s' of type %s", describe(rhsType), lhs.Var, describe(variable.DataType))
		}
		return true, nil

	case ArrayExpr:
		if _, err := tc.HandleExpression(lhs); err != nil {
			return false, fmt.Errorf("error handling LHS array expression: %w", err)
		}
		// Array element types aren't tracked statically in Jack, any value may be stored
		return true, nil

	default:
		return false, fmt.Errorf("LHS expression must be either a 'VarExpr' or an 'ArrayExpr', got: %T", statement.Lhs)
	}
}

func (tc *TypeChecker) HandleWhileStmt(statement WhileStmt) (bool, error) {
	condType, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling while condition expression: %w", err)
	}
	if !isBoolish(condType) {
		return false, fmt.Errorf("while condition must be boolean-like, got %s", describe(condType))
	}

	for _, stmt := range statement.Block {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in while block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleIfStmt(statement IfStmt) (bool, error) {
	condType, err := tc.HandleExpression(statement.Condition)
	if err != nil {
		return false, fmt.Errorf("error handling if condition expression: %w", err)
	}
	if !isBoolish(condType) {
		return false, fmt.Errorf("if condition must be boolean-like, got %s", describe(condType))
	}

	for _, stmt := range statement.ThenBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'then' block: %w", err)
		}
	}
	for _, stmt := range statement.ElseBlock {
		if _, err := tc.HandleStatement(stmt); err != nil {
			return false, fmt.Errorf("error handling statement in 'else' block: %w", err)
		}
	}

	return true, nil
}

func (tc *TypeChecker) HandleReturnStmt(statement ReturnStmt) (bool, error) {
	if statement.Expr == nil {
		if tc.currentReturn.Main != Void {
			return false, fmt.Errorf("missing return value, subroutine declares return type %s", describe(tc.currentReturn))
		}
		return true, nil
	}

	exprType, err := tc.HandleExpression(statement.Expr)
	if err != nil {
		return false, fmt.Errorf("error handling return expression: %w", err)
	}

	if !compatible(exprType, tc.currentReturn) {
		return false, fmt.Errorf("cannot return value of type %s, subroutine declares return type %s", describe(exprType), describe(tc.currentReturn))
	}

	return true, nil
}

// Generalized function to type-check multiple expression types, returning the
// 'DataType' the expression evaluates to.
func (tc *TypeChecker) HandleExpression(expr Expression) (DataType, error) {
	switch tExpr := expr.(type) {
	case VarExpr:
		return tc.HandleVarExpr(tExpr)
	case LiteralExpr:
		return tc.HandleLiteralExpr(tExpr)
	case ArrayExpr:
		return tc.HandleArrayExpr(tExpr)
	case UnaryExpr:
		return tc.HandleUnaryExpr(tExpr)
	case BinaryExpr:
		return tc.HandleBinaryExpr(tExpr)
	case FuncCallExpr:
		return tc.HandleFuncCallExpr(tExpr)
	default:
		return DataType{}, fmt.Errorf("unrecognized expression: %T", expr)
	}
}

func (tc *TypeChecker) HandleVarExpr(expression VarExpr) (DataType, error) {
	if expression.Var == "this" {
		return DataType{Main: Object, Subtype: tc.className}, nil
	}

	_, variable, err := tc.scopes.ResolveVariable(expression.Var)
	if err != nil {
		return DataType{}, fmt.Errorf("error resolving variable '%s': %w", expression.Var, err)
	}

	return variable.DataType, nil
}

func (tc *TypeChecker) HandleLiteralExpr(expression LiteralExpr) (DataType, error) {
	switch expression.Type.Main {
	case Int:
		if _, err := strconv.ParseUint(expression.Value, 10, 16); err != nil {
			return DataType{}, fmt.Errorf("error parsing integer literal '%s': %w", expression.Value, err)
		}
	case Bool:
		if _, err := strconv.ParseBool(expression.Value); err != nil {
			return DataType{}, fmt.Errorf("error parsing boolean literal '%s': %w", expression.Value, err)
		}
	case Char:
		if len(expression.Value) != 1 {
			return DataType{}, fmt.Errorf("error parsing char literal '%s'", expression.Value)
		}
	case Object, String, Null:
		// No further validation needed, the lexical form carries all the info we need
	default:
		return DataType{}, fmt.Errorf("unrecognized literal expression type: %s", expression.Type.Main)
	}

	return expression.Type, nil
}

func (tc *TypeChecker) HandleArrayExpr(expression ArrayExpr) (DataType, error) {
	if _, err := tc.HandleVarExpr(VarExpr{Var: expression.Var}); err != nil {
		return DataType{}, fmt.Errorf("error handling base variable expression: %w", err)
	}

	if _, err := tc.HandleExpression(expression.Index); err != nil {
		return DataType{}, fmt.Errorf("error handling index expression: %w", err)
	}

	// Array elements have no static type in Jack, the zero value is treated as "any"
	return DataType{}, nil
}

func (tc *TypeChecker) HandleUnaryExpr(expression UnaryExpr) (DataType, error) {
	rhsType, err := tc.HandleExpression(expression.Rhs)
	if err != nil {
		return DataType{}, fmt.Errorf("error handling nested expression: %w", err)
	}

	switch expression.Type {
	case Negation:
		if !isIntFamily(rhsType) {
			return DataType{}, fmt.Errorf("'-' operand must be numeric, got %s", describe(rhsType))
		}
		return DataType{Main: Int}, nil
	case BoolNot:
		if !isBoolish(rhsType) {
			return DataType{}, fmt.Errorf("'~' operand must be boolean-like, got %s", describe(rhsType))
		}
		return DataType{Main: Bool}, nil
	default:
		return DataType{}, fmt.Errorf("unrecognized unary expression type: %s", expression.Type)
	}
}

func (tc *TypeChecker) HandleBinaryExpr(expression BinaryExpr) (DataType, error) {
	lhsType, err := tc.HandleExpression(expression.Lhs)
	if err != nil {
		return DataType{}, fmt.Errorf("error handling nested LHS expression: %w", err)
	}

	rhsType, err := tc.HandleExpression(expression.Rhs)
	if err != nil {
		return DataType{}, fmt.Errorf("error handling nested RHS expression: %w", err)
	}

	switch expression.Type {
	case Plus, Minus, Divide, Multiply:
		if !isIntFamily(lhsType) || !isIntFamily(rhsType) {
			return DataType{}, fmt.Errorf("arithmetic operands must be numeric, got %s and %s", describe(lhsType), describe(rhsType))
		}
		return DataType{Main: Int}, nil

	case BoolOr, BoolAnd:
		if !isBoolish(lhsType) || !isBoolish(rhsType) {
			return DataType{}, fmt.Errorf("boolean operands must be boolean-like, got %s and %s", describe(lhsType), describe(rhsType))
		}
		return DataType{Main: Bool}, nil

	case Equal, LessThan, GreatThan:
		if !compatible(lhsType, rhsType) && !(isIntFamily(lhsType) && isIntFamily(rhsType)) {
			return DataType{}, fmt.Errorf("comparison operands must agree in type, got %s and %s", describe(lhsType), describe(rhsType))
		}
		return DataType{Main: Bool}, nil

	default:
		return DataType{}, fmt.Errorf("unrecognized binary expression type: %s", expression.Type)
	}
}

func (tc *TypeChecker) HandleFuncCallExpr(expression FuncCallExpr) (DataType, error) {
	for _, arg := range expression.Arguments {
		if _, err := tc.HandleExpression(arg); err != nil {
			return DataType{}, fmt.Errorf("error handling argument expression: %w", err)
		}
	}

	routine, err := tc.resolveSubroutine(expression)
	if err != nil {
		return DataType{}, err
	}

	if len(expression.Arguments) != len(routine.Arguments) {
		return DataType{}, fmt.Errorf("'%s' expects %d argument(s), got %d", expression.FuncName, len(routine.Arguments), len(expression.Arguments))
	}

	for i, arg := range expression.Arguments {
		argType, err := tc.HandleExpression(arg)
		if err != nil {
			return DataType{}, fmt.Errorf("error handling argument expression: %w", err)
		}
		if !compatible(argType, routine.Arguments[i].DataType) {
			return DataType{}, fmt.Errorf("argument %d of '%s' expects %s, got %s", i+1, expression.FuncName, describe(routine.Arguments[i].DataType), describe(argType))
		}
	}

	return routine.Return, nil
}

// Mirrors the Lowerer's own call-site resolution logic (instance-to-instance, external
// call on a variable, external call on a class name) purely to look up the callee's
// signature, it never emits anything.
func (tc *TypeChecker) resolveSubroutine(expression FuncCallExpr) (Subroutine, error) {
	if !expression.IsExtCall {
		className := strings.Split(tc.scopes.GetScope(), ".")[0]
		class, exists := tc.program[className]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", className)
		}
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, className)
		}
		return routine, nil
	}

	if _, variable, err := tc.scopes.ResolveVariable(expression.Var); err == nil {
		if variable.DataType.Main != Object {
			return Subroutine{}, fmt.Errorf("variable '%s' is not an object", expression.Var)
		}
		class, exists := tc.program[variable.DataType.Subtype]
		if !exists {
			return Subroutine{}, fmt.Errorf("class definition not found for '%s'", variable.DataType.Subtype)
		}
		routine, exists := class.Subroutines.Get(expression.FuncName)
		if !exists {
			return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, variable.DataType.Subtype)
		}
		return routine, nil
	}

	class, exists := tc.program[expression.Var]
	if !exists {
		return Subroutine{}, fmt.Errorf("unrecognized function call expression: %s", expression.FuncName)
	}

	routine, exists := class.Subroutines.Get(expression.FuncName)
	if !exists {
		return Subroutine{}, fmt.Errorf("subroutine '%s' not found in class '%s'", expression.FuncName, class.Name)
	}

	return routine, nil
}

// ----------------------------------------------------------------------------
// Type compatibility helpers

func isIntFamily(t DataType) bool {
	return t == (DataType{}) || t.Main == Int || t.Main == Char || t.Main == Bool
}

func isBoolish(t DataType) bool {
	return t == (DataType{}) || t.Main == Bool || t.Main == Int
}

// compatible reports whether a value of type 'from' may be used where 'to' is expected.
// The zero DataType stands for "unknown" (e.g. an array cell) and is always compatible.
func compatible(from, to DataType) bool {
	if from == (DataType{}) || to == (DataType{}) {
		return true
	}
	if from.Main == to.Main {
		if from.Main == Object {
			return from.Subtype == "" || to.Subtype == "" || from.Subtype == to.Subtype
		}
		return true
	}
	if isIntFamily(from) && isIntFamily(to) {
		return true
	}
	if from.Main == Null && to.Main == Object {
		return true
	}
	if from.Main == Object && to.Main == Null {
		return true
	}
	return false
}

func describe(t DataType) string {
	if t.Main == Object && t.Subtype != "" {
		return t.Subtype
	}
	return string(t.Main)
}
