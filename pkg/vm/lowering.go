package vm

import (
	"fmt"
	"sort"
	"strconv"

	"n2t.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer (Code Writer)

// The Lowerer takes a 'vm.Program' (one parsed 'vm.Module' per translation unit) and produces
// its 'asm.Program' counterpart: one Hack assembly snippet per VM operation, concatenated in
// module order. Since each module is already just a flat list of operations (no tree to walk)
// this isn't a DFS in the strict sense, but it follows the same per-operation-kind dispatch
// idiom as 'pkg/asm/lowering.go': a switch on the operation's dynamic type, one Handle* method
// per case, each responsible for validating its input before emitting instructions.
//
// Two pieces of state ride along the traversal that a single operation can't see on its own:
//   - 'currentModule', used to qualify 'static' segment accesses ('Foo.3') so that two modules
//     each declaring a 'static 3' don't collide in the same compiled program.
//   - 'currentFunction', used to qualify 'goto'/'if-goto'/label targets ('Foo.bar$LOOP') so that
//     the same label text reused across two functions doesn't collide either.
//
// 'uid' is a monotonic counter that hands out unique internal labels for comparison operations
// and call return-addresses, neither of which has a name of its own in the VM source.
type Lowerer struct {
	program Program

	currentModule   string
	currentFunction string
	uid             int
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process. Modules are visited in alphabetical order (not map iteration
// order, which Go randomizes) so that label numbering and the compiled output are reproducible
// across runs, matching the class ordering 'pkg/jack/lowering.go' applies for the same reason.
func (l *Lowerer) Lowerer() (asm.Program, error) {
	if len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	modules := make([]string, 0, len(l.program))
	for name := range l.program {
		modules = append(modules, name)
	}
	sort.Strings(modules)

	program := asm.Program{}
	for _, name := range modules {
		l.currentModule = name
		l.currentFunction = ""

		for _, operation := range l.program[name] {
			inst, err := l.HandleOperation(operation)
			if err != nil {
				return nil, err
			}
			program = append(program, inst...)
		}
	}

	return program, nil
}

// Dispatches a single VM operation to its dedicated Handle* method based on its dynamic type.
func (l *Lowerer) HandleOperation(op Operation) ([]asm.Instruction, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return l.HandleMemoryOp(tOp)
	case ArithmeticOp:
		return l.HandleArithmeticOp(tOp)
	case LabelDecl:
		return l.HandleLabelDecl(tOp)
	case GotoOp:
		return l.HandleGotoOp(tOp)
	case FuncDecl:
		return l.HandleFuncDecl(tOp)
	case FuncCallOp:
		return l.HandleFuncCallOp(tOp)
	case ReturnOp:
		return l.HandleReturnOp(tOp)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Stack helpers shared by every segment's push/pop template

// Pushes whatever value is currently in 'D' onto the stack and bumps the Stack Pointer.
func pushD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// Decrements the Stack Pointer and loads the popped value into 'D', leaving 'A' pointed
// at the now-former stack top (useful for arithmetic ops that need that address too).
func popToD() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

var indirectSegmentBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

// ----------------------------------------------------------------------------
// Memory Op

// Specialized function to convert a 'MemoryOp' operation to its Hack assembly counterpart.
func (l *Lowerer) HandleMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	switch op.Operation {
	case Push:
		return l.pushSegment(op.Segment, op.Offset)
	case Pop:
		return l.popSegment(op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized 'OperationType' %q", op.Operation)
	}
}

func (l *Lowerer) pushSegment(segment SegmentType, offset uint16) ([]asm.Instruction, error) {
	switch segment {
	case Constant:
		inst := []asm.Instruction{
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}
		return append(inst, pushD()...), nil

	case Local, Argument, This, That:
		inst := []asm.Instruction{
			asm.AInstruction{Location: indirectSegmentBase[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(inst, pushD()...), nil

	case Static:
		inst := []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.currentModule, offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(inst, pushD()...), nil

	case Pointer:
		reg := "THIS"
		if offset == 1 {
			reg = "THAT"
		}
		inst := []asm.Instruction{
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(inst, pushD()...), nil

	case Temp:
		inst := []asm.Instruction{
			asm.AInstruction{Location: strconv.Itoa(5 + int(offset))},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}
		return append(inst, pushD()...), nil

	default:
		return nil, fmt.Errorf("unrecognized 'SegmentType' %q", segment)
	}
}

func (l *Lowerer) popSegment(segment SegmentType, offset uint16) ([]asm.Instruction, error) {
	switch segment {
	case Constant:
		return nil, fmt.Errorf("cannot 'pop' onto the read-only 'constant' segment")

	case Local, Argument, This, That:
		inst := []asm.Instruction{
			asm.AInstruction{Location: indirectSegmentBase[segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: strconv.Itoa(int(offset))},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		inst = append(inst, popToD()...)
		return append(inst,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Static:
		inst := popToD()
		return append(inst,
			asm.AInstruction{Location: fmt.Sprintf("%s.%d", l.currentModule, offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Pointer:
		reg := "THIS"
		if offset == 1 {
			reg = "THAT"
		}
		inst := popToD()
		return append(inst,
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Temp:
		inst := popToD()
		return append(inst,
			asm.AInstruction{Location: strconv.Itoa(5 + int(offset))},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	default:
		return nil, fmt.Errorf("unrecognized 'SegmentType' %q", segment)
	}
}

// ----------------------------------------------------------------------------
// Arithmetic Op

var binaryCompTable = map[ArithOpType]string{
	Add: "D+M",
	Sub: "M-D",
	And: "D&M",
	Or:  "D|M",
}

var unaryCompTable = map[ArithOpType]string{
	Neg: "-M",
	Not: "!M",
}

var comparisonJumpTable = map[ArithOpType]string{
	Eq: "JEQ",
	Gt: "JGT",
	Lt: "JLT",
}

// Specialized function to convert an 'ArithmeticOp' operation to its Hack assembly counterpart.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	if comp, ok := binaryCompTable[op.Operation]; ok {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if comp, ok := unaryCompTable[op.Operation]; ok {
		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: comp},
		}, nil
	}

	if jump, ok := comparisonJumpTable[op.Operation]; ok {
		l.uid++
		trueLabel := fmt.Sprintf("__%s_TRUE_%d", op.Operation, l.uid)
		endLabel := fmt.Sprintf("__%s_END_%d", op.Operation, l.uid)

		return []asm.Instruction{
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "AM", Comp: "M-1"},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.CInstruction{Dest: "A", Comp: "A-1"},
			asm.CInstruction{Dest: "D", Comp: "M-D"},
			asm.AInstruction{Location: trueLabel},
			asm.CInstruction{Comp: "D", Jump: jump},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: endLabel},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
			asm.LabelDecl{Name: trueLabel},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M-1"},
			asm.CInstruction{Dest: "M", Comp: "-1"},
			asm.LabelDecl{Name: endLabel},
		}, nil
	}

	return nil, fmt.Errorf("unrecognized 'ArithOpType' %q", op.Operation)
}

// ----------------------------------------------------------------------------
// Label & Flow-control Ops

// Qualifies a user-chosen label with the enclosing function (or, lacking one, the module)
// so that the same label text reused in two functions never collides in the compiled output.
func (l *Lowerer) qualifyLabel(label string) string {
	scope := l.currentFunction
	if scope == "" {
		scope = l.currentModule
	}
	return fmt.Sprintf("%s$%s", scope, label)
}

// Specialized function to convert a 'LabelDecl' operation to its Hack assembly counterpart.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: l.qualifyLabel(op.Name)}}, nil
}

// Specialized function to convert a 'GotoOp' operation to its Hack assembly counterpart.
func (l *Lowerer) HandleGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower an empty jump target")
	}
	target := l.qualifyLabel(op.Label)

	switch op.Jump {
	case Unconditional:
		return []asm.Instruction{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil

	case Conditional:
		inst := popToD()
		return append(inst,
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "D", Jump: "JNE"},
		), nil

	default:
		return nil, fmt.Errorf("unrecognized 'JumpType' %q", op.Jump)
	}
}

// ----------------------------------------------------------------------------
// Function Ops

// Specialized function to convert a 'FuncDecl' operation to its Hack assembly counterpart.
//
// Emits the function's (unqualified, globally unique) entry label followed by 'NLocal'
// zero-initializations, one per declared local variable, matching how 'pop'/'push local i'
// expects those slots to already exist on the stack above 'ARG'.
func (l *Lowerer) HandleFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty function declaration")
	}
	l.currentFunction = op.Name

	inst := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint16(0); i < op.NLocal; i++ {
		inst = append(inst,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}
	return inst, nil
}

// Pushes the given built-in register's value onto the stack, part of the call frame prelude.
func pushRegister(reg string) []asm.Instruction {
	inst := []asm.Instruction{
		asm.AInstruction{Location: reg},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
	return append(inst, pushD()...)
}

// Specialized function to convert a 'FuncCallOp' operation to its Hack assembly counterpart.
//
// Implements the standard 6-step calling convention: push a fresh return-address label, save
// the caller's LCL/ARG/THIS/THAT, reposition ARG/LCL for the callee, then jump into it.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty function call")
	}

	l.uid++
	scope := l.currentFunction
	if scope == "" {
		scope = l.currentModule
	}
	retLabel := fmt.Sprintf("%s$ret.%d", scope, l.uid)

	inst := []asm.Instruction{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	inst = append(inst, pushD()...)
	inst = append(inst, pushRegister("LCL")...)
	inst = append(inst, pushRegister("ARG")...)
	inst = append(inst, pushRegister("THIS")...)
	inst = append(inst, pushRegister("THAT")...)

	inst = append(inst,
		// ARG = SP - NArgs - 5
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: strconv.Itoa(int(op.NArgs) + 5)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = SP
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// goto <function>
		asm.AInstruction{Location: op.Name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		// (return-address)
		asm.LabelDecl{Name: retLabel},
	)

	return inst, nil
}

// Restores a single saved register from the frame pointed at by 'R13', at the given offset
// behind it (1=THAT, 2=THIS, 3=ARG, 4=LCL), part of the return sequence below.
func restoreFromFrame(offset int, reg string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: strconv.Itoa(offset)},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: reg},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
}

// Specialized function to convert a 'ReturnOp' operation to its Hack assembly counterpart.
//
// Stashes the frame pointer and the return address in R13/R14 before anything else, since for a
// callee with no arguments the ARG slot that the return value gets written into is the very slot
// holding the saved return address.
func (l *Lowerer) HandleReturnOp(op ReturnOp) ([]asm.Instruction, error) {
	inst := []asm.Instruction{
		// R13 = FRAME = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 = RET = *(FRAME-5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}

	// *ARG = pop()
	inst = append(inst, popToD()...)
	inst = append(inst,
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG+1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	)

	inst = append(inst, restoreFromFrame(1, "THAT")...)
	inst = append(inst, restoreFromFrame(2, "THIS")...)
	inst = append(inst, restoreFromFrame(3, "ARG")...)
	inst = append(inst, restoreFromFrame(4, "LCL")...)

	inst = append(inst,
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	)

	return inst, nil
}
