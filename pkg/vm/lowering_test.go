package vm_test

import (
	"reflect"
	"testing"

	"n2t.dev/toolchain/pkg/asm"
	"n2t.dev/toolchain/pkg/vm"
)

func TestLowererRejectsEmptyProgram(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{})
	if _, err := lowerer.Lowerer(); err == nil {
		t.Fatal("expected lowering an empty program to fail")
	}
}

func TestLowererMemorySegments(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 3},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 1},
			vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		},
	}

	lowerer := vm.NewLowerer(program)
	compiled, err := lowerer.Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{
		// push constant 7
		asm.AInstruction{Location: "7"}, asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
		// pop temp 3 (RAM[5+3])
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "AM", Comp: "M-1"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "8"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// push local 1
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "1"}, asm.CInstruction{Dest: "A", Comp: "D+A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
		// pop pointer 1 (THAT)
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "AM", Comp: "M-1"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"}, asm.CInstruction{Dest: "M", Comp: "D"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererPopConstantIsRejected(t *testing.T) {
	program := vm.Program{"Main": vm.Module{vm.MemoryOp{Operation: vm.Pop, Segment: vm.Constant, Offset: 0}}}
	lowerer := vm.NewLowerer(program)
	if _, err := lowerer.Lowerer(); err == nil {
		t.Fatal("expected 'pop constant' to be rejected")
	}
}

func TestLowererRejectsOutOfRangeOffsets(t *testing.T) {
	t.Run("temp offset over 7", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 8}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected 'temp' offset 8 to be rejected")
		}
	})

	t.Run("pointer offset over 1", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 2}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected 'pointer' offset 2 to be rejected")
		}
	})
}

func TestLowererStaticSegmentQualifiesByModule(t *testing.T) {
	program := vm.Program{
		"Foo": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 0}},
		"Bar": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Static, Offset: 0}},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Modules are visited alphabetically: 'Bar' before 'Foo'.
	expected := asm.Program{
		asm.AInstruction{Location: "Bar.0"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
		asm.AInstruction{Location: "Foo.0"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererArithmeticOps(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.ArithmeticOp{Operation: vm.Add},
			vm.ArithmeticOp{Operation: vm.Neg},
		},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{
		// add
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "AM", Comp: "M-1"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"}, asm.CInstruction{Dest: "M", Comp: "D+M"},
		// neg
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M-1"}, asm.CInstruction{Dest: "M", Comp: "-M"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererComparisonOpsGenerateUniqueLabels(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.ArithmeticOp{Operation: vm.Eq},
			vm.ArithmeticOp{Operation: vm.Eq},
		},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var labels []string
	for _, inst := range compiled {
		if decl, ok := inst.(asm.LabelDecl); ok {
			labels = append(labels, decl.Name)
		}
	}

	if len(labels) != 4 { // TRUE + END per occurrence, two occurrences
		t.Fatalf("expected 4 label declarations, got %d: %v", len(labels), labels)
	}
	seen := map[string]bool{}
	for _, l := range labels {
		if seen[l] {
			t.Fatalf("label '%s' was declared more than once, two 'eq' ops must not collide", l)
		}
		seen[l] = true
	}
}

func TestLowererLabelAndGotoQualification(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{
			vm.FuncDecl{Name: "Main.loop", NLocal: 0},
			vm.LabelDecl{Name: "LOOP"},
			vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"},
		},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{
		asm.LabelDecl{Name: "Main.loop"},
		asm.LabelDecl{Name: "Main.loop$LOOP"},
		asm.AInstruction{Location: "Main.loop$LOOP"}, asm.CInstruction{Comp: "0", Jump: "JMP"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererLabelQualifiesByModuleOutsideAnyFunction(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{vm.LabelDecl{Name: "TOP"}},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{asm.LabelDecl{Name: "Main$TOP"}}
	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererFuncDeclZeroesLocals(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{vm.FuncDecl{Name: "Main.run", NLocal: 2}},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{
		asm.LabelDecl{Name: "Main.run"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererFuncCallOpFramePrelude(t *testing.T) {
	program := vm.Program{
		"Main": vm.Module{vm.FuncCallOp{Name: "Foo.bar", NArgs: 2}},
	}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The return-address label is module-scoped ('Main$ret.1') since this call
	// sits outside any function declaration.
	expected := asm.Program{
		asm.AInstruction{Location: "Main$ret.1"}, asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},

		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},

		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},

		asm.AInstruction{Location: "THIS"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},

		asm.AInstruction{Location: "THAT"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "M+1"},

		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "7"}, asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "Foo.bar"}, asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: "Main$ret.1"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererReturnOpFullSequence(t *testing.T) {
	program := vm.Program{"Main": vm.Module{vm.ReturnOp{}}}

	compiled, err := vm.NewLowerer(program).Lowerer()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := asm.Program{
		// R13 = FRAME = LCL
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// R14 = RET = *(FRAME-5)
		asm.AInstruction{Location: "5"}, asm.CInstruction{Dest: "A", Comp: "D-A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// *ARG = pop()
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "AM", Comp: "M-1"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// SP = ARG+1
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// THAT = *(FRAME-1)
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "1"}, asm.CInstruction{Dest: "A", Comp: "D-A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// THIS = *(FRAME-2)
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "2"}, asm.CInstruction{Dest: "A", Comp: "D-A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// ARG = *(FRAME-3)
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "3"}, asm.CInstruction{Dest: "A", Comp: "D-A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// LCL = *(FRAME-4)
		asm.AInstruction{Location: "R13"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "4"}, asm.CInstruction{Dest: "A", Comp: "D-A"}, asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"}, asm.CInstruction{Dest: "M", Comp: "D"},
		// goto RET
		asm.AInstruction{Location: "R14"}, asm.CInstruction{Dest: "A", Comp: "M"}, asm.CInstruction{Comp: "0", Jump: "JMP"},
	}

	if !reflect.DeepEqual(compiled, expected) {
		t.Fatalf("unexpected compiled output:\n got: %+v\nwant: %+v", compiled, expected)
	}
}

func TestLowererRejectsEmptyNames(t *testing.T) {
	t.Run("empty label declaration", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.LabelDecl{Name: ""}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected an empty label declaration to be rejected")
		}
	})

	t.Run("empty goto target", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.GotoOp{Jump: vm.Unconditional, Label: ""}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected an empty jump target to be rejected")
		}
	})

	t.Run("empty function declaration", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.FuncDecl{Name: "", NLocal: 0}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected an empty function declaration to be rejected")
		}
	})

	t.Run("empty function call", func(t *testing.T) {
		program := vm.Program{"Main": vm.Module{vm.FuncCallOp{Name: "", NArgs: 0}}}
		if _, err := vm.NewLowerer(program).Lowerer(); err == nil {
			t.Fatal("expected an empty function call to be rejected")
		}
	})
}
