package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJackCompiler(t *testing.T) {
	t.Run("do statement calling a stdlib function", func(t *testing.T) {
		source := strings.Join([]string{
			"class Main {",
			"    function void main() {",
			"        do Output.printInt(42);",
			"        return;",
			"    }",
			"}",
		}, "\n")
		expected := strings.Join([]string{
			"function Main.main 0",
			"push constant 42",
			"call Output.printInt 1",
			"pop temp 0",
			"push constant 0",
			"return",
		}, "\n") + "\n"

		dir := t.TempDir()
		input := filepath.Join(dir, "Main.jack")
		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %v", err)
		}

		status := Handler([]string{input}, map[string]string{"stdlib": "true"})
		if status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		compiled, err := os.ReadFile(filepath.Join(dir, "Main.vm"))
		if err != nil {
			t.Fatalf("error reading compiled output: %v", err)
		}
		if string(compiled) != expected {
			t.Fatalf("output mismatch:\n got: %q\nwant: %q", compiled, expected)
		}
	})

	t.Run("without the stdlib option a stdlib call is unresolved", func(t *testing.T) {
		source := strings.Join([]string{
			"class Main {",
			"    function void main() {",
			"        do Output.printInt(42);",
			"        return;",
			"    }",
			"}",
		}, "\n")

		dir := t.TempDir()
		input := filepath.Join(dir, "Main.jack")
		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %v", err)
		}

		if status := Handler([]string{input}, map[string]string{}); status == 0 {
			t.Fatal("expected compilation to fail without the stdlib ABI loaded")
		}
	})

	t.Run("typecheck option rejects a type mismatch", func(t *testing.T) {
		source := strings.Join([]string{
			"class Main {",
			"    function void main() {",
			"        var int x;",
			"        let x = \"oops\";",
			"        return;",
			"    }",
			"}",
		}, "\n")

		dir := t.TempDir()
		input := filepath.Join(dir, "Main.jack")
		if err := os.WriteFile(input, []byte(source), 0644); err != nil {
			t.Fatalf("unable to write fixture: %v", err)
		}

		status := Handler([]string{input}, map[string]string{"typecheck": "true"})
		if status == 0 {
			t.Fatal("expected typecheck to reject assigning a String to an int variable")
		}
	})

	t.Run("multiple classes in a directory each produce their own .vm file", func(t *testing.T) {
		dir := t.TempDir()
		mainSrc := strings.Join([]string{
			"class Main {",
			"    function void main() {",
			"        do Helper.noop();",
			"        return;",
			"    }",
			"}",
		}, "\n")
		helperSrc := strings.Join([]string{
			"class Helper {",
			"    function void noop() {",
			"        return;",
			"    }",
			"}",
		}, "\n")

		if err := os.WriteFile(filepath.Join(dir, "Main.jack"), []byte(mainSrc), 0644); err != nil {
			t.Fatalf("unable to write fixture: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "Helper.jack"), []byte(helperSrc), 0644); err != nil {
			t.Fatalf("unable to write fixture: %v", err)
		}

		if status := Handler([]string{dir}, map[string]string{}); status != 0 {
			t.Fatalf("unexpected exit status code: expected 0 got: %d", status)
		}

		if _, err := os.Stat(filepath.Join(dir, "Main.vm")); err != nil {
			t.Fatalf("expected 'Main.vm' to be produced: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "Helper.vm")); err != nil {
			t.Fatalf("expected 'Helper.vm' to be produced: %v", err)
		}
	})
}
