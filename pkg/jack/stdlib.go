package jack

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed stdlib.json
var content string

// StandardLibraryABI describes the public surface of the OS classes (Math, String,
// Array, Memory, Screen, Output, Keyboard, Sys) without carrying any of their
// implementation, keyed by class name then subroutine name.
var StandardLibraryABI = map[string]map[string]Subroutine{}

func init() {
	if err := json.Unmarshal([]byte(content), &StandardLibraryABI); err != nil {
		panic(fmt.Errorf("malformed embedded 'stdlib.json': %w", err))
	}
}
