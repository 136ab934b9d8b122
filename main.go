// The main package for the sitesnap executable.
package main

import (
	"github.com/sitesnap/sitesnap/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
