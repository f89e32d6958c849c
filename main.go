// The main package for the aibulletin executable.
package main

import (
	"github.com/Menenkel/aibulletin/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
