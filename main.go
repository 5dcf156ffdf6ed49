// The main package for the docsite-crawler executable.
package main

import (
	"github.com/JakeFAU/docsite-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
