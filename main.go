// The main package for the catalog-mirror executable.
package main

import (
	"github.com/acuervo/catalog-mirror/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
