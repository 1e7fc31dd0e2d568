// cmd/driftcheck validates that the shipped schema configuration and row
// templates agree with each other.
//
// Phase 1 loads the CUE schema, which runs the embedded field constraints
// and the per-platform hierarchy checks. Phase 2 cross-checks the templates
// against the loaded schemas.
//
// Usage: driftcheck [-schema config/schema.cue] [-templates config/defaults.yaml]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/matthewbaird/adbatch/internal/fieldschema"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("driftcheck: ")

	projectRoot := findProjectRoot()
	schemaPath := flag.String("schema", filepath.Join(projectRoot, "config", "schema.cue"), "schema configuration")
	templatesPath := flag.String("templates", filepath.Join(projectRoot, "config", "defaults.yaml"), "row templates")
	flag.Parse()

	fmt.Printf("Phase 1: Validating schema config (%s)...\n", *schemaPath)
	configs, err := fieldschema.LoadCUE(*schemaPath)
	if err != nil {
		log.Fatalf("schema validation failed: %v", err)
	}
	fmt.Printf("  %d platform(s) validate.\n", len(configs))

	fmt.Printf("Phase 2: Checking templates (%s)...\n", *templatesPath)
	tpl, err := fieldschema.LoadTemplates(*templatesPath)
	if err != nil {
		log.Fatalf("loading templates: %v", err)
	}
	if drift := fieldschema.Drift(configs, tpl); len(drift) > 0 {
		for _, d := range drift {
			fmt.Println("  " + d)
		}
		log.Fatalf("%d problem(s) found", len(drift))
	}
	fmt.Println("  Templates match the schema.")

	fmt.Println("\ndriftcheck: OK, no drift detected")
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		log.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			log.Fatal("cannot find project root (no go.mod found)")
		}
		dir = parent
	}
}
