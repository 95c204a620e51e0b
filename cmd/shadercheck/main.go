// Shader check tool - compiles the terrain WGSL stages to SPIR-V for inspection.
//
// Usage: go run ./cmd/shadercheck [-only tile_flow] [-out spirv/]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gogpu/naga"

	"github.com/pthm-cable/terrastream/terrain"
)

func main() {
	only := flag.String("only", "", "Compile a single stage by label (empty = all)")
	outDir := flag.String("out", "", "Directory to write <label>.spv files (empty = don't write)")
	flag.Parse()

	sources := terrain.ShaderSources()
	labels := make([]string, 0, len(sources))
	for label := range sources {
		if *only == "" || label == *only {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		fmt.Fprintf(os.Stderr, "Unknown stage: %s\n", *only)
		os.Exit(2)
	}
	sort.Strings(labels)

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output dir: %v\n", err)
			os.Exit(1)
		}
	}

	failed := 0
	for _, label := range labels {
		spirv, err := naga.Compile(sources[label])
		if err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %-14s %v\n", label, err)
			failed++
			continue
		}
		fmt.Printf("ok   %-14s %6d bytes\n", label, len(spirv))

		if *outDir == "" {
			continue
		}
		path := filepath.Join(*outDir, label+".spv")
		if err := os.WriteFile(path, spirv, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			failed++
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d stages failed\n", failed, len(labels))
		os.Exit(1)
	}
}
