// graph renders the CloudFormation templates of a synthesized cloud
// assembly as DOT dependency graphs.
//
// For every stack artifact listed in the assembly's manifest.json it reads
// the template, draws one node per resource and one edge per DependsOn
// entry, and writes the result next to the template with a .dot suffix.
// Templates that cannot be read or parsed are skipped with a message so
// the rest of the assembly still renders.
//
// Usage:
//
//	graph [flags]
//
// Examples:
//
//	graph                        # Render cdk.out after a cdk synth
//	graph --app build/cdk.out    # Render a specific assembly directory
//	graph --check                # Also check ordering, cycles, dangling refs
//
// Install:
//
//	go install github.com/fabrichq/fabric-aws-cdk/cmd/graph@latest
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fabrichq/fabric-aws-cdk/depgraph"
	"github.com/fabrichq/fabric-aws-cdk/dotgraph"
)

var (
	appDir  = flag.String("app", "cdk.out", "Cloud assembly directory (output of cdk synth)")
	check   = flag.Bool("check", false, "Analyze dependencies: deployment order, cycles, dangling references")
	verbose = flag.Bool("verbose", false, "Show verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Render cloud assembly templates as DOT dependency graphs.\n\n")
		fmt.Fprintf(os.Stderr, "One .dot file is written next to each stack template. Render it with:\n")
		fmt.Fprintf(os.Stderr, "  dot -Tsvg MyStack.template.json.dot -o MyStack.svg\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := os.Stat(*appDir); err != nil {
		return fmt.Errorf("assembly directory %s not found (run cdk synth first): %w", *appDir, err)
	}

	logf := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}

	results, err := dotgraph.RenderAssembly(*appDir, logf)
	if err != nil {
		return err
	}

	rendered, skipped := 0, 0
	for _, r := range results {
		if r.Skipped() {
			skipped++
			continue
		}
		rendered++
		fmt.Printf("Wrote %s\n", r.OutputFile)
	}

	if *check {
		if err := checkResults(results); err != nil {
			return err
		}
	}

	fmt.Printf("Rendered %d graph(s)", rendered)
	if skipped > 0 {
		fmt.Printf(", skipped %d", skipped)
	}
	fmt.Println()

	return nil
}

// checkResults analyzes each rendered template's dependency edges.
// Dangling references are warnings; a cycle is an error since the stack
// could never deploy.
func checkResults(results []dotgraph.Result) error {
	for _, r := range results {
		if r.Skipped() {
			continue
		}

		analysis, err := depgraph.Analyze(r.Template)
		if err != nil {
			return fmt.Errorf("%s: %w", r.Artifact, err)
		}

		for _, ref := range analysis.Dangling {
			fmt.Fprintf(os.Stderr, "Warning: %s: %q depends on %q, which is not in the template\n",
				r.Artifact, ref.Resource, ref.Target)
		}

		if *verbose {
			fmt.Printf("%s deployment order:\n", r.Artifact)
			for _, name := range analysis.Order {
				fmt.Printf("  %s\n", name)
			}
		}
	}
	return nil
}
