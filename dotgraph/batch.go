package dotgraph

import (
	"fmt"
	"os"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

// FileSuffix is appended to a template's filename to form its DOT output
// path, e.g. MyStack.template.json.dot.
const FileSuffix = ".dot"

// Result records the outcome for one stack artifact in a batch render.
type Result struct {
	// Artifact is the artifact name from the manifest.
	Artifact string

	// TemplateFile is the template that was read.
	TemplateFile string

	// OutputFile is the DOT file that was written. Empty when skipped.
	OutputFile string

	// Template is the decoded template, kept for further analysis.
	// Nil when the artifact was skipped.
	Template *assembly.Template

	// Err is what caused the artifact to be skipped: a descriptor
	// without a template file, or a template that failed to decode.
	Err error
}

// Skipped reports whether the artifact was skipped.
func (r Result) Skipped() bool {
	return r.Err != nil
}

// RenderAssembly renders a DOT file for every CloudFormation stack
// artifact in the assembly directory, writing each next to its template
// with the FileSuffix appended.
//
// A stack descriptor without a template file, or a template that cannot
// be read or parsed, is reported through logf and skipped; the rest of
// the batch still completes. A failed output write is returned as an
// error, together with the results so far: silently losing output is
// worse than a skipped render. logf may be nil.
func RenderAssembly(dir string, logf func(format string, args ...any)) ([]Result, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	manifest, err := assembly.LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, stack := range manifest.StackArtifacts() {
		result := Result{Artifact: stack.Name, TemplateFile: stack.TemplateFile}

		if stack.TemplateFile == "" {
			err := fmt.Errorf("descriptor has no templateFile")
			logf("skipping %s: %v", stack.Name, err)
			result.Err = err
			results = append(results, result)
			continue
		}

		tmpl, err := assembly.LoadTemplate(stack.TemplateFile)
		if err != nil {
			logf("skipping %s: %v", stack.Name, err)
			result.Err = err
			results = append(results, result)
			continue
		}

		out := stack.TemplateFile + FileSuffix
		doc := Render(tmpl)
		if err := os.WriteFile(out, []byte(doc), 0o644); err != nil {
			results = append(results, result)
			return results, fmt.Errorf("writing %s: %w", out, err)
		}

		result.Template = tmpl
		result.OutputFile = out
		results = append(results, result)
	}

	return results, nil
}
