// Package dotgraph renders CloudFormation templates as DOT directed graphs
// for layout by Graphviz and similar tools. See
// http://www.graphviz.org/content/dot-language for the format.
package dotgraph

import (
	"fmt"
	"strings"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

// Fixed graph styling. Keeping these constant makes repeated renders of
// the same template byte-for-byte identical.
const (
	graphHeader = "digraph Resources {\n  node [shape=box, fontname=\"Helvetica\"];\n"
	graphFooter = "}\n"
)

// Render produces the DOT document for a template.
//
// Resources appear as nodes in template order, labeled with their type tag
// and property key names. Property values are never rendered; they may
// hold secrets or large blobs. The CDK's bookkeeping resource
// (AWS::CDK::Metadata) is skipped. One edge is emitted per DependsOn
// entry, in declaration order; targets are written verbatim even when no
// resource of that name exists, and the layout tool reports the dangling
// reference.
//
// The document is composed fully in memory and Render itself cannot fail;
// malformed input is rejected earlier, when the template is decoded.
func Render(t *assembly.Template) string {
	var b strings.Builder
	b.WriteString(graphHeader)

	for _, r := range t.Resources {
		if r.Type == assembly.MetadataResourceType {
			continue
		}
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\"];\n", r.Name, nodeLabel(r))
	}

	for _, r := range t.Resources {
		if r.Type == assembly.MetadataResourceType {
			continue
		}
		for _, dep := range r.DependsOn {
			fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", r.Name, dep)
		}
	}

	b.WriteString(graphFooter)
	return b.String()
}

// nodeLabel is the type tag followed by one line per property key.
func nodeLabel(r assembly.Resource) string {
	label := r.Type
	for _, p := range r.Properties {
		label += `\n` + p.Key
	}
	return label
}
