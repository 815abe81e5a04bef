// Package assembly reads CDK cloud assemblies: the manifest.json index and
// the CloudFormation templates it references.
package assembly

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// MetadataResourceType is the bookkeeping resource the CDK adds to every
// synthesized template. It carries no infrastructure.
const MetadataResourceType = "AWS::CDK::Metadata"

// Template is a decoded CloudFormation template. Resources keep the order
// they appear in the document; repeated decodes of the same input yield
// the same order.
type Template struct {
	// Description is the template description, if any.
	Description string

	// Resources are the template's resources in document order.
	Resources []Resource
}

// Resource is a single resource declaration.
type Resource struct {
	// Name is the logical ID.
	Name string

	// Type is the resource type tag, e.g. "AWS::S3::Bucket".
	Type string

	// Properties are the resource properties in document order.
	// Values are kept raw; only keys are inspected.
	Properties []Property

	// DependsOn lists the logical IDs this resource explicitly depends
	// on, in declaration order. Targets are not checked against the
	// template; dangling references are preserved.
	DependsOn []string
}

// Property is a resource property key with its raw value.
type Property struct {
	Key   string
	Value json.RawMessage
}

// LoadTemplate reads and decodes a CloudFormation template file.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	return &t, nil
}

// UnmarshalJSON decodes a template with a token scan rather than a map so
// that resource and property order match the document.
func (t *Template) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{', "template"); err != nil {
		return err
	}

	for dec.More() {
		key, err := stringToken(dec, "template key")
		if err != nil {
			return err
		}
		switch key {
		case "Description":
			if err := dec.Decode(&t.Description); err != nil {
				return fmt.Errorf("template Description: %w", err)
			}
		case "Resources":
			if err := t.decodeResources(dec); err != nil {
				return err
			}
		default:
			// Parameters, Outputs, Conditions and the rest are not
			// needed for graph rendering.
			if err := skipValue(dec); err != nil {
				return fmt.Errorf("template %s: %w", key, err)
			}
		}
	}

	_, err := dec.Token() // closing brace
	return err
}

func (t *Template) decodeResources(dec *json.Decoder) error {
	if err := expectDelim(dec, '{', "Resources"); err != nil {
		return err
	}

	for dec.More() {
		name, err := stringToken(dec, "resource name")
		if err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("resource %q: %w", name, err)
		}
		res, err := decodeResource(name, raw)
		if err != nil {
			return err
		}
		t.Resources = append(t.Resources, res)
	}

	_, err := dec.Token() // closing brace
	return err
}

func decodeResource(name string, data json.RawMessage) (Resource, error) {
	res := Resource{Name: name}
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{', fmt.Sprintf("resource %q", name)); err != nil {
		return res, err
	}

	for dec.More() {
		key, err := stringToken(dec, fmt.Sprintf("resource %q key", name))
		if err != nil {
			return res, err
		}
		switch key {
		case "Type":
			if err := dec.Decode(&res.Type); err != nil {
				return res, fmt.Errorf("resource %q: Type: %w", name, err)
			}
		case "Properties":
			props, err := decodeProperties(dec, name)
			if err != nil {
				return res, err
			}
			res.Properties = props
		case "DependsOn":
			deps, err := decodeDependsOn(dec, name)
			if err != nil {
				return res, err
			}
			res.DependsOn = deps
		default:
			if err := skipValue(dec); err != nil {
				return res, fmt.Errorf("resource %q: %s: %w", name, key, err)
			}
		}
	}

	if res.Type == "" {
		return res, fmt.Errorf("resource %q: missing Type", name)
	}
	return res, nil
}

func decodeProperties(dec *json.Decoder, name string) ([]Property, error) {
	if err := expectDelim(dec, '{', fmt.Sprintf("resource %q Properties", name)); err != nil {
		return nil, err
	}

	var props []Property
	for dec.More() {
		key, err := stringToken(dec, fmt.Sprintf("resource %q property", name))
		if err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("resource %q: property %s: %w", name, key, err)
		}
		props = append(props, Property{Key: key, Value: raw})
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return nil, err
	}
	return props, nil
}

// decodeDependsOn accepts both forms CloudFormation allows: a single
// logical ID or a list of them.
func decodeDependsOn(dec *json.Decoder, name string) ([]string, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("resource %q: DependsOn: %w", name, err)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var deps []string
		if err := json.Unmarshal(trimmed, &deps); err != nil {
			return nil, fmt.Errorf("resource %q: DependsOn: %w", name, err)
		}
		return deps, nil
	}

	var dep string
	if err := json.Unmarshal(trimmed, &dep); err != nil {
		return nil, fmt.Errorf("resource %q: DependsOn must be a string or list of strings", name)
	}
	return []string{dep}, nil
}

func expectDelim(dec *json.Decoder, want json.Delim, what string) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%s: expected %q, got %v", what, want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder, what string) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%s: %w", what, err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %v", what, tok)
	}
	return s, nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
