package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// openAPIJSON returns the embedded API document as JSON, converted once.
var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	return yamlToJSON(openAPIDocument)
})

// yamlToJSON re-encodes a YAML document as indented JSON.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing API document: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("API document is empty")
	}

	v, err := nodeValue(doc.Content[0])
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

// nodeValue converts a YAML node into values encoding/json accepts. Mapping
// keys keep their literal text, so unquoted status codes become strings.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil

	case yaml.SequenceNode:
		s := make([]any, len(n.Content))
		for i, item := range n.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			s[i] = v
		}
		return s, nil

	case yaml.AliasNode:
		return nodeValue(n.Alias)

	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}
