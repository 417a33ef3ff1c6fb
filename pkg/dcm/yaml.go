package dcm

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes a YAML document into a layer mapping, resolving the
// custom `!delete` and `!replace` tags into Delete and Replace markers.
func LoadYAML(data []byte) (map[string]any, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("dcm: parse yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return map[string]any{}, nil
	}
	decoded, err := decodeNode(root.Content[0])
	if err != nil {
		return nil, err
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		if decoded == nil {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("dcm: top-level yaml document must be a mapping")
	}
	return m, nil
}

func decodeNode(n *yaml.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Tag {
	case "!delete":
		return Delete{}, nil
	case "!replace":
		inner, err := decodeScalarOrStructureIgnoringTag(n)
		if err != nil {
			return nil, err
		}
		return Replace{Value: inner}, nil
	}

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decodeNode(n.Content[0])
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			valNode := n.Content[i+1]
			val, err := decodeNode(valNode)
			if err != nil {
				return nil, err
			}
			out[keyNode.Value] = val
		}
		return out, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			val, err := decodeNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("dcm: decode scalar: %w", err)
		}
		return v, nil
	case yaml.AliasNode:
		return decodeNode(n.Alias)
	default:
		return nil, nil
	}
}

// decodeScalarOrStructureIgnoringTag decodes a node's structural content
// while ignoring its own custom tag (used for the !replace wrapper,
// whose payload may itself be a mapping/sequence/scalar).
func decodeScalarOrStructureIgnoringTag(n *yaml.Node) (any, error) {
	cp := *n
	cp.Tag = ""
	return decodeNode(&cp)
}

// LineInfo records the source line/column a key path was defined at,
// for provenance-by-source-line reporting (e.g. `config show --provenance`
// in the out-of-scope CLI).
type LineInfo struct {
	Path   []string
	Line   int
	Column int
}

// LoadYAMLWithLines is LoadYAML plus a flat list of LineInfo covering
// every scalar and mapping key encountered, for tools that want to point
// at the exact source location of a merged value.
func LoadYAMLWithLines(data []byte) (map[string]any, []LineInfo, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, nil, fmt.Errorf("dcm: parse yaml: %w", err)
	}
	var lines []LineInfo
	if len(root.Content) == 0 {
		return map[string]any{}, lines, nil
	}
	collectLines(root.Content[0], nil, &lines)
	decoded, err := decodeNode(root.Content[0])
	if err != nil {
		return nil, nil, err
	}
	m, _ := decoded.(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, lines, nil
}

func collectLines(n *yaml.Node, path []string, out *[]LineInfo) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			valNode := n.Content[i+1]
			childPath := append(append([]string(nil), path...), keyNode.Value)
			*out = append(*out, LineInfo{Path: childPath, Line: keyNode.Line, Column: keyNode.Column})
			collectLines(valNode, childPath, out)
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			collectLines(item, path, out)
		}
	}
}
