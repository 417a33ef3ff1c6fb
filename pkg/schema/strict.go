// Package schema shapes tool input schemas into the strict form some
// provider APIs demand before they will accept a function definition.
package schema

// NormalizeStrictSchemaNode rewrites a JSON-schema tree in place for strict
// mode: every object is closed with additionalProperties:false, and every
// optional property becomes nullable and required (the strict-mode encoding
// of optionality). Composite keywords (anyOf/oneOf/allOf, items,
// prefixItems, properties) are normalized recursively.
func NormalizeStrictSchemaNode(node any) any {
	switch n := node.(type) {
	case map[string]any:
		closeObject(n)
		for _, key := range []string{"anyOf", "oneOf", "allOf", "prefixItems"} {
			if branches, ok := n[key].([]any); ok {
				for i := range branches {
					branches[i] = NormalizeStrictSchemaNode(branches[i])
				}
				n[key] = branches
			}
		}
		if items, ok := n["items"]; ok {
			n["items"] = NormalizeStrictSchemaNode(items)
		}
		if props, ok := n["properties"].(map[string]any); ok {
			for name, prop := range props {
				props[name] = NormalizeStrictSchemaNode(prop)
			}
			n["properties"] = props
		}
		if ap, ok := n["additionalProperties"]; ok {
			n["additionalProperties"] = NormalizeStrictSchemaNode(ap)
		}
		return n
	case []any:
		for i := range n {
			n[i] = NormalizeStrictSchemaNode(n[i])
		}
		return n
	default:
		return node
	}
}

// isObjectSchema reports whether the node describes an object, inferring
// type:object for schemas that carry properties/required without a type.
func isObjectSchema(schema map[string]any) bool {
	typ, _ := schema["type"].(string)
	if typ == "" && (schema["properties"] != nil || schema["required"] != nil) {
		schema["type"] = "object"
		return true
	}
	if typ == "object" {
		return true
	}
	if types, ok := schema["type"].([]any); ok {
		for _, v := range types {
			if s, ok := v.(string); ok && s == "object" {
				return true
			}
		}
	}
	return false
}

// closeObject applies the strict-object rules to one schema node.
func closeObject(schema map[string]any) {
	if !isObjectSchema(schema) {
		return
	}

	if ap, ok := schema["additionalProperties"]; !ok || ap != false {
		schema["additionalProperties"] = false
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok || len(props) == 0 {
		return
	}

	seen := map[string]bool{}
	required := []any{}
	if raw, ok := schema["required"].([]any); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok && s != "" && !seen[s] {
				seen[s] = true
				required = append(required, s)
			}
		}
	}

	// Strict mode has no optional properties: anything not required becomes
	// required-but-nullable.
	for name, prop := range props {
		if seen[name] {
			continue
		}
		props[name] = nullable(prop)
		seen[name] = true
		required = append(required, name)
	}

	schema["properties"] = props
	schema["required"] = required
}

// nullable widens a property schema to also admit null.
func nullable(prop any) any {
	m, ok := prop.(map[string]any)
	if !ok {
		return map[string]any{"anyOf": []any{prop, map[string]any{"type": "null"}}}
	}

	switch t := m["type"].(type) {
	case string:
		if t != "null" {
			m["type"] = []any{t, "null"}
		}
		return m
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "null" {
				return m
			}
		}
		m["type"] = append(t, "null")
		return m
	}

	if branches, ok := m["anyOf"].([]any); ok {
		for _, v := range branches {
			if mm, ok := v.(map[string]any); ok {
				if s, _ := mm["type"].(string); s == "null" {
					return m
				}
			}
		}
		m["anyOf"] = append(branches, map[string]any{"type": "null"})
		return m
	}

	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return map[string]any{"anyOf": []any{clone, map[string]any{"type": "null"}}}
}
