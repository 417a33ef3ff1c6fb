package dcm

import "strings"

// ListOp is a single deferred mutation queued against a list at a path.
// Ops are replayed, in the order recorded, whenever that path is read.
type ListOp interface {
	apply(list []any) []any
}

// Append adds a value to the end of the list.
type Append struct{ Value any }

func (o Append) apply(list []any) []any { return append(list, o.Value) }

// Extend appends every value in Values to the end of the list.
type Extend struct{ Values []any }

func (o Extend) apply(list []any) []any { return append(list, o.Values...) }

// Insert places Value at Index, shifting later elements right. An
// out-of-range Index clamps to the nearest valid bound.
type Insert struct {
	Index int
	Value any
}

func (o Insert) apply(list []any) []any {
	idx := o.Index
	if idx < 0 {
		idx = 0
	}
	if idx > len(list) {
		idx = len(list)
	}
	out := make([]any, 0, len(list)+1)
	out = append(out, list[:idx]...)
	out = append(out, o.Value)
	out = append(out, list[idx:]...)
	return out
}

// SetItem replaces the element at Index. Out-of-range indices are a no-op.
type SetItem struct {
	Index int
	Value any
}

func (o SetItem) apply(list []any) []any {
	if o.Index < 0 || o.Index >= len(list) {
		return list
	}
	out := append([]any(nil), list...)
	out[o.Index] = o.Value
	return out
}

// DelItem removes the element at Index. Out-of-range indices are a no-op.
type DelItem struct{ Index int }

func (o DelItem) apply(list []any) []any {
	if o.Index < 0 || o.Index >= len(list) {
		return list
	}
	out := make([]any, 0, len(list)-1)
	out = append(out, list[:o.Index]...)
	out = append(out, list[o.Index+1:]...)
	return out
}

// Pop removes and discards the last element. A no-op on an empty list.
type Pop struct{}

func (o Pop) apply(list []any) []any {
	if len(list) == 0 {
		return list
	}
	return list[:len(list)-1]
}

// Remove deletes the first element equal to Value, if any.
type Remove struct{ Value any }

func (o Remove) apply(list []any) []any {
	for i, v := range list {
		if equalScalar(v, o.Value) {
			out := make([]any, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out
		}
	}
	return list
}

// Clear empties the list.
type Clear struct{}

func (o Clear) apply(list []any) []any { return []any{} }

func equalScalar(a, b any) bool {
	return a == b
}

// pathKey joins a path into the listOps map key.
func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

// clearListOpsLocked discards every queued list-op at path or any
// descendant of path. Caller must hold d.mu.
func clearListOpsLocked(ops map[string][]ListOp, path []string) {
	prefix := pathKey(path)
	for k := range ops {
		if k == prefix || strings.HasPrefix(k, prefix+"\x00") {
			delete(ops, k)
		}
	}
}

// RecordListOp queues a list operation against path, to be replayed the
// next time that path is read.
func (d *DCM) RecordListOp(path []string, op ListOp) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := pathKey(path)
	d.listOps[key] = append(d.listOps[key], op)
	d.invalidateLocked()
}

// applyListOps walks `value` (the merged value for the top-level key
// `prefix[0]`) and, for every path with queued ops whose prefix matches
// prefix, replays those ops against the list found there.
func applyListOps(value any, ops map[string][]ListOp, prefix []string) any {
	if len(ops) == 0 {
		return value
	}
	key := pathKey(prefix)
	if queued, ok := ops[key]; ok {
		if list, isList := value.([]any); isList {
			for _, op := range queued {
				list = op.apply(list)
			}
			return list
		}
	}
	if m, isMap := value.(map[string]any); isMap {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = applyListOps(v, ops, append(append([]string(nil), prefix...), k))
		}
		return out
	}
	return value
}
