// Package dcm implements the Deep Chain Map: a layered, deep-merging
// mapping with tombstone deletion, explicit replace, deferred list
// operations, and per-key provenance tracking.
//
// Layers are ordered by priority, highest first. Reads walk the layers
// high to low, deep-merging mapping values and letting scalars from
// higher layers win outright. A front layer holds user overrides and
// is always consulted last (highest priority of all).
package dcm

import (
	"fmt"
	"sync"
)

// Delete is the tombstone marker. A Delete value at a path masks every
// lower-priority layer's value at that path.
type Delete struct{}

// Replace wraps a value to disable deep-merge at its path: the wrapped
// value is used exactly, and lower-priority layers are not consulted.
type Replace struct {
	Value any
}

// Layer is a single named, read-only source of configuration data.
// Source layers are never mutated by the DCM.
type Layer struct {
	Name string
	Data map[string]any
}

// Provenance tags each leaf of a merged value with the index of the
// layer that supplied it. -1 means the front layer. Scalars use the "."
// sentinel key; mappings use nested Provenance trees keyed like Data.
type Provenance map[string]any

// DCM is the layered deep-merge map.
type DCM struct {
	mu              sync.Mutex
	layers          []Layer
	front           map[string]any
	frontDeletes    map[string]bool
	listOps         map[string][]ListOp
	trackProvenance bool

	cache      map[string]any
	provCache  map[string]Provenance
	cacheValid bool
}

// New constructs a DCM over the given source layers, highest priority
// first. If track is true, provenance is computed on every read.
func New(track bool, layers ...Layer) *DCM {
	return &DCM{
		layers:          append([]Layer(nil), layers...),
		front:           map[string]any{},
		frontDeletes:    map[string]bool{},
		listOps:         map[string][]ListOp{},
		trackProvenance: track,
	}
}

// AddLayer inserts a new highest-priority source layer at the front of
// the source stack (index 0) and invalidates the cache.
func (d *DCM) AddLayer(l Layer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layers = append([]Layer{l}, d.layers...)
	d.invalidateLocked()
}

// RemoveLayer removes the named source layer, if present.
func (d *DCM) RemoveLayer(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.layers {
		if l.Name == name {
			d.layers = append(d.layers[:i], d.layers[i+1:]...)
			break
		}
	}
	d.invalidateLocked()
}

// ReorderLayers replaces the layer order wholesale (by name), highest
// priority first. Unknown names are ignored; missing layers keep their
// relative order appended at the end.
func (d *DCM) ReorderLayers(names []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	byName := make(map[string]Layer, len(d.layers))
	for _, l := range d.layers {
		byName[l.Name] = l
	}
	seen := make(map[string]bool, len(names))
	next := make([]Layer, 0, len(d.layers))
	for _, n := range names {
		if l, ok := byName[n]; ok && !seen[n] {
			next = append(next, l)
			seen[n] = true
		}
	}
	for _, l := range d.layers {
		if !seen[l.Name] {
			next = append(next, l)
			seen[l.Name] = true
		}
	}
	d.layers = next
	d.invalidateLocked()
}

// Reload clears the read-through cache only; front-layer state and
// queued list-ops survive.
func (d *DCM) Reload() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.invalidateLocked()
}

// Reset clears the front layer, tombstones, and queued list-ops, and
// invalidates the cache. Source layers are untouched.
func (d *DCM) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.front = map[string]any{}
	d.frontDeletes = map[string]bool{}
	d.listOps = map[string][]ListOp{}
	d.invalidateLocked()
}

func (d *DCM) invalidateLocked() {
	d.cache = nil
	d.provCache = nil
	d.cacheValid = false
}

// Get reads the merged value at a top-level key, applying deep merge,
// tombstones, replace markers, list ops, and the front-layer overlay.
// The result is a defensive copy: mutating it does not affect the DCM.
// Writes go through Set, Delete, and RecordListOp.
func (d *DCM) Get(key string) (any, bool) {
	v, _, ok := d.getWithProvenance(key)
	return v, ok
}

// GetWithProvenance is like Get but also returns the provenance tree
// for the merged value (nil if provenance tracking is disabled).
func (d *DCM) GetWithProvenance(key string) (any, Provenance, bool) {
	return d.getWithProvenance(key)
}

func (d *DCM) getWithProvenance(key string) (any, Provenance, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cacheValid {
		if v, ok := d.cache[key]; ok {
			var prov Provenance
			if d.trackProvenance {
				prov = d.provCache[key]
			}
			return deepCopy(v), prov, true
		}
		if d.frontDeletes[key] {
			return nil, nil, false
		}
	}

	if d.frontDeletes[key] {
		d.ensureCacheLocked()
		return nil, nil, false
	}

	value, prov, found := d.mergeKeyLocked(key)
	d.ensureCacheLocked()
	if found {
		d.cache[key] = value
		if d.trackProvenance {
			d.provCache[key] = prov
		}
	}
	// Hand the caller its own copy so the cached value cannot be mutated
	// from outside; a stale cache would otherwise survive such writes.
	return deepCopy(value), prov, found
}

func (d *DCM) ensureCacheLocked() {
	if d.cache == nil {
		d.cache = map[string]any{}
	}
	if d.trackProvenance && d.provCache == nil {
		d.provCache = map[string]Provenance{}
	}
	d.cacheValid = true
}

// mergeKeyLocked walks the source layers high to low, honoring tombstones
// and replace markers, then overlays the front layer and replays list ops.
func (d *DCM) mergeKeyLocked(key string) (any, Provenance, bool) {
	var merged any
	var mergedProv Provenance
	found := false

	for i := len(d.layers) - 1; i >= 0; i-- {
		layer := d.layers[i]
		raw, ok := layer.Data[key]
		if !ok {
			continue
		}
		if _, isDelete := raw.(Delete); isDelete {
			merged = nil
			mergedProv = nil
			found = false
			continue
		}
		if rep, isReplace := raw.(Replace); isReplace {
			merged = deepCopy(rep.Value)
			mergedProv = leafProvenance(i, merged)
			found = true
			continue
		}
		if !found {
			merged = deepCopy(raw)
			mergedProv = leafProvenance(i, merged)
			found = true
		} else {
			merged, mergedProv = deepMerge(merged, mergedProv, raw, i)
		}
	}

	if frontVal, hasFront := d.front[key]; hasFront {
		if !found {
			merged = deepCopy(frontVal)
			mergedProv = leafProvenance(-1, merged)
		} else {
			merged, mergedProv = deepMerge(merged, mergedProv, frontVal, -1)
		}
		found = true
	}

	if !found {
		return nil, nil, false
	}
	merged = applyListOps(merged, d.listOps, []string{key})
	return merged, mergedProv, true
}

// deepMerge merges `high` (from layer index hi) over `low` (already
// merged, tagged with lowProv). Mapping-vs-mapping recurses; anything
// else, the higher-priority value wins outright. Nested Delete drops a
// key; nested Replace short-circuits that subpath.
func deepMerge(low any, lowProv Provenance, high any, hi int) (any, Provenance) {
	highMap, highIsMap := high.(map[string]any)
	lowMap, lowIsMap := low.(map[string]any)
	if !highIsMap || !lowIsMap {
		return deepCopy(high), leafProvenance(hi, high)
	}

	result := make(map[string]any, len(lowMap)+len(highMap))
	prov := Provenance{}
	for k, v := range lowMap {
		result[k] = deepCopy(v)
		if lowProv != nil {
			if p, ok := lowProv[k]; ok {
				prov[k] = p
			}
		}
	}
	for k, v := range highMap {
		if _, isDelete := v.(Delete); isDelete {
			delete(result, k)
			delete(prov, k)
			continue
		}
		if rep, isReplace := v.(Replace); isReplace {
			result[k] = deepCopy(rep.Value)
			prov[k] = leafProvenance(hi, rep.Value)
			continue
		}
		if existing, ok := result[k]; ok {
			var existingProv Provenance
			if p, ok := prov[k].(Provenance); ok {
				existingProv = p
			}
			merged, mp := deepMerge(existing, existingProv, v, hi)
			result[k] = merged
			prov[k] = mp
		} else {
			result[k] = deepCopy(v)
			prov[k] = leafProvenance(hi, v)
		}
	}
	return result, prov
}

func leafProvenance(layer int, value any) Provenance {
	m, ok := value.(map[string]any)
	if !ok {
		return Provenance{".": layer}
	}
	out := Provenance{}
	for k, v := range m {
		out[k] = leafProvenance(layer, v)
	}
	return out
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}

// Set writes a value at a dotted path into the front layer. Intermediate
// mappings are created as needed. Any tombstone or queued list-ops at
// the subpath are cleared first. If merge is false, the value replaces
// whatever is at that path in the front layer outright.
func (d *DCM) Set(path []string, value any, merge bool) error {
	if len(path) == 0 {
		return fmt.Errorf("dcm: empty path")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	key := path[0]
	delete(d.frontDeletes, key)
	clearListOpsLocked(d.listOps, path)

	if len(path) == 1 {
		if merge {
			if existing, ok := d.front[key]; ok {
				merged, _ := deepMerge(existing, nil, value, -1)
				d.front[key] = merged
			} else {
				d.front[key] = deepCopy(value)
			}
		} else {
			d.front[key] = deepCopy(value)
		}
		d.invalidateLocked()
		return nil
	}

	root, _ := d.front[key].(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	setNested(root, path[1:], value, merge)
	d.front[key] = root
	d.invalidateLocked()
	return nil
}

func setNested(m map[string]any, path []string, value any, merge bool) {
	if len(path) == 1 {
		if merge {
			if existing, ok := m[path[0]].(map[string]any); ok {
				if vm, ok := value.(map[string]any); ok {
					merged, _ := deepMerge(existing, nil, vm, -1)
					m[path[0]] = merged
					return
				}
			}
		}
		m[path[0]] = deepCopy(value)
		return
	}
	child, _ := m[path[0]].(map[string]any)
	if child == nil {
		child = map[string]any{}
	}
	setNested(child, path[1:], value, merge)
	m[path[0]] = child
}

// Delete writes a tombstone at the given path into the front layer,
// masking all lower-priority layers, and discards any queued list-ops
// at or below that path.
func (d *DCM) Delete(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("dcm: empty path")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	clearListOpsLocked(d.listOps, path)

	if len(path) == 1 {
		d.frontDeletes[path[0]] = true
		delete(d.front, path[0])
		d.invalidateLocked()
		return nil
	}

	root, _ := d.front[path[0]].(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	deleteNested(root, path[1:])
	d.front[path[0]] = root
	d.invalidateLocked()
	return nil
}

func deleteNested(m map[string]any, path []string) {
	if len(path) == 1 {
		m[path[0]] = Delete{}
		return
	}
	child, _ := m[path[0]].(map[string]any)
	if child == nil {
		child = map[string]any{}
	}
	deleteNested(child, path[1:])
	m[path[0]] = child
}

// OwnList snapshots the merged list currently at path into the front
// layer and clears any queued list-ops at that path, so future list-ops
// recorded against it start from a known, owned base.
func (d *DCM) OwnList(path []string) error {
	if len(path) == 0 {
		return fmt.Errorf("dcm: empty path")
	}
	value, _, ok := d.resolvePath(path)
	if !ok {
		value = []any{}
	}
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("dcm: value at path is not a list")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	clearListOpsLocked(d.listOps, path)
	if len(path) == 1 {
		d.front[path[0]] = deepCopy(list)
	} else {
		root, _ := d.front[path[0]].(map[string]any)
		if root == nil {
			root = map[string]any{}
		}
		setNested(root, path[1:], list, false)
		d.front[path[0]] = root
	}
	d.invalidateLocked()
	return nil
}

// resolvePath resolves a possibly-nested dotted path against the merged
// top-level value.
func (d *DCM) resolvePath(path []string) (any, Provenance, bool) {
	top, prov, ok := d.getWithProvenance(path[0])
	if !ok || len(path) == 1 {
		return top, prov, ok
	}
	cur := top
	for _, k := range path[1:] {
		m, isMap := cur.(map[string]any)
		if !isMap {
			return nil, nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, nil, false
		}
	}
	return cur, nil, true
}

// ToMap returns the fully merged mapping across every top-level key seen
// in any layer or the front layer.
func (d *DCM) ToMap() map[string]any {
	d.mu.Lock()
	keys := map[string]bool{}
	for _, l := range d.layers {
		for k := range l.Data {
			keys[k] = true
		}
	}
	for k := range d.front {
		keys[k] = true
	}
	for k := range d.frontDeletes {
		keys[k] = true
	}
	d.mu.Unlock()

	out := make(map[string]any, len(keys))
	for k := range keys {
		if v, ok := d.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
