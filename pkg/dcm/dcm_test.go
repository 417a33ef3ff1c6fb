package dcm

import "testing"

func layer(name string, data map[string]any) Layer {
	return Layer{Name: name, Data: data}
}

func TestPrecedenceUniqueKeys(t *testing.T) {
	d := New(false,
		layer("user", map[string]any{"verbose": true}),
		layer("builtin", map[string]any{"model": "gpt-5"}),
	)
	v, ok := d.Get("model")
	if !ok || v != "gpt-5" {
		t.Fatalf("model = %v, %v; want gpt-5, true", v, ok)
	}
	v, ok = d.Get("verbose")
	if !ok || v != true {
		t.Fatalf("verbose = %v, %v; want true, true", v, ok)
	}
}

func TestPrecedenceSharedKeysDeepMerge(t *testing.T) {
	d := New(false,
		layer("user", map[string]any{"behavior": map[string]any{"max_tokens": 4000}}),
		layer("builtin", map[string]any{"behavior": map[string]any{"max_tokens": 8192, "verbose": false}}),
	)
	v, ok := d.Get("behavior")
	if !ok {
		t.Fatal("behavior not found")
	}
	m := v.(map[string]any)
	if m["max_tokens"] != 4000 {
		t.Errorf("max_tokens = %v, want 4000 (user wins)", m["max_tokens"])
	}
	if m["verbose"] != false {
		t.Errorf("verbose = %v, want false (from builtin, not masked)", m["verbose"])
	}
}

func TestThreeLayerOverrideScenario(t *testing.T) {
	builtin := layer("builtin", map[string]any{
		"behavior": map[string]any{"max_tokens": 8192},
		"verbose":  false,
	})
	user := layer("user", map[string]any{
		"behavior": map[string]any{"max_tokens": 4000},
		"verbose":  false,
	})
	project := layer("project", map[string]any{
		"behavior": map[string]any{"max_tokens": 16000},
	})
	env := layer("env", map[string]any{
		"behavior": map[string]any{"max_tokens": 32000},
	})
	d := New(false, env, project, user, builtin)

	v, _ := d.Get("behavior")
	maxTokens := v.(map[string]any)["max_tokens"]
	if maxTokens != 32000 {
		t.Errorf("max_tokens = %v, want 32000", maxTokens)
	}
	verbose, _ := d.Get("verbose")
	if verbose != false {
		t.Errorf("verbose = %v, want false", verbose)
	}
}

func TestDeleteMasksLowerLayers(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{"feature": "on"}))
	if err := d.Delete([]string{"feature"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Get("feature"); ok {
		t.Error("expected feature to be masked by tombstone")
	}
}

func TestDeleteViaLayerTombstone(t *testing.T) {
	d := New(false,
		layer("user", map[string]any{"feature": Delete{}}),
		layer("builtin", map[string]any{"feature": "on"}),
	)
	if _, ok := d.Get("feature"); ok {
		t.Error("expected feature to be masked by layer-level tombstone")
	}
}

func TestReplaceShortCircuits(t *testing.T) {
	d := New(false,
		layer("top", map[string]any{"tools": Replace{Value: []any{"a"}}}),
		layer("mid", map[string]any{"tools": []any{"b", "c"}}),
		layer("low", map[string]any{"tools": []any{"d"}}),
	)
	v, ok := d.Get("tools")
	if !ok {
		t.Fatal("expected tools present")
	}
	list := v.([]any)
	if len(list) != 1 || list[0] != "a" {
		t.Errorf("tools = %v, want [a]", list)
	}
}

func TestSetClearsTombstone(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{"feature": "on"}))
	d.Delete([]string{"feature"})
	if _, ok := d.Get("feature"); ok {
		t.Fatal("expected masked before Set")
	}
	d.Set([]string{"feature"}, "re-enabled", false)
	v, ok := d.Get("feature")
	if !ok || v != "re-enabled" {
		t.Errorf("feature = %v, %v; want re-enabled, true", v, ok)
	}
}

func TestDeleteDiscardsQueuedListOps(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{"tags": []any{"a"}}))
	d.RecordListOp([]string{"tags"}, Append{Value: "b"})
	d.Delete([]string{"tags"})
	d.Set([]string{"tags"}, []any{"x"}, false)
	v, _ := d.Get("tags")
	list := v.([]any)
	if len(list) != 1 || list[0] != "x" {
		t.Errorf("tags = %v, want [x] (queued append must be discarded)", list)
	}
}

func TestListOpsReplayInOrder(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{"tags": []any{"a", "b"}}))
	d.RecordListOp([]string{"tags"}, Append{Value: "c"})
	d.RecordListOp([]string{"tags"}, Insert{Index: 0, Value: "z"})
	d.RecordListOp([]string{"tags"}, DelItem{Index: 2})

	v, _ := d.Get("tags")
	list := v.([]any)
	want := []any{"z", "a", "c"}
	if len(list) != len(want) {
		t.Fatalf("tags = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("tags[%d] = %v, want %v", i, list[i], want[i])
		}
	}
}

func TestResetMatchesFreshConstruction(t *testing.T) {
	base := layer("builtin", map[string]any{"model": "gpt-5", "behavior": map[string]any{"max_tokens": 100}})
	d := New(false, base)
	d.Set([]string{"model"}, "gpt-6", false)
	d.Delete([]string{"behavior", "max_tokens"})
	d.RecordListOp([]string{"missing"}, Append{Value: 1})
	d.Reset()

	fresh := New(false, base)
	gotModel, _ := d.Get("model")
	wantModel, _ := fresh.Get("model")
	if gotModel != wantModel {
		t.Errorf("model = %v, want %v", gotModel, wantModel)
	}
	gotBehavior, _ := d.Get("behavior")
	wantBehavior, _ := fresh.Get("behavior")
	if gotBehavior.(map[string]any)["max_tokens"] != wantBehavior.(map[string]any)["max_tokens"] {
		t.Errorf("behavior mismatch after reset: %v vs %v", gotBehavior, wantBehavior)
	}
}

func TestSourceLayersNeverMutated(t *testing.T) {
	builtinData := map[string]any{"behavior": map[string]any{"max_tokens": 100}}
	d := New(false, layer("builtin", builtinData))
	d.Set([]string{"behavior", "max_tokens"}, 999, true)

	if builtinData["behavior"].(map[string]any)["max_tokens"] != 100 {
		t.Error("source layer was mutated by Set")
	}
}

func TestProvenanceSoundness(t *testing.T) {
	builtin := layer("builtin", map[string]any{"behavior": map[string]any{"max_tokens": 100, "verbose": true}})
	user := layer("user", map[string]any{"behavior": map[string]any{"max_tokens": 200}})
	d := New(true, user, builtin)

	_, prov, ok := d.GetWithProvenance("behavior")
	if !ok {
		t.Fatal("behavior not found")
	}
	maxTokensProv, ok := prov["max_tokens"].(Provenance)
	if !ok || maxTokensProv["."] != 0 {
		t.Errorf("max_tokens provenance = %v, want layer 0 (user)", prov["max_tokens"])
	}
	verboseProv := prov["verbose"].(Provenance)
	if verboseProv["."] != 1 {
		t.Errorf("verbose provenance = %v, want layer 1 (builtin)", verboseProv["."])
	}
}

func TestProvenanceFrontLayerIsMinusOne(t *testing.T) {
	d := New(true, layer("builtin", map[string]any{"model": "gpt-5"}))
	d.Set([]string{"model"}, "gpt-6", false)
	_, prov, _ := d.GetWithProvenance("model")
	if prov["."] != -1 {
		t.Errorf("model provenance = %v, want -1 (front layer)", prov["."])
	}
}

func TestOwnListSnapshotsAndClearsOps(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{"tags": []any{"a"}}))
	d.RecordListOp([]string{"tags"}, Append{Value: "b"})
	if err := d.OwnList([]string{"tags"}); err != nil {
		t.Fatal(err)
	}
	v, _ := d.Get("tags")
	list := v.([]any)
	if len(list) != 2 || list[1] != "b" {
		t.Fatalf("tags after OwnList = %v, want [a b]", list)
	}
	// Further ops should start clean from the owned snapshot.
	d.RecordListOp([]string{"tags"}, Append{Value: "c"})
	v, _ = d.Get("tags")
	list = v.([]any)
	if len(list) != 3 || list[2] != "c" {
		t.Fatalf("tags after second append = %v, want [a b c]", list)
	}
}

func TestNonStringPathComponentsRejected(t *testing.T) {
	// Go's type system enforces this at compile time: Set/Delete take
	// []string, so a non-string path component is a compile error, not
	// a runtime one. This test documents that invariant instead of
	// exercising a runtime failure.
	d := New(false)
	if err := d.Set([]string{}, "x", false); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestYAMLDeleteAndReplaceTags(t *testing.T) {
	data := []byte(`
model: gpt-5
behavior:
  verbose: !delete
  tools: !replace
    - shell
`)
	m, err := LoadYAML(data)
	if err != nil {
		t.Fatal(err)
	}
	behavior := m["behavior"].(map[string]any)
	if _, ok := behavior["verbose"].(Delete); !ok {
		t.Errorf("verbose = %#v, want Delete{}", behavior["verbose"])
	}
	rep, ok := behavior["tools"].(Replace)
	if !ok {
		t.Fatalf("tools = %#v, want Replace{}", behavior["tools"])
	}
	list := rep.Value.([]any)
	if len(list) != 1 || list[0] != "shell" {
		t.Errorf("tools replace value = %v, want [shell]", list)
	}
}

func TestLoadYAMLWithLinesRecordsSourceLocation(t *testing.T) {
	data := []byte("model: gpt-5\nbehavior:\n  max_tokens: 100\n")
	_, lines, err := LoadYAMLWithLines(data)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, li := range lines {
		if len(li.Path) == 2 && li.Path[0] == "behavior" && li.Path[1] == "max_tokens" {
			found = true
			if li.Line != 3 {
				t.Errorf("max_tokens line = %d, want 3", li.Line)
			}
		}
	}
	if !found {
		t.Error("expected line info for behavior.max_tokens")
	}
}

func TestAddRemoveReorderLayers(t *testing.T) {
	d := New(false, layer("a", map[string]any{"x": 1}))
	d.AddLayer(layer("b", map[string]any{"x": 2}))
	v, _ := d.Get("x")
	if v != 2 {
		t.Fatalf("x = %v, want 2 (b added at highest priority)", v)
	}
	d.ReorderLayers([]string{"a", "b"})
	v, _ = d.Get("x")
	if v != 1 {
		t.Fatalf("x = %v, want 1 after reordering a above b", v)
	}
	d.RemoveLayer("a")
	v, _ = d.Get("x")
	if v != 2 {
		t.Fatalf("x = %v, want 2 after removing a", v)
	}
}

func TestYAMLRoundTripThroughToMap(t *testing.T) {
	src := []byte("model: gpt-5\nbehavior:\n  max_tokens: 100\n  tags:\n    - a\n    - b\n")
	m, err := LoadYAML(src)
	if err != nil {
		t.Fatal(err)
	}
	d := New(false, layer("only", m))
	out := d.ToMap()

	if out["model"] != "gpt-5" {
		t.Errorf("model = %v", out["model"])
	}
	behavior := out["behavior"].(map[string]any)
	if behavior["max_tokens"] != 100 {
		t.Errorf("max_tokens = %v", behavior["max_tokens"])
	}
	tags := behavior["tags"].([]any)
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tags = %v", tags)
	}
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	d := New(false, layer("builtin", map[string]any{
		"behavior": map[string]any{"max_tokens": 100, "tags": []any{"a"}},
	}))

	v, _ := d.Get("behavior")
	m := v.(map[string]any)
	m["max_tokens"] = 999
	m["tags"].([]any)[0] = "mutated"

	v2, _ := d.Get("behavior")
	m2 := v2.(map[string]any)
	if m2["max_tokens"] != 100 {
		t.Errorf("max_tokens = %v, want 100 (caller mutation must not stick)", m2["max_tokens"])
	}
	if m2["tags"].([]any)[0] != "a" {
		t.Errorf("tags[0] = %v, want a (caller mutation must not stick)", m2["tags"].([]any)[0])
	}
}
