package hooks

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"godex/pkg/dcm"
)

// rawDefinition mirrors the on-disk shape of one entry under the top-level
// "hooks" config key, merged like every other settings layer (plugin
// contributions are just additional layers on the same DCM).
type rawDefinition struct {
	Name    string   `mapstructure:"name"`
	On      []string `mapstructure:"on"`
	Match   string   `mapstructure:"match"`
	Command []string `mapstructure:"command"`
}

// LoadDefinitions reads the top-level "hooks" key (a list of mappings) from
// d and decodes it into hook Definitions.
func LoadDefinitions(d *dcm.DCM) ([]Definition, error) {
	raw, ok := d.Get("hooks")
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("hooks: top-level \"hooks\" key must be a list")
	}

	defs := make([]Definition, 0, len(list))
	for i, item := range list {
		var rd rawDefinition
		if err := mapstructure.Decode(item, &rd); err != nil {
			return nil, fmt.Errorf("hooks: entry %d: %w", i, err)
		}
		events := make([]Event, 0, len(rd.On))
		for _, s := range rd.On {
			events = append(events, Event(s))
		}
		defs = append(defs, Definition{
			Name:    rd.Name,
			Events:  events,
			Match:   rd.Match,
			Command: rd.Command,
		})
	}
	return defs, nil
}
