// Package presets holds named configurations for common deployments.
package presets

import (
	"fmt"
	"maps"
	"slices"

	"github.com/meshsync/go-meshsync/config"
)

var presets = map[string]config.Config{}

func register(name string, preset config.Config) {
	if _, exist := presets[name]; exist {
		panic(fmt.Sprintf("preset with name %s already exists", name))
	}
	presets[name] = preset
}

// Options returns list of registered options.
func Options() []string {
	return slices.Sorted(maps.Keys(presets))
}

// Get return one of the presets.
func Get(name string) (config.Config, error) {
	if preset, exist := presets[name]; exist {
		preset.Transport.Peers = slices.Clone(preset.Transport.Peers)
		return preset, nil
	}
	return config.Config{}, fmt.Errorf("preset %s is not supported. select one of %+v", name, Options())
}
