package config

import (
	"cmp"
	"slices"
	"strings"
)

// namespaceRank orders module namespaces for loading. Engines load before
// storage, and anything unlisted (the gateway, extensions) loads last.
var namespaceRank = map[string]int{
	"audio":    0,
	"stt":      1,
	"provider": 2,
	"tts":      3,
	"memory":   4,
}

// Resolve returns the configured module IDs in a deterministic load order:
// grouped by namespace rank, then sorted by ID.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(loadRank(a), loadRank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func loadRank(id string) int {
	ns, _, _ := strings.Cut(id, ".")
	if r, ok := namespaceRank[ns]; ok {
		return r
	}
	return len(namespaceRank)
}
