package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// The registry holds every module compiled into the binary, keyed by ID.
// echomate uses these namespaces:
//
//	audio     normalizers (audio.native, audio.ffmpeg)
//	stt       transcribers
//	provider  chat completion
//	tts       synthesizers
//	memory    history persistence
//	gateway   inbound transport
var (
	modules   = make(map[string]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule records a module under its ID. Each module package calls
// it from init() and pkg/app pulls the packages in with blank imports.
// It panics on an empty ID, a nil constructor, or a duplicate ID.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("core: module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()
	if _, dup := modules[string(info.ID)]; dup {
		panic(fmt.Sprintf("core: module %s registered twice", info.ID))
	}
	modules[string(info.ID)] = info
}

// GetModule looks up a compiled module by ID.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[id]
	return info, ok
}

// GetModules lists every compiled module, sorted by ID.
func GetModules() []ModuleInfo {
	return collect(func(ModuleInfo) bool { return true })
}

// GetModulesByNamespace lists the compiled modules of one namespace, sorted
// by ID: "tts" yields tts.command and tts.openai_compatible.
func GetModulesByNamespace(namespace string) []ModuleInfo {
	return collect(func(info ModuleInfo) bool { return info.ID.Namespace() == namespace })
}

// Namespaces lists the namespaces that have at least one compiled module.
func Namespaces() []string {
	var out []string
	for _, info := range GetModules() {
		if ns := info.ID.Namespace(); ns != "" && !slices.Contains(out, ns) {
			out = append(out, ns)
		}
	}
	slices.Sort(out)
	return out
}

func collect(keep func(ModuleInfo) bool) []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	var result []ModuleInfo
	for _, info := range modules {
		if keep(info) {
			result = append(result, info)
		}
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[string]ModuleInfo)
}
