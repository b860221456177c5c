package core

import "strings"

// ModuleID is a dotted identifier such as "stt.openai_compatible".
// The first segment is the namespace, the last is the module name.
type ModuleID string

// Namespace returns everything before the first dot.
func (id ModuleID) Namespace() string {
	ns, _, ok := strings.Cut(string(id), ".")
	if !ok {
		return ""
	}
	return ns
}

// Name returns the last dot-separated segment.
func (id ModuleID) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ModuleInfo describes a registrable module.
type ModuleInfo struct {
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal contract every module satisfies.
type Module interface {
	ModuleInfo() ModuleInfo
}
