package core

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"gopkg.in/yaml.v3"
)

// engineStub records the lifecycle hooks LoadModule drives. It implements
// Configurable, Provisioner and Validator.
type engineStub struct {
	id    ModuleID
	calls *[]string
	fail  string
	voice string
}

func (m *engineStub) ModuleInfo() ModuleInfo {
	proto := *m
	return ModuleInfo{
		ID: proto.id,
		New: func() Module {
			inst := proto
			return &inst
		},
	}
}

func (m *engineStub) record(step string) error {
	*m.calls = append(*m.calls, step)
	if m.fail == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (m *engineStub) Configure(node *yaml.Node) error {
	var cfg struct {
		Voice string `yaml:"voice"`
	}
	if err := node.Decode(&cfg); err != nil {
		return err
	}
	m.voice = cfg.Voice
	return m.record("configure")
}

func (m *engineStub) Provision(*AppContext) error { return m.record("provision") }
func (m *engineStub) Validate() error             { return m.record("validate") }

// bareStub only provisions; it ignores any config node.
type bareStub struct {
	id    ModuleID
	calls *[]string
}

func (m *bareStub) ModuleInfo() ModuleInfo {
	proto := *m
	return ModuleInfo{ID: proto.id, New: func() Module { inst := proto; return &inst }}
}

func (m *bareStub) Provision(*AppContext) error {
	*m.calls = append(*m.calls, "provision")
	return nil
}

func yamlNode(t *testing.T, src string) yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	return *doc.Content[0]
}

func TestAppContext_LoadModuleLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		fail      string
		config    string
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "with config",
			config:    "voice: en-GB-SoniaNeural",
			wantCalls: []string{"configure", "provision", "validate"},
		},
		{
			name:      "without config skips configure",
			wantCalls: []string{"provision", "validate"},
		},
		{
			name:      "configure error",
			config:    "voice: x",
			fail:      "configure",
			wantCalls: []string{"configure"},
			wantErr:   true,
		},
		{
			name:      "provision error",
			fail:      "provision",
			wantCalls: []string{"provision"},
			wantErr:   true,
		},
		{
			name:      "validate error",
			fail:      "validate",
			wantCalls: []string{"provision", "validate"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(resetRegistry)

			var calls []string
			RegisterModule(&engineStub{id: "tts.stub", calls: &calls, fail: tt.fail})

			ctx := NewAppContext(nil, "/data")
			if tt.config != "" {
				ctx = ctx.WithModuleConfigs(map[string]yaml.Node{"tts.stub": yamlNode(t, tt.config)})
			}

			mod, err := ctx.LoadModule("tts.stub")
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadModule error = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
			if tt.wantErr {
				return
			}
			if tt.config != "" && mod.(*engineStub).voice != "en-GB-SoniaNeural" {
				t.Errorf("voice = %q", mod.(*engineStub).voice)
			}
		})
	}
}

func TestAppContext_LoadModule_UnknownID(t *testing.T) {
	t.Cleanup(resetRegistry)

	if _, err := NewAppContext(nil, "/data").LoadModule("stt.missing"); err == nil {
		t.Fatal("expected error for unregistered module")
	}
}

func TestAppContext_LoadModule_ConfigIgnoredWhenNotConfigurable(t *testing.T) {
	t.Cleanup(resetRegistry)

	var calls []string
	RegisterModule(&bareStub{id: "audio.stub", calls: &calls})

	ctx := NewAppContext(nil, "/data").WithModuleConfigs(map[string]yaml.Node{
		"audio.stub": yamlNode(t, "sample_rate: 16000"),
	})
	if _, err := ctx.LoadModule("audio.stub"); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if !slices.Equal(calls, []string{"provision"}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestAppContext_ForModule(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	root := NewAppContext(logger, "/data").WithModuleConfigs(map[string]yaml.Node{
		"stt.openai_compatible": yamlNode(t, "model: whisper-1"),
	})
	child := root.ForModule("stt.openai_compatible")

	child.Logger.Info("transcribing")
	if !bytes.Contains(buf.Bytes(), []byte("module=stt.openai_compatible")) {
		t.Errorf("module attribute missing from log line: %s", buf.String())
	}
	if _, ok := child.moduleConfigs["stt.openai_compatible"]; !ok {
		t.Error("module scope lost the config nodes")
	}
	if child.DataDir != root.DataDir {
		t.Errorf("DataDir = %q, want %q", child.DataDir, root.DataDir)
	}
}

func TestAppContext_ServicesSharedWithModuleScope(t *testing.T) {
	ctx := NewAppContext(nil, "/data")
	child := ctx.ForModule("gateway.http")

	child.RegisterService("session.store", 42)

	got, ok := Service[int](ctx, "session.store")
	if !ok || got != 42 {
		t.Errorf("Service = %d, %v; want 42 visible from the root", got, ok)
	}
}

func TestService_WrongType(t *testing.T) {
	ctx := NewAppContext(nil, "/data")
	ctx.RegisterService("config.path", "/etc/echomate.yaml")

	if _, ok := Service[int](ctx, "config.path"); ok {
		t.Error("expected type mismatch to report false")
	}
	if _, ok := Service[string](ctx, "missing"); ok {
		t.Error("expected missing service to report false")
	}
}
