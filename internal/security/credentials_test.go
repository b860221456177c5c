package security

import (
	"slices"
	"testing"
)

func TestCredentialStore_SetGet(t *testing.T) {
	t.Parallel()

	s := NewCredentialStore()
	s.Set("provider.openai_compatible.api_key", "sk-live-123")
	s.Set("tts.openai_compatible.api_key", "")

	if v, ok := s.Get("provider.openai_compatible.api_key"); !ok || v != "sk-live-123" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	if _, ok := s.Get("tts.openai_compatible.api_key"); ok {
		t.Fatal("empty value should not be stored")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestCredentialStore_NamesSorted(t *testing.T) {
	t.Parallel()

	s := NewCredentialStore()
	s.Set("tts.key", "b")
	s.Set("stt.key", "a")
	s.Set("provider.key", "c")

	want := []string{"provider.key", "stt.key", "tts.key"}
	if got := s.Names(); !slices.Equal(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}

	values := s.Values()
	slices.Sort(values)
	if !slices.Equal(values, []string{"a", "b", "c"}) {
		t.Fatalf("Values() = %v", values)
	}
}
