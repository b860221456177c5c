package security

import (
	"os"
	"strings"
)

// sensitiveEnvPrefixes are stripped from the environment of engine
// subprocesses (ffmpeg, edge-tts). Those tools never need API keys.
var sensitiveEnvPrefixes = []string{
	"OPENAI_",
	"ECHOMATE_",
	"AZURE_SPEECH_",
	"DEEPSEEK_",
	"DASHSCOPE_",
	"GROQ_",
	"AWS_SECRET",
	"AWS_SESSION_TOKEN",
}

// sensitiveEnvExact are stripped by exact name only, so that for example
// DB_PORT survives while DB_PASSWORD does not.
var sensitiveEnvExact = map[string]struct{}{
	"AWS_SECRET_ACCESS_KEY": {},
	"DATABASE_URL":          {},
	"DB_PASSWORD":           {},
	"API_KEY":               {},
}

// SanitizedEnv returns os.Environ() without sensitive variables. Values of
// credentials held in store are masked wherever they still appear.
func SanitizedEnv(store *CredentialStore) []string {
	return sanitizeEnv(os.Environ(), store)
}

func sanitizeEnv(env []string, store *CredentialStore) []string {
	var secrets []string
	if store != nil {
		secrets = store.Values()
	}

	out := make([]string, 0, len(env))
	for _, entry := range env {
		key, _, ok := strings.Cut(entry, "=")
		if !ok || isSensitiveEnvVar(key) {
			continue
		}
		// Short values ("1", "yes") would cause false positives.
		for _, secret := range secrets {
			if len(secret) >= 8 && strings.Contains(entry, secret) {
				entry = strings.ReplaceAll(entry, secret, RedactPlaceholder)
			}
		}
		out = append(out, entry)
	}
	return out
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	if _, ok := sensitiveEnvExact[upper]; ok {
		return true
	}
	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}
