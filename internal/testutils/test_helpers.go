package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// FixtureCatalogYAML is a small provider catalogue covering every built-in API type
// plus one tag with no registered adapter.
const FixtureCatalogYAML = `
OPENAI:
  - config_name: gpt-mini
    model_url: https://api.openai.com/v1
    model_name: gpt-4o-mini
    init_config_msg: You are terse.
    api_supported: [openai, requests]
    api_endpoints:
      openai: https://api.openai.com/v1
      requests: https://api.openai.com/v1/chat/completions
  - config_name: gpt-large
    model_url: https://api.openai.com/v1
    model_name: gpt-4o
    api_supported: [openai]
    api_endpoints:
      openai: https://api.openai.com/v1
ANTHROPIC:
  - config_name: claude
    model_url: https://api.anthropic.com
    model_name: claude-3-5-haiku-latest
    api_supported: [anthropic]
    api_endpoints:
      anthropic: https://api.anthropic.com
HUGGINGFACE:
  - config_name: zephyr
    model_url: https://api-inference.huggingface.co/models/HuggingFaceH4/zephyr-7b-beta
    model_name: HuggingFaceH4/zephyr-7b-beta
    api_supported: [requests, huggingface_hub]
    api_endpoints:
      requests: https://api-inference.huggingface.co/models/HuggingFaceH4/zephyr-7b-beta/v1/chat/completions
      huggingface_hub: https://api-inference.huggingface.co/models/HuggingFaceH4/zephyr-7b-beta
`

// WriteFile writes content to name inside a fresh temporary directory and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "write %s", name)
	return path
}

// WriteFiles writes several files into one temporary directory and returns the directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "write %s", name)
	}
	return dir
}
