package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifiedai/internal/catalog"
	"unifiedai/pkg/aitypes"
)

const resolverCatalog = `
OPEN-ROUTER:
  - config_name: fast
    model_name: m0
    api_supported: [requests]
    api_endpoints: {requests: https://x}
  - config_name: slow
    model_name: m1
    api_supported: [requests]
    api_endpoints: {requests: https://y}
`

func fakeEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Parse([]byte(resolverCatalog))
	require.NoError(t, err)
	return cat
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestEnvVarName(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", EnvVarName("openai"))
	assert.Equal(t, "OPEN_ROUTER_API_KEY", EnvVarName("open-router"))
	assert.Equal(t, "HUGGING_FACE_API_KEY", EnvVarName("Hugging Face"))
}

func TestResolve_Precedence(t *testing.T) {
	dotenvPath := writeFile(t, ".env", "OPEN_ROUTER_API_KEY=from-dotenv\n")
	store := NewSecretStore()
	store.Set("OPEN-ROUTER", 0, "from-store")
	store.SetByName("slow", "from-name")

	tests := []struct {
		name       string
		env        map[string]string
		dotenv     bool
		index      int
		wantSecret string
		wantSource aitypes.CredentialSource
	}{
		{"env wins", map[string]string{"OPEN_ROUTER_API_KEY": "from-env"}, true, 0, "from-env", aitypes.SourceEnvironment},
		{"dotenv next", nil, true, 0, "from-dotenv", aitypes.SourceDotEnv},
		{"store by index", nil, false, 0, "from-store", aitypes.SourceSecretStore},
		{"store by config name", nil, false, 1, "from-name", aitypes.SourceSecretStoreName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithLookupEnv(fakeEnv(tt.env)), WithSecretStore(store)}
			if tt.dotenv {
				opts = append(opts, WithDotEnvFiles(dotenvPath))
			}
			r := NewResolver(testCatalog(t), opts...)

			cred, err := r.Resolve("OPEN-ROUTER", tt.index)
			require.NoError(t, err)
			assert.Equal(t, aitypes.CredentialFound, cred.State)
			assert.Equal(t, tt.wantSecret, cred.Secret)
			assert.Equal(t, tt.wantSource, cred.Source)
			assert.True(t, cred.Usable())
		})
	}
}

func TestResolve_EmptyIsDistinctFromMissing(t *testing.T) {
	r := NewResolver(testCatalog(t), WithLookupEnv(fakeEnv(map[string]string{"OPEN_ROUTER_API_KEY": "  "})))
	cred, err := r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, aitypes.CredentialEmpty, cred.State)
	assert.Equal(t, aitypes.SourceEnvironment, cred.Source)
	assert.False(t, cred.Usable())

	r = NewResolver(testCatalog(t), WithLookupEnv(fakeEnv(nil)))
	cred, err = r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, aitypes.CredentialNotFound, cred.State)
	assert.Equal(t, aitypes.SourceNone, cred.Source)
}

func TestResolve_CachesFoundOnly(t *testing.T) {
	env := map[string]string{}
	r := NewResolver(testCatalog(t), WithLookupEnv(fakeEnv(env)))

	cred, err := r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, aitypes.CredentialNotFound, cred.State)

	env["OPEN_ROUTER_API_KEY"] = "late-key"
	cred, err = r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "late-key", cred.Secret, "misses are not cached")

	env["OPEN_ROUTER_API_KEY"] = "rotated"
	cred, err = r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "late-key", cred.Secret, "hits are cached")

	r.Invalidate()
	cred, err = r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "rotated", cred.Secret)
}

func TestResolve_SetCatalogRebindsConfigNames(t *testing.T) {
	store := NewSecretStore()
	store.SetByName("fast", "key-fast")
	store.SetByName("turbo", "key-turbo")
	store.SetByName("other-cfg", "key-other")
	r := NewResolver(testCatalog(t), WithLookupEnv(fakeEnv(nil)), WithSecretStore(store))

	cred, err := r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "key-fast", cred.Secret)

	reloaded, err := catalog.Parse([]byte(`
OPEN-ROUTER:
  - config_name: turbo
    model_name: m2
    api_supported: [requests]
    api_endpoints: {requests: https://z}
OTHER:
  - config_name: other-cfg
    model_name: o1
    api_supported: [requests]
    api_endpoints: {requests: https://o}
`))
	require.NoError(t, err)
	r.SetCatalog(reloaded)

	cred, err = r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "key-turbo", cred.Secret, "index 0 now names a different configuration")
	assert.Equal(t, "turbo", cred.SourceKey)

	cred, err = r.Resolve("OTHER", 0)
	require.NoError(t, err)
	assert.Equal(t, aitypes.CredentialFound, cred.State)
	assert.Equal(t, aitypes.SourceSecretStoreName, cred.Source)
	assert.Equal(t, "key-other", cred.Secret)
}

func TestResolve_DotEnvLaterFileWins(t *testing.T) {
	first := writeFile(t, "a.env", "OPEN_ROUTER_API_KEY=first\n")
	second := writeFile(t, "b.env", "OPEN_ROUTER_API_KEY=second\n")
	missing := filepath.Join(t.TempDir(), "none.env")

	r := NewResolver(nil, WithLookupEnv(fakeEnv(nil)), WithDotEnvFiles(first, missing, second))
	cred, err := r.Resolve("OPEN-ROUTER", 0)
	require.NoError(t, err)
	assert.Equal(t, "second", cred.Secret)
}

func TestSecretStore_Parse(t *testing.T) {
	data := `
OPENAI:
  "0": {secret_api_key: sk-zero}
  "2": {secret_api_key: ""}
gpt-4o: sk-flat
`
	store, err := ParseSecretStore([]byte(data))
	require.NoError(t, err)

	v, ok := store.Lookup("OPENAI", 0)
	assert.True(t, ok)
	assert.Equal(t, "sk-zero", v)

	v, ok = store.Lookup("OPENAI", 2)
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = store.Lookup("OPENAI", 1)
	assert.False(t, ok)

	v, ok = store.LookupByName("gpt-4o")
	assert.True(t, ok)
	assert.Equal(t, "sk-flat", v)

	_, err = ParseSecretStore([]byte("OPENAI:\n  first: {secret_api_key: x}\n"))
	assert.Error(t, err)
}

func TestLoadSecretStore_MissingFileIsEmpty(t *testing.T) {
	store, err := LoadSecretStore(filepath.Join(t.TempDir(), "secrets.yaml"))
	require.NoError(t, err)
	_, ok := store.Lookup("OPENAI", 0)
	assert.False(t, ok)

	path := writeFile(t, "secrets.json", `{"OPENAI": {"0": {"secret_api_key": "sk-json"}}}`)
	store, err = LoadSecretStore(path)
	require.NoError(t, err)
	v, _ := store.Lookup("OPENAI", 0)
	assert.Equal(t, "sk-json", v)
}
