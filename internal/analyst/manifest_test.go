package analyst_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedgeline/engine/internal/analyst"
	"github.com/hedgeline/engine/pkg/api"
)

const manifestYAML = `analysts:
  - key: Cathie Wood
    display_name: Cathie Wood
    order: 3
    script: |
      return { signal = "bullish", confidence = 80, reasoning = "growth" }
  - key: quant
    order: 12
    script: return { signal = "neutral", confidence = 50 }
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	m, err := analyst.LoadManifest(writeManifest(t, manifestYAML))
	require.NoError(t, err)
	require.Len(t, m.Analysts, 2)
	assert.Equal(t, "Cathie Wood", m.Analysts[0].Key)
	assert.Equal(t, 3, m.Analysts[0].Order)
	assert.Contains(t, m.Analysts[0].Script, `signal = "bullish"`)
	assert.Equal(t, "quant", m.Analysts[1].Key)
	assert.Empty(t, m.Analysts[1].DisplayName)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := analyst.LoadManifest(
		filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadManifestBadYAML(t *testing.T) {
	_, err := analyst.LoadManifest(writeManifest(t, "analysts: ["))
	require.Error(t, err)
}

func TestRegisterManifest(t *testing.T) {
	r := analyst.NewRegistry(&stubMarket{}, &stubChatter{})
	m, err := analyst.LoadManifest(writeManifest(t, manifestYAML))
	require.NoError(t, err)

	require.NoError(t, r.RegisterManifest(analyst.NewLuaEnv(), m))

	wood, ok := r.Lookup("cathie_wood")
	require.True(t, ok)
	assert.Equal(t, "Cathie Wood", wood.DisplayName)
	assert.Equal(t, 3, wood.Order)
	assert.NotNil(t, wood.Node)

	quant, ok := r.Lookup("quant")
	require.True(t, ok)
	assert.Equal(t, "quant", quant.DisplayName)

	assert.Equal(t, []api.AnalystKey{
		"cathie_wood", "warren_buffett", "quant",
	}, r.Keys())
}

func TestRegisterManifestMissingScript(t *testing.T) {
	r := analyst.NewRegistry(&stubMarket{}, &stubChatter{})
	err := r.RegisterManifest(analyst.NewLuaEnv(), &analyst.Manifest{
		Analysts: []*analyst.ManifestEntry{{Key: "empty"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, analyst.ErrManifestScriptMissing)
}

func TestRegisterManifestInvalidKey(t *testing.T) {
	r := analyst.NewRegistry(&stubMarket{}, &stubChatter{})
	err := r.RegisterManifest(analyst.NewLuaEnv(), &analyst.Manifest{
		Analysts: []*analyst.ManifestEntry{{
			Key:    "///",
			Script: `return { signal = "neutral" }`,
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, analyst.ErrManifestKeyMissing)
}

func TestRegisterManifestCompileError(t *testing.T) {
	r := analyst.NewRegistry(&stubMarket{}, &stubChatter{})
	err := r.RegisterManifest(analyst.NewLuaEnv(), &analyst.Manifest{
		Analysts: []*analyst.ManifestEntry{{
			Key:    "broken",
			Script: `return (`,
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, analyst.ErrLuaLoad)
}
