package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regression.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token = "opr_test"
	cfg.WorkspaceID = "ws-1"
	cfg.ProjectID = "proj-1"
	cfg.ServerPath = "/usr/local/bin/openpr-mcp"
	cfg.Samples.LabelID = "lbl-1"
	cfg.Samples.SecondLabelID = "lbl-2"
	return cfg
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	t.Setenv("REG_TOKEN", "opr_secret")
	path := writeConfig(t, `
base_url: http://mcp.internal:9000
token: ${REG_TOKEN}
workspace_id: ws-42
project_id: proj-42
samples:
  label_id: lbl-a
  second_label_id: lbl-b
timeouts:
  message: 20s
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://mcp.internal:9000", cfg.BaseURL)
	assert.Equal(t, "opr_secret", cfg.Token)
	assert.Equal(t, 20*time.Second, cfg.Timeouts.Message)

	// untouched fields keep their defaults
	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Call)
	assert.Equal(t, []string{"http", "stdio", "sse"}, cfg.Transports)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	_, err = LoadFile(writeConfig(t, "base_url: [not, a, string"))
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OPENPR_BOT_TOKEN", "opr_from_env")
	t.Setenv("OPENPR_WORKSPACE_ID", "ws-env")
	t.Setenv("OPENPR_MCP_URL", "")

	cfg := validConfig()
	cfg.ApplyEnv()

	assert.Equal(t, "opr_from_env", cfg.Token)
	assert.Equal(t, "ws-env", cfg.WorkspaceID)
	// empty env vars never clobber existing values
	assert.Equal(t, "http://localhost:8090", cfg.BaseURL)
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	missingToken := validConfig()
	missingToken.Token = ""
	assert.ErrorContains(t, missingToken.Validate(), "Token")

	badTransport := validConfig()
	badTransport.Transports = []string{"http", "carrier-pigeon"}
	assert.Error(t, badTransport.Validate())

	sameLabels := validConfig()
	sameLabels.Samples.SecondLabelID = sameLabels.Samples.LabelID
	assert.Error(t, sameLabels.Validate())

	noServer := validConfig()
	noServer.ServerPath = ""
	assert.ErrorContains(t, noServer.Validate(), "server_path")
}
