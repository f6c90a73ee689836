package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dropDatabas3/socialauth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectProvidersLocalEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  discord: {client_id: id, client_secret: secret}
  github: {client_id: id, client_secret: secret}
  google: {enabled: false}
`), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)

	reports, err := inspectProviders(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "discord", reports[0].ID)
	assert.True(t, reports[0].Ready)
	assert.Equal(t, "https://discord.com/oauth2/authorize", reports[0].AuthURL)
	assert.Equal(t, "github", reports[1].ID)
	assert.True(t, reports[1].Ready)

	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, "json", reports))
	var decoded []providerReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, reports, decoded)

	buf.Reset()
	require.NoError(t, printReports(&buf, "text", reports))
	assert.Contains(t, buf.String(), "discord")
	assert.Contains(t, buf.String(), "ready")
}

func TestPrintReportsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printReports(&buf, "text", nil))
	assert.Equal(t, "no providers enabled\n", buf.String())
}
