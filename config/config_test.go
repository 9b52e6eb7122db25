package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadServerConfigPreservesRouteOrder(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
server:
  bind: 0.0.0.0:7000
  token: secret
  cert: server.pem
  privateKey: server-key.pem
  route:
    web:
      type: tcp
      bind: 0.0.0.0:8080
    dns:
      type: udp
      bind: 0.0.0.0:5300
      udpBuffer: 4096
`)
	root, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, root.Server)
	require.Len(t, root.Server.Routes, 2)
	assert.Equal(t, "web", root.Server.Routes[0].Name)
	assert.Equal(t, "dns", root.Server.Routes[1].Name)

	routes, err := root.Server.ServerRoutes()
	require.NoError(t, err)
	assert.Equal(t, 4096, routes[1].UDPBufferSize)
}

func TestLoadRejectsNeitherServerNorClient(t *testing.T) {
	path := writeConfig(t, `logLevel: info`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBothServerAndClient(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: 0.0.0.0:7000
  token: a
  cert: c
  privateKey: k
client:
  remote: 127.0.0.1:7000
  token: a
  cert: c
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadClientConfig(t *testing.T) {
	path := writeConfig(t, `
client:
  remote: example.com:7000
  token: secret
  cert: ca.pem
  maxRetry: 5
  route:
    web:
      type: tcp
      to: 127.0.0.1:9000
`)
	root, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, root.Client)
	routes, err := root.Client.ClientRoutes()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "127.0.0.1:9000", routes[0].To)
}

func TestServerRoutesRejectsInvalidRouteType(t *testing.T) {
	path := writeConfig(t, `
server:
  bind: 0.0.0.0:7000
  token: a
  cert: c
  privateKey: k
  route:
    web:
      type: sctp
      bind: 0.0.0.0:8080
`)
	root, err := Load(path)
	require.NoError(t, err)
	_, err = root.Server.ServerRoutes()
	require.Error(t, err)
}
