package protocol

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/relaytun/relaytun/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeSequenceOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAuth(&buf, "tok"))
	require.NoError(t, WriteRegisterRoutes(&buf, []frame.RegisterRoute{{Name: "web", Type: frame.RouteTCP}}))
	require.NoError(t, WriteResult(&buf, frame.OkRegisterRouteRes()))

	r := bufio.NewReader(&buf)
	auth, err := ReadAuth(r)
	require.NoError(t, err)
	assert.Equal(t, "tok", auth.Token)

	routes, err := ReadRegisterRoutes(r)
	require.NoError(t, err)
	assert.Equal(t, []frame.RegisterRoute{{Name: "web", Type: frame.RouteTCP}}, routes)

	res, err := ReadResult(r)
	require.NoError(t, err)
	assert.Equal(t, frame.OkRegisterRouteRes(), res)
}

func TestStreamStartRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStreamStart(&buf, "dns"))
	got, err := ReadStreamStart(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "dns", got.RouteName)
}
