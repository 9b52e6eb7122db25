package frame

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var tests = []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: []byte{}},
		{name: "small", payload: []byte("hello")},
		{name: "binary", payload: []byte{0x00, 0xff, 0x10, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, test.payload))
			got, err := ReadFrame(bufio.NewReader(&buf), 4096)
			require.NoError(t, err)
			assert.Equal(t, test.payload, got)
		})
	}
}

func TestReadFrameRejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, make([]byte, 100)))
	_, err := ReadFrame(bufio.NewReader(&buf), 32)
	require.ErrorIs(t, err, ErrFraming)
}

func TestReadFrameRejectsTruncatedVarint(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x80, 0x80}) // continuation bits set, stream ends
	_, err := ReadFrame(bufio.NewReader(buf), 32)
	require.ErrorIs(t, err, ErrFraming)
}

func TestReadFrameRejectsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	truncated := buf.Bytes()[:buf.Len()-2]
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(truncated)), 32)
	require.ErrorIs(t, err, ErrFraming)
}

func TestAuthRoundTrip(t *testing.T) {
	a := Auth{Token: "super-secret-token"}
	decoded, err := DecodeAuth(EncodeAuth(a))
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestRegisterRoutesRoundTrip(t *testing.T) {
	routes := []RegisterRoute{
		{Name: "web", Type: RouteTCP},
		{Name: "dns", Type: RouteUDP},
	}
	decoded, err := DecodeRegisterRoutes(EncodeRegisterRoutes(routes))
	require.NoError(t, err)
	assert.Equal(t, routes, decoded)
}

func TestRegisterRoutesEmpty(t *testing.T) {
	decoded, err := DecodeRegisterRoutes(EncodeRegisterRoutes(nil))
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestRegisterRouteResRoundTrip(t *testing.T) {
	var tests = []RegisterRouteRes{
		OkRegisterRouteRes(),
		ErrRegisterRouteRes(ResultRepeated, "web", ""),
		ErrRegisterRouteRes(ResultRouteNotFound, "api", ""),
		ErrRegisterRouteRes(ResultOther, "web", "permission denied"),
	}
	for _, res := range tests {
		decoded, err := DecodeRegisterRouteRes(EncodeRegisterRouteRes(res))
		require.NoError(t, err)
		assert.Equal(t, res, decoded)
	}
}

func TestStreamStartRoundTrip(t *testing.T) {
	s := StreamStart{RouteName: "web"}
	decoded, err := DecodeStreamStart(EncodeStreamStart(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestDecodeRegisterRouteResRejectsUnknownKind(t *testing.T) {
	_, err := DecodeRegisterRouteRes([]byte{0xff})
	require.ErrorIs(t, err, ErrFraming)
}
