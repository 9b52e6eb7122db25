package quicstream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func generateTestTLSConfig(t *testing.T) *tls.Config {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	_ = keyPEM
	return &tls.Config{Certificates: []tls.Certificate{cert}, NextProtos: []string{"relaytun-test"}}
}

func TestStreamRoundTripAndClose(t *testing.T) {
	udpAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	udpConn, err := net.ListenUDP("udp", udpAddr)
	require.NoError(t, err)
	defer udpConn.Close()

	tr := &quic.Transport{Conn: udpConn}
	ln, err := tr.Listen(generateTestTLSConfig(t), &quic.Config{})
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan struct{})
	nop := zerolog.Nop()

	go func() {
		defer close(done)
		conn, err := ln.Accept(context.Background())
		require.NoError(t, err)
		qs, err := conn.AcceptStream(context.Background())
		require.NoError(t, err)
		s := New(qs, 5*time.Second, &nop)
		buf := make([]byte, 5)
		_, err = io.ReadFull(s, buf)
		require.NoError(t, err)
		require.Equal(t, "hello", string(buf))
		_, err = s.Write([]byte("world"))
		require.NoError(t, err)
		require.NoError(t, s.CloseWrite())
	}()

	clientTLS := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"relaytun-test"}}
	conn, err := quic.DialAddr(context.Background(), udpConn.LocalAddr().String(), clientTLS, &quic.Config{})
	require.NoError(t, err)
	qs, err := conn.OpenStreamSync(context.Background())
	require.NoError(t, err)
	clientStream := New(qs, 5*time.Second, &nop)

	_, err = clientStream.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = io.ReadFull(clientStream, buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf))

	require.NoError(t, clientStream.Close())
	<-done
}
