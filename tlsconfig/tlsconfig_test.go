package tlsconfig

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func generateSelfSigned(t *testing.T) (certDER, keyDER []byte) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyBytes := x509.MarshalPKCS1PrivateKey(key)
	return der, keyBytes
}

func writeFile(t *testing.T, dir, name string, data []byte, pemType string) string {
	path := filepath.Join(dir, name)
	if pemType != "" {
		data = pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: data})
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadServerConfigPEM(t *testing.T) {
	dir := t.TempDir()
	certDER, keyDER := generateSelfSigned(t)
	certPath := writeFile(t, dir, "cert.pem", certDER, "CERTIFICATE")
	keyPath := writeFile(t, dir, "key.pem", keyDER, "RSA PRIVATE KEY")

	cfg, err := LoadServerConfig(certPath, keyPath, []string{"relaytun"})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
}

func TestLoadServerConfigDER(t *testing.T) {
	dir := t.TempDir()
	certDER, keyDER := generateSelfSigned(t)
	certPath := writeFile(t, dir, "cert.der", certDER, "")
	keyPath := writeFile(t, dir, "key.der", keyDER, "")

	cfg, err := LoadServerConfig(certPath, keyPath, []string{"relaytun"})
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
}

func TestLoadClientConfigPEMRoot(t *testing.T) {
	dir := t.TempDir()
	certDER, _ := generateSelfSigned(t)
	certPath := writeFile(t, dir, "ca.pem", certDER, "CERTIFICATE")

	cfg, err := LoadClientConfig(certPath, []string{"relaytun"})
	require.NoError(t, err)
	require.NotNil(t, cfg.RootCAs)
}

func TestLoadClientConfigEmptyUsesSystemPool(t *testing.T) {
	cfg, err := LoadClientConfig("", []string{"relaytun"})
	require.NoError(t, err)
	require.Nil(t, cfg.RootCAs)
}
