// Package tlsconfig builds the crypto/tls.Config used by both tunnel roles:
// the server presents a certificate chain and key, the client trusts a
// configured root set. Certificate/key files are PEM or DER, auto-detected
// by file extension.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LoadServerConfig builds a server-side tls.Config presenting certFile/
// keyFile as its certificate chain.
func LoadServerConfig(certFile, keyFile string, nextProtos []string) (*tls.Config, error) {
	cert, err := loadKeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading server certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   nextProtos,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// LoadClientConfig builds a client-side tls.Config trusting the root
// certificates in certFile. An empty certFile falls back to the system
// root pool.
func LoadClientConfig(certFile string, nextProtos []string) (*tls.Config, error) {
	cfg := &tls.Config{
		NextProtos: nextProtos,
		MinVersion: tls.VersionTLS13,
	}
	if certFile == "" {
		return cfg, nil
	}
	pool, err := loadCertPool(certFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading client root certificate")
	}
	cfg.RootCAs = pool
	return cfg, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	pool := x509.NewCertPool()
	if isDER(path) {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parsing DER certificate")
		}
		pool.AddCert(cert)
		return pool, nil
	}
	if !pool.AppendCertsFromPEM(raw) {
		return nil, errors.Errorf("no certificates found in PEM file %s", path)
	}
	return pool, nil
}

func loadKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	if isDER(certFile) || isDER(keyFile) {
		return loadDERKeyPair(certFile, keyFile)
	}
	return tls.LoadX509KeyPair(certFile, keyFile)
}

func loadDERKeyPair(certFile, keyFile string) (tls.Certificate, error) {
	certDER, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "reading %s", certFile)
	}
	keyDER, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, errors.Wrapf(err, "reading %s", keyFile)
	}
	key, err := x509.ParsePKCS8PrivateKey(keyDER)
	if err != nil {
		key, err = x509.ParsePKCS1PrivateKey(keyDER)
		if err != nil {
			return tls.Certificate{}, errors.Wrap(err, "parsing DER private key")
		}
	}
	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
	}, nil
}

// isDER reports whether path's extension indicates DER encoding rather than
// PEM. Only the .der extension (any case) selects DER; every other file,
// including .cer and .crt, is treated as PEM.
func isDER(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".der":
		return true
	default:
		return false
	}
}
