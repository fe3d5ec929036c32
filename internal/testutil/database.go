// Package testutil holds helpers shared by tests: environment-probed
// integration database configuration and throwaway TLS material.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"os"
	"testing"
	"time"

	"github.com/voicedesk/voicedesk/pkg/config"
)

// EnvDBConfig returns a database configuration from VOICEDESK_TEST_* (or
// DB_*) environment variables, or nil when no test database is configured.
// Integration tests skip when this returns nil.
func EnvDBConfig() *config.DBConfig {
	host := os.Getenv("VOICEDESK_TEST_HOST")
	if host == "" {
		host = os.Getenv("DB_HOST")
	}
	if host == "" {
		return nil
	}

	user := os.Getenv("VOICEDESK_TEST_USER")
	if user == "" {
		user = os.Getenv("DB_USER")
	}
	password := os.Getenv("VOICEDESK_TEST_PASSWORD")
	if password == "" {
		password = os.Getenv("DB_PASSWORD")
	}

	return &config.DBConfig{
		Host:     host,
		User:     user,
		Password: password,
		Insecure: true, // local test databases run without TLS
	}
}

// GenerateCert creates a short-lived self-signed server certificate with the
// given common name and SAN DNS names, valid for 127.0.0.1.
func GenerateCert(t *testing.T, commonName string, dnsNames []string) (tls.Certificate, *x509.Certificate) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		DNSNames:     dnsNames,
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, leaf
}

// StartTLSServer runs a TLS listener that completes handshakes and closes
// the connection, which is all a certificate fetch needs. Returns the
// host:port address. The listener stops on test cleanup.
func StartTLSServer(t *testing.T, cert tls.Certificate) string {
	t.Helper()

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		t.Fatalf("failed to start TLS listener: %v", err)
	}
	t.Cleanup(func() {
		_ = ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				if tc, ok := c.(*tls.Conn); ok {
					_ = tc.Handshake()
				}
				_ = c.Close()
			}(conn)
		}
	}()

	return ln.Addr().String()
}
