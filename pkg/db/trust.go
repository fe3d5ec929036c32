package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const pemCertMarker = "-----BEGIN CERTIFICATE-----"

// TrustMaterial is the certificate used to validate the database endpoint.
// At least one of PEM or Raw is populated. Immutable after construction.
type TrustMaterial struct {
	PEM        []byte
	Raw        []byte
	CommonName string
	DNSNames   []string
}

// TrustProvider obtains trust material for a remote host. host is in
// hostname:port form; cachedPath and inlinePEM are optional.
type TrustProvider interface {
	ObtainTrust(ctx context.Context, host, cachedPath, inlinePEM string) (*TrustMaterial, error)
}

// LiveTrustProvider resolves trust material with inline → cached file → live
// fetch precedence. A live fetch performs an unverified TLS handshake against
// the database port and harvests the peer's leaf certificate.
type LiveTrustProvider struct {
	// FetchTimeout bounds the live certificate fetch.
	FetchTimeout time.Duration

	logger zerolog.Logger

	// fetch is replaceable in tests.
	fetch func(ctx context.Context, host string) (*x509.Certificate, error)
}

// NewTrustProvider creates a LiveTrustProvider with a 10s fetch timeout.
func NewTrustProvider(logger zerolog.Logger) *LiveTrustProvider {
	p := &LiveTrustProvider{
		FetchTimeout: 10 * time.Second,
		logger:       logger,
	}
	p.fetch = p.fetchPeerCertificate
	return p
}

// ObtainTrust resolves trust material for host. The inline certificate is
// checked first because it is the cheapest and most explicit override; the
// cached file is next; a live fetch is the fallback. A fetched certificate is
// persisted to cachedPath on a best-effort basis for future cold starts.
func (p *LiveTrustProvider) ObtainTrust(ctx context.Context, host, cachedPath, inlinePEM string) (*TrustMaterial, error) {
	if strings.Contains(inlinePEM, pemCertMarker) {
		p.logger.Debug().Msg("using inline CA certificate")
		return materialFromPEM([]byte(inlinePEM)), nil
	}

	if cachedPath != "" {
		if data, err := os.ReadFile(cachedPath); err == nil && strings.Contains(string(data), pemCertMarker) {
			p.logger.Debug().Str("path", cachedPath).Msg("using cached CA certificate")
			return materialFromPEM(data), nil
		}
	}

	cert, err := p.fetch(ctx, host)
	if err != nil {
		return nil, err
	}

	pemBytes := encodeCertificatePEM(cert.Raw)
	if cachedPath != "" {
		// Advisory write only. Concurrent cold-started processes may race on
		// this file; last writer wins and the content is identical.
		if err := os.WriteFile(cachedPath, pemBytes, 0o600); err != nil {
			p.logger.Warn().Err(err).Str("path", cachedPath).Msg("could not cache server certificate")
		} else {
			p.logger.Debug().Str("path", cachedPath).Msg("cached server certificate")
		}
	}

	return &TrustMaterial{
		PEM:        pemBytes,
		Raw:        cert.Raw,
		CommonName: cert.Subject.CommonName,
		DNSNames:   cert.DNSNames,
	}, nil
}

// fetchPeerCertificate connects to host and returns the leaf certificate the
// server presents. Verification is disabled for this probe: the certificate
// being fetched is the one we will verify against later.
func (p *LiveTrustProvider) fetchPeerCertificate(ctx context.Context, host string) (*x509.Certificate, error) {
	timeout := p.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // probe only, result is verified on connect
	}

	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching certificate from %s: %v", ErrCertificateUnavailable, host, err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Warn().Err(closeErr).Msg("failed to close certificate probe connection")
		}
	}()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("%w: %s presented no certificate", ErrCertificateUnavailable, host)
	}
	p.logger.Debug().Str("host", host).Str("subject", state.PeerCertificates[0].Subject.CommonName).
		Msg("fetched server certificate")
	return state.PeerCertificates[0], nil
}

// materialFromPEM wraps PEM text as TrustMaterial, deriving identity fields
// when the certificate parses. A certificate that fails to parse is still
// usable as a trust anchor blob, so parse failures are not errors here.
func materialFromPEM(pemBytes []byte) *TrustMaterial {
	tm := &TrustMaterial{PEM: pemBytes}
	if block, _ := pem.Decode(pemBytes); block != nil && block.Type == "CERTIFICATE" {
		tm.Raw = block.Bytes
		if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
			tm.CommonName = cert.Subject.CommonName
			tm.DNSNames = cert.DNSNames
		}
	}
	return tm
}

// encodeCertificatePEM renders raw DER bytes as a PEM certificate: 64-column
// base64 lines bounded by BEGIN/END CERTIFICATE markers, trailing newline.
func encodeCertificatePEM(raw []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: raw})
}
