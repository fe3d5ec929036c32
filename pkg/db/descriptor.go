package db

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/voicedesk/voicedesk/pkg/config"
)

// ServerDescriptor holds immutable connection parameters. Built once by the
// Manager and cached until invalidation.
type ServerDescriptor struct {
	// Host is the endpoint in hostname:port form.
	Host     string
	User     string
	Password string

	// TrustAnchor is nil when VerifyPeer is false.
	TrustAnchor *TrustMaterial

	// VerifyPeer controls TLS certificate verification.
	VerifyPeer bool

	// TLSServerName overrides the name used for certificate matching.
	// Empty when the configured hostname already matches the certificate.
	TLSServerName string
}

// BuildDescriptor turns configuration plus trust material into a descriptor.
// It is a pure function of its inputs; caching is the Manager's job.
//
// Insecure mode deliberately performs zero certificate I/O so local
// development never touches the network for trust resolution.
func BuildDescriptor(ctx context.Context, cfg *config.DBConfig, trust TrustProvider) (*ServerDescriptor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
	}

	desc := &ServerDescriptor{
		Host:     cfg.Host,
		User:     cfg.User,
		Password: cfg.Password,
	}

	if cfg.Insecure {
		return desc, nil
	}

	tm, err := trust.ObtainTrust(ctx, cfg.Host, cfg.CACertFile, cfg.InlineCACert)
	if err != nil {
		return nil, err
	}

	desc.VerifyPeer = true
	desc.TrustAnchor = tm
	desc.TLSServerName = deriveServerName(cfg.Host, cfg.TLSServerName, tm)
	return desc, nil
}

// deriveServerName picks the TLS server name in priority order: explicit
// override, first DNS name in the certificate's SANs, subject common name.
// The override is applied only when needed: when the host is an IP literal
// (no hostname to match against) or when the resolved name does not
// prefix-match the configured host string.
func deriveServerName(host, override string, tm *TrustMaterial) string {
	name := override
	if name == "" && len(tm.DNSNames) > 0 {
		name = tm.DNSNames[0]
	}
	if name == "" {
		name = tm.CommonName
	}
	if name == "" {
		return ""
	}

	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	if net.ParseIP(hostname) != nil {
		return name
	}
	if !strings.HasPrefix(host, name) {
		return name
	}
	return ""
}
