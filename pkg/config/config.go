package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// DBConfig holds the database side of the bot's configuration. Everything is
// sourced from environment variables, with CLI flags taking precedence.
type DBConfig struct {
	// Host is the database endpoint in hostname:port form.
	Host     string
	User     string
	Password string

	// TLSServerName overrides the name used for certificate verification.
	TLSServerName string

	// InlineCACert is a PEM certificate supplied directly in the environment.
	InlineCACert string

	// CACertFile is an advisory on-disk cache for a fetched server certificate.
	CACertFile string

	// Insecure disables TLS entirely. Development/test only.
	Insecure bool

	// Verbose enables debug-level connection logging.
	Verbose bool

	// Schema qualifies table references in the tool layer.
	Schema string
}

// FromEnv builds a DBConfig from environment variables.
func FromEnv() *DBConfig {
	return &DBConfig{
		Host:          os.Getenv("DB_HOST"),
		User:          os.Getenv("DB_USER"),
		Password:      os.Getenv("DB_PASSWORD"),
		TLSServerName: os.Getenv("DB_TLS_SERVER_NAME"),
		InlineCACert:  os.Getenv("DB_CA_CERT"),
		CACertFile:    os.Getenv("DB_CA_CERT_FILE"),
		Insecure:      getBoolEnv("DB_INSECURE"),
		Verbose:       getBoolEnv("DB_VERBOSE"),
		Schema:        os.Getenv("DB_SCHEMA"),
	}
}

// FromFlags creates a DBConfig from CLI flags, falling back to environment
// variables for anything left unset.
func FromFlags(host, user, password string, insecure bool) *DBConfig {
	cfg := FromEnv()
	cfg.Host = getStringWithFallback(host, "DB_HOST", "")
	cfg.User = getStringWithFallback(user, "DB_USER", "")
	cfg.Password = getStringWithFallback(password, "DB_PASSWORD", "")
	if insecure {
		cfg.Insecure = true
	}
	return cfg
}

// Validate checks that the fields required to open a connection are present.
// A failure here means "not configured", which callers must keep distinct
// from "configured but unreachable".
func (c *DBConfig) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.User == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required database configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Hostname returns the host portion of Host, without the port.
func (c *DBConfig) Hostname() string {
	if host, _, err := net.SplitHostPort(c.Host); err == nil {
		return host
	}
	return c.Host
}

// Port returns the port portion of Host, defaulting to 5432.
func (c *DBConfig) Port() int {
	if _, portStr, err := net.SplitHostPort(c.Host); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port <= 65535 {
			return port
		}
	}
	return 5432
}

// Redacted returns a loggable description of the target without the password.
func (c *DBConfig) Redacted() string {
	mode := "secure"
	if c.Insecure {
		mode = "insecure"
	}
	return fmt.Sprintf("%s@%s (%s)", c.User, c.Host, mode)
}

// getStringWithFallback returns the flag value, or env var, or default
func getStringWithFallback(flag, envVar, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolEnv treats "1", "true", "yes" (any case) as true.
func getBoolEnv(envVar string) bool {
	switch strings.ToLower(os.Getenv(envVar)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
