package slonik

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Disable is the sentinel value for timeout options that accept either a
// duration or "switched off", per spec §6.
const Disable time.Duration = -1

// ConnectionOptions is the parsed form of a libpq-style connection URI,
// grounded on the teacher's Conn.ParseURI (conn.go) generalized to the
// fuller option set pgconn.ParseConfig exposes.
type ConnectionOptions struct {
	ApplicationName string
	DatabaseName    string
	Host            string
	Password        string
	Port            uint16
	SSLMode         SSLMode
	Username        string
}

type SSLMode string

const (
	SSLModeDisable  SSLMode = "disable"
	SSLModeNoVerify SSLMode = "no-verify"
	SSLModeRequire  SSLMode = "require"
)

// ParseConnectionURI parses a postgres:// DSN into ConnectionOptions.
func ParseConnectionURI(uri string) (ConnectionOptions, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return ConnectionOptions{}, fmt.Errorf("slonik: invalid connection URI: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return ConnectionOptions{}, fmt.Errorf("slonik: unsupported connection URI scheme %q", u.Scheme)
	}

	opts := ConnectionOptions{
		Host:         u.Hostname(),
		DatabaseName: strings.TrimPrefix(u.Path, "/"),
		SSLMode:      SSLModeDisable,
		Port:         5432,
	}

	if u.User != nil {
		opts.Username = u.User.Username()
		opts.Password, _ = u.User.Password()
	}

	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return ConnectionOptions{}, fmt.Errorf("slonik: invalid port %q: %w", p, err)
		}
		opts.Port = uint16(port)
	}

	q := u.Query()
	if v := q.Get("application_name"); v != "" {
		opts.ApplicationName = v
	}
	if v := q.Get("sslmode"); v != "" {
		switch SSLMode(v) {
		case SSLModeDisable, SSLModeNoVerify, SSLModeRequire:
			opts.SSLMode = SSLMode(v)
		default:
			return ConnectionOptions{}, fmt.Errorf("slonik: unsupported sslmode %q", v)
		}
	}

	return opts, nil
}

// ClientConfiguration is the complete enumerated option set from spec §6,
// with the documented defaults.
type ClientConfiguration struct {
	CaptureStackTrace               bool
	ConnectionRetryLimit            int
	ConnectionTimeout               time.Duration
	IdleInTransactionSessionTimeout time.Duration
	IdleTimeout                     time.Duration
	Interceptors                    []Interceptor
	MaximumPoolSize                 int
	QueryRetryLimit                 int
	StatementTimeout                time.Duration
	TransactionRetryLimit           int
	TypeParsers                     []TypeParser

	// SSL carries the optional client-side TLS configuration spec §6
	// names. The TLS handshake itself happens inside the driver (spec §1
	// draws it outside this module's scope), so SSL is never consumed
	// directly here -- it is carried on ClientConfiguration purely so a
	// caller constructing its own Driver has a single place to read the
	// pool's TLS settings from, the same way ConnectionOptions.SSLMode
	// carries the coarser libpq sslmode enum parsed out of a DSN.
	SSL *tls.Config

	// OnNotice, if set, is wired to every acquired connection's
	// Driver.OnNotice at acquisition time, the way the teacher's
	// pgconn.Config.OnNotice is wired once per physical connection.
	OnNotice func(Notice)

	// OnConnectionError, if set, is wired to every acquired connection's
	// Driver.OnError at acquisition time: asynchronous, connection-level
	// failures (not tied to any in-flight query) are reported here rather
	// than silently dropped.
	OnConnectionError func(error)
}

// DefaultClientConfiguration returns the documented defaults from spec §6.
func DefaultClientConfiguration() ClientConfiguration {
	return ClientConfiguration{
		CaptureStackTrace:               true,
		ConnectionRetryLimit:            3,
		ConnectionTimeout:               5000 * time.Millisecond,
		IdleInTransactionSessionTimeout: 60000 * time.Millisecond,
		IdleTimeout:                     5000 * time.Millisecond,
		MaximumPoolSize:                 10,
		QueryRetryLimit:                 5,
		StatementTimeout:                60000 * time.Millisecond,
		TransactionRetryLimit:           5,
	}
}
