package config

import (
	"net"
	"net/url"
	"strconv"
)

// DatabaseConfig holds the PostgreSQL settings of the reference backend.
type DatabaseConfig struct {
	URL      string `json:"url,omitempty" env:"DATABASE_URL"`
	Host     string `json:"host" env:"PGHOST"`
	Port     int    `json:"port" env:"PGPORT"`
	User     string `json:"user" env:"PGUSER"`
	Password string `json:"password,omitempty" env:"PGPASSWORD"`
	Name     string `json:"name" env:"PGDATABASE"`
	SSLMode  string `json:"ssl_mode" env:"PGSSLMODE"`

	SSH SSHConfig `json:"ssh"`
}

// SSHConfig holds SSH tunnel settings.
type SSHConfig struct {
	Enabled        bool   `json:"enabled" env:"SQLCHAT_SSH_ENABLED"`
	Host           string `json:"host,omitempty" env:"SQLCHAT_SSH_HOST"`
	Port           int    `json:"port,omitempty" env:"SQLCHAT_SSH_PORT"`
	User           string `json:"user,omitempty" env:"SQLCHAT_SSH_USER"`
	KeyPath        string `json:"key_path,omitempty" env:"SQLCHAT_SSH_KEY"`
	KeyPassphrase  string `json:"key_passphrase,omitempty" env:"SQLCHAT_SSH_KEY_PASSPHRASE"`
	KnownHostsPath string `json:"known_hosts,omitempty" env:"SQLCHAT_SSH_KNOWN_HOSTS"`
}

// DSN builds a pgx-compatible connection string. A non-empty URL wins over
// the individual fields. When an SSH tunnel is active, the caller
// overrides Host/Port with the local tunnel endpoint first.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Configured reports whether enough is set to attempt a connection.
func (c DatabaseConfig) Configured() bool {
	return c.URL != "" || c.Host != ""
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Port:    5432,
		User:    "postgres",
		Name:    "postgres",
		SSLMode: "disable",
		SSH:     SSHConfig{Port: 22},
	}
}
