package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/eisenwinter/mdqd/validation"
)

// ServerConfiguration contains the server settings
type ServerConfiguration struct {
	Port    int
	Address string
	// CompressionLevel is the gzip level used for metadata responses, 0 disables compression
	CompressionLevel int `mapstructure:"compression-level"`
}

// DatabaseConfiguration contains the settings required to read metadata from a database
type DatabaseConfiguration struct {
	Type  string
	DSN   string `json:"-"`
	Table string
}

// MetadataConfiguration configures where client metadata comes from and how often it is reloaded
type MetadataConfiguration struct {
	// Source is a path, a file:// or a http(s):// url of a JSON or YAML document
	Source          string
	RefreshInterval time.Duration          `mapstructure:"refresh-interval"`
	LoadTimeout     time.Duration          `mapstructure:"load-timeout"`
	Database        *DatabaseConfiguration `mapstructure:"database"`
}

// SigningKeyConfiguration is a single local signing key, either a key file (PEM or JWK) or a HMAC secret
type SigningKeyConfiguration struct {
	File   string
	Secret string `json:"-"`
	Alg    string
	Kid    string
}

// SigningConfiguration habours the settings of the signer used for application/jwt responses
type SigningConfiguration struct {
	// Type is one of none, local or remote
	Type          string
	Keys          []SigningKeyConfiguration `mapstructure:"keys"`
	RemoteURL     string                    `mapstructure:"remote-url"`
	RemoteKid     string                    `mapstructure:"remote-kid"`
	RemoteTimeout time.Duration             `mapstructure:"remote-timeout"`
	// Algorithms overrides the algorithms announced by the signer
	Algorithms []string `mapstructure:"algorithms"`
}

// MDQConfiguration configures the metadata query protocol endpoint
type MDQConfiguration struct {
	AcceptTypes []string `mapstructure:"accept-types"`
}

// MetricsConfiguration toggles the prometheus endpoint
type MetricsConfiguration struct {
	Enable bool
}

// Configuration habours the entire mdqd configuration
type Configuration struct {
	Server   *ServerConfiguration   `mapstructure:"server"`
	Metadata *MetadataConfiguration `mapstructure:"metadata"`
	Signing  *SigningConfiguration  `mapstructure:"signing"`
	MDQ      *MDQConfiguration      `mapstructure:"mdq"`
	Metrics  *MetricsConfiguration  `mapstructure:"metrics"`
}

// Validate does some basic validation of the config file and tries to be helpful on missconfiguration
func (c *Configuration) Validate() error {
	if c.Server == nil {
		return errors.New("no server configuration found")
	}
	if c.Metadata == nil {
		return errors.New("no metadata configuration found")
	}
	if c.Metadata.Database != nil && c.Metadata.Database.Type != "" {
		switch c.Metadata.Database.Type {
		case "sqlite", "mysql", "pg":
		default:
			return fmt.Errorf("unknown metadata.database.type %q, possible values: sqlite, mysql, pg", c.Metadata.Database.Type)
		}
		if c.Metadata.Database.DSN == "" {
			return errors.New("metadata.database.dsn is required when reading metadata from a database")
		}
	} else if c.Metadata.Source == "" {
		return errors.New("either metadata.source or metadata.database needs to be defined")
	}
	if c.Metadata.RefreshInterval <= 0 {
		return errors.New("metadata.refresh-interval needs to be a positive duration")
	}
	if c.MDQ == nil || len(c.MDQ.AcceptTypes) == 0 {
		return errors.New("mdq.accept-types needs at least one media type")
	}
	for _, t := range c.MDQ.AcceptTypes {
		switch strings.ToLower(t) {
		case validation.MediaTypeJSON, validation.MediaTypeJWT:
		default:
			return fmt.Errorf("unsupported mdq.accept-types entry %q, possible values: %s, %s", t, validation.MediaTypeJSON, validation.MediaTypeJWT)
		}
	}
	if c.Signing != nil {
		switch c.Signing.Type {
		case "", "none":
		case "local":
			if len(c.Signing.Keys) == 0 {
				return errors.New("when using signing.type local you need to define at least one signing.keys entry")
			}
		case "remote":
			if c.Signing.RemoteURL == "" || c.Signing.RemoteKid == "" {
				return errors.New("when using signing.type remote you need to define signing.remote-url and signing.remote-kid")
			}
			if c.Signing.RemoteTimeout <= 0 {
				return errors.New("signing.remote-timeout needs to be a positive duration")
			}
		default:
			return fmt.Errorf("invalid signing.type %q, possible values: none, local, remote", c.Signing.Type)
		}
	}
	return nil
}

// SigningEnabled is true if signed responses can be served
func (c *Configuration) SigningEnabled() bool {
	return c.Signing != nil && (c.Signing.Type == "local" || c.Signing.Type == "remote")
}

// MetricsEnabled is true if the prometheus endpoint should be mounted
func (c *Configuration) MetricsEnabled() bool {
	return c.Metrics != nil && c.Metrics.Enable
}

// DebugMode returns true if the MDQ_DEBUG_MODE variable is set
func (*Configuration) DebugMode() bool {
	if r := os.Getenv("MDQ_DEBUG_MODE"); r == "true" {
		return true
	}
	return false
}
