// Package configuration defines the registry's on-disk configuration
// format, the ambient scaffolding every component reads its settings
// from (mirrors the teacher's configuration package, trimmed to the
// settings this implementation's scope actually uses: no storage driver
// selection, auth realm, or reporting backends, since those subsystems
// were not carried over from the teacher).
package configuration

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration is the root of the registry's YAML configuration file.
type Configuration struct {
	// Storage configures the filesystem-backed storage engine (C2-C4).
	Storage StorageConfiguration `yaml:"storage"`

	// HTTP configures the listening address and transport options.
	HTTP HTTPConfiguration `yaml:"http"`

	// Log configures the structured logger shared by every component.
	Log LogConfiguration `yaml:"log"`
}

// StorageConfiguration configures the local filesystem storage root.
type StorageConfiguration struct {
	// RootDirectory is the filesystem path blobs, manifests, and
	// in-progress uploads are persisted under (spec §6).
	RootDirectory string `yaml:"rootdirectory"`

	// UploadTTL is the idle timeout before an open upload session is
	// swept (spec §4.3); the zero value selects storage.DefaultUploadTTL.
	UploadTTL time.Duration `yaml:"uploadttl"`
}

// HTTPConfiguration configures the registry's HTTP listener.
type HTTPConfiguration struct {
	// Addr is the address (host:port) to listen on.
	Addr string `yaml:"addr"`

	// ReadOnly disables all mutating operations.
	ReadOnly bool `yaml:"readonly"`
}

// LogConfiguration configures the logrus-backed structured logger.
type LogConfiguration struct {
	// Level is one of logrus's parseable levels (debug, info, warn,
	// error); the empty string selects info.
	Level string `yaml:"level"`

	// Formatter selects "json" or "text"; the empty string selects
	// logrus's default text formatter.
	Formatter string `yaml:"formatter"`
}

// Parse decodes a Configuration from rd. storage.rootdirectory is
// required; an unset http.addr defaults to ":5000", and other unset fields
// keep their zero values.
func Parse(rd io.Reader) (*Configuration, error) {
	var config Configuration
	if err := yaml.NewDecoder(rd).Decode(&config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("configuration: parse: %w", err)
	}

	if config.Storage.RootDirectory == "" {
		return nil, fmt.Errorf("configuration: storage.rootdirectory is required")
	}
	if config.HTTP.Addr == "" {
		config.HTTP.Addr = ":5000"
	}

	return &config, nil
}
