package config

import (
	"github.com/aleister1102/webmirror/internal/logger"
)

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	ServerConfig  ServerConfig         `json:"server_config,omitempty" yaml:"server_config,omitempty"`
	FetcherConfig FetcherConfig        `json:"fetcher_config,omitempty" yaml:"fetcher_config,omitempty"`
	MirrorConfig  MirrorConfig         `json:"mirror_config,omitempty" yaml:"mirror_config,omitempty"`
	PolicyConfig  PolicyConfig         `json:"policy_config,omitempty" yaml:"policy_config,omitempty"`
	LogConfig     logger.FileLogConfig `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		ServerConfig:  NewDefaultServerConfig(),
		FetcherConfig: NewDefaultFetcherConfig(),
		MirrorConfig:  NewDefaultMirrorConfig(),
		PolicyConfig:  NewDefaultPolicyConfig(),
		LogConfig:     logger.NewDefaultFileLogConfig(),
	}
}

// ServerConfig holds the HTTP request surface settings
type ServerConfig struct {
	ListenAddress    string `json:"listen_address,omitempty" yaml:"listen_address,omitempty" validate:"required"`
	ReadTimeoutSecs  int    `json:"read_timeout_secs,omitempty" yaml:"read_timeout_secs,omitempty" validate:"gt=0"`
	WriteTimeoutSecs int    `json:"write_timeout_secs,omitempty" yaml:"write_timeout_secs,omitempty" validate:"gt=0"`
}

// NewDefaultServerConfig creates a ServerConfig with default values
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddress:   ":8080",
		ReadTimeoutSecs: 30,
		// Mirror jobs stream their archive in the response; give slow
		// upstreams room before the write deadline cuts the job off.
		WriteTimeoutSecs: 300,
	}
}

// MirrorConfig holds per-job pipeline settings
type MirrorConfig struct {
	// AssetWorkers bounds concurrent asset downloads within one job.
	// A value of 1 downloads assets sequentially.
	AssetWorkers int `json:"asset_workers,omitempty" yaml:"asset_workers,omitempty" validate:"gt=0"`
	// WorkDir is where per-job temporary bundle directories are created.
	// Empty means the system temp directory.
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty"`
	// MaxAssetSizeMB caps how large a single downloaded asset may be.
	MaxAssetSizeMB int `json:"max_asset_size_mb,omitempty" yaml:"max_asset_size_mb,omitempty" validate:"gt=0"`
}

// NewDefaultMirrorConfig creates a MirrorConfig with default values
func NewDefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		AssetWorkers:   4,
		MaxAssetSizeMB: 50,
	}
}
