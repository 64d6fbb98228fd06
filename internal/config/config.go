// Package config handles scenery configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Faultbox/scenery/internal/culling"
	"github.com/Faultbox/scenery/internal/logger"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all scenery settings.
type Config struct {
	Assets   AssetsConfig   `yaml:"assets"`
	Import   ImportConfig   `yaml:"import"`
	Culling  CullingConfig  `yaml:"culling"`
	Textures TexturesConfig `yaml:"textures"`
	Inspect  InspectConfig  `yaml:"inspect"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AssetsConfig holds the source scene and its cache file names.
type AssetsConfig struct {
	Source       string `yaml:"source"`    // glTF or glb file
	CacheDir     string `yaml:"cache_dir"` // Relative cache file names resolve here
	MeshFile     string `yaml:"mesh_file"`
	SceneFile    string `yaml:"scene_file"`
	MaterialFile string `yaml:"material_file"`
}

// ImportConfig holds settings used when a source scene is converted.
type ImportConfig struct {
	GenerateLODs   bool     `yaml:"generate_lods"`
	MergeMaterials []string `yaml:"merge_materials"` // Nodes of these materials are merged into one
}

// CullingConfig holds frustum culling settings.
type CullingConfig struct {
	Mode   string `yaml:"mode"` // none, cpu or gpu
	Freeze bool   `yaml:"freeze"`
	LOD    uint32 `yaml:"lod"` // LOD level draw commands are built from
}

// TexturesConfig holds texture conversion and streaming settings.
type TexturesConfig struct {
	CacheDir           string `yaml:"cache_dir"`
	MaxSize            int    `yaml:"max_size"`
	Lazy               bool   `yaml:"lazy"`
	Workers            int    `yaml:"workers"`
	QueueSize          int    `yaml:"queue_size"` // loads waiting for a worker
	MaxUploadsPerFrame int    `yaml:"max_uploads_per_frame"`
}

// InspectConfig holds the inspector HTTP server settings.
type InspectConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // console or json
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			CacheDir:     ".cache",
			MeshFile:     "scene.meshes",
			SceneFile:    "scene.scene",
			MaterialFile: "scene.materials",
		},
		Import: ImportConfig{
			GenerateLODs: true,
		},
		Culling: CullingConfig{
			Mode: culling.ModeCPU.String(),
		},
		Textures: TexturesConfig{
			CacheDir:           filepath.Join(".cache", "textures"),
			MaxSize:            2048,
			Lazy:               true,
			Workers:            2,
			QueueSize:          64,
			MaxUploadsPerFrame: 1,
		},
		Inspect: InspectConfig{
			Addr: "127.0.0.1:8420",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Path resolves a cache file name against CacheDir.
func (a AssetsConfig) Path(name string) string {
	if a.CacheDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(a.CacheDir, name)
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, err := culling.ParseMode(c.Culling.Mode); err != nil {
		return fmt.Errorf("%w: culling.mode: %v", ErrInvalid, err)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %v", ErrInvalid, err)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalid, c.Logging.Format)
	}
	if c.Textures.MaxUploadsPerFrame < 1 {
		return fmt.Errorf("%w: textures.max_uploads_per_frame must be at least 1", ErrInvalid)
	}
	if c.Textures.Workers < 1 {
		return fmt.Errorf("%w: textures.workers must be at least 1", ErrInvalid)
	}
	if c.Textures.MaxSize < 1 {
		return fmt.Errorf("%w: textures.max_size must be at least 1", ErrInvalid)
	}
	if c.Textures.QueueSize < 0 {
		return fmt.Errorf("%w: textures.queue_size is negative", ErrInvalid)
	}
	return nil
}

// LoggerOptions converts the logging section for logger.Configure.
func (c *Config) LoggerOptions() logger.Options {
	opts := logger.Options{
		Level:   c.Logging.Level,
		Format:  c.Logging.Format,
		Console: true,
	}
	if c.Logging.LogFile != "" {
		opts.File = logger.FileConfig{
			Path:       c.Logging.LogFile,
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAgeDays,
			Compress:   c.Logging.Compress,
		}
	}
	return opts
}
