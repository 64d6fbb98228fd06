package config

import "flag"

// Flags are the command-line overrides shared by every scenetool command.
// Only flags given on the command line override file values.
type Flags struct {
	fs *flag.FlagSet

	Config    *string
	Debug     *bool
	Source    *string
	CacheDir  *string
	CullMode  *string
	Freeze    *bool
	LOD       *uint
	Lazy      *bool
	Workers   *int
	MaxUpload *int
	Addr      *string
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:        fs,
		Config:    fs.String("config", "", "Path to config file"),
		Debug:     fs.Bool("debug", false, "Enable debug logging"),
		Source:    fs.String("source", "", "Source glTF/glb scene"),
		CacheDir:  fs.String("cache", "", "Cache directory"),
		CullMode:  fs.String("cull", "", "Culling mode: none, cpu or gpu"),
		Freeze:    fs.Bool("freeze", false, "Freeze the culling view"),
		LOD:       fs.Uint("lod", 0, "LOD level to draw"),
		Lazy:      fs.Bool("lazy", true, "Stream textures in the background"),
		Workers:   fs.Int("workers", 0, "Texture worker count"),
		MaxUpload: fs.Int("max-uploads", 0, "Texture uploads per frame"),
		Addr:      fs.String("addr", "", "Inspector listen address"),
	}
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return *f.Config
}

// apply copies the flags that were set on the command line into cfg.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "debug":
			if *f.Debug {
				cfg.Logging.Level = "debug"
			}
		case "source":
			cfg.Assets.Source = *f.Source
		case "cache":
			cfg.Assets.CacheDir = *f.CacheDir
		case "cull":
			cfg.Culling.Mode = *f.CullMode
		case "freeze":
			cfg.Culling.Freeze = *f.Freeze
		case "lod":
			cfg.Culling.LOD = uint32(*f.LOD)
		case "lazy":
			cfg.Textures.Lazy = *f.Lazy
		case "workers":
			cfg.Textures.Workers = *f.Workers
		case "max-uploads":
			cfg.Textures.MaxUploadsPerFrame = *f.MaxUpload
		case "addr":
			cfg.Inspect.Addr = *f.Addr
		}
	})
}
