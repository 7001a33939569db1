// Package config provides configuration management for tubealbum.
//
// Settings are read from TOML (the default) or JSON, chosen by file
// extension. A missing file yields DefaultSettings. Paths starting with "~"
// are expanded and every loaded file is validated; invalid values surface as
// *pipeline.ConfigError.
//
//	settings, err := config.Load("~/.config/tubealbum/config.toml")
//	if err != nil {
//	    return err
//	}
//	opts := settings.ToPipelineOptions()
//
// Settings also convert to PathConfig, TagConfig and logging.Options for the
// packages that consume them.
package config
