package ncp

import "github.com/imdario/mergo"

// resolveConfig returns a copy of cfg with every zero-valued field filled
// in from DefaultConfig, mirroring rpcsessionfactory.go's
// "resolvedConfig := *cfg; mergo.Merge(&resolvedConfig, DefaultConfig)"
// idiom. A nil cfg resolves to a copy of DefaultConfig.
func resolveConfig(cfg *Config) *Config {
	var resolved Config
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, *DefaultConfig)
	return &resolved
}
