package config

const (
	defaultRevision = "latest"
	defaultPrefix   = "clone3run"
	defaultSeccomp  = "allow"
	defaultPath     = "PATH=/usr/local/bin:/usr/bin:/bin"
)

// Default returns a profile with defaults applied
func Default() *Config {
	cfg := new(Config)
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values
func ApplyDefaults(cfg *Config) {
	if cfg.Revision == "" {
		cfg.Revision = defaultRevision
	}
	if cfg.PidFD == nil {
		t := true
		cfg.PidFD = &t
	}
	if cfg.Env == nil {
		cfg.Env = []string{defaultPath}
	}
	if cfg.Cgroup.Prefix == "" {
		cfg.Cgroup.Prefix = defaultPrefix
	}
	if cfg.Seccomp.Default == "" {
		cfg.Seccomp.Default = defaultSeccomp
	}
}
