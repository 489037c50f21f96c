package config

import (
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Sections are separated
// by a double underscore: CHOREMINDER_SCHEDULER__INTERVAL=30s.
const EnvPrefix = "CHOREMINDER_"

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// applyEnv overlays CHOREMINDER_* variables onto cfg.
func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return err
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	return k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"})
}
