package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "OPMINER"

// bindableKeys lists the keys that may be supplied through the environment
// alone.  viper only resolves AutomaticEnv for keys it already knows about.
var bindableKeys = []string{
	"tagger.crf_test_path", "tagger.model_folder", "tagger.domain", "tagger.models_root",
	"tagger.language", "tagger.lexicon_path", "tagger.keep_opinions",
	"tagger.remove_duplicates", "tagger.temp_dir",
	"polarity.enabled", "polarity.svm_classify_path", "polarity.models_root", "polarity.lexicon_path",
	"log.level", "log.format",
	"redis.enabled", "redis.addr", "redis.password", "redis.db",
	"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.use_ssl",
	"kafka.brokers", "kafka.group_id", "kafka.submitted_topic", "kafka.annotated_topic",
	"server.port", "server.mode",
	"metrics.enabled",
	"worker.concurrency",
}

// newViper builds a viper instance with YAML config type, the OPMINER_ env
// prefix and a "." → "_" key replacer, so "tagger.domain" resolves to
// OPMINER_TAGGER_DOMAIN.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range bindableKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load reads the YAML file at configPath, merges OPMINER_* overrides, applies
// defaults and validates.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from OPMINER_* variables only.
//
//	OPMINER_<SECTION>_<FIELD>   e.g.  OPMINER_TAGGER_DOMAIN, OPMINER_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Watch re-parses configPath whenever it changes on disk and hands the new
// Config to onChange.  Invalid intermediate states are skipped.  Only the log
// level is meant to be hot-applied; the rest requires a restart.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)
	_ = v.ReadInConfig()

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}

// MustLoad is Load that panics on error.  main() only.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
