// Package config defines the configuration structures of the opinion miner.
// No I/O lives here, only plain data types and validation.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// TaggerConfig controls the sequence-tagging pipeline.
type TaggerConfig struct {
	// CRFTestPath is the crf_test binary.
	CRFTestPath string `mapstructure:"crf_test_path"`

	// ModelFolder, when set, wins over Domain.  It must contain
	// model.expression, model.target and model.holder.
	ModelFolder string `mapstructure:"model_folder"`

	// Domain selects <models_root>/models_<domain>_<language>.
	Domain     string `mapstructure:"domain"`
	ModelsRoot string `mapstructure:"models_root"`

	// Language is used when the document does not declare one.
	Language string `mapstructure:"language"`

	// LexiconPath points at an MPQA subjectivity clue file.  Empty disables
	// the in_mpqa_lexicon feature.
	LexiconPath string `mapstructure:"lexicon_path"`

	KeepOpinions     bool   `mapstructure:"keep_opinions"`
	RemoveDuplicates bool   `mapstructure:"remove_duplicates"`
	TempDir          string `mapstructure:"temp_dir"`

	ProcessorName    string `mapstructure:"processor_name"`
	ProcessorVersion string `mapstructure:"processor_version"`
}

// ResolveModelFolder returns the folder holding the CRF models for language.
func (c TaggerConfig) ResolveModelFolder(language string) string {
	if c.ModelFolder != "" {
		return c.ModelFolder
	}
	if language == "" {
		language = c.Language
	}
	return filepath.Join(c.ModelsRoot, fmt.Sprintf("models_%s_%s", c.Domain, language))
}

// PolarityConfig controls the optional SVM polarity classifier.
type PolarityConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SVMClassifyPath string `mapstructure:"svm_classify_path"`

	// ModelsRoot holds one folder per language with model.bin and
	// index_features.txt.
	ModelsRoot string `mapstructure:"models_root"`

	// LexiconPath is an optional "lemma;pos;TYPE" lexicon used for
	// sentiment template features.
	LexiconPath string `mapstructure:"lexicon_path"`
}

// ModelFolder returns the polarity model folder for language.
func (c PolarityConfig) ModelFolder(language string) string {
	return filepath.Join(c.ModelsRoot, language)
}

// RedisConfig holds Redis connection parameters for the entity store.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EntityTTL    time.Duration `mapstructure:"entity_ttl"`
	LockTTL      time.Duration `mapstructure:"lock_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// MinIOConfig holds object-storage parameters for annotation documents.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	InputPrefix     string `mapstructure:"input_prefix"`
	AnnotatedPrefix string `mapstructure:"annotated_prefix"`
}

// KafkaConfig holds the work-queue parameters.
type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	SubmittedTopic string   `mapstructure:"submitted_topic"`
	AnnotatedTopic string   `mapstructure:"annotated_topic"`
	// DeadLetterTopic receives submitted events whose handling kept failing
	// after MaxRetries.
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	CommitInterval  time.Duration `mapstructure:"commit_interval"`
}

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig controls the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// WorkerConfig holds background-worker parameters.
type WorkerConfig struct {
	// Concurrency is the number of documents mined in parallel.  Each
	// document gets its own positional index.
	Concurrency int `mapstructure:"concurrency"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Tagger   TaggerConfig      `mapstructure:"tagger"`
	Polarity PolarityConfig    `mapstructure:"polarity"`
	Log      logging.LogConfig `mapstructure:"log"`
	Redis    RedisConfig       `mapstructure:"redis"`
	MinIO    MinIOConfig       `mapstructure:"minio"`
	Kafka    KafkaConfig       `mapstructure:"kafka"`
	Server   ServerConfig      `mapstructure:"server"`
	Metrics  MetricsConfig     `mapstructure:"metrics"`
	Worker   WorkerConfig      `mapstructure:"worker"`
}

// Validate checks the invariants that ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	if c.Tagger.CRFTestPath == "" {
		return fmt.Errorf("tagger.crf_test_path is required")
	}
	if c.Tagger.ModelFolder == "" && c.Tagger.Domain == "" {
		return fmt.Errorf("one of tagger.model_folder or tagger.domain is required")
	}
	if c.Tagger.ModelFolder != "" && c.Tagger.Domain != "" {
		return fmt.Errorf("tagger.model_folder and tagger.domain are mutually exclusive")
	}
	if c.Polarity.Enabled && c.Polarity.SVMClassifyPath == "" {
		return fmt.Errorf("polarity.svm_classify_path is required when polarity is enabled")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q must be debug, release or test", c.Server.Mode)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be >= 1")
	}
	if c.Kafka.SubmittedTopic == c.Kafka.AnnotatedTopic {
		return fmt.Errorf("kafka.submitted_topic and kafka.annotated_topic must differ")
	}
	return nil
}
