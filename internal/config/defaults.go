package config

import (
	"os"
	"time"
)

// Default values.
const (
	DefaultCRFTestPath      = "crf_test"
	DefaultModelsRoot       = "models"
	DefaultLanguage         = "en"
	DefaultProcessorName    = "Opinion Miner Deluxe"
	DefaultProcessorVersion = "7jan2016_3.0"

	DefaultSVMClassifyPath    = "svm_classify"
	DefaultPolarityModelsRoot = "polarity_models"

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "opminer:"
	DefaultEntityTTL      = 24 * time.Hour
	DefaultLockTTL        = 5 * time.Minute

	DefaultMinIOEndpoint        = "localhost:9000"
	DefaultMinIOBucket          = "opinion-documents"
	DefaultMinIOInputPrefix     = "incoming/"
	DefaultMinIOAnnotatedPrefix = "annotated/"

	DefaultKafkaBroker         = "localhost:9092"
	DefaultKafkaGroupID        = "opinion-miner"
	DefaultKafkaSubmittedTopic = "opinion.document.submitted"
	DefaultKafkaAnnotatedTopic = "opinion.document.annotated"
	DefaultKafkaDeadLetter     = "opinion.document.dead_letter"
	DefaultKafkaMaxRetries     = 3
	DefaultKafkaRetryBackoff   = time.Second

	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultMetricsNamespace = "opminer"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 1
)

// ApplyDefaults fills every zero-value field in cfg.  Explicit values win.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Tagger ────────────────────────────────────────────────────────────────
	if cfg.Tagger.CRFTestPath == "" {
		cfg.Tagger.CRFTestPath = DefaultCRFTestPath
	}
	if cfg.Tagger.ModelsRoot == "" {
		cfg.Tagger.ModelsRoot = DefaultModelsRoot
	}
	if cfg.Tagger.Language == "" {
		cfg.Tagger.Language = DefaultLanguage
	}
	if cfg.Tagger.TempDir == "" {
		cfg.Tagger.TempDir = os.TempDir()
	}
	if cfg.Tagger.ProcessorName == "" {
		cfg.Tagger.ProcessorName = DefaultProcessorName
	}
	if cfg.Tagger.ProcessorVersion == "" {
		cfg.Tagger.ProcessorVersion = DefaultProcessorVersion
	}

	// ── Polarity ──────────────────────────────────────────────────────────────
	if cfg.Polarity.SVMClassifyPath == "" {
		cfg.Polarity.SVMClassifyPath = DefaultSVMClassifyPath
	}
	if cfg.Polarity.ModelsRoot == "" {
		cfg.Polarity.ModelsRoot = DefaultPolarityModelsRoot
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.EntityTTL == 0 {
		cfg.Redis.EntityTTL = DefaultEntityTTL
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = DefaultLockTTL
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.InputPrefix == "" {
		cfg.MinIO.InputPrefix = DefaultMinIOInputPrefix
	}
	if cfg.MinIO.AnnotatedPrefix == "" {
		cfg.MinIO.AnnotatedPrefix = DefaultMinIOAnnotatedPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.SubmittedTopic == "" {
		cfg.Kafka.SubmittedTopic = DefaultKafkaSubmittedTopic
	}
	if cfg.Kafka.AnnotatedTopic == "" {
		cfg.Kafka.AnnotatedTopic = DefaultKafkaAnnotatedTopic
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDeadLetter
	}
	if cfg.Kafka.MaxRetries == 0 {
		cfg.Kafka.MaxRetries = DefaultKafkaMaxRetries
	}
	if cfg.Kafka.RetryBackoff == 0 {
		cfg.Kafka.RetryBackoff = DefaultKafkaRetryBackoff
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 32 << 20
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
}
