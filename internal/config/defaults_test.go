package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaults_FillsEverySection(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultCRFTestPath, cfg.Tagger.CRFTestPath)
	assert.Equal(t, DefaultModelsRoot, cfg.Tagger.ModelsRoot)
	assert.Equal(t, DefaultLanguage, cfg.Tagger.Language)
	assert.Equal(t, DefaultProcessorName, cfg.Tagger.ProcessorName)
	assert.Equal(t, DefaultProcessorVersion, cfg.Tagger.ProcessorVersion)

	assert.Equal(t, DefaultSVMClassifyPath, cfg.Polarity.SVMClassifyPath)
	assert.Equal(t, DefaultPolarityModelsRoot, cfg.Polarity.ModelsRoot)
	assert.False(t, cfg.Polarity.Enabled)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultLogFormat, cfg.Log.Format)

	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultEntityTTL, cfg.Redis.EntityTTL)
	assert.Equal(t, DefaultLockTTL, cfg.Redis.LockTTL)

	assert.Equal(t, DefaultMinIOBucket, cfg.MinIO.Bucket)
	assert.Equal(t, DefaultMinIOInputPrefix, cfg.MinIO.InputPrefix)
	assert.Equal(t, DefaultMinIOAnnotatedPrefix, cfg.MinIO.AnnotatedPrefix)

	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultKafkaDeadLetter, cfg.Kafka.DeadLetterTopic)
	assert.Equal(t, DefaultKafkaMaxRetries, cfg.Kafka.MaxRetries)
	assert.Equal(t, time.Second, cfg.Kafka.RetryBackoff)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxBodySize)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Worker.Concurrency)
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	a := &Config{}
	ApplyDefaults(a)
	b := *a
	ApplyDefaults(&b)
	assert.Equal(t, *a, b)
}

func TestResolveModelFolder(t *testing.T) {
	c := TaggerConfig{ModelsRoot: "models", Domain: "hotel", Language: "en"}
	assert.Equal(t, "models/models_hotel_en", c.ResolveModelFolder(""))
	assert.Equal(t, "models/models_hotel_nl", c.ResolveModelFolder("nl"))

	c.ModelFolder = "/opt/m"
	assert.Equal(t, "/opt/m", c.ResolveModelFolder("nl"))
}

func TestPolarityModelFolder(t *testing.T) {
	c := PolarityConfig{ModelsRoot: "polarity_models"}
	assert.Equal(t, "polarity_models/en", c.ModelFolder("en"))
}
