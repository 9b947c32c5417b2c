// Package mining runs the opinion miner over documents kept in object
// storage, driven by submitted-document events.
package mining

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/opinion-miner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// EventSource is the name stamped on published events.
const EventSource = "opinion-miner"

// Outcomes reported by Process.
const (
	OutcomeAnnotated = "annotated"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// ErrDocumentBusy is returned when another worker holds the document lock.
var ErrDocumentBusy = errors.New(errors.ErrCodeConflict, "document is being mined by another worker")

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// DocumentRepository loads and stores annotation documents by key.
type DocumentRepository interface {
	Load(ctx context.Context, key string) (*annotation.Document, error)
	Save(ctx context.Context, key string, doc *annotation.Document) error
	AnnotatedKey(key string) string
}

// DocumentMiner attaches opinions to a document in place.
type DocumentMiner interface {
	Mine(ctx context.Context, doc *annotation.Document) (*opinion.Result, error)
}

// EventSubscriber delivers submitted-document messages to a handler.
type EventSubscriber interface {
	Subscribe(topic string, handler kafka.MessageHandler)
	Start(ctx context.Context) error
	Close() error
}

// LockFactory hands out per-document locks.
type LockFactory interface {
	NewMutex(name string, opts ...redis.LockOption) redis.DistributedLock
}

// Metrics records per-document worker measurements.
type Metrics interface {
	ObserveDocument(outcome string, d time.Duration)
	WorkerStarted()
	WorkerFinished()
}

type noopMetrics struct{}

func (noopMetrics) ObserveDocument(string, time.Duration) {}
func (noopMetrics) WorkerStarted()                        {}
func (noopMetrics) WorkerFinished()                       {}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Config names the topics the service reads and writes.
type Config struct {
	SubmittedTopic string
	AnnotatedTopic string
}

// Dependencies groups the collaborators of Service.  Locks and Metrics are
// optional.
type Dependencies struct {
	Repository  DocumentRepository
	Miner       DocumentMiner
	Publisher   kafka.Publisher
	Subscribers []EventSubscriber
	Locks       LockFactory
	Metrics     Metrics
	Logger      logging.Logger
}

// Report describes the handling of one document.
type Report struct {
	Key          string
	AnnotatedKey string
	Outcome      string
	RunID        string
	OpinionIDs   []string
	Complete     int
	Duration     time.Duration
}

// Service mines stored documents one event at a time.
type Service struct {
	cfg     Config
	repo    DocumentRepository
	miner   DocumentMiner
	pub     kafka.Publisher
	subs    []EventSubscriber
	locks   LockFactory
	metrics Metrics
	logger  logging.Logger
	now     func() time.Time
}

// NewService validates deps and builds a Service.
func NewService(cfg Config, deps Dependencies) (*Service, error) {
	if deps.Repository == nil {
		return nil, errors.InvalidParam("document repository is required")
	}
	if deps.Miner == nil {
		return nil, errors.InvalidParam("miner is required")
	}
	if deps.Publisher == nil {
		return nil, errors.InvalidParam("event publisher is required")
	}
	if cfg.SubmittedTopic == "" || cfg.AnnotatedTopic == "" {
		return nil, errors.InvalidParam("submitted and annotated topics are required")
	}
	s := &Service{
		cfg:     cfg,
		repo:    deps.Repository,
		miner:   deps.Miner,
		pub:     deps.Publisher,
		subs:    deps.Subscribers,
		locks:   deps.Locks,
		metrics: deps.Metrics,
		logger:  logging.OrNop(deps.Logger).Named("mining"),
		now:     time.Now,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s, nil
}

// Submit publishes a submitted event for the document stored at key.
func (s *Service) Submit(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.InvalidParam("document key is required")
	}
	env, err := kafka.NewEventEnvelope(kafka.EventDocumentSubmitted, EventSource, kafka.DocumentSubmittedPayload{
		Key:         key,
		SubmittedAt: s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	msg, err := env.ToMessage(s.cfg.SubmittedTopic, key)
	if err != nil {
		return "", err
	}
	if err := s.pub.Publish(ctx, msg); err != nil {
		return "", err
	}
	s.logger.Info("document submitted", logging.String("key", key), logging.String("event_id", env.EventID))
	return env.EventID, nil
}

// Process loads the document at key, mines it, saves it under the annotated
// prefix and publishes an annotated event.  When another worker holds the
// document lock it returns ErrDocumentBusy without touching the document.
func (s *Service) Process(ctx context.Context, key string) (*Report, error) {
	start := s.now()
	rep := &Report{Key: key}

	s.metrics.WorkerStarted()
	defer s.metrics.WorkerFinished()

	if s.locks != nil {
		lock := s.locks.NewMutex("document:" + key)
		ok, err := lock.TryLock(ctx)
		if err != nil {
			return s.fail(rep, start, err)
		}
		if !ok {
			rep.Outcome = OutcomeSkipped
			rep.Duration = s.now().Sub(start)
			s.metrics.ObserveDocument(OutcomeSkipped, rep.Duration)
			s.logger.Warn("document locked, skipping", logging.String("key", key))
			return rep, ErrDocumentBusy.WithDetail(key)
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release document lock", logging.String("key", key), logging.Err(err))
			}
		}()
	}

	doc, err := s.repo.Load(ctx, key)
	if err != nil {
		return s.fail(rep, start, err)
	}
	res, err := s.miner.Mine(ctx, doc)
	if err != nil {
		return s.fail(rep, start, err)
	}
	rep.RunID = res.RunID
	rep.OpinionIDs = res.OpinionIDs
	rep.Complete = res.Complete()

	rep.AnnotatedKey = s.repo.AnnotatedKey(key)
	if err := s.repo.Save(ctx, rep.AnnotatedKey, doc); err != nil {
		return s.fail(rep, start, err)
	}
	if err := s.publishResult(ctx, kafka.EventDocumentAnnotated, rep, ""); err != nil {
		return s.fail(rep, start, err)
	}

	rep.Outcome = OutcomeAnnotated
	rep.Duration = s.now().Sub(start)
	s.metrics.ObserveDocument(OutcomeAnnotated, rep.Duration)
	s.logger.Info("document annotated",
		logging.String("key", key),
		logging.String("annotated_key", rep.AnnotatedKey),
		logging.Int("opinions", len(rep.OpinionIDs)),
		logging.Duration("duration", rep.Duration))
	return rep, nil
}

func (s *Service) fail(rep *Report, start time.Time, err error) (*Report, error) {
	rep.Outcome = OutcomeFailed
	rep.Duration = s.now().Sub(start)
	s.metrics.ObserveDocument(OutcomeFailed, rep.Duration)
	return rep, err
}

func (s *Service) publishResult(ctx context.Context, eventType string, rep *Report, errMsg string) error {
	env, err := kafka.NewEventEnvelope(eventType, EventSource, kafka.DocumentAnnotatedPayload{
		Key:          rep.Key,
		AnnotatedKey: rep.AnnotatedKey,
		RunID:        rep.RunID,
		OpinionIDs:   rep.OpinionIDs,
		Complete:     rep.Complete,
		Error:        errMsg,
		FinishedAt:   s.now().UTC(),
	})
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(s.cfg.AnnotatedTopic, rep.Key)
	if err != nil {
		return err
	}
	return s.pub.Publish(ctx, msg)
}

// HandleSubmitted is the consumer handler for submitted events.  Transient
// infrastructure failures are returned so the consumer retries them; any
// other failure is reported as a failed event and the message is settled.
func (s *Service) HandleSubmitted(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		s.logger.Error("dropping undecodable message", logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	if env.EventType != kafka.EventDocumentSubmitted {
		s.logger.Debug("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var payload kafka.DocumentSubmittedPayload
	if err := env.DecodePayload(&payload); err != nil || payload.Key == "" {
		s.logger.Error("dropping submitted event without a key", logging.String("event_id", env.EventID))
		return nil
	}

	rep, err := s.Process(ctx, payload.Key)
	switch {
	case err == nil:
		return nil
	case errors.IsCode(err, errors.ErrCodeConflict):
		return nil
	case isTransient(err):
		s.logger.Warn("transient failure mining document", logging.String("key", payload.Key), logging.Err(err))
		return err
	}

	s.logger.Error("failed to mine document", logging.String("key", payload.Key), logging.Err(err))
	if pubErr := s.publishResult(ctx, kafka.EventDocumentFailed, rep, err.Error()); pubErr != nil {
		s.logger.Error("failed to publish failure event", logging.String("key", payload.Key), logging.Err(pubErr))
	}
	return nil
}

func isTransient(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeStorage, errors.ErrCodeCache, errors.ErrCodeMessaging, errors.ErrCodeTimeout:
		return true
	}
	return false
}

// Run subscribes every subscriber to the submitted topic and blocks until
// ctx ends.  The subscribers are closed before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if len(s.subs) == 0 {
		return errors.InvalidParam("no event subscribers configured")
	}
	var started []EventSubscriber
	defer func() {
		var wg sync.WaitGroup
		for _, sub := range started {
			wg.Add(1)
			go func(sub EventSubscriber) {
				defer wg.Done()
				if err := sub.Close(); err != nil {
					s.logger.Warn("failed to close subscriber", logging.Err(err))
				}
			}(sub)
		}
		wg.Wait()
	}()

	for _, sub := range s.subs {
		sub.Subscribe(s.cfg.SubmittedTopic, s.HandleSubmitted)
		if err := sub.Start(ctx); err != nil {
			return errors.Wrap(err, errors.CodeUnknown, "failed to start subscriber")
		}
		started = append(started, sub)
	}
	s.logger.Info("mining service running",
		logging.String("topic", s.cfg.SubmittedTopic),
		logging.Int("subscribers", len(started)))

	<-ctx.Done()
	s.logger.Info("mining service stopping")
	return nil
}
