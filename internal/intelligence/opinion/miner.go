package opinion

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// EntityStore persists the entity lines of one document layer.
type EntityStore interface {
	SaveEntityLines(ctx context.Context, docID, layer string, lines []string) error
}

// MinerMetrics receives per-document pipeline measurements.
type MinerMetrics interface {
	ObserveSpans(layer string, n int)
	ObserveMatches(layer string, n int)
	ObserveOpinions(n int)
	ObserveTaggerLatency(layer string, d time.Duration)
	IncFailure(stage string)
}

type noopMinerMetrics struct{}

// NewNoopMinerMetrics returns metrics that discard every observation.
func NewNoopMinerMetrics() MinerMetrics { return noopMinerMetrics{} }

func (noopMinerMetrics) ObserveSpans(string, int)                   {}
func (noopMinerMetrics) ObserveMatches(string, int)                 {}
func (noopMinerMetrics) ObserveOpinions(int)                        {}
func (noopMinerMetrics) ObserveTaggerLatency(string, time.Duration) {}
func (noopMinerMetrics) IncFailure(string)                          {}

// Failure stages reported to MinerMetrics.
const (
	StageFeatures = "features"
	StageTagger   = "tagger"
	StageParse    = "parse"
	StageMatch    = "match"
	StagePolarity = "polarity"
	StageStore    = "store"
)

// Default linguistic processor identity.
const (
	DefaultProcessorName    = "Opinion Miner Deluxe"
	DefaultProcessorVersion = "7jan2016_3.0"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// MinerOption configures a Miner.
type MinerOption func(*Miner)

// WithLexicon enables the in_mpqa_lexicon feature column.
func WithLexicon(lx *Lexicon) MinerOption {
	return func(m *Miner) { m.features = NewFeatureExtractor(lx) }
}

// WithPolarity enables polarity classification of the new opinions.
func WithPolarity(pc *PolarityClassifier) MinerOption {
	return func(m *Miner) { m.polarity = pc }
}

// WithEntityStore persists the entity lines of every layer.
func WithEntityStore(s EntityStore) MinerOption {
	return func(m *Miner) { m.store = s }
}

// WithMinerMetrics injects a metrics collector.
func WithMinerMetrics(mm MinerMetrics) MinerOption {
	return func(m *Miner) {
		if mm != nil {
			m.metrics = mm
		}
	}
}

// WithIndexCache shares a positional index cache between miners.
func WithIndexCache(c *IndexCache) MinerOption {
	return func(m *Miner) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithKeepOpinions keeps the opinions already present in the document.
func WithKeepOpinions(keep bool) MinerOption {
	return func(m *Miner) { m.keepOpinions = keep }
}

// WithRemoveDuplicates drops repeated spans within one tagger output.
func WithRemoveDuplicates(remove bool) MinerOption {
	return func(m *Miner) { m.parseOpts.RemoveDuplicates = remove }
}

// WithTempDir sets the directory of the temporary feature files.
func WithTempDir(dir string) MinerOption {
	return func(m *Miner) { m.tempDir = dir }
}

// WithProcessor overrides the linguistic processor name and version.
func WithProcessor(name, version string) MinerOption {
	return func(m *Miner) {
		if name != "" {
			m.procName = name
		}
		if version != "" {
			m.procVersion = version
		}
	}
}

// WithClock replaces time.Now for processor timestamps.
func WithClock(now func() time.Time) MinerOption {
	return func(m *Miner) {
		if now != nil {
			m.now = now
		}
	}
}

// ---------------------------------------------------------------------------
// Miner
// ---------------------------------------------------------------------------

// Miner runs the opinion pipeline on one annotation document at a time.
// A Miner is safe for concurrent use when its Tagger is.
type Miner struct {
	tagger       Tagger
	features     *FeatureExtractor
	polarity     *PolarityClassifier
	store        EntityStore
	metrics      MinerMetrics
	cache        *IndexCache
	logger       logging.Logger
	now          func() time.Time
	parseOpts    ParseOptions
	keepOpinions bool
	tempDir      string
	procName     string
	procVersion  string
}

// NewMiner creates a Miner around tagger.
func NewMiner(tagger Tagger, logger logging.Logger, opts ...MinerOption) *Miner {
	m := &Miner{
		tagger:      tagger,
		features:    NewFeatureExtractor(nil),
		metrics:     NewNoopMinerMetrics(),
		cache:       NewIndexCache(),
		logger:      logging.OrNop(logger).Named("miner"),
		now:         time.Now,
		procName:    DefaultProcessorName,
		procVersion: DefaultProcessorVersion,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result summarises one Mine call.
type Result struct {
	RunID       string
	Expressions []*SpanEntity
	Targets     []*SpanEntity
	Holders     []*SpanEntity
	Triples     []Triple
	OpinionIDs  []string
	Polarities  map[string]string
}

// Complete returns the number of triples with both a target and a holder.
func (r *Result) Complete() int {
	n := 0
	for _, t := range r.Triples {
		if t.Target != nil && t.Holder != nil {
			n++
		}
	}
	return n
}

// Mine tags doc, attaches one opinion per detected expression and returns
// what it found.  doc is modified in place.
func (m *Miner) Mine(ctx context.Context, doc *annotation.Document) (*Result, error) {
	if doc == nil {
		return nil, errors.InvalidParam("nil document")
	}
	if doc.Filename == "" {
		doc.Filename = annotation.StdinFilename
	}
	docName := doc.Filename

	res := &Result{RunID: uuid.NewString()}
	defer m.cache.Evict(res.RunID)
	log := m.logger.With(logging.String("document", docName), logging.String("run_id", res.RunID))

	if !m.keepOpinions {
		doc.RemoveOpinions()
	}

	var err error
	res.Expressions, err = m.tagLayer(ctx, LayerExpression, docName, func(w io.Writer) error {
		return m.features.WriteExpressionFeatures(w, docName, doc)
	})
	if err != nil {
		return nil, err
	}

	if len(res.Expressions) > 0 {
		writeContext := func(w io.Writer) error {
			return m.features.WriteContextFeatures(w, docName, doc, res.Expressions)
		}
		if res.Targets, err = m.tagLayer(ctx, LayerTarget, docName, writeContext); err != nil {
			return nil, err
		}
		if res.Holders, err = m.tagLayer(ctx, LayerHolder, docName, writeContext); err != nil {
			return nil, err
		}
	}

	ix := m.cache.Get(res.RunID, docName, doc)
	targetPairs, err := Match(res.Expressions, res.Targets, doc, ix)
	if err != nil {
		m.metrics.IncFailure(StageMatch)
		return nil, err
	}
	holderPairs, err := Match(res.Expressions, res.Holders, doc, ix)
	if err != nil {
		m.metrics.IncFailure(StageMatch)
		return nil, err
	}
	m.metrics.ObserveMatches(string(LayerTarget), len(targetPairs))
	m.metrics.ObserveMatches(string(LayerHolder), len(holderPairs))

	res.Triples = Assemble(res.Expressions, targetPairs, holderPairs)
	res.OpinionIDs = Inject(res.Triples, doc, annotation.LinguisticProcessor{
		Name:      m.procName,
		Version:   m.procVersion,
		Timestamp: m.now().UTC(),
		RunID:     res.RunID,
	})
	m.metrics.ObserveOpinions(len(res.OpinionIDs))

	if m.polarity != nil && len(res.OpinionIDs) > 0 {
		if res.Polarities, err = m.polarity.Classify(ctx, doc); err != nil {
			m.metrics.IncFailure(StagePolarity)
			return nil, err
		}
	}

	if m.store != nil {
		if err := m.persist(ctx, docName, res); err != nil {
			m.metrics.IncFailure(StageStore)
			return nil, err
		}
	}

	log.Info("opinions detected",
		logging.Int("expressions", len(res.Expressions)),
		logging.Int("targets", len(res.Targets)),
		logging.Int("holders", len(res.Holders)),
		logging.Int("complete", res.Complete()),
		logging.Strings("opinion_ids", res.OpinionIDs),
	)
	return res, nil
}

// tagLayer writes a feature file, tags it and turns the output into entities.
func (m *Miner) tagLayer(ctx context.Context, layer Layer, docName string, write func(io.Writer) error) ([]*SpanEntity, error) {
	var lines []string
	err := withFeatureFile(m.tempDir, "opinion-"+string(layer)+"-*", func(w io.Writer) error {
		if err := write(w); err != nil {
			m.metrics.IncFailure(StageFeatures)
			return err
		}
		return nil
	}, func(path string) error {
		start := m.now()
		out, err := m.tagger.Tag(ctx, layer, path)
		m.metrics.ObserveTaggerLatency(string(layer), m.now().Sub(start))
		if err != nil {
			m.metrics.IncFailure(StageTagger)
			return err
		}
		lines = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	seqs, err := ParseSequences(lines, m.parseOpts)
	if err != nil {
		m.metrics.IncFailure(StageParse)
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to parse tagger output").WithDetailf("layer=%s", layer)
	}
	entities, err := EntitiesFromSequences(layer.IDPrefix(), layer.EntityType(), seqs)
	if err != nil {
		m.metrics.IncFailure(StageParse)
		return nil, err
	}
	m.metrics.ObserveSpans(string(layer), len(entities))

	for _, e := range entities {
		m.logger.Debug("span detected",
			logging.String("document", docName),
			logging.String("layer", string(layer)),
			logging.String("entity", e.String()),
		)
	}
	return entities, nil
}

func (m *Miner) persist(ctx context.Context, docName string, res *Result) error {
	layers := []struct {
		layer    Layer
		entities []*SpanEntity
	}{
		{LayerExpression, res.Expressions},
		{LayerTarget, res.Targets},
		{LayerHolder, res.Holders},
	}
	for _, l := range layers {
		lines := make([]string, 0, len(l.entities))
		for _, e := range l.entities {
			lines = append(lines, e.Line())
		}
		if err := m.store.SaveEntityLines(ctx, docName, string(l.layer), lines); err != nil {
			return err
		}
	}
	return nil
}
