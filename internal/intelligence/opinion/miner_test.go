package opinion

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/testutil"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeTagger labels feature rows by their qualified token id and echoes the
// rest of the row, as crf_test does.
type fakeTagger struct {
	labels map[Layer]map[string]string
	fail   map[Layer]error

	mu    sync.Mutex
	calls []Layer
	files map[Layer]string
}

func (f *fakeTagger) Tag(_ context.Context, layer Layer, featureFile string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, layer)

	data, err := os.ReadFile(featureFile)
	if err != nil {
		return nil, err
	}
	if f.files == nil {
		f.files = make(map[Layer]string)
	}
	f.files[layer] = string(data)

	if err := f.fail[layer]; err != nil {
		return nil, err
	}

	var out []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			out = append(out, "")
			continue
		}
		fields := strings.Split(line, "\t")
		label, ok := f.labels[layer][fields[0]]
		if !ok {
			label = OutsideLabel
		}
		fields[len(fields)-1] = label
		out = append(out, strings.Join(fields, "\t"))
	}
	return out, nil
}

type fakeStore struct {
	lines map[string][]string
	err   error
}

func (s *fakeStore) SaveEntityLines(_ context.Context, docID, layer string, lines []string) error {
	if s.err != nil {
		return s.err
	}
	if s.lines == nil {
		s.lines = make(map[string][]string)
	}
	s.lines[docID+"/"+layer] = lines
	return nil
}

type fakeMetrics struct {
	spans    map[string]int
	matches  map[string]int
	opinions int
	latency  map[string]int
	failures []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{spans: map[string]int{}, matches: map[string]int{}, latency: map[string]int{}}
}

func (m *fakeMetrics) ObserveSpans(layer string, n int)   { m.spans[layer] += n }
func (m *fakeMetrics) ObserveMatches(layer string, n int) { m.matches[layer] += n }
func (m *fakeMetrics) ObserveOpinions(n int)              { m.opinions += n }
func (m *fakeMetrics) ObserveTaggerLatency(layer string, _ time.Duration) {
	m.latency[layer]++
}
func (m *fakeMetrics) IncFailure(stage string) { m.failures = append(m.failures, stage) }

// reviewTagger detects "loved" and "awful" as expressions, "room" and "Food"
// as targets and "hotel staff" as a holder.
func reviewTagger() *fakeTagger {
	return &fakeTagger{labels: map[Layer]map[string]string{
		LayerExpression: {"stdin#w4": "B-DSE", "stdin#w9": "B-DSE"},
		LayerTarget:     {"stdin#w6": "B-TARGET", "stdin#w7": "B-TARGET"},
		LayerHolder:     {"stdin#w2": "B-HOLDER", "stdin#w3": "I-HOLDER"},
	}}
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestMiner_Mine(t *testing.T) {
	tagger := reviewTagger()
	logger := testutil.NewMockLogger()
	metrics := newFakeMetrics()
	store := &fakeStore{}
	cache := NewIndexCache()

	m := NewMiner(tagger, logger,
		WithMinerMetrics(metrics),
		WithEntityStore(store),
		WithIndexCache(cache),
		WithClock(func() time.Time { return fixedNow }),
		WithTempDir(t.TempDir()),
	)
	doc := newReviewDocument()

	res, err := m.Mine(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []Layer{LayerExpression, LayerTarget, LayerHolder}, tagger.calls)
	require.Len(t, res.Expressions, 2)
	assert.Equal(t, "exp#0", res.Expressions[0].ID)
	require.Len(t, res.Targets, 2)
	require.Len(t, res.Holders, 1)
	assert.Equal(t, []string{"w2", "w3"}, res.Holders[0].TokenIDs)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, res.Triples, 2)
	assert.Same(t, res.Targets[0], res.Triples[0].Target)
	assert.Same(t, res.Holders[0], res.Triples[0].Holder)
	assert.Same(t, res.Targets[1], res.Triples[1].Target)
	assert.Nil(t, res.Triples[1].Holder)
	assert.Equal(t, 1, res.Complete())

	assert.Equal(t, []string{"o1", "o2"}, res.OpinionIDs)
	ops := doc.Opinions()
	require.Len(t, ops, 2)
	assert.Equal(t, annotation.Span{"t4"}, ops[0].Expression.Span)
	assert.Equal(t, annotation.Span{"t6"}, ops[0].Target.Span)
	assert.Equal(t, annotation.Span{"t2", "t3"}, ops[0].Holder.Span)
	assert.Equal(t, "hotel staff", ops[0].Holder.Comment)
	assert.Equal(t, annotation.Span{"t9"}, ops[1].Expression.Span)
	assert.Equal(t, annotation.Span{"t7"}, ops[1].Target.Span)
	assert.Nil(t, ops[1].Holder)

	procs := doc.Processors[annotation.LayerOpinions]
	require.Len(t, procs, 1)
	assert.Equal(t, DefaultProcessorName, procs[0].Name)
	assert.Equal(t, fixedNow, procs[0].Timestamp)
	assert.Equal(t, res.RunID, procs[0].RunID)

	assert.Equal(t, []string{"DSE\tloved\tstdin#w4", "DSE\tawful\tstdin#w9"}, store.lines["stdin/expression"])
	assert.Equal(t, []string{"HOLDER\thotel staff\tstdin#w2 stdin#w3"}, store.lines["stdin/holder"])

	assert.Equal(t, 2, metrics.spans["expression"])
	assert.Equal(t, 2, metrics.spans["target"])
	assert.Equal(t, 1, metrics.spans["holder"])
	assert.Equal(t, 2, metrics.matches["target"])
	assert.Equal(t, 1, metrics.matches["holder"])
	assert.Equal(t, 2, metrics.opinions)
	assert.Equal(t, 1, metrics.latency["holder"])
	assert.Empty(t, metrics.failures)

	assert.Equal(t, 0, cache.Len(), "index is evicted after the document")
	assert.Equal(t, 5, logger.CountMessages("debug", "span detected"))
	summary, ok := logger.FindMessage("info", "opinions detected")
	require.True(t, ok)
	complete, _ := summary.Field("complete")
	assert.Equal(t, 1, complete)
}

func TestMiner_ContextFeaturesCarryDetectedExpressions(t *testing.T) {
	tagger := reviewTagger()
	_, err := NewMiner(tagger, nil, WithTempDir(t.TempDir())).Mine(context.Background(), newReviewDocument())
	require.NoError(t, err)

	target := tagger.files[LayerTarget]
	assert.Contains(t, target, "stdin#w4\tloved\tlove\tVBD\t0\t-\t-\tDSE\tO\n")
	assert.Contains(t, target, "stdin#w9\tawful\tawful\tJJ\t0\t-\t-\tDSE\tO\n")
	assert.Equal(t, target, tagger.files[LayerHolder])
}

func TestMiner_NoExpressions(t *testing.T) {
	tagger := &fakeTagger{}
	doc := newReviewDocument()

	res, err := NewMiner(tagger, nil, WithTempDir(t.TempDir())).Mine(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, []Layer{LayerExpression}, tagger.calls)
	assert.Empty(t, res.Triples)
	assert.Empty(t, doc.Opinions())
	assert.Len(t, doc.Processors[annotation.LayerOpinions], 1, "processor is registered even without opinions")
}

func TestMiner_KeepOpinions(t *testing.T) {
	doc := newReviewDocument()
	doc.AddOpinion(annotation.Opinion{ID: "o1", Expression: &annotation.Expression{Span: annotation.Span{"t1"}}})
	doc.AddProcessor(annotation.LayerOpinions, annotation.LinguisticProcessor{Name: "earlier"})

	res, err := NewMiner(reviewTagger(), nil, WithKeepOpinions(true), WithTempDir(t.TempDir())).
		Mine(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"o2", "o3"}, res.OpinionIDs)
	assert.Equal(t, []string{"o1", "o2", "o3"}, doc.OpinionIDs())
	assert.Len(t, doc.Processors[annotation.LayerOpinions], 2)
}

func TestMiner_ReplacesExistingOpinionsByDefault(t *testing.T) {
	doc := newReviewDocument()
	doc.AddOpinion(annotation.Opinion{ID: "o1"})
	doc.AddOpinion(annotation.Opinion{ID: "o7"})

	res, err := NewMiner(reviewTagger(), nil, WithTempDir(t.TempDir())).Mine(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o2"}, res.OpinionIDs)
	assert.Equal(t, []string{"o1", "o2"}, doc.OpinionIDs())
}

func TestMiner_TaggerFailureLeavesNoTriples(t *testing.T) {
	tagger := reviewTagger()
	tagger.fail = map[Layer]error{LayerHolder: errors.New(errors.ErrCodeTaggerFailed, "crf_test failed")}
	metrics := newFakeMetrics()
	cache := NewIndexCache()
	doc := newReviewDocument()

	res, err := NewMiner(tagger, nil, WithMinerMetrics(metrics), WithIndexCache(cache), WithTempDir(t.TempDir())).
		Mine(context.Background(), doc)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTaggerFailed))
	assert.Empty(t, doc.Opinions())
	assert.Equal(t, []string{StageTagger}, metrics.failures)
	assert.Equal(t, 0, cache.Len())
}

func TestMiner_MalformedTaggerOutput(t *testing.T) {
	m := NewMiner(taggerFunc(func(context.Context, Layer, string) ([]string, error) {
		return []string{"# x"}, nil
	}), nil, WithTempDir(t.TempDir()))

	_, err := m.Mine(context.Background(), newReviewDocument())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedTaggerOutput))
	assert.Contains(t, err.Error(), "layer=expression")
}

func TestMiner_StoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New(errors.ErrCodeCache, "redis down")}
	metrics := newFakeMetrics()

	_, err := NewMiner(reviewTagger(), nil, WithEntityStore(store), WithMinerMetrics(metrics), WithTempDir(t.TempDir())).
		Mine(context.Background(), newReviewDocument())
	assert.True(t, errors.IsCode(err, errors.ErrCodeCache))
	assert.Equal(t, []string{StageStore}, metrics.failures)
}

func TestMiner_Polarity(t *testing.T) {
	script := writeScript(t, t.TempDir(), "svm_classify",
		"awk '{ if ($0 ~ / 3:1/) print \"-2\"; else print \"1\" }' \"$3\" > \"$5\"\n")
	pc, err := LoadPolarityClassifier(PolarityOptions{
		Binary:      script,
		ModelFolder: writePolarityModel(t, testFeatureIndex),
	}, nil)
	require.NoError(t, err)
	doc := newReviewDocument()

	res, err := NewMiner(reviewTagger(), nil, WithPolarity(pc), WithTempDir(t.TempDir())).
		Mine(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"o1": PolarityPositive, "o2": PolarityNegative}, res.Polarities)
	assert.Equal(t, PolarityNegative, doc.Opinions()[1].Expression.Polarity)
}

func TestMiner_NilDocument(t *testing.T) {
	_, err := NewMiner(reviewTagger(), nil).Mine(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestMiner_TempFilesRemoved(t *testing.T) {
	tmp := t.TempDir()
	_, err := NewMiner(reviewTagger(), nil, WithTempDir(tmp)).Mine(context.Background(), newReviewDocument())
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// pausingMetrics blocks the first ObserveMatches call, which happens after
// the run's index is built and before it is evicted.
type pausingMetrics struct {
	MinerMetrics
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (p *pausingMetrics) ObserveMatches(string, int) {
	p.once.Do(func() {
		close(p.reached)
		<-p.release
	})
}

func TestMiner_ConcurrentDocumentsWithSameFilename(t *testing.T) {
	tagger := &fakeTagger{labels: map[Layer]map[string]string{
		LayerExpression: {"stdin#x1": "B-DSE", "stdin#w4": "B-DSE"},
		LayerTarget:     {"stdin#w6": "B-TARGET"},
	}}
	metrics := &pausingMetrics{
		MinerMetrics: NewNoopMinerMetrics(),
		reached:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	cache := NewIndexCache()
	m := NewMiner(tagger, nil, WithMinerMetrics(metrics), WithIndexCache(cache), WithTempDir(t.TempDir()))

	single := &annotation.Document{Filename: annotation.StdinFilename, TokenList: []annotation.Token{
		{ID: "x1", Text: "great", Sentence: "1"},
	}}
	done := make(chan error, 1)
	go func() {
		_, err := m.Mine(context.Background(), single)
		done <- err
	}()
	<-metrics.reached

	review := newReviewDocument()
	res, err := m.Mine(context.Background(), review)
	close(metrics.release)

	require.NoError(t, err)
	require.Len(t, res.Triples, 1)
	require.NotNil(t, res.Triples[0].Target)
	assert.Equal(t, []string{"w6"}, res.Triples[0].Target.TokenIDs)
	assert.Equal(t, annotation.Span{"t6"}, review.Opinions()[0].Target.Span)

	require.NoError(t, <-done)
	assert.Equal(t, 0, cache.Len())
}

type taggerFunc func(ctx context.Context, layer Layer, featureFile string) ([]string, error)

func (f taggerFunc) Tag(ctx context.Context, layer Layer, featureFile string) ([]string, error) {
	return f(ctx, layer, featureFile)
}
