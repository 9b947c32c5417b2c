package opinion

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// Polarity model folder layout.
const (
	PolarityModelFile = "model.bin"
	PolarityIndexFile = "index_features.txt"

	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// PolaritySource is the part of an annotation document the classifier reads
// and writes.
type PolaritySource interface {
	Token(id string) (annotation.Token, bool)
	Term(id string) (annotation.Term, bool)
	Opinions() []annotation.Opinion
	SetExpressionPolarity(id, polarity string) bool
}

// Feature is one string feature of an opinion expression.
type Feature struct {
	Kind  string
	Value string
}

func (f Feature) key() string { return f.Kind + "###" + f.Value }

// PolarityClassifier assigns positive or negative polarity to every opinion
// expression with an external SVM-light classifier.
type PolarityClassifier struct {
	binary       string
	modelFolder  string
	tempDir      string
	index        map[string]int
	typeForLemma map[string]string
	logger       logging.Logger
}

// PolarityOptions configures LoadPolarityClassifier.
type PolarityOptions struct {
	Binary      string
	ModelFolder string
	TempDir     string
	// LexiconPath is an optional "lemma;pos;TYPE" file enabling sentiment
	// template features.
	LexiconPath string
}

// LoadPolarityClassifier reads the feature index of the model folder.
func LoadPolarityClassifier(opts PolarityOptions, logger logging.Logger) (*PolarityClassifier, error) {
	indexPath := filepath.Join(opts.ModelFolder, PolarityIndexFile)
	f, err := os.Open(indexPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelNotFound, "missing polarity feature index").WithDetail(indexPath)
	}
	defer f.Close()

	index, err := readFeatureIndex(f)
	if err != nil {
		return nil, err
	}

	pc := &PolarityClassifier{
		binary:      opts.Binary,
		modelFolder: opts.ModelFolder,
		tempDir:     opts.TempDir,
		index:       index,
		logger:      logging.OrNop(logger).Named("polarity"),
	}
	if opts.LexiconPath != "" {
		lf, err := os.Open(opts.LexiconPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLexiconParse, "failed to open polarity lexicon").WithDetail(opts.LexiconPath)
		}
		defer lf.Close()
		if pc.typeForLemma, err = readTypeLexicon(lf); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

// readFeatureIndex parses "feature<TAB>index" lines.
func readFeatureIndex(r io.Reader) (map[string]int, error) {
	index := make(map[string]int)
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		p := strings.LastIndex(line, "\t")
		if p < 0 {
			return nil, errors.New(errors.ErrCodeModelNotFound, "malformed feature index line").WithDetailf("line %d", n)
		}
		i, err := strconv.Atoi(line[p+1:])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelNotFound, "malformed feature index").WithDetailf("line %d", n)
		}
		index[line[:p]] = i
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelNotFound, "failed to read feature index")
	}
	return index, nil
}

// readTypeLexicon parses "lemma;pos;TYPE" lines.
func readTypeLexicon(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Split(strings.TrimSpace(sc.Text()), ";")
		if len(fields) < 3 {
			continue
		}
		out[fields[0]] = fields[2]
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLexiconParse, "failed to read polarity lexicon")
	}
	return out, nil
}

// ExtractFeatures builds token bag-of-words, lemma bag-of-words, lemma
// bigrams and trigrams, and sentiment templates when a lexicon is loaded.
func (pc *PolarityClassifier) ExtractFeatures(doc PolaritySource, termIDs []string) []Feature {
	var features []Feature
	var lemmas []string
	for _, tid := range termIDs {
		term, ok := doc.Term(tid)
		if !ok {
			continue
		}
		var words []string
		for _, tokID := range term.Span {
			if tok, ok := doc.Token(tokID); ok {
				words = append(words, tok.Text)
			}
		}
		features = append(features, Feature{Kind: "tokenBOW", Value: strings.Join(words, "_")})
		lemmas = append(lemmas, term.Lemma)
	}
	for _, l := range lemmas {
		features = append(features, Feature{Kind: "termBOW", Value: l})
	}
	for i := 0; i+1 < len(lemmas); i++ {
		features = append(features, Feature{Kind: "BIG", Value: lemmas[i] + "_" + lemmas[i+1]})
	}
	for i := 0; i+2 < len(lemmas); i++ {
		features = append(features, Feature{Kind: "TRIG", Value: lemmas[i] + "_" + lemmas[i+1] + "_" + lemmas[i+2]})
	}
	return append(features, pc.templateFeatures(lemmas)...)
}

func (pc *PolarityClassifier) templateFeatures(lemmas []string) []Feature {
	if pc.typeForLemma == nil {
		return nil
	}
	template := make([]string, len(lemmas))
	found := false
	for i, l := range lemmas {
		if t, ok := pc.typeForLemma[l]; ok {
			template[i] = t
			found = true
		} else {
			template[i] = "X"
		}
	}
	if !found {
		return nil
	}
	sentiment := func(s string) bool {
		return strings.Contains(s, "POSITIVE") || strings.Contains(s, "NEGATIVE")
	}
	var out []Feature
	for i := 0; i+1 < len(template); i++ {
		if big := template[i] + "_" + template[i+1]; sentiment(big) {
			out = append(out, Feature{Kind: "BIG_SENT", Value: big})
		}
	}
	for i := 0; i+2 < len(template); i++ {
		if trig := template[i] + "_" + template[i+1] + "_" + template[i+2]; sentiment(trig) {
			out = append(out, Feature{Kind: "TRIG_SENT", Value: trig})
		}
	}
	return out
}

// Encode maps features to sorted model indices.  Unknown features are
// dropped.
func (pc *PolarityClassifier) Encode(features []Feature) []int {
	set := make(map[int]struct{}, len(features))
	for _, f := range features {
		if i, ok := pc.index[f.key()]; ok {
			set[i] = struct{}{}
		}
	}
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// DecideClass maps an SVM decision value to a polarity.
func DecideClass(v float64) string {
	if v >= 0 {
		return PolarityPositive
	}
	return PolarityNegative
}

// Classify overwrites the expression polarity of every opinion in doc and
// returns the assigned polarity per opinion id.
func (pc *PolarityClassifier) Classify(ctx context.Context, doc PolaritySource) (map[string]string, error) {
	var ids []string
	var examples bytes.Buffer
	for _, op := range doc.Opinions() {
		if op.Expression == nil {
			continue
		}
		writeExample(&examples, pc.Encode(pc.ExtractFeatures(doc, op.Expression.Span)))
		ids = append(ids, op.ID)
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var values []float64
	err := withFeatureFile(pc.tempDir, "polarity-examples-*", func(w io.Writer) error {
		_, err := w.Write(examples.Bytes())
		return err
	}, func(examplesPath string) error {
		var err error
		values, err = pc.run(ctx, examplesPath)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(values) != len(ids) {
		return nil, errors.New(errors.ErrCodeClassifierFailed, "classifier output length mismatch").
			WithDetailf("examples=%d predictions=%d", len(ids), len(values))
	}

	out := make(map[string]string, len(ids))
	for i, id := range ids {
		class := DecideClass(values[i])
		doc.SetExpressionPolarity(id, class)
		out[id] = class
	}
	pc.logger.Debug("polarity assigned", logging.Int("opinions", len(ids)))
	return out, nil
}

func writeExample(w io.Writer, indices []int) {
	fmt.Fprint(w, "0")
	for _, i := range indices {
		fmt.Fprintf(w, " %d:1", i)
	}
	fmt.Fprintln(w)
}

// run executes svm_classify -v 0 <examples> <model> <out> and parses out.
func (pc *PolarityClassifier) run(ctx context.Context, examplesPath string) ([]float64, error) {
	out, err := os.CreateTemp(pc.tempDir, "polarity-out-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeClassifierFailed, "failed to create classifier output file")
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	model := filepath.Join(pc.modelFolder, PolarityModelFile)
	cmd := exec.CommandContext(ctx, pc.binary, "-v", "0", examplesPath, model, outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeClassifierFailed, "svm_classify failed").
			WithDetail(strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeClassifierFailed, "failed to read classifier output")
	}
	var values []float64
	for _, line := range splitLines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeClassifierFailed, "malformed classifier output").WithDetail(line)
		}
		values = append(values, v)
	}
	return values, nil
}
