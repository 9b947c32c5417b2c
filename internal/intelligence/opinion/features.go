package opinion

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// FeatureSource is the read side of an annotation document needed to write
// tagger feature files.
type FeatureSource interface {
	TokenSource
	SentenceIDs() []string
	TokensInSentence(sentence string) []annotation.Token
	TermForToken(tokenID string) (string, bool)
	Term(id string) (annotation.Term, bool)
	TokenPosition(tokenID string) (int, bool)
}

// MissingValue fills a feature column with no value.
const MissingValue = "-"

// FeatureExtractor writes the tab-separated feature sequences consumed by
// the CRF models.  Column layouts must match the ones the models were
// trained with.
type FeatureExtractor struct {
	lexicon *Lexicon
}

// NewFeatureExtractor creates an extractor.  A nil lexicon leaves the
// in_mpqa_lexicon column empty.
func NewFeatureExtractor(lexicon *Lexicon) *FeatureExtractor {
	return &FeatureExtractor{lexicon: lexicon}
}

// WriteExpressionFeatures writes one sequence per sentence with columns
// id, token, lemma, pos, in_mpqa_lexicon, deepest_chunk, class.
func (fx *FeatureExtractor) WriteExpressionFeatures(w io.Writer, docName string, doc FeatureSource) error {
	bw := bufio.NewWriter(w)
	for _, sentence := range doc.SentenceIDs() {
		for _, tok := range doc.TokensInSentence(sentence) {
			term, hasTerm := fx.termFor(doc, tok.ID)
			row := []string{
				docName + IDSeparator + tok.ID,
				tok.Text,
				termField(hasTerm, term.Lemma),
				termField(hasTerm, term.POS),
				fx.lexiconFlag(hasTerm, term),
				termField(hasTerm, term.Chunk),
				OutsideLabel,
			}
			writeRow(bw, row)
		}
		bw.WriteString("\n")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFeatureExtraction, "failed to write expression features")
	}
	return nil
}

// WriteContextFeatures writes, for every detected expression, the sequence
// of its sentence with columns id, token, lemma, pos, distance_to_dse,
// dependency_path, deepest_chunk, DSE, class.  Expressions are grouped by
// sentence in first-seen order.  Target and holder models share the layout.
func (fx *FeatureExtractor) WriteContextFeatures(w io.Writer, docName string, doc FeatureSource, expressions []*SpanEntity) error {
	var order []string
	bySentence := make(map[string][]*SpanEntity)
	for _, e := range expressions {
		s, err := e.Sentence(doc)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFeatureExtraction, "expression outside document")
		}
		if _, ok := bySentence[s]; !ok {
			order = append(order, s)
		}
		bySentence[s] = append(bySentence[s], e)
	}

	bw := bufio.NewWriter(w)
	for _, sentence := range order {
		tokens := doc.TokensInSentence(sentence)
		for _, e := range bySentence[sentence] {
			lo, hi, err := positionRange(doc, e)
			if err != nil {
				return err
			}
			inExpression := make(map[string]struct{}, len(e.TokenIDs))
			for _, tid := range e.TokenIDs {
				inExpression[tid] = struct{}{}
			}

			for _, tok := range tokens {
				term, hasTerm := fx.termFor(doc, tok.ID)
				pos, _ := doc.TokenPosition(tok.ID)
				dse := OutsideLabel
				if _, ok := inExpression[tok.ID]; ok {
					dse = PolarityDSE
				}
				row := []string{
					docName + IDSeparator + tok.ID,
					tok.Text,
					termField(hasTerm, term.Lemma),
					termField(hasTerm, term.POS),
					strconv.Itoa(distanceBucket(pos, lo, hi)),
					MissingValue,
					termField(hasTerm, term.Chunk),
					dse,
					OutsideLabel,
				}
				writeRow(bw, row)
			}
			bw.WriteString("\n")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFeatureExtraction, "failed to write context features")
	}
	return nil
}

func (fx *FeatureExtractor) termFor(doc FeatureSource, tokenID string) (annotation.Term, bool) {
	termID, ok := doc.TermForToken(tokenID)
	if !ok {
		return annotation.Term{}, false
	}
	return doc.Term(termID)
}

func (fx *FeatureExtractor) lexiconFlag(hasTerm bool, term annotation.Term) string {
	if fx.lexicon == nil || !hasTerm {
		return MissingValue
	}
	if _, ok := fx.lexicon.Lookup(term.Lemma, term.POS); ok {
		return "1"
	}
	return "0"
}

// positionRange returns the smallest and largest document position of e.
func positionRange(doc FeatureSource, e *SpanEntity) (int, int, error) {
	lo, hi := -1, -1
	for _, tid := range e.TokenIDs {
		p, ok := doc.TokenPosition(tid)
		if !ok {
			return 0, 0, errors.New(errors.ErrCodeUnknownToken, "expression token not present in document").
				WithDetailf("entity=%s token=%s", e.ID, tid)
		}
		if lo < 0 || p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}
	return lo, hi, nil
}

// distanceBucket is 0 inside [lo, hi] and otherwise min(pos-lo, pos-hi)
// floor-divided by 3.
func distanceBucket(pos, lo, hi int) int {
	if pos >= lo && pos <= hi {
		return 0
	}
	d := pos - lo
	if d2 := pos - hi; d2 < d {
		d = d2
	}
	return floorDiv(d, 3)
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func termField(hasTerm bool, v string) string {
	if !hasTerm {
		return MissingValue
	}
	return v
}

// featureValue NFC-normalises v, replaces whitespace with "_" and maps the
// empty string to MissingValue.
func featureValue(v string) string {
	if v == "" {
		return MissingValue
	}
	v = norm.NFC.String(v)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, v)
}

func writeRow(bw *bufio.Writer, row []string) {
	for i, v := range row {
		if i > 0 {
			bw.WriteByte('\t')
		}
		if i == 0 {
			bw.WriteString(v)
			continue
		}
		bw.WriteString(featureValue(v))
	}
	bw.WriteByte('\n')
}
