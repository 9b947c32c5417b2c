// Package annotation provides the linguistic annotation document consumed and
// enriched by the opinion miner: tokens with sentence and offset information,
// terms spanning tokens, opinion records and the linguistic processors that
// produced each layer.
package annotation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// StdinFilename is the document filename used when a document is read from a
// stream.  It prefixes every token id in tagger feature files.
const StdinFilename = "stdin"

// LayerOpinions is the layer name opinion records are registered under.
const LayerOpinions = "opinions"

// ─────────────────────────────────────────────────────────────────────────────
// Value objects
// ─────────────────────────────────────────────────────────────────────────────

// Token is a word form with its position in the raw text.
type Token struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Sentence string `json:"sent"`
	Offset   int    `json:"offset"`
	Length   int    `json:"length,omitempty"`
}

// Span is an ordered list of ids: token ids for a term, term ids for an
// opinion argument.
type Span []string

// Term is a lemma/POS unit spanning one or more tokens.
type Term struct {
	ID    string `json:"id"`
	Lemma string `json:"lemma,omitempty"`
	POS   string `json:"pos,omitempty"`
	// Chunk is the label of the deepest constituent containing the term.
	Chunk string `json:"chunk,omitempty"`
	Span  Span   `json:"span"`
}

// Argument is an opinion holder or target.
type Argument struct {
	Span    Span   `json:"span"`
	Comment string `json:"comment,omitempty"`
}

// Expression is the opinion expression.
type Expression struct {
	Span     Span   `json:"span"`
	Polarity string `json:"polarity,omitempty"`
	Strength string `json:"strength,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Opinion is one opinion record.
type Opinion struct {
	ID         string      `json:"id"`
	Holder     *Argument   `json:"holder,omitempty"`
	Target     *Argument   `json:"target,omitempty"`
	Expression *Expression `json:"expression,omitempty"`
}

// LinguisticProcessor records who produced a layer and when.
type LinguisticProcessor struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Document
// ─────────────────────────────────────────────────────────────────────────────

// Document is an annotation document.  It is not safe for concurrent use; the
// miner processes one document per goroutine.
type Document struct {
	ID         string                           `json:"id,omitempty"`
	Filename   string                           `json:"filename,omitempty"`
	Language   string                           `json:"language,omitempty"`
	Type       string                           `json:"type,omitempty"`
	Raw        string                           `json:"raw,omitempty"`
	TokenList  []Token                          `json:"tokens"`
	TermList   []Term                           `json:"terms"`
	OpinionSet []Opinion                        `json:"opinions,omitempty"`
	Processors map[string][]LinguisticProcessor `json:"processors,omitempty"`

	tokenByID     map[string]int
	termByID      map[string]int
	termForToken  map[string]string
	indexedTokens int
	indexedTerms  int
}

// reindex rebuilds the lookup maps when the token or term slices changed size.
func (d *Document) reindex() {
	if d.tokenByID != nil && d.indexedTokens == len(d.TokenList) && d.indexedTerms == len(d.TermList) {
		return
	}
	d.tokenByID = make(map[string]int, len(d.TokenList))
	for i, tok := range d.TokenList {
		d.tokenByID[tok.ID] = i
	}
	d.termByID = make(map[string]int, len(d.TermList))
	d.termForToken = make(map[string]string, len(d.TokenList))
	for i, term := range d.TermList {
		d.termByID[term.ID] = i
		for _, tid := range term.Span {
			d.termForToken[tid] = term.ID
		}
	}
	d.indexedTokens = len(d.TokenList)
	d.indexedTerms = len(d.TermList)
}

// Validate checks id uniqueness and span references.
func (d *Document) Validate() error {
	seen := make(map[string]struct{}, len(d.TokenList))
	for _, tok := range d.TokenList {
		if tok.ID == "" {
			return errors.New(errors.ErrCodeDocumentCodec, "token without id")
		}
		if _, dup := seen[tok.ID]; dup {
			return errors.New(errors.ErrCodeDocumentCodec, "duplicate token id").WithDetail(tok.ID)
		}
		seen[tok.ID] = struct{}{}
	}
	terms := make(map[string]struct{}, len(d.TermList))
	for _, term := range d.TermList {
		if _, dup := terms[term.ID]; dup {
			return errors.New(errors.ErrCodeDocumentCodec, "duplicate term id").WithDetail(term.ID)
		}
		terms[term.ID] = struct{}{}
		for _, tid := range term.Span {
			if _, ok := seen[tid]; !ok {
				return errors.New(errors.ErrCodeDocumentCodec, "term spans unknown token").
					WithDetailf("term=%s token=%s", term.ID, tid)
			}
		}
	}
	return nil
}

// Token returns the token with the given id.
func (d *Document) Token(id string) (Token, bool) {
	d.reindex()
	i, ok := d.tokenByID[id]
	if !ok {
		return Token{}, false
	}
	return d.TokenList[i], true
}

// Tokens returns all tokens in document order.
func (d *Document) Tokens() []Token { return d.TokenList }

// Term returns the term with the given id.
func (d *Document) Term(id string) (Term, bool) {
	d.reindex()
	i, ok := d.termByID[id]
	if !ok {
		return Term{}, false
	}
	return d.TermList[i], true
}

// Terms returns all terms in document order.
func (d *Document) Terms() []Term { return d.TermList }

// TermForToken returns the id of the term spanning tokenID.
func (d *Document) TermForToken(tokenID string) (string, bool) {
	d.reindex()
	id, ok := d.termForToken[tokenID]
	return id, ok
}

// TokenPosition returns the document-order index of tokenID.
func (d *Document) TokenPosition(tokenID string) (int, bool) {
	d.reindex()
	i, ok := d.tokenByID[tokenID]
	return i, ok
}

// SentenceIDs returns the sentence ids in order of first appearance.
func (d *Document) SentenceIDs() []string {
	var ids []string
	seen := make(map[string]struct{})
	for _, tok := range d.TokenList {
		if _, ok := seen[tok.Sentence]; ok {
			continue
		}
		seen[tok.Sentence] = struct{}{}
		ids = append(ids, tok.Sentence)
	}
	return ids
}

// TokensInSentence returns the tokens of sentence in document order.
func (d *Document) TokensInSentence(sentence string) []Token {
	var out []Token
	for _, tok := range d.TokenList {
		if tok.Sentence == sentence {
			out = append(out, tok)
		}
	}
	return out
}

// Opinions returns the opinion records.
func (d *Document) Opinions() []Opinion { return d.OpinionSet }

// OpinionIDs returns the ids of the existing opinion records.
func (d *Document) OpinionIDs() []string {
	ids := make([]string, 0, len(d.OpinionSet))
	for _, o := range d.OpinionSet {
		ids = append(ids, o.ID)
	}
	return ids
}

// AddOpinion appends an opinion record.
func (d *Document) AddOpinion(o Opinion) {
	d.OpinionSet = append(d.OpinionSet, o)
}

// SetExpressionPolarity overwrites the polarity of opinion id.
func (d *Document) SetExpressionPolarity(id, polarity string) bool {
	for i := range d.OpinionSet {
		if d.OpinionSet[i].ID == id && d.OpinionSet[i].Expression != nil {
			d.OpinionSet[i].Expression.Polarity = polarity
			return true
		}
	}
	return false
}

// RemoveOpinions drops the opinion layer along with its processors.
func (d *Document) RemoveOpinions() {
	d.OpinionSet = nil
	delete(d.Processors, LayerOpinions)
}

// AddProcessor registers p on layer.
func (d *Document) AddProcessor(layer string, p LinguisticProcessor) {
	if d.Processors == nil {
		d.Processors = make(map[string][]LinguisticProcessor)
	}
	d.Processors[layer] = append(d.Processors[layer], p)
}

// Layers returns the layer names with registered processors, sorted.
func (d *Document) Layers() []string {
	layers := make([]string, 0, len(d.Processors))
	for l := range d.Processors {
		layers = append(layers, l)
	}
	sort.Strings(layers)
	return layers
}

// TextForTerms joins the token texts of termIDs with single spaces.
func (d *Document) TextForTerms(termIDs []string) string {
	var words []string
	for _, tid := range termIDs {
		term, ok := d.Term(tid)
		if !ok {
			continue
		}
		for _, tokID := range term.Span {
			if tok, ok := d.Token(tokID); ok {
				words = append(words, tok.Text)
			}
		}
	}
	return strings.Join(words, " ")
}

// OpinionNumber extracts N from an "oN" identifier.
func OpinionNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "o") {
		return 0, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
