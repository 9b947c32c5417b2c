// Package opinion turns per-token sequence-tagger output into opinion triples
// (expression, target, holder) attached to an annotation document.
//
// The pipeline per document is: feature extraction → external CRF tagger →
// span parsing with n-best overlap resolution → span entities → greedy
// nearest-neighbour matching of targets and holders onto expressions →
// triple assembly → opinion record injection.
package opinion

import (
	"sort"
	"sync"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// TokenSource is the read side of an annotation document needed to compute
// span positions.
type TokenSource interface {
	Token(id string) (annotation.Token, bool)
	Tokens() []annotation.Token
}

// ---------------------------------------------------------------------------
// PositionalIndex
// ---------------------------------------------------------------------------

// PositionalIndex maps token ids to their character offset and to a rank
// obtained by sorting all tokens of a document by descending offset: the
// token with the largest offset has rank 0.  It is immutable once built.
type PositionalIndex struct {
	docID  string
	rank   map[string]int
	offset map[string]int
}

// BuildIndex computes the positional index of the given tokens.  Tokens with
// equal offsets keep their document order.
func BuildIndex(docID string, tokens []annotation.Token) *PositionalIndex {
	ordered := make([]annotation.Token, len(tokens))
	copy(ordered, tokens)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset > ordered[j].Offset
	})

	ix := &PositionalIndex{
		docID:  docID,
		rank:   make(map[string]int, len(ordered)),
		offset: make(map[string]int, len(ordered)),
	}
	for r, tok := range ordered {
		ix.rank[tok.ID] = r
		ix.offset[tok.ID] = tok.Offset
	}
	return ix
}

// DocumentID returns the id of the indexed document.
func (ix *PositionalIndex) DocumentID() string { return ix.docID }

// Len returns the number of indexed tokens.
func (ix *PositionalIndex) Len() int { return len(ix.rank) }

// Rank returns the rank position of tokenID.  An absent token means the
// tagger output and the document disagree; the error is never recoverable.
func (ix *PositionalIndex) Rank(tokenID string) (int, error) {
	r, ok := ix.rank[tokenID]
	if !ok {
		return 0, errors.New(errors.ErrCodeUnknownToken, "token not present in positional index").
			WithDetailf("document=%s token=%s", ix.docID, tokenID)
	}
	return r, nil
}

// Offset returns the character offset of tokenID.
func (ix *PositionalIndex) Offset(tokenID string) (int, error) {
	o, ok := ix.offset[tokenID]
	if !ok {
		return 0, errors.New(errors.ErrCodeUnknownToken, "token not present in positional index").
			WithDetailf("document=%s token=%s", ix.docID, tokenID)
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// IndexCache
// ---------------------------------------------------------------------------

// IndexCache owns the positional indices of the documents currently being
// processed, keyed by processing run.  Two runs over documents with the same
// filename never share an index.  Each index is built at most once per run.
type IndexCache struct {
	mu      sync.Mutex
	entries map[string]*PositionalIndex
}

// NewIndexCache creates an empty cache.
func NewIndexCache() *IndexCache {
	return &IndexCache{entries: make(map[string]*PositionalIndex)}
}

// Get returns the index of the run, building it from doc on first use.
// docID only labels the index in lookup errors.
func (c *IndexCache) Get(runID, docID string, doc TokenSource) *PositionalIndex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ix, ok := c.entries[runID]; ok {
		return ix
	}
	ix := BuildIndex(docID, doc.Tokens())
	c.entries[runID] = ix
	return ix
}

// Evict drops the index of runID at the end of the run.
func (c *IndexCache) Evict(runID string) {
	c.mu.Lock()
	delete(c.entries, runID)
	c.mu.Unlock()
}

// Len returns the number of cached indices.
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
