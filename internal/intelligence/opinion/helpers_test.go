package opinion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/testutil"
)

// newReviewDocument returns testutil.ReviewDocument: w1..w6 in sentence 1,
// w7..w9 in sentence 2, term t<N> over w<N>, rank(w<N>) = 9-N.
func newReviewDocument() *annotation.Document { return testutil.ReviewDocument() }

func entity(t *testing.T, id string, typ EntityType, tokenIDs ...string) *SpanEntity {
	t.Helper()
	words := make([]string, len(tokenIDs))
	for i, tid := range tokenIDs {
		words[i] = "word-" + tid
	}
	e, err := NewSpanEntity(id, typ, annotation.StdinFilename, tokenIDs, words)
	require.NoError(t, err)
	return e
}
