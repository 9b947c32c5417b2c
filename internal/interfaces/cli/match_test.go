package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

func TestMatchEntities(t *testing.T) {
	dir := t.TempDir()
	writeReviewDocument(t, dir, "review.json")
	exp := writeFile(t, dir, "exp.csv",
		"DSE\tloved\treview.json#w4\n"+
			"DSE\tawful\treview.json#w9\n")
	tar := writeFile(t, dir, "tar.csv",
		"TARGET\tThe\treview.json#w1\n"+
			"TARGET\troom\treview.json#w6\n"+
			"TARGET\tFood\treview.json#w7\n")

	out, err := runCLI(t, nil, "match-entities", exp, tar, "--docs", dir)
	require.NoError(t, err)
	assert.Equal(t,
		"DSE\tloved\treview.json#w4\n"+
			"TARGET\tThe\treview.json#w1\n"+
			"\n"+
			"DSE\tloved\treview.json#w4\n"+
			"TARGET\troom\treview.json#w6\n"+
			"\n"+
			"DSE\tawful\treview.json#w9\n"+
			"TARGET\tFood\treview.json#w7\n"+
			"\n", out)

	out, err = runCLI(t, nil, "-o", "json", "match-entities", exp, tar, "--docs", dir)
	require.NoError(t, err)
	var pairs []pairView
	require.NoError(t, json.Unmarshal([]byte(out), &pairs))
	require.Len(t, pairs, 3)
	assert.Equal(t, []string{"w4"}, pairs[1].Expression.TokenIDs)
	assert.Equal(t, []string{"w6"}, pairs[1].Target.TokenIDs)
}

func TestMatchEntities_OnePairPerTarget(t *testing.T) {
	dir := t.TempDir()
	writeReviewDocument(t, dir, "review.json")
	exp := writeFile(t, dir, "exp.csv",
		"DSE\tloved\treview.json#w4\n"+
			"DSE\tthe\treview.json#w5\n")
	tar := writeFile(t, dir, "tar.csv", "TARGET\troom\treview.json#w6\n")

	out, err := runCLI(t, nil, "match-entities", exp, tar, "--docs", dir)
	require.NoError(t, err)
	assert.Equal(t,
		"DSE\tthe\treview.json#w5\n"+
			"TARGET\troom\treview.json#w6\n"+
			"\n", out)
}

func TestMatchEntities_DocumentsWithoutTargetsAreSkipped(t *testing.T) {
	dir := t.TempDir()
	exp := writeFile(t, dir, "exp.csv", "DSE\tloved\tother.json#w4\n")
	tar := writeFile(t, dir, "tar.csv", "")

	out, err := runCLI(t, nil, "match-entities", exp, tar, "--docs", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMatchEntities_Errors(t *testing.T) {
	dir := t.TempDir()
	exp := writeFile(t, dir, "exp.csv", "DSE\tloved\treview.json#w4\n")
	tar := writeFile(t, dir, "tar.csv", "TARGET\troom\treview.json#w6\n")

	_, err := runCLI(t, nil, "match-entities", exp, tar, "--docs", dir)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentNotFound))

	bad := writeFile(t, dir, "bad.csv", "DSE loved\n")
	_, err = runCLI(t, nil, "match-entities", bad, tar, "--docs", dir)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedEntityLine))

	writeReviewDocument(t, dir, "review.json")
	unknown := writeFile(t, dir, "unknown.csv", "TARGET\tghost\treview.json#w99\n")
	_, err = runCLI(t, nil, "match-entities", exp, unknown, "--docs", dir)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownToken))
}
