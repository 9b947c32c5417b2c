package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/testutil"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// fakeCRF labels "loved" as an expression, "room" as a target and "hotel
// staff" as a holder, whatever the features say.
const fakeCRF = `case "$2" in
  *model.expression) awk -F'\t' -v OFS='\t' '$1=="stdin#w4"{$NF="B-DSE"} 1' "$3" ;;
  *model.target)     awk -F'\t' -v OFS='\t' '$1=="stdin#w6"{$NF="B-TARGET"} 1' "$3" ;;
  *model.holder)     awk -F'\t' -v OFS='\t' '$1=="stdin#w2"{$NF="B-HOLDER"} $1=="stdin#w3"{$NF="I-HOLDER"} 1' "$3" ;;
esac
`

// tagSetup writes a model folder, the fake crf_test and a config file naming
// both, and returns the config path and the model folder.
func tagSetup(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))
	for _, layer := range []string{"expression", "target", "holder"} {
		writeFile(t, models, "model."+layer, "model")
	}
	crf := writeScript(t, dir, "crf_test", fakeCRF)
	cfg := writeFile(t, dir, "opminer.yaml",
		"tagger:\n"+
			"  crf_test_path: "+crf+"\n"+
			"  model_folder: "+models+"\n"+
			"  temp_dir: "+dir+"\n")
	return cfg, models
}

func TestTag_Stdin(t *testing.T) {
	cfg, _ := tagSetup(t)
	data, err := annotation.EncodeBytes(testutil.ReviewDocument())
	require.NoError(t, err)

	out, err := runCLI(t, bytes.NewReader(data), "--config", cfg, "tag")
	require.NoError(t, err)

	doc, err := annotation.DecodeBytes([]byte(out))
	require.NoError(t, err)
	require.Len(t, doc.Opinions(), 1)
	o := doc.Opinions()[0]
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, annotation.Span{"t4"}, o.Expression.Span)
	require.NotNil(t, o.Target)
	assert.Equal(t, annotation.Span{"t6"}, o.Target.Span)
	require.NotNil(t, o.Holder)
	assert.Equal(t, annotation.Span{"t2", "t3"}, o.Holder.Span)
}

func TestTag_InputFileAndKeepOpinions(t *testing.T) {
	cfg, models := tagSetup(t)
	doc := testutil.ReviewDocument()
	doc.AddOpinion(annotation.Opinion{ID: "o1", Expression: &annotation.Expression{Span: annotation.Span{"t9"}}})
	data, err := annotation.EncodeBytes(doc)
	require.NoError(t, err)
	input := writeFile(t, t.TempDir(), "review.json", string(data))

	out, err := runCLI(t, nil, "--config", cfg, "tag", "--model-folder", models, "--keep-opinions", "-i", input)
	require.NoError(t, err)

	got, err := annotation.DecodeBytes([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"o1", "o2"}, got.OpinionIDs())
}

func TestTag_Errors(t *testing.T) {
	cfg, models := tagSetup(t)

	_, err := runCLI(t, strings.NewReader("not json"), "--config", cfg, "tag")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentCodec))

	_, err = runCLI(t, nil, "--config", cfg, "tag", "-i", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDocumentNotFound))

	_, err = runCLI(t, strings.NewReader("{}"), "--config", cfg, "tag", "--model-folder", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelNotFound))

	_, err = runCLI(t, nil, "--config", cfg, "tag", "--domain", "hotel", "--model-folder", models)
	assert.Error(t, err)
}
