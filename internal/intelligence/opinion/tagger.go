package opinion

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// Layers
// ---------------------------------------------------------------------------

// Layer names one of the three tagging passes.
type Layer string

const (
	LayerExpression Layer = "expression"
	LayerTarget     Layer = "target"
	LayerHolder     Layer = "holder"
)

// Layers lists the passes in pipeline order.
var Layers = []Layer{LayerExpression, LayerTarget, LayerHolder}

// EntityType returns the span type the layer produces.
func (l Layer) EntityType() EntityType {
	switch l {
	case LayerTarget:
		return EntityTarget
	case LayerHolder:
		return EntityHolder
	default:
		return EntityExpression
	}
}

// IDPrefix returns the prefix of the entity ids of the layer.
func (l Layer) IDPrefix() string {
	switch l {
	case LayerTarget:
		return "tar"
	case LayerHolder:
		return "hol"
	default:
		return "exp"
	}
}

// ModelFile returns the CRF model file name of the layer.
func (l Layer) ModelFile() string { return "model." + string(l) }

// CheckModelFolder verifies that folder holds a model for every layer.
func CheckModelFolder(folder string) error {
	for _, l := range Layers {
		p := filepath.Join(folder, l.ModelFile())
		if _, err := os.Stat(p); err != nil {
			return errors.Wrap(err, errors.ErrCodeModelNotFound, "missing CRF model").WithDetail(p)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Tagger
// ---------------------------------------------------------------------------

// Tagger labels a feature file and returns the raw output lines.
type Tagger interface {
	Tag(ctx context.Context, layer Layer, featureFile string) ([]string, error)
}

// CRFTagger runs crf_test against <model folder>/model.<layer>.
type CRFTagger struct {
	binary      string
	modelFolder string
	logger      logging.Logger
}

// NewCRFTagger creates a tagger.  A nil logger discards output.
func NewCRFTagger(binary, modelFolder string, logger logging.Logger) *CRFTagger {
	return &CRFTagger{
		binary:      binary,
		modelFolder: modelFolder,
		logger:      logging.OrNop(logger).Named("crf"),
	}
}

// ModelFolder returns the folder the tagger reads models from.
func (t *CRFTagger) ModelFolder() string { return t.modelFolder }

// Tag blocks until crf_test exits.  A non-zero exit is fatal for the layer.
func (t *CRFTagger) Tag(ctx context.Context, layer Layer, featureFile string) ([]string, error) {
	model := filepath.Join(t.modelFolder, layer.ModelFile())
	cmd := exec.CommandContext(ctx, t.binary, "-m", model, featureFile)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	t.logger.Debug("crf_test finished",
		logging.String("layer", string(layer)),
		logging.String("model", model),
		logging.Duration("elapsed", time.Since(start)),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTaggerFailed, "crf_test failed").
			WithDetailf("layer=%s stderr=%s", layer, strings.TrimSpace(stderr.String()))
	}
	return splitLines(stdout.String()), nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// ---------------------------------------------------------------------------
// Feature files
// ---------------------------------------------------------------------------

// withFeatureFile writes a temporary file in dir with write, hands its path
// to use and removes the file on every path out.
func withFeatureFile(dir, pattern string, write func(io.Writer) error, use func(path string) error) error {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeFeatureExtraction, "failed to create feature file")
	}
	path := f.Name()
	defer os.Remove(path)

	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeFeatureExtraction, "failed to close feature file")
	}
	return use(path)
}
