package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

type tagOptions struct {
	input            string
	domain           string
	modelFolder      string
	lexicon          string
	polarity         bool
	keepOpinions     bool
	removeDuplicates bool
}

// NewTagCmd creates the tag command: read one annotation document, mine its
// opinions and write it back to stdout.
func NewTagCmd() *cobra.Command {
	opts := &tagOptions{}
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Detect opinions in an annotation document",
		Long: "Reads an annotation document from --input or stdin, runs the expression,\n" +
			"target and holder taggers, attaches one opinion per detected expression\n" +
			"and writes the annotated document to stdout.",
		Example: `  opminer tag --domain hotel < review.json > review.opinions.json
  opminer tag --model-folder ./models/models_hotel_en --polarity -i review.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "annotation document to read (default: stdin)")
	f.StringVar(&opts.domain, "domain", "", "model domain, resolved to <models_root>/models_<domain>_<lang>")
	f.StringVar(&opts.modelFolder, "model-folder", "", "folder holding model.expression, model.target and model.holder")
	f.StringVar(&opts.lexicon, "lexicon", "", "MPQA subjectivity clue file")
	f.BoolVar(&opts.polarity, "polarity", false, "classify expression polarity")
	f.BoolVar(&opts.keepOpinions, "keep-opinions", false, "keep opinions already present in the document")
	f.BoolVar(&opts.removeDuplicates, "remove-duplicates", false, "drop spans whose tokens repeat an earlier span")
	cmd.MarkFlagsMutuallyExclusive("domain", "model-folder")
	return cmd
}

// applyTagFlags overlays the explicitly set flags on the tagger and polarity
// sections of cfg.
func applyTagFlags(cmd *cobra.Command, cfg *config.Config, opts *tagOptions) error {
	f := cmd.Flags()
	if f.Changed("domain") {
		cfg.Tagger.Domain = opts.domain
		cfg.Tagger.ModelFolder = ""
	}
	if f.Changed("model-folder") {
		cfg.Tagger.ModelFolder = opts.modelFolder
		cfg.Tagger.Domain = ""
	}
	if f.Changed("lexicon") {
		cfg.Tagger.LexiconPath = opts.lexicon
	}
	if f.Changed("polarity") {
		cfg.Polarity.Enabled = opts.polarity
	}
	if f.Changed("keep-opinions") {
		cfg.Tagger.KeepOpinions = opts.keepOpinions
	}
	if f.Changed("remove-duplicates") {
		cfg.Tagger.RemoveDuplicates = opts.removeDuplicates
	}

	if cfg.Tagger.ModelFolder == "" && cfg.Tagger.Domain == "" {
		return errors.InvalidParam("one of --domain or --model-folder is required")
	}
	if cfg.Tagger.CRFTestPath == "" {
		return errors.New(errors.ErrCodeConfig, "tagger.crf_test_path is empty")
	}
	return nil
}

func runTag(cmd *cobra.Command, opts *tagOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := *cliCtx.Config
	if err := applyTagFlags(cmd, &cfg, opts); err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDocumentNotFound, "failed to open input").WithDetail(opts.input)
		}
		defer f.Close()
		in = f
	}
	doc, err := annotation.Decode(in)
	if err != nil {
		return err
	}

	miner, err := opinion.MinerFromConfig(&cfg, doc.Language, cliCtx.Logger)
	if err != nil {
		return err
	}
	res, err := miner.Mine(cmd.Context(), doc)
	if err != nil {
		return err
	}
	cliCtx.Logger.Info("document tagged",
		logging.String("run_id", res.RunID),
		logging.Int("expressions", len(res.Expressions)),
		logging.Int("targets", len(res.Targets)),
		logging.Int("holders", len(res.Holders)),
		logging.Int("complete", res.Complete()),
	)
	return annotation.Encode(cmd.OutOrStdout(), doc)
}
