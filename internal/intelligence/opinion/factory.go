package opinion

import (
	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
)

// MinerFromConfig wires a CRF-backed Miner from the tagger and polarity
// sections of cfg for documents in language.  An empty language falls back
// to cfg.Tagger.Language.  extra options are applied last.
func MinerFromConfig(cfg *config.Config, language string, logger logging.Logger, extra ...MinerOption) (*Miner, error) {
	if language == "" {
		language = cfg.Tagger.Language
	}
	folder := cfg.Tagger.ResolveModelFolder(language)
	if err := CheckModelFolder(folder); err != nil {
		return nil, err
	}

	opts := []MinerOption{
		WithKeepOpinions(cfg.Tagger.KeepOpinions),
		WithRemoveDuplicates(cfg.Tagger.RemoveDuplicates),
		WithTempDir(cfg.Tagger.TempDir),
		WithProcessor(cfg.Tagger.ProcessorName, cfg.Tagger.ProcessorVersion),
	}

	if cfg.Tagger.LexiconPath != "" {
		lx, err := LoadLexiconFile(cfg.Tagger.LexiconPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithLexicon(lx))
	}

	if cfg.Polarity.Enabled {
		pc, err := LoadPolarityClassifier(PolarityOptions{
			Binary:      cfg.Polarity.SVMClassifyPath,
			ModelFolder: cfg.Polarity.ModelFolder(language),
			TempDir:     cfg.Tagger.TempDir,
			LexiconPath: cfg.Polarity.LexiconPath,
		}, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPolarity(pc))
	}

	tagger := NewCRFTagger(cfg.Tagger.CRFTestPath, folder, logger)
	return NewMiner(tagger, logger, append(opts, extra...)...), nil
}
