package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// PairList is the printable form of matched expression/target pairs.  Each
// target is the anchor and the expression its matched candidate.
type PairList []opinion.MatchedPair

// TextLines prints each pair as the expression line, the target line and a
// blank separator.
func (l PairList) TextLines() []string {
	out := make([]string, 0, 3*len(l))
	for _, p := range l {
		out = append(out, p.Candidate.Line(), p.Anchor.Line(), "")
	}
	return out
}

func (l PairList) TableHeaders() []string {
	return []string{"DOCUMENT", "EXPRESSION", "TARGET"}
}

func (l PairList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, p := range l {
		rows[i] = []string{p.Anchor.Document, p.Candidate.Text(), p.Anchor.Text()}
	}
	return rows
}

type pairView struct {
	Expression entityView `json:"expression"`
	Target     entityView `json:"target"`
}

func (l PairList) views() []pairView {
	out := make([]pairView, len(l))
	for i, p := range l {
		v := EntityList{p.Candidate, p.Anchor}.views()
		out[i] = pairView{Expression: v[0], Target: v[1]}
	}
	return out
}

// NewMatchEntitiesCmd creates the match-entities command.
func NewMatchEntitiesCmd() *cobra.Command {
	var docsDir string
	cmd := &cobra.Command{
		Use:   "match-entities EXPR_FILE TARGET_FILE",
		Short: "Pair targets with their nearest same-sentence expression",
		Long: "Loads expression and target entity lines, groups the targets by document,\n" +
			"reads each document from --docs and pairs every target with the\n" +
			"expression closest to it in the same sentence.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			expressions, err := readEntityFile(args[0])
			if err != nil {
				return err
			}
			targets, err := readEntityFile(args[1])
			if err != nil {
				return err
			}
			pairs, err := matchByDocument(expressions, targets, docsDir, cliCtx.Logger)
			if err != nil {
				return err
			}
			if cliCtx.OutputFormat == OutputJSON {
				return printJSON(cmd, pairs.views())
			}
			return PrintResult(cmd, pairs)
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs", ".", "directory holding the annotation documents named in the entity lines")
	return cmd
}

func readEntityFile(path string) ([]*opinion.SpanEntity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "failed to open entity file").WithDetail(path)
	}
	defer f.Close()
	entities, err := opinion.ReadEntities(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to read entity file").WithDetail(path)
	}
	return entities, nil
}

// matchByDocument matches per document, visiting documents in the order
// their first target appears.  Every target picks its nearest expression, so
// there is at most one pair per target.  Expressions of documents without
// targets are never matched.
func matchByDocument(expressions, targets []*opinion.SpanEntity, docsDir string, logger logging.Logger) (PairList, error) {
	var order []string
	byDoc := make(map[string][]*opinion.SpanEntity)
	for _, t := range targets {
		if _, seen := byDoc[t.Document]; !seen {
			order = append(order, t.Document)
		}
		byDoc[t.Document] = append(byDoc[t.Document], t)
	}

	var out PairList
	for _, name := range order {
		var candidates []*opinion.SpanEntity
		for _, e := range expressions {
			if e.Document == name {
				candidates = append(candidates, e)
			}
		}

		doc, err := loadDocument(docsDir, name)
		if err != nil {
			return nil, err
		}
		ix := opinion.BuildIndex(name, doc.Tokens())
		pairs, err := opinion.Match(byDoc[name], candidates, doc, ix)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "matching failed").WithDetail(name)
		}
		logging.OrNop(logger).Debug("document matched",
			logging.String("document", name),
			logging.Int("expressions", len(candidates)),
			logging.Int("targets", len(byDoc[name])),
			logging.Int("pairs", len(pairs)))
		out = append(out, pairs...)
	}
	return out, nil
}

func loadDocument(dir, name string) (*annotation.Document, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDocumentNotFound, "failed to open document").WithDetail(path)
	}
	defer f.Close()
	return annotation.Decode(f)
}
