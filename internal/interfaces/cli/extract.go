package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

// EntityList is the printable form of a list of span entities.
type EntityList []*opinion.SpanEntity

// TextLines returns one entity line per entity.
func (l EntityList) TextLines() []string {
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = e.Line()
	}
	return out
}

func (l EntityList) TableHeaders() []string {
	return []string{"TYPE", "DOCUMENT", "TOKENS", "TEXT"}
}

func (l EntityList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, e := range l {
		rows[i] = []string{e.Type.String(), e.Document, strings.Join(e.TokenIDs, " "), e.Text()}
	}
	return rows
}

// entityView is the --output json form of an entity.
type entityView struct {
	Type     string   `json:"type"`
	Document string   `json:"document"`
	TokenIDs []string `json:"token_ids"`
	Words    []string `json:"words"`
}

func (l EntityList) views() []entityView {
	out := make([]entityView, len(l))
	for i, e := range l {
		out[i] = entityView{Type: e.Type.String(), Document: e.Document, TokenIDs: e.TokenIDs, Words: e.Words}
	}
	return out
}

// NewExtractSequencesCmd creates the extract-sequences command.
func NewExtractSequencesCmd() *cobra.Command {
	var removeDuplicates bool
	cmd := &cobra.Command{
		Use:   "extract-sequences FILE TYPE",
		Short: "Recover spans from a CRF tagger output file",
		Long: "Parses crf_test output (plain or n-best), discards lower-ranked spans that\n" +
			"overlap a better one and prints one TYPE<TAB>words<TAB>ids line per span.\n" +
			"TYPE is one of DSE (or EXPRESSION), TARGET, HOLDER.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := opinion.ParseEntityType(args[1])
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeNotFound, "failed to open tagger output").WithDetail(args[0])
			}
			defer f.Close()

			seqs, err := opinion.ReadSequences(f, opinion.ParseOptions{RemoveDuplicates: removeDuplicates})
			if err != nil {
				return err
			}
			entities, err := opinion.EntitiesFromSequences(strings.ToLower(typ.String()), typ, seqs)
			if err != nil {
				return err
			}
			return printEntities(cmd, EntityList(entities))
		},
	}
	cmd.Flags().BoolVar(&removeDuplicates, "remove-duplicates", false, "drop spans whose ids repeat an earlier span")
	return cmd
}

func printEntities(cmd *cobra.Command, l EntityList) error {
	if cliCtx, err := GetCLIContext(cmd); err == nil && cliCtx.OutputFormat == OutputJSON {
		return printJSON(cmd, l.views())
	}
	return PrintResult(cmd, l)
}
