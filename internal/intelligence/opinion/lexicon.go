package opinion

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// Clue is one subjectivity lexicon entry.
type Clue struct {
	Type          string // strongsubj | weaksubj
	PriorPolarity string
}

type wordPOS struct {
	word string
	pos  string
}

// Lexicon is an MPQA-style subjectivity clue lexicon.
type Lexicon struct {
	stemmed         map[wordPOS]Clue
	stemmedAnyPOS   map[string]Clue
	unstemmed       map[wordPOS]Clue
	unstemmedAnyPOS map[string]Clue
}

// NormalizePOS maps tagset-specific POS tags onto a (adjective), r (adverb),
// n (noun), v (verb) and * (any).  Unknown tags are returned lower-cased.
func NormalizePOS(pos string) string {
	p := strings.ToLower(pos)
	switch {
	case p == "adj" || p == "a" || strings.HasPrefix(p, "jj"):
		return "a"
	case p == "adverb" || p == "r" || strings.HasPrefix(p, "rb"):
		return "r"
	case p == "anypos":
		return "*"
	case p == "noun" || p == "n" || strings.HasPrefix(p, "nn") || strings.HasPrefix(p, "np"):
		return "n"
	case p == "verb" || strings.HasPrefix(p, "v"):
		return "v"
	default:
		return p
	}
}

// LoadLexicon parses clue lines of the form
//
//	type=weaksubj len=1 word1=abandoned pos1=adj stemmed1=n priorpolarity=negative
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	lx := &Lexicon{
		stemmed:         make(map[wordPOS]Clue),
		stemmedAnyPOS:   make(map[string]Clue),
		unstemmed:       make(map[wordPOS]Clue),
		unstemmedAnyPOS: make(map[string]Clue),
	}

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		attrs := make(map[string]string, 6)
		for _, f := range strings.Fields(line) {
			if k, v, ok := strings.Cut(f, "="); ok {
				attrs[k] = v
			}
		}
		for _, key := range []string{"type", "word1", "pos1", "stemmed1", "priorpolarity"} {
			if _, ok := attrs[key]; !ok {
				return nil, errors.New(errors.ErrCodeLexiconParse, "clue line misses "+key).
					WithDetailf("line %d", n)
			}
		}

		clue := Clue{Type: attrs["type"], PriorPolarity: attrs["priorpolarity"]}
		k := wordPOS{word: attrs["word1"], pos: NormalizePOS(attrs["pos1"])}
		switch attrs["stemmed1"] {
		case "y":
			lx.stemmed[k] = clue
			lx.stemmedAnyPOS[k.word] = clue
		case "n":
			lx.unstemmed[k] = clue
			lx.unstemmedAnyPOS[k.word] = clue
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLexiconParse, "failed to read lexicon")
	}
	return lx, nil
}

// LoadLexiconFile opens and parses path.
func LoadLexiconFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLexiconParse, "failed to open lexicon").WithDetail(path)
	}
	defer f.Close()
	return LoadLexicon(f)
}

// Lookup tries unstemmed+pos, stemmed+pos, unstemmed any pos and finally
// stemmed any pos.  An empty pos skips the first two steps.
func (lx *Lexicon) Lookup(word, pos string) (Clue, bool) {
	if pos != "" {
		k := wordPOS{word: word, pos: NormalizePOS(pos)}
		if c, ok := lx.unstemmed[k]; ok {
			return c, true
		}
		if c, ok := lx.stemmed[k]; ok {
			return c, true
		}
	}
	if c, ok := lx.unstemmedAnyPOS[word]; ok {
		return c, true
	}
	c, ok := lx.stemmedAnyPOS[word]
	return c, ok
}

// Len returns the number of (word, pos) entries.
func (lx *Lexicon) Len() int { return len(lx.stemmed) + len(lx.unstemmed) }
