package opinion

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// Tagger output format
// ---------------------------------------------------------------------------

const (
	// CommentMarker starts an n-best header line such as "# 1 0.025510".
	CommentMarker = "#"

	// OutsideLabel marks a token outside any span.
	OutsideLabel = "O"

	// IDSeparator joins a document id and a token id ("stdin#w12").
	IDSeparator = "#"
)

// Sequence is one contiguous span recovered from tagger output: the
// document-qualified token ids and the parallel token texts.
type Sequence struct {
	TokenIDs []string
	Words    []string
}

// ParseOptions tunes ParseSequences.
type ParseOptions struct {
	// RemoveDuplicates drops a span whose id list equals an earlier one.
	RemoveDuplicates bool
}

type rankedSpan struct {
	rank   int
	ranked bool
	ids    []string
	words  []string
}

// ParseSequences converts tagger output lines into spans.  Spans from a lower
// preference alternative (higher n-best rank) that share a token with a
// higher preference span are discarded; unranked spans are never discarded.
// Surviving spans keep their discovery order.
func ParseSequences(lines []string, opts ParseOptions) ([]Sequence, error) {
	var (
		spans   []rankedSpan
		current rankedSpan
		rank    int
		ranked  bool
	)

	flush := func() {
		if len(current.ids) == 0 {
			return
		}
		current.rank, current.ranked = rank, ranked
		spans = append(spans, current)
		current = rankedSpan{}
	}

	for n, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, CommentMarker):
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, errors.New(errors.ErrCodeMalformedTaggerOutput, "comment line without alternative rank").
					WithDetailf("line %d: %q", n+1, line)
			}
			r, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeMalformedTaggerOutput, "alternative rank is not an integer").
					WithDetailf("line %d: %q", n+1, line)
			}
			rank, ranked = r, true

		case line == "":
			flush()

		default:
			fields := strings.Split(line, "\t")
			if len(fields) < 2 {
				return nil, errors.New(errors.ErrCodeMalformedTaggerOutput, "data line without label field").
					WithDetailf("line %d: %q", n+1, line)
			}
			id := fields[0]
			if !strings.Contains(id, IDSeparator) {
				return nil, errors.New(errors.ErrCodeMalformedTaggerOutput, "token id is not document-qualified").
					WithDetailf("line %d: %q", n+1, id)
			}
			if fields[len(fields)-1] == OutsideLabel {
				flush()
				continue
			}
			current.ids = append(current.ids, id)
			current.words = append(current.words, fields[1])
		}
	}
	flush()

	return selectSequences(spans, opts), nil
}

// ReadSequences is ParseSequences over a stream.
func ReadSequences(r io.Reader, opts ParseOptions) ([]Sequence, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMalformedTaggerOutput, "failed to read tagger output")
	}
	return ParseSequences(lines, opts)
}

func selectSequences(spans []rankedSpan, opts ParseOptions) []Sequence {
	discarded := make([]bool, len(spans))
	for i, s1 := range spans {
		if !s1.ranked {
			continue
		}
		for j, s2 := range spans {
			if i == j || !s2.ranked || s1.rank <= s2.rank {
				continue
			}
			if sharesToken(s1.ids, s2.ids) {
				discarded[i] = true
				break
			}
		}
	}

	out := make([]Sequence, 0, len(spans))
	seen := make(map[string]struct{}, len(spans))
	for i, s := range spans {
		if discarded[i] {
			continue
		}
		key := strings.Join(s.ids, " ")
		if _, dup := seen[key]; dup && opts.RemoveDuplicates {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Sequence{TokenIDs: s.ids, Words: s.words})
	}
	return out
}

func sharesToken(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
