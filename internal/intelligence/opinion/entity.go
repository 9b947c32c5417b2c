package opinion

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType is the closed set of span kinds.
type EntityType int

const (
	EntityExpression EntityType = iota + 1
	EntityTarget
	EntityHolder
)

// String returns the wire name used in entity lines.
func (t EntityType) String() string {
	switch t {
	case EntityExpression:
		return "DSE"
	case EntityTarget:
		return "TARGET"
	case EntityHolder:
		return "HOLDER"
	default:
		return fmt.Sprintf("EntityType(%d)", int(t))
	}
}

// ParseEntityType accepts the wire names plus "EXPRESSION".
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DSE", "EXPRESSION":
		return EntityExpression, nil
	case "TARGET":
		return EntityTarget, nil
	case "HOLDER":
		return EntityHolder, nil
	default:
		return 0, errors.New(errors.ErrCodeMalformedEntityLine, "unknown entity type").WithDetail(s)
	}
}

// ---------------------------------------------------------------------------
// SpanEntity
// ---------------------------------------------------------------------------

// SpanEntity is one detected span: its type, the document it comes from and
// the ordered token ids with their words.  Position metrics are derived on
// demand.
type SpanEntity struct {
	ID       string
	Type     EntityType
	Document string
	TokenIDs []string
	Words    []string
}

// NewSpanEntity validates and copies its inputs.
func NewSpanEntity(id string, typ EntityType, document string, tokenIDs, words []string) (*SpanEntity, error) {
	if len(tokenIDs) == 0 {
		return nil, errors.InvalidParam("span entity needs at least one token").WithDetail(id)
	}
	if len(tokenIDs) != len(words) {
		return nil, errors.InvalidParam("token ids and words differ in length").
			WithDetailf("id=%s ids=%d words=%d", id, len(tokenIDs), len(words))
	}
	return &SpanEntity{
		ID:       id,
		Type:     typ,
		Document: document,
		TokenIDs: append([]string(nil), tokenIDs...),
		Words:    append([]string(nil), words...),
	}, nil
}

// EntityFromSequence strips the document prefix from every qualified token id
// of seq.
func EntityFromSequence(id string, typ EntityType, seq Sequence) (*SpanEntity, error) {
	doc, ids, err := splitQualifiedIDs(seq.TokenIDs)
	if err != nil {
		return nil, err
	}
	return NewSpanEntity(id, typ, doc, ids, seq.Words)
}

// EntitiesFromSequences numbers entities "<prefix>#0", "<prefix>#1", ...
func EntitiesFromSequences(prefix string, typ EntityType, seqs []Sequence) ([]*SpanEntity, error) {
	out := make([]*SpanEntity, 0, len(seqs))
	for n, seq := range seqs {
		e, err := EntityFromSequence(fmt.Sprintf("%s#%d", prefix, n), typ, seq)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// splitQualifiedIDs splits every "doc#tid" at its last separator.  The
// document of the last id is returned.
func splitQualifiedIDs(qualified []string) (string, []string, error) {
	var doc string
	ids := make([]string, 0, len(qualified))
	for _, q := range qualified {
		p := strings.LastIndex(q, IDSeparator)
		if p < 0 {
			return "", nil, errors.New(errors.ErrCodeMalformedEntityLine, "token id is not document-qualified").WithDetail(q)
		}
		doc = q[:p]
		ids = append(ids, q[p+1:])
	}
	return doc, ids, nil
}

// QualifiedTokenIDs returns "document#tid" for every token.
func (e *SpanEntity) QualifiedTokenIDs() []string {
	out := make([]string, len(e.TokenIDs))
	for i, tid := range e.TokenIDs {
		out[i] = e.Document + IDSeparator + tid
	}
	return out
}

// Text joins the words with single spaces.
func (e *SpanEntity) Text() string { return strings.Join(e.Words, " ") }

// Line serialises e as "TYPE<TAB>words<TAB>doc#id doc#id".
func (e *SpanEntity) Line() string {
	return e.Type.String() + "\t" + e.Text() + "\t" + strings.Join(e.QualifiedTokenIDs(), " ")
}

func (e *SpanEntity) String() string { return e.ID + " " + e.Line() }

// ParseEntityLine inverts Line.  Entities read back carry no id.
func ParseEntityLine(line string) (*SpanEntity, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	if len(fields) != 3 {
		return nil, errors.New(errors.ErrCodeMalformedEntityLine, "expected 3 tab-separated fields").
			WithDetailf("%q", line)
	}
	typ, err := ParseEntityType(fields[0])
	if err != nil {
		return nil, err
	}
	qualified := strings.Fields(fields[2])
	if len(qualified) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedEntityLine, "entity has no token ids").WithDetailf("%q", line)
	}
	doc, ids, err := splitQualifiedIDs(qualified)
	if err != nil {
		return nil, err
	}
	return &SpanEntity{
		Type:     typ,
		Document: doc,
		TokenIDs: ids,
		Words:    strings.Split(fields[1], " "),
	}, nil
}

// ReadEntities parses one entity per non-blank line.
func ReadEntities(r io.Reader) ([]*SpanEntity, error) {
	var out []*SpanEntity
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		e, err := ParseEntityLine(sc.Text())
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, fmt.Sprintf("entity line %d", n))
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMalformedEntityLine, "failed to read entity lines")
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Position metrics
// ---------------------------------------------------------------------------

// AverageOffset is the mean character offset of the entity's tokens.
func (e *SpanEntity) AverageOffset(doc TokenSource) (float64, error) {
	total := 0
	for _, tid := range e.TokenIDs {
		tok, ok := doc.Token(tid)
		if !ok {
			return 0, errors.New(errors.ErrCodeUnknownToken, "token not present in document").
				WithDetailf("entity=%s token=%s", e.ID, tid)
		}
		total += tok.Offset
	}
	return float64(total) / float64(len(e.TokenIDs)), nil
}

// AverageRank is the mean rank of the entity's tokens in ix.
func (e *SpanEntity) AverageRank(ix *PositionalIndex) (float64, error) {
	total := 0
	for _, tid := range e.TokenIDs {
		r, err := ix.Rank(tid)
		if err != nil {
			return 0, err
		}
		total += r
	}
	return float64(total) / float64(len(e.TokenIDs)), nil
}

// Sentence returns the sentence of the entity's first token.
func (e *SpanEntity) Sentence(doc TokenSource) (string, error) {
	tok, ok := doc.Token(e.TokenIDs[0])
	if !ok {
		return "", errors.New(errors.ErrCodeUnknownToken, "token not present in document").
			WithDetailf("entity=%s token=%s", e.ID, e.TokenIDs[0])
	}
	return tok.Sentence, nil
}
