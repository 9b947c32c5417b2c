package opinion

import (
	"strconv"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
)

const (
	// PolarityDSE is the generic subjective-expression marker put on every
	// new expression until a polarity classifier overwrites it.
	PolarityDSE = "DSE"

	// DefaultStrength is the strength of every new expression.
	DefaultStrength = "1"
)

// Triple is one opinion: an expression with at most one target and one
// holder.
type Triple struct {
	Expression *SpanEntity
	Target     *SpanEntity
	Holder     *SpanEntity
}

// OpinionSink is the write side of an annotation document.
type OpinionSink interface {
	TermForToken(tokenID string) (string, bool)
	OpinionIDs() []string
	AddOpinion(o annotation.Opinion)
	AddProcessor(layer string, p annotation.LinguisticProcessor)
}

// Assemble produces exactly one triple per expression, in expression order.
// The first pair anchored on an expression supplies its target (resp.
// holder).
func Assemble(expressions []*SpanEntity, targetPairs, holderPairs []MatchedPair) []Triple {
	triples := make([]Triple, 0, len(expressions))
	for _, e := range expressions {
		triples = append(triples, Triple{
			Expression: e,
			Target:     firstCandidateFor(e, targetPairs),
			Holder:     firstCandidateFor(e, holderPairs),
		})
	}
	return triples
}

// firstCandidateFor matches anchors by identity, or by id when both carry
// one.  Entities parsed from lines have no id and only match themselves.
func firstCandidateFor(anchor *SpanEntity, pairs []MatchedPair) *SpanEntity {
	for _, p := range pairs {
		if p.Anchor == anchor {
			return p.Candidate
		}
		if p.Anchor != nil && anchor.ID != "" && p.Anchor.ID == anchor.ID {
			return p.Candidate
		}
	}
	return nil
}

// Inject registers proc on the opinions layer and appends one opinion record
// per triple.  Ids are allocated by scanning o1, o2, ... and skipping every id
// already present.  It returns the allocated ids in triple order.
//
// Token ids without a term are skipped.  An expression whose tokens map to no
// term still yields a record with an empty span; a target or holder in that
// situation is left out.
func Inject(triples []Triple, doc OpinionSink, proc annotation.LinguisticProcessor) []string {
	used := make(map[string]struct{})
	for _, id := range doc.OpinionIDs() {
		used[id] = struct{}{}
	}

	doc.AddProcessor(annotation.LayerOpinions, proc)

	ids := make([]string, 0, len(triples))
	next := 1
	for _, t := range triples {
		var id string
		for {
			id = "o" + strconv.Itoa(next)
			if _, taken := used[id]; !taken {
				break
			}
			next++
		}
		used[id] = struct{}{}

		op := annotation.Opinion{
			ID: id,
			Expression: &annotation.Expression{
				Span:     termSpan(doc, t.Expression),
				Polarity: PolarityDSE,
				Strength: DefaultStrength,
				Comment:  t.Expression.Text(),
			},
		}
		if t.Target != nil {
			if span := termSpan(doc, t.Target); len(span) > 0 {
				op.Target = &annotation.Argument{Span: span, Comment: t.Target.Text()}
			}
		}
		if t.Holder != nil {
			if span := termSpan(doc, t.Holder); len(span) > 0 {
				op.Holder = &annotation.Argument{Span: span, Comment: t.Holder.Text()}
			}
		}

		doc.AddOpinion(op)
		ids = append(ids, id)
	}
	return ids
}

// termSpan maps every token id to its term id.  Unmapped tokens are skipped;
// a term spanning several tokens is repeated once per token.
func termSpan(doc OpinionSink, e *SpanEntity) annotation.Span {
	span := annotation.Span{}
	for _, tid := range e.TokenIDs {
		if term, ok := doc.TermForToken(tid); ok {
			span = append(span, term)
		}
	}
	return span
}
