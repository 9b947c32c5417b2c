package testutil

import (
	"strconv"

	"github.com/turtacn/opinion-miner/internal/domain/annotation"
)

// ReviewTokens lists the tokens of ReviewDocument as text, sentence, lemma,
// POS and character offset.
var ReviewTokens = []struct {
	Text, Sentence, Lemma, POS string
	Offset                     int
}{
	{"The", "1", "the", "DT", 0},
	{"hotel", "1", "hotel", "NN", 4},
	{"staff", "1", "staff", "NN", 10},
	{"loved", "1", "love", "VBD", 16},
	{"the", "1", "the", "DT", 22},
	{"room", "1", "room", "NN", 26},
	{"Food", "2", "food", "NN", 31},
	{"was", "2", "be", "VBD", 36},
	{"awful", "2", "awful", "JJ", 40},
}

// ReviewDocument builds a two-sentence document:
//
//	s1: The(0) hotel(4) staff(10) loved(16) the(22) room(26)
//	s2: Food(31) was(36) awful(40)
//
// Token w<N> is covered by the single-token term t<N>.  Ranks by descending
// offset run from w9 (0) to w1 (8).
func ReviewDocument() *annotation.Document {
	doc := &annotation.Document{ID: "review-1", Filename: annotation.StdinFilename, Language: "en"}
	for i, w := range ReviewTokens {
		tid := "w" + strconv.Itoa(i+1)
		doc.TokenList = append(doc.TokenList, annotation.Token{
			ID: tid, Text: w.Text, Sentence: w.Sentence, Offset: w.Offset, Length: len(w.Text),
		})
		doc.TermList = append(doc.TermList, annotation.Term{
			ID: "t" + strconv.Itoa(i+1), Lemma: w.Lemma, POS: w.POS, Span: annotation.Span{tid},
		})
	}
	return doc
}
