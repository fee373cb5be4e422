package layout

import (
	"math"
	"sort"
)

// WordTolerance is the share of a word's average token width allowed between its
// right edge and the next token
const WordTolerance = 0.5

// Word is a horizontal run of tokens within one line
type Word struct {
	Text  string `json:"text"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	W     int    `json:"w"`
	H     int    `json:"h"`
	Count int    `json:"l"`
}

func newWord(tok Token) Word {
	return Word{
		Text:  tok.Text,
		X:     tok.X,
		Y:     tok.Y,
		W:     tok.W,
		H:     tok.H,
		Count: 1,
	}
}

// right returns the x coordinate of the word's right edge
func (w *Word) right() int {
	return w.X + w.W
}

// accepts reports whether tok starts close enough to the word's right edge
func (w *Word) accepts(tok Token) bool {
	avg := float64(w.W) / float64(w.Count)
	return math.Abs(float64(w.right()-tok.X)) <= avg*WordTolerance
}

// merge appends tok and stretches the width over the gap and the token
func (w *Word) merge(tok Token) {
	w.Text += " " + tok.Text
	w.Count++
	w.W += (tok.X - w.right()) + tok.W
}

// AssembleWords sorts a line's tokens left to right and merges neighbours into words.
// A token merges into the first word that accepts it, otherwise it starts a new word.
func AssembleWords(line Line) []Word {
	members := make([]Token, len(line.Members))
	copy(members, line.Members)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].X < members[j].X
	})

	words := make([]Word, 0)
	for _, tok := range members {
		merged := false
		for i := range words {
			if words[i].accepts(tok) {
				words[i].merge(tok)
				merged = true
				break
			}
		}

		if !merged {
			words = append(words, newWord(tok))
		}
	}

	return words
}
