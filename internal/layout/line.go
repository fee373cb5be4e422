package layout

import "math"

// LineTolerance is the share of a token's height its top may drift from a line anchor
const LineTolerance = 0.5

// Line is a vertical cluster of tokens anchored at the top of its first member
type Line struct {
	Y       int
	Members []Token
}

// accepts reports whether tok lies on this line
func (l *Line) accepts(tok Token) bool {
	return math.Abs(float64(l.Y-tok.Y)) <= float64(tok.H)*LineTolerance
}

// ClusterLines groups tokens into lines in the order the tokens are given.
// Each token joins the first line that accepts it; a token no line accepts starts
// a new line at the end of the result.
func ClusterLines(tokens []Token) []Line {
	lines := make([]Line, 0)

	for _, tok := range tokens {
		joined := false
		for i := range lines {
			if lines[i].accepts(tok) {
				lines[i].Members = append(lines[i].Members, tok)
				joined = true
				break
			}
		}

		if !joined {
			lines = append(lines, Line{Y: tok.Y, Members: []Token{tok}})
		}
	}

	return lines
}
