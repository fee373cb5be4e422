package layout

import "strings"

// PageLine is one reconstructed line: its anchor and the words on it
type PageLine struct {
	Line int    `json:"line"`
	Text []Word `json:"text"`
}

// Page is the structured result of one image, lines in the order they were first seen
type Page []PageLine

// Structure rebuilds a page from raw TSV records.
// Records that fail to parse are dropped; they never fail the page.
func Structure(records []string) Page {
	tokens := make([]Token, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record) == "" {
			continue
		}
		tok, err := ParseRecord(record)
		if err != nil {
			continue
		}
		tokens = append(tokens, tok)
	}

	lines := ClusterLines(tokens)

	page := make(Page, 0, len(lines))
	for _, line := range lines {
		page = append(page, PageLine{
			Line: line.Y,
			Text: AssembleWords(line),
		})
	}

	return page
}

// StructureTSV splits raw engine output into records and structures them
func StructureTSV(raw string) Page {
	records := strings.Split(raw, "\n")
	for i, record := range records {
		records[i] = strings.TrimSuffix(record, "\r")
	}
	return Structure(records)
}

// WordCount returns the number of words across all lines
func (p Page) WordCount() int {
	n := 0
	for _, line := range p {
		n += len(line.Text)
	}
	return n
}

// Text renders the page as plain text, one line per PageLine and words separated by a space
func (p Page) Text() string {
	var sb strings.Builder
	for i, line := range p {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for j, word := range line.Text {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(word.Text)
		}
	}
	return sb.String()
}
