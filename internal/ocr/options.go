package ocr

import "strings"

// TabularFlag switches Tesseract to its 12-column TSV output
const TabularFlag = "-c tessedit_create_tsv=1"

// tsvConfig is the config-file shorthand for TabularFlag
const tsvConfig = "tsv"

// tsvVariable is the -c assignment that enables TSV output
const tsvVariable = "tessedit_create_tsv=1"

// valueFlags take the following argv word as their value
var valueFlags = map[string]bool{
	"-l":              true,
	"--psm":           true,
	"--oem":           true,
	"--dpi":           true,
	"--tessdata-dir":  true,
	"--user-words":    true,
	"--user-patterns": true,
}

// Options are engine flags passed through verbatim. Each element is one flag together
// with its value, e.g. "-l eng" or "--psm 6".
type Options []string

// Tabular reports whether the options request TSV output. The argv words are
// scanned as a whole, so a flag split across elements is still seen.
func (o Options) Tabular() bool {
	return len(o.tabularWords()) > 0
}

// WithTabular returns the options with TabularFlag present
func (o Options) WithTabular() Options {
	if o.Tabular() {
		return o
	}
	out := make(Options, 0, len(o)+1)
	out = append(out, o...)
	return append(out, TabularFlag)
}

// WithoutTabular returns the options with every TSV switch removed. Elements
// that only held a switch are dropped.
func (o Options) WithoutTabular() Options {
	drop := o.tabularWords()
	if len(drop) == 0 {
		return o
	}

	out := make(Options, 0, len(o))
	for i, opt := range o {
		fields := strings.Fields(opt)
		kept := fields[:0:0]
		for j, f := range fields {
			if !drop[wordPos{i, j}] {
				kept = append(kept, f)
			}
		}

		switch {
		case len(kept) == len(fields):
			out = append(out, opt)
		case len(kept) > 0:
			out = append(out, strings.Join(kept, " "))
		}
	}
	return out
}

// Args splits the options into argv words
func (o Options) Args() []string {
	args := make([]string, 0, len(o))
	for _, opt := range o {
		args = append(args, strings.Fields(opt)...)
	}
	return args
}

// OutputExt is the extension the engine appends to its output base
func (o Options) OutputExt() string {
	if o.Tabular() {
		return ".tsv"
	}
	return ".txt"
}

// wordPos locates an argv word: element index, then field index within it
type wordPos struct{ elem, field int }

// tabularWords returns the positions of the words that switch on TSV output
func (o Options) tabularWords() map[wordPos]bool {
	type word struct {
		pos  wordPos
		text string
	}

	var words []word
	for i, opt := range o {
		for j, f := range strings.Fields(opt) {
			words = append(words, word{wordPos{i, j}, f})
		}
	}

	found := make(map[wordPos]bool)
	for i := 0; i < len(words); i++ {
		switch w := words[i].text; {
		case w == "-c":
			if i+1 < len(words) && words[i+1].text == tsvVariable {
				found[words[i].pos] = true
				found[words[i+1].pos] = true
			}
			i++
		case valueFlags[w]:
			i++
		case w == tsvConfig:
			found[words[i].pos] = true
		}
	}
	return found
}
