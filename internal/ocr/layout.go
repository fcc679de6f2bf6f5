package ocr

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBlankLine  = regexp.MustCompile(`\n[ \t]*\n`)
	reColumnGap  = regexp.MustCompile(`\S {2,}\S`)
	reColumns    = regexp.MustCompile(` {2,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// Normalize collapses noisy whitespace. Line breaks are kept; runs of blank
// lines collapse to one.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// layoutElements splits one page of pdftotext -layout output into blocks on
// blank lines. A block of two or more lines where every line has a column gap
// becomes a table; anything else is a text span.
func layoutElements(page int, text string) []extract.Element {
	text = reCRLF.ReplaceAllString(text, "\n")
	text = reBoxNoise.ReplaceAllString(text, "")

	var out []extract.Element
	for _, block := range reBlankLine.Split(text, -1) {
		lines := nonEmptyLines(block)
		if len(lines) == 0 {
			continue
		}
		if isTabular(lines) {
			rows := make([][]string, 0, len(lines))
			for _, ln := range lines {
				rows = append(rows, reColumns.Split(strings.TrimSpace(ln), -1))
			}
			out = append(out, extract.Table{Page: page, Rows: rows})
			continue
		}
		if t := Normalize(strings.Join(lines, "\n")); t != "" {
			out = append(out, extract.Text{Page: page, Content: t})
		}
	}
	return out
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, ln := range strings.Split(block, "\n") {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}

func isTabular(lines []string) bool {
	if len(lines) < 2 {
		return false
	}
	for _, ln := range lines {
		if !reColumnGap.MatchString(strings.TrimSpace(ln)) {
			return false
		}
	}
	return true
}
