package extract

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

const (
	weightText    = 1
	weightTable   = 3
	weightPicture = 2

	complexityCap = 25.0
	blockSep      = "\n\n"
)

// Complexity scores a page in [0, 1], rounded to four decimals.
func Complexity(texts, tables, pictures int) float64 {
	raw := float64(texts*weightText+tables*weightTable+pictures*weightPicture) / complexityCap
	return math.Round(math.Min(1.0, raw)*1e4) / 1e4
}

type pageBucket struct {
	texts    []string
	tables   []entity.TableData
	pictures []string
}

// BuildPageRecords turns an engine document into one record per page, numbered
// 1..doc.Pages. Elements with no page or a page out of range are dropped. Pages
// with no elements still produce a record.
func BuildPageRecords(doc *Document) []entity.PageRecord {
	if doc == nil || doc.Pages <= 0 {
		return nil
	}

	buckets := make([]pageBucket, doc.Pages)
	for _, el := range doc.Elements {
		if el == nil {
			continue
		}
		p := el.PageNo()
		if p < 1 || p > doc.Pages {
			continue
		}
		b := &buckets[p-1]

		switch el.Kind() {
		case KindText:
			if ts, ok := el.(TextSpan); ok {
				if t := strings.TrimSpace(ts.Text()); t != "" {
					b.texts = append(b.texts, t)
				}
			}
		case KindTable:
			td := entity.TableData{}
			if te, ok := el.(TableExporter); ok {
				td = exportTable(te)
			}
			b.tables = append(b.tables, td)
		case KindPicture:
			b.pictures = append(b.pictures, pictureTexts(el)...)
		}
	}

	out := make([]entity.PageRecord, 0, doc.Pages)
	for i, b := range buckets {
		counts := entity.ElementCounts{
			TextBlocks: len(b.texts),
			Tables:     len(b.tables),
			Pictures:   len(b.pictures),
		}
		out = append(out, entity.PageRecord{
			SlideNumber:     i + 1,
			TextContent:     joinBlocks(b.texts),
			TablesData:      b.tables,
			ImagesOCRText:   joinBlocks(b.pictures),
			ElementCounts:   counts,
			ComplexityScore: Complexity(counts.TextBlocks, counts.Tables, counts.Pictures),
		})
	}
	return out
}

// exportTable never fails; a table that cannot be rendered is kept with empty
// representations so it still counts.
func exportTable(te TableExporter) entity.TableData {
	md, err := te.ExportMarkdown()
	if err != nil {
		return entity.TableData{}
	}
	csv, err := te.ExportCSV()
	if err != nil {
		return entity.TableData{}
	}
	return entity.TableData{Markdown: md, CSV: csv}
}

// pictureTexts collects captions then annotations. Reading stops at the first
// failure; texts read before it are kept.
func pictureTexts(el Element) []string {
	var raw []string
	if c, ok := el.(Captioned); ok {
		caps, err := c.Captions()
		if err != nil {
			return nil
		}
		raw = append(raw, caps...)
	}
	if a, ok := el.(Annotated); ok {
		if anns, err := a.Annotations(); err == nil {
			raw = append(raw, anns...)
		}
	}

	out := raw[:0]
	for _, t := range raw {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func joinBlocks(parts []string) *string {
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, blockSep)
	return &s
}
