package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/submissions-pipeline/internal/extract"
)

type stubRunner struct {
	pdftotext string
	ocrText   string
	ocrErr    error
	calls     map[string]int
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
	switch name {
	case "pdftotext":
		return []byte(s.pdftotext), nil, nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		if err := os.WriteFile(prefix+"-1.png", []byte("png"), 0o600); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	case "tesseract":
		if s.ocrErr != nil {
			return nil, []byte("tesseract failed"), s.ocrErr
		}
		return []byte(s.ocrText), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

const threePages = "Quarterly Review\n\nRevenue grew in every region.\nMargins held.\n\f" +
	"Region     Q1     Q2\nNorth      10     12\nSouth       8      9\n\f" +
	"   \n\f"

func TestConvert_PagesTextAndTables(t *testing.T) {
	r := &stubRunner{pdftotext: threePages, ocrText: "Scanned   diagram\n____\nlabels"}
	e := newEngine(Config{OCRImagePages: true}, r, quiet())

	doc, err := e.Convert(context.Background(), []byte("%PDF-1.7"))
	require.NoError(t, err)
	require.Equal(t, 3, doc.Pages)

	records := extract.BuildPageRecords(doc)
	require.Len(t, records, 3)

	require.NotNil(t, records[0].TextContent)
	assert.Equal(t, "Quarterly Review\n\nRevenue grew in every region.\nMargins held.", *records[0].TextContent)
	assert.Equal(t, 2, records[0].ElementCounts.TextBlocks)

	require.Len(t, records[1].TablesData, 1)
	assert.Equal(t, "Region,Q1,Q2\nNorth,10,12\nSouth,8,9\n", records[1].TablesData[0].CSV)
	assert.Nil(t, records[1].TextContent)

	require.NotNil(t, records[2].ImagesOCRText)
	assert.Equal(t, "Scanned diagram\n\nlabels", *records[2].ImagesOCRText)
	assert.Equal(t, 1, r.calls["pdftoppm"])
	assert.Equal(t, 1, r.calls["tesseract"])
}

func TestConvert_OCRFailureKeepsPage(t *testing.T) {
	r := &stubRunner{pdftotext: "\f", ocrErr: errors.New("exit status 1")}
	e := newEngine(Config{OCRImagePages: true}, r, quiet())

	doc, err := e.Convert(context.Background(), []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
	assert.Empty(t, doc.Elements)
}

func TestConvert_OCRDisabled(t *testing.T) {
	r := &stubRunner{pdftotext: "\f\f"}
	e := newEngine(Config{}, r, quiet())

	doc, err := e.Convert(context.Background(), []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Pages)
	assert.Zero(t, r.calls["pdftoppm"])
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b\n\nc", Normalize("a\t\tb  \r\n\n\n\nc  "))
	assert.Equal(t, "", Normalize(""))
}

func TestLayoutElements_SingleLineWithGapIsText(t *testing.T) {
	els := layoutElements(1, "Name      Value\n")
	require.Len(t, els, 1)
	assert.Equal(t, extract.KindText, els[0].Kind())
}
