package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// pdfToText returns the layout text of each page. pdftotext ends every page
// with a form feed, so the final empty segment is not a page.
func (e *Engine) pdfToText(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, truncate(string(errb), 512))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return strings.Split(strings.TrimSuffix(string(out), "\f"), "\f"), nil
}

// ocrPage renders one page to PNG and runs tesseract over it.
func (e *Engine) ocrPage(ctx context.Context, path, tmpDir string, page int) (string, error) {
	p := strconv.Itoa(page)
	prefix := filepath.Join(tmpDir, "page"+p)
	// pdftoppm -f N -l N -r 200 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-f", p, "-l", p, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads the page suffix to the width of the page count
	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no image for page %d", page)
	}
	img := matches[0]

	txt, err := e.tesseract(ctx, img)
	if err != nil {
		return "", err
	}
	return Normalize(txt), nil
}

func (e *Engine) tesseract(ctx context.Context, img string) (string, error) {
	args := []string{img, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
