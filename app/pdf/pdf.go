// Package pdf holds the two PDF operations the service needs: pulling plain
// text out of an uploaded document and rendering generated text back into
// one.
package pdf

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	ledongthuc "github.com/ledongthuc/pdf"
)

var ErrNoText = errors.New("document contains no extractable text")

// ExtractText returns the plain text of every page, concatenated.
func ExtractText(content []byte) (string, error) {
	reader, err := ledongthuc.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if _, err = io.Copy(&sb, plain); err != nil {
		return "", err
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Render lays the text out on A4 pages, one paragraph per input line.
func Render(text string) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.AddPage()
	doc.SetFont("Arial", "", 12)

	translate := doc.UnicodeTranslatorFromDescriptor("")
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			doc.Ln(5)
			continue
		}
		doc.MultiCell(0, 6, translate(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
