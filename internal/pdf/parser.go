package pdf

import (
	"fmt"
	"os"

	lpdf "github.com/ledongthuc/pdf"
)

// Parser opens a PDF stored on disk.
type Parser interface {
	Open(path string) (Document, error)
}

// Document exposes per-page plain text. Pages are numbered from 1.
type Document interface {
	NumPages() int
	PageText(n int) (string, error)
	Close() error
}

// LedongthucParser reads PDFs with github.com/ledongthuc/pdf.
type LedongthucParser struct{}

// Open parses the file at path. A panic while reading the cross-reference
// table or trailer is returned as an error.
func (LedongthucParser) Open(path string) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open pdf: malformed document: %v", r)
		}
	}()
	f, reader, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &ledongthucDocument{file: f, reader: reader}, nil
}

type ledongthucDocument struct {
	file   *os.File
	reader *lpdf.Reader
}

func (d *ledongthucDocument) NumPages() int {
	return d.reader.NumPage()
}

// PageText extracts one page; the library panics on some malformed streams,
// which is reported as an error for that page only.
func (d *ledongthucDocument) PageText(n int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: malformed content: %v", n, r)
		}
	}()
	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing", n)
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", n, err)
	}
	return text, nil
}

func (d *ledongthucDocument) Close() error {
	return d.file.Close()
}
