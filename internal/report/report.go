// Package report renders a finished bulletin as a printable PDF.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SectionHeaders are the analysis headings rendered in bold.
var SectionHeaders = []string{
	"Current Drought Conditions",
	"Food Security and Production",
	"Water Resources",
	"Food Prices",
}

// Bulletin is the content of one report.
type Bulletin struct {
	Title        string
	Region       string
	GeneratedAt  time.Time
	Analysis     string
	Sources      []string
	URLsAnalyzed int
}

// WriteFile renders b to path.
func WriteFile(path string, b Bulletin) error {
	f, err := os.Create(path) //nolint:gosec // operator-supplied output path
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Write(f, b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// Write renders b as an A4 PDF. Known section headers start bold headings;
// everything else is flowed as paragraphs.
func Write(w io.Writer, b Bulletin) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(title(b)), false)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, tr(title(b)), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	meta := b.GeneratedAt.UTC().Format("2 January 2006 15:04 MST")
	if b.URLsAnalyzed > 0 {
		meta += fmt.Sprintf(" | %d URLs analyzed", b.URLsAnalyzed)
	}
	pdf.CellFormat(0, 6, meta, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	scanner := bufio.NewScanner(strings.NewReader(b.Analysis))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(3)
			continue
		}
		if header, rest, ok := splitHeader(line); ok {
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 12)
			pdf.CellFormat(0, 7, tr(header), "", 1, "L", false, 0, "")
			if rest == "" {
				continue
			}
			line = rest
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read analysis: %w", err)
	}

	if len(b.Sources) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "Sources", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		for _, src := range b.Sources {
			pdf.WriteLinkString(5, tr(src), src)
			pdf.Ln(5)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func title(b Bulletin) string {
	if b.Title != "" {
		return b.Title
	}
	region := b.Region
	if region == "" {
		region = "Global Overview"
	}
	return "Drought Bulletin: " + region
}

// splitHeader recognizes "Header:" and "Header: text" lines, tolerating list
// numbering such as "1. Header:".
func splitHeader(line string) (header, rest string, ok bool) {
	trimmed := strings.TrimLeft(line, "0123456789.#*) ")
	for _, h := range SectionHeaders {
		if len(trimmed) <= len(h) || !strings.EqualFold(trimmed[:len(h)], h) {
			continue
		}
		after := strings.TrimLeft(trimmed[len(h):], "*")
		if !strings.HasPrefix(after, ":") {
			continue
		}
		return h, strings.TrimSpace(after[1:]), true
	}
	return "", "", false
}
