package extract

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Mux picks an extractor by file extension and falls back on the sniffed
// content type when the extension is unknown.
type Mux struct {
	byExt map[string]Extractor
	pdf   Extractor
	text  Extractor
}

func NewMux(pdfTool string) *Mux {
	return NewMuxWith(NewPDFExtractor(pdfTool), NewTextExtractor(), NewMarkdownExtractor())
}

func NewMuxWith(pdf, plain, markdown Extractor) *Mux {
	return &Mux{
		byExt: map[string]Extractor{
			".pdf":      pdf,
			".txt":      plain,
			".md":       markdown,
			".markdown": markdown,
		},
		pdf:  pdf,
		text: plain,
	}
}

// Supported reports whether a file name has an extension the mux handles.
func (m *Mux) Supported(name string) bool {
	_, ok := m.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (m *Mux) Extract(ctx context.Context, path string) (*Result, error) {
	if ex, ok := m.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return ex.Extract(ctx, path)
	}
	switch ct := sniff(path); {
	case ct == "application/pdf":
		return m.pdf.Extract(ctx, path)
	case strings.HasPrefix(ct, "text/plain"):
		return m.text.Extract(ctx, path)
	}
	return nil, permanent("detect", path, ErrUnsupported)
}

func sniff(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ""
	}
	return http.DetectContentType(head[:n])
}
