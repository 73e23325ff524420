package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

const defaultPDFTool = "pdftotext"

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

type exitCoder interface {
	ExitCode() int
}

type PDFExtractor struct {
	tool   string
	runner CommandRunner
}

func NewPDFExtractor(tool string) *PDFExtractor {
	return NewPDFExtractorWithRunner(tool, execRunner{})
}

func NewPDFExtractorWithRunner(tool string, runner CommandRunner) *PDFExtractor {
	if tool == "" {
		tool = defaultPDFTool
	}
	return &PDFExtractor{tool: tool, runner: runner}
}

// CheckAvailable reports ErrToolNotFound when the pdftotext binary cannot be
// found in PATH.
func CheckAvailable(tool string) error {
	if tool == "" {
		tool = defaultPDFTool
	}
	if _, err := exec.LookPath(tool); err != nil {
		return ErrToolNotFound
	}
	return nil
}

func (p *PDFExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	if path == "" {
		return nil, permanent("pdf", path, ErrEmptyPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, transient("pdf", path, err)
	}
	out, err := p.runner.Run(ctx, p.tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, classifyRunError(ctx, path, err)
	}
	raw := strings.ToValidUTF8(string(out), "\uFFFD")
	return &Result{Text: raw, PageCount: countPages(raw)}, nil
}

func classifyRunError(ctx context.Context, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return transient("pdf", path, ctxErr)
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return permanent("pdf", path, ErrToolNotFound)
	}
	var ec exitCoder
	if errors.As(err, &ec) && ec.ExitCode() > 0 {
		return permanent("pdf", path, fmt.Errorf("unreadable pdf: %w", err))
	}
	return transient("pdf", path, err)
}

// countPages counts form-feed separated pages. pdftotext terminates every
// page, including the last one, with a form feed.
func countPages(out string) int {
	if strings.TrimSpace(out) == "" && !strings.Contains(out, "\f") {
		return 0
	}
	pages := strings.Count(out, "\f")
	if !strings.HasSuffix(out, "\f") {
		pages++
	}
	return pages
}
