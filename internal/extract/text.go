package extract

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
)

type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (t *TextExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	raw, err := readFile(ctx, "text", path)
	if err != nil {
		return nil, err
	}
	return &Result{Text: strings.ToValidUTF8(string(raw), "\uFFFD"), PageCount: 1}, nil
}

func readFile(ctx context.Context, op, path string) ([]byte, error) {
	if path == "" {
		return nil, permanent(op, path, ErrEmptyPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, transient(op, path, err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, permanent(op, path, err)
		}
		return nil, transient(op, path, err)
	}
	return raw, nil
}
