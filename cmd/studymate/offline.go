package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xxxsen/studymate/internal/extract"
	"github.com/xxxsen/studymate/internal/model"
	"github.com/xxxsen/studymate/internal/retrieval"
)

type chunkOutput struct {
	File      string        `json:"file"`
	PageCount int           `json:"page_count"`
	Chars     int           `json:"chars"`
	Chunks    []model.Chunk `json:"chunks"`
}

type queryOutput struct {
	File     string              `json:"file"`
	Query    string              `json:"query"`
	Keywords []string            `json:"keywords"`
	Results  []model.ScoredChunk `json:"results"`
}

func newExtractor(pdfTool string) extract.Extractor {
	return extract.NewMux(pdfTool)
}

func chunkFile(ctx context.Context, ex extract.Extractor, path string, size, overlap int) (*chunkOutput, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := ex.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}
	chunks := retrieval.Chunk(res.Text, size, overlap)
	if chunks == nil {
		chunks = []model.Chunk{}
	}
	return &chunkOutput{
		File:      path,
		PageCount: res.PageCount,
		Chars:     len([]rune(res.Text)),
		Chunks:    chunks,
	}, nil
}

func queryFile(ctx context.Context, ex extract.Extractor, path, query string, size, overlap, maxChunks int) (*queryOutput, error) {
	chunked, err := chunkFile(ctx, ex, path, size, overlap)
	if err != nil {
		return nil, err
	}
	return &queryOutput{
		File:     path,
		Query:    query,
		Keywords: retrieval.Keywords(query),
		Results:  retrieval.FindRelevantChunks(chunked.Chunks, query, maxChunks),
	}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
