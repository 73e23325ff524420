package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/studymate/internal/config"
)

const notes = `Photosynthesis converts light energy into chemical energy stored in glucose.
Chlorophyll inside the chloroplast absorbs the light.

Cellular respiration releases the energy held in glucose. The mitochondria carry out most of this work.`

func writeNotes(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(notes), 0o644))
	return path
}

func TestChunkFile(t *testing.T) {
	path := writeNotes(t, "notes.txt")
	out, err := chunkFile(context.Background(), newExtractor(""), path, 80, 10)
	require.NoError(t, err)
	require.NotEmpty(t, out.Chunks)
	assert.Equal(t, path, out.File)
	for i, c := range out.Chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.NotEmpty(t, c.Content)
	}
}

func TestChunkFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	out, err := chunkFile(context.Background(), newExtractor(""), path, 80, 10)
	require.NoError(t, err)
	require.NotNil(t, out.Chunks)
	require.Empty(t, out.Chunks)
}

func TestChunkFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.docx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04\x14\x00\x06\x00"), 0o644))
	_, err := chunkFile(context.Background(), newExtractor(""), path, 80, 10)
	require.Error(t, err)
}

func TestQueryFileRanksMatches(t *testing.T) {
	path := writeNotes(t, "notes.md")
	out, err := queryFile(context.Background(), newExtractor(""), path, "mitochondria", 80, 10, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"mitochondria"}, out.Keywords)
	require.NotEmpty(t, out.Results)
	require.LessOrEqual(t, len(out.Results), 2)
	assert.True(t, strings.Contains(strings.ToLower(out.Results[0].Content), "mitochondria"))
}

func TestChunkCommandPrintsJSON(t *testing.T) {
	path := writeNotes(t, "notes.txt")
	cmd := newChunkCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--file", path, "--size", "80", "--overlap", "10"})
	require.NoError(t, cmd.Execute())

	var out chunkOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.NotEmpty(t, out.Chunks)
}

func TestCommandsRequireFile(t *testing.T) {
	for _, cmd := range []interface {
		SetArgs([]string)
		Execute() error
	}{newChunkCmd(), newQueryCmd()} {
		cmd.SetArgs([]string{})
		require.Error(t, cmd.Execute())
	}
}

func TestBuildGeneratorUnknownProvider(t *testing.T) {
	require.Nil(t, buildGenerator(config.AIConfig{Provider: "nope"}))
}
