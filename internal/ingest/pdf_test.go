package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// textPDF renders one Helvetica line per page. Empty strings give pages
// without text.
func textPDF(pages ...string) []byte {
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 595 842] >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	for i, text := range pages {
		objs = append(objs, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := fmt.Sprintf("BT /F1 12 Tf 72 770 Td (%s) Tj ET", text)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func writePDF(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestPDFExtractor_ReadsTextLayer(t *testing.T) {
	path := writePDF(t, t.TempDir(), "gizi.pdf", textPDF("Susu mengandung kalsium", "", "Bayam kaya zat besi"))

	text, err := NewPDFExtractor().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Susu mengandung kalsium\nBayam kaya zat besi\n", text)
}

func TestPDFExtractor_Corrupt(t *testing.T) {
	valid := textPDF("Susu mengandung kalsium")

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", valid[:len(valid)/2]},
		{"bad xref offset", bytes.Replace(valid, []byte("startxref\n"), []byte("startxref\n9"), 1)},
		{"not a pdf", []byte("<html>bukan pdf</html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePDF(t, t.TempDir(), "rusak.pdf", tt.data)
			_, err := NewPDFExtractor().Extract(context.Background(), path)
			assert.Error(t, err)
		})
	}
}

func TestPDFExtractor_Cancelled(t *testing.T) {
	path := writePDF(t, t.TempDir(), "gizi.pdf", textPDF("Susu mengandung kalsium"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFExtractor().Extract(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDirectory_CorruptPDFIsSkipped(t *testing.T) {
	dir := t.TempDir()
	valid := textPDF("Ikan kembung kaya omega-3")
	writePDF(t, dir, "a_ikan.pdf", valid)
	writePDF(t, dir, "b_rusak.pdf", valid[:len(valid)/2])
	writeFile(t, dir, "c_air.txt", "Minum 8 gelas per hari.")

	core, logs := observer.New(zapcore.WarnLevel)
	docs, err := NewLoader(zap.New(core)).LoadDirectory(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, Document{Source: "a_ikan.pdf", Text: "Ikan kembung kaya omega-3\n"}, docs[0])
	assert.Equal(t, "c_air.txt", docs[1].Source)

	warnings := logs.FilterMessage("skipping document").All()
	require.Len(t, warnings, 1)
	var corpusErr *CorpusError
	for _, f := range warnings[0].Context {
		if f.Key == "error" {
			require.True(t, errors.As(f.Interface.(error), &corpusErr))
		}
	}
	require.NotNil(t, corpusErr)
	assert.Equal(t, "b_rusak.pdf", corpusErr.Source)
}
