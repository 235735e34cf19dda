// Package documents inspects local files before they are uploaded: size,
// content hash, page count and a short text preview.
package documents

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/docchat/cli/internal/logger"
)

// Inspection describes a local file.
type Inspection struct {
	Path      string
	Name      string
	Extension string
	Size      int64
	SHA256    string
	Pages     int
	Preview   string
}

// Inspector builds Inspections. PDF and EPUB go through MuPDF; plain text
// is read directly; anything else gets size and hash only.
type Inspector struct {
	fitz         Parser
	epubFallback Parser
	previewWidth int
	logger       *logger.Logger
}

// NewInspector creates an inspector whose previews fit previewWidth
// terminal cells.
func NewInspector(previewWidth int, log *logger.Logger) *Inspector {
	if previewWidth <= 0 {
		previewWidth = 240
	}
	return &Inspector{
		fitz:         NewFitzParser(3),
		epubFallback: &EPUBZipParser{},
		previewWidth: previewWidth,
		logger:       log.With("component", "documents"),
	}
}

// Inspect reads the file at path. A failing text extraction is logged and
// leaves Pages and Preview empty; only an unreadable file is an error.
func (i *Inspector) Inspect(path string) (*Inspection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	hash, err := computeFileHash(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	out := &Inspection{
		Path:      path,
		Name:      filepath.Base(path),
		Extension: ext,
		Size:      info.Size(),
		SHA256:    hash,
	}

	var parsed *Parsed
	switch ext {
	case "pdf":
		parsed, err = i.fitz.Parse(path)
	case "epub":
		parsed, err = i.fitz.Parse(path)
		if err != nil {
			i.logger.Debug("falling back to zip EPUB reader", "path", path, "error", err)
			parsed, err = i.epubFallback.Parse(path)
		}
	case "txt", "md", "csv", "log":
		parsed, err = readText(path, 64*1024)
	}
	if err != nil {
		i.logger.Warn("failed to extract text", "path", path, "error", err)
		return out, nil
	}
	if parsed != nil {
		out.Pages = parsed.Pages
		out.Preview = i.preview(parsed.Text)
	}
	return out, nil
}

func (i *Inspector) preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return runewidth.Truncate(text, i.previewWidth, "…")
}

// readText reads up to limit bytes of a text file. A rune cut by the limit
// is dropped.
func readText(path string, limit int64) (*Parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, err
	}
	for k := 0; k < utf8.UTFMax-1 && len(data) > 0; k++ {
		if r, size := utf8.DecodeLastRune(data); r != utf8.RuneError || size != 1 {
			break
		}
		data = data[:len(data)-1]
	}
	return &Parsed{Pages: 1, Text: strings.ToValidUTF8(string(data), "\uFFFD")}, nil
}

// computeFileHash computes SHA256 hash of a file
func computeFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// HumanSize formats a byte count, e.g. "1.5 MB".
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
