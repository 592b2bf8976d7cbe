// Package publish writes finished report documents to their destinations.
package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"weeklens/internal/period"
)

// Document is a finished report ready to be written out.
type Document struct {
	RunID    string
	Period   period.Range
	Markdown string
}

// Publisher delivers a document to one destination.
type Publisher interface {
	Publish(ctx context.Context, doc Document) error
}

// FilePublisher writes reports into a directory, one file per run,
// named by the report period's end date.
type FilePublisher struct {
	dir string
}

// NewFilePublisher returns a publisher rooted at dir.
func NewFilePublisher(dir string) *FilePublisher {
	return &FilePublisher{dir: dir}
}

// Path returns the destination file for a document.
func (p *FilePublisher) Path(doc Document) string {
	name := fmt.Sprintf("weekly-report-%s.md", doc.Period.End.Format("2006-01-02"))
	return filepath.Join(p.dir, name)
}

// Publish writes the document, creating the directory if needed. An
// existing report for the same period is overwritten.
func (p *FilePublisher) Publish(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("publish: create directory: %w", err)
	}
	path := p.Path(doc)
	if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
		return fmt.Errorf("publish: write %s: %w", path, err)
	}
	return nil
}

// StdoutPublisher streams the document to a writer, typically standard
// output for piping into other tools.
type StdoutPublisher struct {
	W io.Writer
}

// Publish writes the markdown followed by a trailing newline.
func (p *StdoutPublisher) Publish(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := p.W
	if w == nil {
		w = os.Stdout
	}
	if _, err := io.WriteString(w, doc.Markdown); err != nil {
		return fmt.Errorf("publish: write document: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("publish: write document: %w", err)
	}
	return nil
}
