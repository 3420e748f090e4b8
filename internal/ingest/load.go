package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/gl-mapper/internal/gcs"
	"github.com/dvloznov/gl-mapper/internal/gcsuploader"
	"github.com/dvloznov/gl-mapper/internal/logger"
	"github.com/dvloznov/gl-mapper/internal/table"
)

// Format is a supported tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// FormatFromPath picks the format from the file extension. Anything that is
// not .xlsx is treated as CSV.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Loader reads and writes tables on the local filesystem or in GCS.
type Loader struct {
	Storage gcs.ObjectStore
}

// NewLoader returns a Loader backed by Google Cloud Storage for gs:// paths.
func NewLoader() *Loader {
	return &Loader{Storage: gcsuploader.NewClient()}
}

// Load reads source, a local path or gs://bucket/object. Every failure is
// returned as *IngestionError.
func (l *Loader) Load(ctx context.Context, source string) (*Result, error) {
	log := logger.FromContext(ctx)

	data, err := l.readSource(ctx, source)
	if err != nil {
		return nil, &IngestionError{Source: source, Err: err}
	}

	res, err := Read(bytes.NewReader(data), FormatFromPath(source))
	if err != nil {
		return nil, &IngestionError{Source: source, Err: err}
	}

	log.Info().
		Str("source", source).
		Str("encoding", res.Encoding).
		Int("rows", res.Table.NumRows()).
		Int("columns", res.Table.NumColumns()).
		Int("warnings", len(res.Warnings)).
		Msg("Loaded input table")
	for _, w := range res.Warnings {
		log.Warn().Int("row", w.Row).Str("source", source).Msg(w.Message)
	}
	return res, nil
}

// Read parses r in the given format.
func Read(r io.Reader, format Format) (*Result, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatCSV:
		return ReadCSV(r)
	default:
		return nil, fmt.Errorf("Read: unsupported format %q", format)
	}
}

// Write encodes t in the given format.
func Write(w io.Writer, t *table.Table, format Format) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	default:
		return fmt.Errorf("Write: unsupported format %q", format)
	}
}

// Save writes t to dest, a local path or gs://bucket/object, in the format
// implied by its extension.
func (l *Loader) Save(ctx context.Context, t *table.Table, dest string) error {
	format := FormatFromPath(dest)

	if gcsuploader.IsGCSURI(dest) {
		if l.Storage == nil {
			return fmt.Errorf("Save: no storage service configured for %s", dest)
		}
		var buf bytes.Buffer
		if err := Write(&buf, t, format); err != nil {
			return fmt.Errorf("Save: %w", err)
		}
		contentType := contentTypeCSV
		if format == FormatXLSX {
			contentType = contentTypeXLSX
		}
		if err := l.Storage.Put(ctx, dest, buf.Bytes(), contentType); err != nil {
			return fmt.Errorf("Save: upload: %w", err)
		}
	} else if err := writeFile(dest, t, format); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("dest", dest).
		Str("file", gcsuploader.ObjectFilename(dest)).
		Int("rows", t.NumRows()).
		Msg("Saved output table")
	return nil
}

func (l *Loader) readSource(ctx context.Context, source string) ([]byte, error) {
	if gcsuploader.IsGCSURI(source) {
		if l.Storage == nil {
			return nil, fmt.Errorf("no storage service configured")
		}
		return l.Storage.Get(ctx, source)
	}
	return os.ReadFile(source)
}

func writeFile(dest string, t *table.Table, format Format) (err error) {
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
	}()

	return Write(f, t, format)
}
