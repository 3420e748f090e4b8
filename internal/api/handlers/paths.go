package handlers

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/gl-mapper/internal/gcsuploader"
)

// ErrPathNotAllowed is returned for request paths outside the configured roots.
var ErrPathNotAllowed = errors.New("path not allowed")

// Paths confines the files an API request can touch. Local sources must be
// relative paths under DataRoot; gs:// sources must be in Bucket. An empty
// root disables that kind of source. Outputs are always named by the server.
type Paths struct {
	DataRoot string
	Bucket   string
	// OutputDir receives <run_id>.csv per transformation. It may be a local
	// directory or a gs:// prefix; empty means no output file is written.
	OutputDir string
}

// Source resolves a request source to the path handed to the loader.
func (p Paths) Source(src string) (string, error) {
	if gcsuploader.IsGCSURI(src) {
		bucket, _, err := gcsuploader.ParseGCSURI(src)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrPathNotAllowed, err)
		}
		if p.Bucket == "" || bucket != p.Bucket {
			return "", fmt.Errorf("%w: bucket %q is not readable", ErrPathNotAllowed, bucket)
		}
		return src, nil
	}

	if p.DataRoot == "" {
		return "", fmt.Errorf("%w: local sources are disabled", ErrPathNotAllowed)
	}
	if strings.Contains(src, `\`) || !filepath.IsLocal(filepath.FromSlash(src)) || hasDotDot(src) {
		return "", fmt.Errorf("%w: %q must be a relative path without ..", ErrPathNotAllowed, src)
	}
	return filepath.Join(p.DataRoot, filepath.FromSlash(src)), nil
}

// Output returns where the normalized table of runID is written, or "".
func (p Paths) Output(runID string) string {
	switch {
	case p.OutputDir == "":
		return ""
	case gcsuploader.IsGCSURI(p.OutputDir):
		return strings.TrimSuffix(p.OutputDir, "/") + "/" + path.Base(runID) + ".csv"
	default:
		return filepath.Join(p.OutputDir, filepath.Base(runID)+".csv")
	}
}

func hasDotDot(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}
