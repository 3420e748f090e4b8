package gcsuploader

import (
	"fmt"
	"path"
	"strings"
)

const uriScheme = "gs://"

// IsGCSURI reports whether s looks like gs://bucket/object.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, uriScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object path.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URI needs a bucket and an object path: %q", uri)
	}
	return bucket, object, nil
}

// ObjectFilename returns the last path element of a gs:// URI,
// e.g. "gs://ledgers/exports/run.csv" gives "run.csv".
func ObjectFilename(uri string) string {
	rest := strings.TrimPrefix(uri, uriScheme)
	_, object, found := strings.Cut(rest, "/")
	if !found {
		return rest
	}
	return path.Base(object)
}
