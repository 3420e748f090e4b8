package ingest

import "fmt"

// IngestionError reports that an input table could not be read at all.
// No partial table accompanies it.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
