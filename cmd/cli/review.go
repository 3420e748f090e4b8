package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/gl-mapper/internal/mapping"
	"github.com/dvloznov/gl-mapper/internal/pipeline"
	"github.com/dvloznov/gl-mapper/internal/schema"
)

// reviewApprover asks for a decision on every input column, in input order.
// Enter keeps the proposal, "-" leaves the column unmapped and anything else
// must name a schema attribute. Once in is exhausted the remaining proposals
// are kept.
func reviewApprover(in io.Reader, out io.Writer, s *schema.TargetSchema) pipeline.Approver {
	return func(ctx context.Context, inputColumns []string, candidates []mapping.Candidate) (*mapping.ApprovedMapping, error) {
		proposed := mapping.FromCandidates(candidates)
		approved := mapping.NewApprovedMapping()

		fmt.Fprintf(out, "Review mapping (targets: %s)\n", strings.Join(s.Names(), ", "))

		sc := bufio.NewScanner(in)
		eof := false
		for _, col := range inputColumns {
			current, _ := proposed.Get(col)
			if eof {
				approved.Set(col, current)
				continue
			}

			for {
				fmt.Fprintf(out, "  %s -> [%s]: ", col, displayTarget(current))
				if !sc.Scan() {
					if err := sc.Err(); err != nil {
						return nil, fmt.Errorf("review mapping: %w", err)
					}
					fmt.Fprintln(out)
					eof = true
					approved.Set(col, current)
					break
				}

				answer := strings.TrimSpace(sc.Text())
				if answer == "" {
					approved.Set(col, current)
					break
				}
				if answer == "-" {
					approved.Set(col, "")
					break
				}
				if s.Has(answer) {
					approved.Set(col, answer)
					break
				}
				fmt.Fprintf(out, "  unknown target %q\n", answer)
			}
		}
		return approved, nil
	}
}

func displayTarget(t string) string {
	if t == "" {
		return "unmapped"
	}
	return t
}

// readMappingFile loads an approved mapping saved as a JSON object.
func readMappingFile(path string) (*mapping.ApprovedMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("readMappingFile: %w", err)
	}
	m := mapping.NewApprovedMapping()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("readMappingFile: %s: %w", path, err)
	}
	return m, nil
}

// writeMappingFile saves m as an indented JSON object, keeping its order.
func writeMappingFile(path string, m *mapping.ApprovedMapping) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("writeMappingFile: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("writeMappingFile: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writeMappingFile: %w", err)
	}
	return nil
}
