package notionsync

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/gl-mapper/internal/pipeline"
)

// Property names of the run summary database.
const (
	propRunID        = "Run ID"
	propSource       = "Source"
	propStatus       = "Status"
	propRunDate      = "Run Date"
	propRows         = "Rows"
	propMapped       = "Mapped Fields"
	propUnmapped     = "Unmapped Fields"
	propEmptyTargets = "Empty Targets"
	propIssues       = "Issues"
	propWarnings     = "Warnings"
	propOutput       = "Output"
)

// maxRichText is the Notion limit for a single rich text content block.
const maxRichText = 2000

// Run statuses shown in the Status select.
const (
	StatusSucceeded  = "Succeeded"
	StatusWithIssues = "Succeeded with issues"
)

// RunSummary is what gets published about one transformation run.
type RunSummary struct {
	RunID        string
	Source       string
	Status       string
	RunAt        time.Time
	Rows         int
	Mapped       int
	Unmapped     []string
	EmptyTargets []string
	Issues       int
	Warnings     int
	OutputPath   string
}

// NewRunSummary builds the summary of a finished run.
func NewRunSummary(state *pipeline.PipelineState, runAt time.Time) RunSummary {
	status := StatusSucceeded
	if len(state.Issues) > 0 {
		status = StatusWithIssues
	}
	return RunSummary{
		RunID:        state.RunID,
		Source:       state.Source,
		Status:       status,
		RunAt:        runAt,
		Rows:         state.Summary.Rows,
		Mapped:       len(state.Summary.Mapped),
		Unmapped:     state.Summary.Unmapped,
		EmptyTargets: state.Summary.EmptyTargets,
		Issues:       len(state.Issues),
		Warnings:     len(state.Diagnostics.Warnings),
		OutputPath:   state.OutputPath,
	}
}

// RunSummaryToNotionProperties converts a RunSummary to Notion properties.
func RunSummaryToNotionProperties(s RunSummary) notionapi.Properties {
	props := notionapi.Properties{
		propRunID: notionapi.TitleProperty{
			Title: richText(s.RunID),
		},
		propStatus: notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: s.Status,
			},
		},
		propRows: notionapi.NumberProperty{
			Number: float64(s.Rows),
		},
		propMapped: notionapi.NumberProperty{
			Number: float64(s.Mapped),
		},
		propIssues: notionapi.NumberProperty{
			Number: float64(s.Issues),
		},
		propWarnings: notionapi.NumberProperty{
			Number: float64(s.Warnings),
		},
	}

	if s.Source != "" {
		props[propSource] = notionapi.RichTextProperty{RichText: richText(s.Source)}
	}

	if !s.RunAt.IsZero() {
		props[propRunDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(s.RunAt.UTC())
					return &d
				}(),
			},
		}
	}

	if len(s.Unmapped) > 0 {
		props[propUnmapped] = notionapi.RichTextProperty{RichText: richText(strings.Join(s.Unmapped, ", "))}
	}

	if len(s.EmptyTargets) > 0 {
		props[propEmptyTargets] = notionapi.RichTextProperty{RichText: richText(strings.Join(s.EmptyTargets, ", "))}
	}

	if s.OutputPath != "" {
		props[propOutput] = notionapi.RichTextProperty{RichText: richText(s.OutputPath)}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	if r := []rune(content); len(r) > maxRichText {
		content = string(r[:maxRichText])
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{
				Content: content,
			},
		},
	}
}

// extractRunID reads the Run ID title of a queried page.
func extractRunID(page notionapi.Page) string {
	if prop, ok := page.Properties[propRunID]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
