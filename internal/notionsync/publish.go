// Package notionsync publishes transformation run summaries to a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/gl-mapper/internal/logger"
)

// PublishRunSummary creates or updates the page for s.RunID in the database and
// returns its page ID. Pages are matched on the Run ID title, so publishing
// the same run twice updates one page. In dry-run mode nothing is written.
func PublishRunSummary(ctx context.Context, notionClient NotionService, notionDBID string, s RunSummary, dryRun bool) (string, error) {
	log := logger.FromContext(ctx).With().Str("run_id", s.RunID).Logger()

	if s.RunID == "" {
		return "", fmt.Errorf("PublishRunSummary: run ID is required")
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return "", fmt.Errorf("PublishRunSummary: %w", err)
	}

	var existing string
	for _, page := range pages {
		if extractRunID(page) == s.RunID {
			existing = string(page.ID)
			break
		}
	}

	props := RunSummaryToNotionProperties(s)

	if dryRun {
		log.Info().
			Str("page_id", existing).
			Bool("update", existing != "").
			Msg("[DRY RUN] Would publish run summary")
		return existing, nil
	}

	if existing != "" {
		if _, err := notionClient.UpdatePage(ctx, existing, props); err != nil {
			return "", fmt.Errorf("PublishRunSummary: update page %s: %w", existing, err)
		}
		log.Info().Str("page_id", existing).Msg("Updated run summary in Notion")
		return existing, nil
	}

	page, err := notionClient.CreatePage(ctx, notionDBID, props)
	if err != nil {
		return "", fmt.Errorf("PublishRunSummary: create page: %w", err)
	}
	log.Info().Str("page_id", string(page.ID)).Msg("Published run summary to Notion")
	return string(page.ID), nil
}

func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
