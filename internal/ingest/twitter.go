package ingest

import (
	"encoding/json"
	"fmt"

	"twinforge/backend/internal/backstory"
)

type twitterExport struct {
	Tweets []struct {
		FullText string `json:"full_text"`
	} `json:"tweets"`
}

// ParseTwitter maps a tweet archive into a single budgeted group.
func ParseTwitter(raw []byte) ([]backstory.BudgetedGroup, error) {
	var export twitterExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("parse twitter export: %w", err)
	}

	var tweets []string
	for _, tweet := range export.Tweets {
		tweets = append(tweets, tweet.FullText)
	}

	if len(tweets) == 0 {
		return nil, nil
	}
	return []backstory.BudgetedGroup{{
		Group:  backstory.MessageGroup{Title: "Tweets", Messages: tweets},
		Budget: backstory.DefaultBudget,
	}}, nil
}
