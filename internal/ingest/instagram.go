package ingest

import (
	"encoding/json"
	"fmt"

	"twinforge/backend/internal/backstory"
)

type instagramExport struct {
	Posts []struct {
		Title string `json:"title"`
	} `json:"posts"`
	PostComments []struct {
		Text string `json:"text"`
	} `json:"post_comments"`
	ReelsComments []struct {
		Text string `json:"text"`
	} `json:"reels_comments"`
	Inbox []struct {
		Messages []struct {
			Sender string `json:"sender_name"`
			Text   string `json:"content"`
		} `json:"messages"`
	} `json:"inbox"`
}

// ParseInstagram maps an Instagram export into four budgeted groups: post
// captions, post comments, reels comments, and the owner's inbox messages.
// Groups with no content are omitted.
func ParseInstagram(raw []byte, ownerName string) ([]backstory.BudgetedGroup, error) {
	var export instagramExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("parse instagram export: %w", err)
	}

	var posts []string
	for _, post := range export.Posts {
		posts = append(posts, post.Title)
	}

	var comments []string
	for _, comment := range export.PostComments {
		comments = append(comments, comment.Text)
	}

	var reels []string
	for _, comment := range export.ReelsComments {
		reels = append(reels, comment.Text)
	}

	var inbox []string
	for _, thread := range export.Inbox {
		for _, message := range thread.Messages {
			if ownerName != "" && message.Sender != ownerName {
				continue
			}
			inbox = append(inbox, message.Text)
		}
	}

	var groups []backstory.BudgetedGroup
	if len(posts) > 0 {
		groups = append(groups, backstory.BudgetedGroup{
			Group:  backstory.MessageGroup{Title: "Instagram posts", Messages: posts},
			Budget: backstory.PostsBudget,
		})
	}
	if len(comments) > 0 {
		groups = append(groups, backstory.BudgetedGroup{
			Group:  backstory.MessageGroup{Title: "Instagram comments", Messages: comments},
			Budget: backstory.CommentsBudget,
		})
	}
	if len(reels) > 0 {
		groups = append(groups, backstory.BudgetedGroup{
			Group:  backstory.MessageGroup{Title: "Instagram reels comments", Messages: reels},
			Budget: backstory.ReelsCommentsBudget,
		})
	}
	if len(inbox) > 0 {
		groups = append(groups, backstory.BudgetedGroup{
			Group:  backstory.MessageGroup{Title: "Instagram inbox messages", Messages: inbox},
			Budget: backstory.InboxBudget,
		})
	}
	return groups, nil
}
