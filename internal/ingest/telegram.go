package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"twinforge/backend/internal/backstory"
)

type telegramExport struct {
	PersonalInformation struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"personal_information"`
	Chats struct {
		List []struct {
			Messages []struct {
				Type string       `json:"type"`
				From string       `json:"from"`
				Text telegramText `json:"text"`
			} `json:"messages"`
		} `json:"list"`
	} `json:"chats"`
}

// telegramText handles the Telegram desktop export text field, which is
// either a plain string or a list of strings and entity objects.
type telegramText struct {
	value string
}

func (t *telegramText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		t.value = plain
		return nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("telegram text: %w", err)
	}

	var sb strings.Builder
	for _, part := range parts {
		var fragment string
		if err := json.Unmarshal(part, &fragment); err == nil {
			sb.WriteString(fragment)
			continue
		}
		var entity struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(part, &entity); err == nil {
			sb.WriteString(entity.Text)
		}
	}
	t.value = sb.String()
	return nil
}

// ParseTelegram keeps only the owner's outgoing text messages across all
// exported chats. If ownerName is empty the export's own personal
// information decides who the owner is.
func ParseTelegram(raw []byte, ownerName string) ([]backstory.BudgetedGroup, error) {
	var export telegramExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, fmt.Errorf("parse telegram export: %w", err)
	}

	owner := strings.TrimSpace(ownerName)
	if owner == "" {
		owner = strings.TrimSpace(strings.TrimSpace(
			export.PersonalInformation.FirstName + " " + export.PersonalInformation.LastName,
		))
	}

	var messages []string
	for _, chat := range export.Chats.List {
		for _, message := range chat.Messages {
			if message.Type != "" && message.Type != "message" {
				continue
			}
			if owner != "" && message.From != owner {
				continue
			}
			messages = append(messages, message.Text.value)
		}
	}

	if len(messages) == 0 {
		return nil, nil
	}
	return []backstory.BudgetedGroup{{
		Group:  backstory.MessageGroup{Title: "Telegram messages", Messages: messages},
		Budget: backstory.DefaultBudget,
	}}, nil
}
