// Package ingest parses platform export payloads into budgeted message
// groups for backstory synthesis. Parsers accept arbitrary Unicode and keep
// blank entries; the sampler filters those downstream.
package ingest

import (
	"fmt"

	"twinforge/backend/internal/backstory"
)

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTelegram  Platform = "telegram"
	PlatformTwitter   Platform = "twitter"
)

func ParsePlatform(value string) (Platform, error) {
	switch Platform(value) {
	case PlatformInstagram, PlatformTelegram, PlatformTwitter:
		return Platform(value), nil
	default:
		return "", fmt.Errorf("unsupported platform: %q", value)
	}
}

// Parse dispatches an export payload to the platform parser. ownerName is
// the export owner's display name, used to keep only messages the owner
// wrote in conversation-shaped sources; empty means keep everything.
func Parse(platform Platform, raw []byte, ownerName string) ([]backstory.BudgetedGroup, error) {
	switch platform {
	case PlatformInstagram:
		return ParseInstagram(raw, ownerName)
	case PlatformTelegram:
		return ParseTelegram(raw, ownerName)
	case PlatformTwitter:
		return ParseTwitter(raw)
	default:
		return nil, fmt.Errorf("unsupported platform: %q", platform)
	}
}
