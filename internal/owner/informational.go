package owner

import (
	"fmt"
	"strings"

	"github.com/spoq-dev/spoq/internal/stream"
)

func skillsSummary(skills []string) string {
	if len(skills) == 0 {
		return "Skills injected"
	}
	return "Skills injected: " + strings.Join(skills, ", ")
}

func oauthSummary(msg *stream.OAuthConsentRequiredMsg) string {
	if msg.SkillName != nil {
		return fmt.Sprintf("%s requires authorization with %s", *msg.SkillName, msg.Provider)
	}
	return fmt.Sprintf("Authorization required with %s", msg.Provider)
}

func contextCompactedSummary(msg *stream.ContextCompactedMsg) string {
	return fmt.Sprintf("Context compacted: removed %d messages, freed %d tokens", msg.MessagesRemoved, msg.TokensFreed)
}
