package render

import (
	"fmt"

	"github.com/decidepage/core/internal/models"
)

const (
	DocumentPromptVersion = "doc-render-v1"
	MeetingPromptVersion  = "meeting-render-v1"
)

var styleGuides = map[string]string{
	StyleTechnical: "Prioritize engineering details, constraints, failure modes, and operational risks.",
	StyleBusiness:  "Prioritize trade-offs, cost impact, timeline, and organizational implications.",
	StyleExecutive: "Prioritize decisive conclusions, irreversible points, and concise executive takeaways.",
}

func buildSystemPrompt(ownerType models.OwnerType, opts Options) string {
	if ownerType == models.OwnerMeeting {
		return fmt.Sprintf(`You are a meeting decision page renderer. Output HTML only.
Rules:
- Keep under %d A4 pages.
- Output must include three layers: Facts, Stances, Values.
- Identify speakers and their worldview, risks, veto power.
- Style: %s (technical | business | executive).
- Style guidance: %s
- Language: %s (zh or en).
- Prompt version: %s
`, opts.PageLimit, opts.Style, styleGuides[opts.Style], opts.Language, MeetingPromptVersion)
	}

	return fmt.Sprintf(`You are a decision page renderer. Produce a decision page in HTML.
Rules:
- Only use provided document intelligence; do NOT invent facts.
- Output HTML only, no Markdown.
- Keep under %d A4 pages.
- Style: %s (technical | business | executive).
- Style guidance: %s
- Language: %s (zh or en).
- Must include sections for: Overview, Key Facts, Key Numbers, Core Results,
  Assumptions, Dependencies, Uncertainties, Claims Requiring Validation.
- Styles must only affect tone and visual density, NOT the structure.
- Prompt version: %s
`, opts.PageLimit, opts.Style, styleGuides[opts.Style], opts.Language, DocumentPromptVersion)
}

func buildUserPrompt(ownerType models.OwnerType, payloadJSON string) string {
	if ownerType == models.OwnerMeeting {
		return "Meeting intelligence JSON:\n" + payloadJSON
	}
	return "Document intelligence JSON:\n" + payloadJSON
}
