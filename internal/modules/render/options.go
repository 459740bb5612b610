package render

import (
	"fmt"
	"strings"

	"github.com/decidepage/core/internal/models"
)

const (
	StyleTechnical = "technical"
	StyleBusiness  = "business"
	StyleExecutive = "executive"

	LanguageEN = "en"
	LanguageZH = "zh"

	defaultPageLimit = 2
	maxPageLimit     = 3
)

// Options is the render configuration. It affects tone and density only; the
// extracted intelligence is never re-derived because of an option change.
type Options struct {
	Style     string `json:"style" form:"style"`
	Language  string `json:"language" form:"language"`
	PageLimit int    `json:"page_limit" form:"page_limit"`
}

// Normalize fills defaults and validates the option set. Documents default to
// the technical style, meetings to executive.
func (o Options) Normalize(ownerType models.OwnerType) (Options, error) {
	out := o
	out.Style = strings.ToLower(strings.TrimSpace(out.Style))
	out.Language = strings.ToLower(strings.TrimSpace(out.Language))

	if out.Style == "" {
		if ownerType == models.OwnerMeeting {
			out.Style = StyleExecutive
		} else {
			out.Style = StyleTechnical
		}
	}
	switch out.Style {
	case StyleTechnical, StyleBusiness, StyleExecutive:
	default:
		return Options{}, fmt.Errorf("unknown style %q", o.Style)
	}

	if out.Language == "" {
		out.Language = LanguageEN
	}
	switch out.Language {
	case LanguageEN, LanguageZH:
	default:
		return Options{}, fmt.Errorf("unknown language %q", o.Language)
	}

	if out.PageLimit == 0 {
		out.PageLimit = defaultPageLimit
	}
	if out.PageLimit < 1 || out.PageLimit > maxPageLimit {
		return Options{}, fmt.Errorf("page_limit %d out of range 1-%d", o.PageLimit, maxPageLimit)
	}

	return out, nil
}
