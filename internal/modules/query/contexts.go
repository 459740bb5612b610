package query

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/decidepage/core/internal/models"
	"github.com/decidepage/core/internal/modules/intelligence"
)

// Context is one grounding unit offered to the model, with the retrieval
// score it earned against the question.
type Context struct {
	ID    string                 `json:"context_id"`
	Score float64                `json:"score"`
	Data  map[string]interface{} `json:"data"`
}

// TargetAll matches every persona in a meeting.
const TargetAll = "all"

const maxContexts = 5

// buildContexts projects the intelligence payload into grounding contexts.
// Documents contribute a single context assembled from their decision-relevant
// fields; meetings contribute one persona context per participant, optionally
// narrowed to a named target.
func buildContexts(ownerType models.OwnerType, ownerID string, payload intelligence.Payload, target string) []Context {
	if ownerType == models.OwnerMeeting {
		return meetingContexts(payload, target)
	}
	return documentContexts(ownerID, payload)
}

func documentContexts(ownerID string, payload intelligence.Payload) []Context {
	boundaries := make([]map[string]interface{}, 0)
	for _, claim := range stringSlice(payload["claims_requiring_validation"]) {
		boundaries = append(boundaries, map[string]interface{}{"description": claim})
	}
	return []Context{{
		ID: ownerID,
		Data: map[string]interface{}{
			"conditions":          stringSlice(payload["key_facts"]),
			"observed_issues":     stringSlice(payload["uncertainties"]),
			"outcomes":            stringSlice(payload["core_results"]),
			"decision_boundaries": boundaries,
		},
	}}
}

func meetingContexts(payload intelligence.Payload, target string) []Context {
	target = strings.ToLower(strings.TrimSpace(target))
	var out []Context
	for _, p := range mapSlice(payload["participants"]) {
		name, _ := p["name"].(string)
		if name == "" {
			continue
		}
		if target != "" && target != TargetAll && !strings.EqualFold(name, target) {
			continue
		}
		out = append(out, Context{ID: name, Data: p})
	}
	return out
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9\x{4e00}-\x{9fff}]+`)

func tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// score is the fraction of question tokens that appear in the context.
func score(queryTokens map[string]struct{}, c Context) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	raw, err := json.Marshal(c.Data)
	if err != nil {
		return 0
	}
	ctxTokens := tokenize(c.ID + " " + string(raw))
	hits := 0
	for tok := range queryTokens {
		if _, ok := ctxTokens[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

// selectTop scores all contexts against the question and keeps the best
// maxContexts, order stable for ties.
func selectTop(contexts []Context, question string) []Context {
	queryTokens := tokenize(question)
	scored := make([]Context, len(contexts))
	copy(scored, contexts)
	for i := range scored {
		scored[i].Score = score(queryTokens, scored[i])
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > maxContexts {
		scored = scored[:maxContexts]
	}
	return scored
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mapSlice(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}
