package intent

import (
	"context"
	"regexp"
	"strings"
)

const (
	ruleMatchScore   = 0.8
	ruleNoMatchScore = 0.6
)

var schedulePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(book|schedule|make|set\s*up|reserve|get)\b.{0,40}\b(appointment|appt|visit|cleaning|check\s*-?up|exam|slot)\b`),
	regexp.MustCompile(`(?i)\bbook\s+(me|it|that)\b`),
	regexp.MustCompile(`(?i)\b(can|could|may)\s+i\s+(come|come\s+in|get\s+in|be\s+seen)\b`),
	regexp.MustCompile(`(?i)\bi('d| would)\s+like\s+to\s+come\s+in\b`),
}

var availabilityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bavailab(le|ility)\b`),
	regexp.MustCompile(`(?i)\bopenings?\b`),
	regexp.MustCompile(`(?i)\b(any|open|free)\s+(slots?|times?|appointments?)\b`),
	regexp.MustCompile(`(?i)\bwhen\s+(can|could)\s+i\s+(come|get)\b`),
	regexp.MustCompile(`(?i)\bwhen\s+(are|is)\s+(you|the\s+office|the\s+dentist|dr\.?\s*\w+)\s+(free|open)\b`),
}

var (
	timeSpanPattern = regexp.MustCompile(`(?i)\b(?:day after tomorrow|today|tonight|tomorrow|(?:next\s+)?(?:mon|tues|wednes|thurs|fri|satur|sun)day|noon|midday|morning|afternoon|evening)\b|\b\d{1,2}(?::[0-5]\d)?\s*(?:[ap]\.m\.|[ap]m\b)|\b\d{1,2}:[0-5]\d\b|\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b`)
	spanJoiner      = regexp.MustCompile(`(?i)^[\s,]*(?:(?:at|on|in|the|this|around|about)\s+)*[\s,]*$`)
)

// RuleClassifier recognizes the bot's intents from keyword patterns. It is
// the last resort when no model endpoint is configured or reachable.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (RuleClassifier) Classify(ctx context.Context, text string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if IsBenign(text) {
		return Result{}, nil
	}

	scores := map[Name]float64{
		NameNone:                ruleNoMatchScore,
		NameGetAvailability:     0,
		NameScheduleAppointment: 0,
	}
	switch {
	case matchesAny(schedulePatterns, text):
		scores[NameScheduleAppointment] = ruleMatchScore
		scores[NameNone] = 1 - ruleMatchScore
	case matchesAny(availabilityPatterns, text):
		scores[NameGetAvailability] = ruleMatchScore
		scores[NameNone] = 1 - ruleMatchScore
	}

	top, score := topOf(scores)
	res := Result{TopIntent: top, Score: score, Intents: scores}
	if span, start, ok := ExtractTimeSpan(text); ok {
		res.Entities = []Entity{{Kind: EntityDateTime, Text: span, Start: start}}
	}
	return res, nil
}

// ExtractTimeSpan returns the first run of date and time words in text, such
// as "next friday at 10:30 am", with its byte offset.
func ExtractTimeSpan(text string) (string, int, bool) {
	locs := timeSpanPattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", 0, false
	}
	start, end := locs[0][0], locs[0][1]
	for _, loc := range locs[1:] {
		if !spanJoiner.MatchString(text[end:loc[0]]) {
			break
		}
		end = loc[1]
	}
	return strings.TrimSpace(text[start:end]), start, true
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
