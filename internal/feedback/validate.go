package feedback

import (
	"fmt"
	"strings"
)

// Warning type identifiers produced by Validate.
const (
	WarnAbilityPraise      = "ability_praise"
	WarnPeerComparison     = "peer_comparison"
	WarnVagueComment       = "vague_comment"
	WarnMissingTypeBalance = "missing_type_balance"
	WarnLowSpecificity     = "low_specificity"
	WarnMissingAnchors     = "missing_anchors"
	WarnExcessiveCount     = "excessive_feedback_count"
	WarnMissingReflection  = "missing_reflection"
	WarnNoStrengths        = "no_strengths"
	WarnCTATooLong         = "cta_too_long"
	WarnInventedCriteria   = "invented_criteria"
)

const (
	maxStrengths    = 3
	maxGrowthAreas  = 2
	maxNextSteps    = 3
	maxCTALength    = 40
	anchorMinimum   = 0.5
	minOverlapWords = 2
)

var abilityPraisePhrases = []string{
	"so smart",
	"very smart",
	"so talented",
	"naturally gifted",
	"a natural writer",
	"born writer",
	"you are smart",
	"you're smart",
	"genius",
	"gifted",
}

var peerComparisonPhrases = []string{
	"better than your classmates",
	"better than other students",
	"than your peers",
	"than the rest of the class",
	"best in the class",
	"best in class",
	"compared to other students",
	"compared to your classmates",
	"ahead of your classmates",
}

var vaguePhrases = []string{
	"good job",
	"good work",
	"nice work",
	"nice job",
	"great job",
	"well done",
	"keep it up",
	"keep up the good work",
}

var inventedCriteriaPhrases = []string{
	"should have included",
	"you should have",
	"needed to include",
	"was supposed to include",
	"forgot to include",
	"did not include",
	"didn't include",
	"is missing the required",
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "your": {},
	"you": {}, "have": {}, "from": {}, "for": {}, "are": {}, "was": {},
	"were": {}, "what": {}, "when": {}, "into": {}, "more": {}, "some": {},
	"about": {}, "their": {}, "would": {}, "could": {}, "should": {},
}

// Validate classifies a feedback session against the fixed rule set. The
// checks are independent and stateless; the returned order is fixed so two
// calls with identical inputs yield structurally identical results. Warnings
// never block approval.
func Validate(fs Session, criteria []string) []Warning {
	warnings := make([]Warning, 0, 8)
	warnings = append(warnings, checkAbilityPraise(fs)...)
	warnings = append(warnings, checkPeerComparison(fs)...)
	warnings = append(warnings, checkVagueComments(fs)...)
	warnings = append(warnings, checkTypeBalance(fs)...)
	warnings = append(warnings, checkSpecificity(fs)...)
	warnings = append(warnings, checkMissingAnchors(fs)...)
	warnings = append(warnings, checkExcessiveCounts(fs)...)
	warnings = append(warnings, checkMissingReflection(fs)...)
	warnings = append(warnings, checkNoStrengths(fs)...)
	warnings = append(warnings, checkCTALength(fs)...)
	if len(criteria) > 0 {
		warnings = append(warnings, checkInventedCriteria(fs, criteria)...)
	}
	return warnings
}

func checkAbilityPraise(fs Session) []Warning {
	var warnings []Warning
	forEachItem(fs, func(location string, item Item) {
		if phrase := firstPhraseMatch(item.Text, abilityPraisePhrases); phrase != "" {
			warnings = append(warnings, Warning{
				ID:          warningID(WarnAbilityPraise, location),
				Type:        WarnAbilityPraise,
				Severity:    SeverityStrong,
				Title:       "Ability praise",
				Description: "Praise targets the student's ability rather than their work or process.",
				Location:    location,
				Match:       phrase,
			})
		}
	})
	return warnings
}

func checkPeerComparison(fs Session) []Warning {
	var warnings []Warning
	forEachItem(fs, func(location string, item Item) {
		if phrase := firstPhraseMatch(item.Text, peerComparisonPhrases); phrase != "" {
			warnings = append(warnings, Warning{
				ID:          warningID(WarnPeerComparison, location),
				Type:        WarnPeerComparison,
				Severity:    SeverityStrong,
				Title:       "Peer comparison",
				Description: "Feedback compares the student against classmates instead of the task.",
				Location:    location,
				Match:       phrase,
			})
		}
	})
	return warnings
}

func checkVagueComments(fs Session) []Warning {
	var warnings []Warning
	forEachItem(fs, func(location string, item Item) {
		phrase := firstPhraseMatch(item.Text, vaguePhrases)
		if phrase == "" && len(strings.Fields(item.Text)) >= 4 {
			return
		}
		warnings = append(warnings, Warning{
			ID:          warningID(WarnVagueComment, location),
			Type:        WarnVagueComment,
			Severity:    SeveritySoft,
			Title:       "Vague comment",
			Description: "The comment is too generic to act on.",
			Location:    location,
			Match:       phrase,
		})
	})
	return warnings
}

func checkTypeBalance(fs Session) []Warning {
	seen := map[ItemType]bool{}
	forEachItem(fs, func(_ string, item Item) {
		seen[item.Type] = true
	})
	if seen[ItemTypeTask] && seen[ItemTypeProcess] && seen[ItemTypeSelfReg] {
		return nil
	}
	missing := make([]string, 0, 3)
	for _, t := range []ItemType{ItemTypeTask, ItemTypeProcess, ItemTypeSelfReg} {
		if !seen[t] {
			missing = append(missing, string(t))
		}
	}
	return []Warning{{
		ID:          warningID(WarnMissingTypeBalance, ""),
		Type:        WarnMissingTypeBalance,
		Severity:    SeveritySoft,
		Title:       "Unbalanced feedback types",
		Description: fmt.Sprintf("Feedback covers no %s-level comments.", strings.Join(missing, " or ")),
	}}
}

func checkSpecificity(fs Session) []Warning {
	total := len(fs.Strengths) + len(fs.GrowthAreas)
	if total == 0 {
		return nil
	}
	anchored := 0
	forEachItem(fs, func(_ string, item Item) {
		if len(item.Anchors) > 0 {
			anchored++
		}
	})
	if float64(anchored) >= anchorMinimum*float64(total) {
		return nil
	}
	return []Warning{{
		ID:          warningID(WarnLowSpecificity, ""),
		Type:        WarnLowSpecificity,
		Severity:    SeveritySoft,
		Title:       "Low specificity",
		Description: fmt.Sprintf("Only %d of %d comments quote the student's writing.", anchored, total),
	}}
}

func checkMissingAnchors(fs Session) []Warning {
	var warnings []Warning
	forEachItem(fs, func(location string, item Item) {
		if len(item.Anchors) > 0 {
			return
		}
		warnings = append(warnings, Warning{
			ID:          warningID(WarnMissingAnchors, location),
			Type:        WarnMissingAnchors,
			Severity:    SeveritySoft,
			Title:       "No anchor quote",
			Description: "The comment does not quote the passage it refers to.",
			Location:    location,
		})
	})
	return warnings
}

func checkExcessiveCounts(fs Session) []Warning {
	var warnings []Warning
	if len(fs.Strengths) > maxStrengths {
		warnings = append(warnings, excessiveCountWarning("strengths", len(fs.Strengths), maxStrengths))
	}
	if len(fs.GrowthAreas) > maxGrowthAreas {
		warnings = append(warnings, excessiveCountWarning("growth_areas", len(fs.GrowthAreas), maxGrowthAreas))
	}
	if len(fs.NextSteps) > maxNextSteps {
		warnings = append(warnings, excessiveCountWarning("next_steps", len(fs.NextSteps), maxNextSteps))
	}
	return warnings
}

func excessiveCountWarning(section string, count, limit int) Warning {
	return Warning{
		ID:          warningID(WarnExcessiveCount, section),
		Type:        WarnExcessiveCount,
		Severity:    SeveritySoft,
		Title:       "Too much feedback",
		Description: fmt.Sprintf("%d %s exceed the recommended maximum of %d.", count, strings.ReplaceAll(section, "_", " "), limit),
		Location:    section,
	}
}

func checkMissingReflection(fs Session) []Warning {
	if len(fs.NextSteps) == 0 {
		return nil
	}
	for _, step := range fs.NextSteps {
		if strings.TrimSpace(step.ReflectPrompt) != "" {
			return nil
		}
	}
	return []Warning{{
		ID:          warningID(WarnMissingReflection, ""),
		Type:        WarnMissingReflection,
		Severity:    SeveritySoft,
		Title:       "No reflection prompt",
		Description: "None of the next steps asks the student to reflect.",
	}}
}

func checkNoStrengths(fs Session) []Warning {
	if len(fs.Strengths) > 0 {
		return nil
	}
	return []Warning{{
		ID:          warningID(WarnNoStrengths, ""),
		Type:        WarnNoStrengths,
		Severity:    SeverityStrong,
		Title:       "No strengths",
		Description: "Feedback names nothing the student did well.",
	}}
}

func checkCTALength(fs Session) []Warning {
	var warnings []Warning
	for i, step := range fs.NextSteps {
		if len(step.CallToAction) <= maxCTALength {
			continue
		}
		location := fmt.Sprintf("next_steps[%d]", i)
		warnings = append(warnings, Warning{
			ID:          warningID(WarnCTATooLong, location),
			Type:        WarnCTATooLong,
			Severity:    SeveritySoft,
			Title:       "Call to action too long",
			Description: fmt.Sprintf("The call-to-action label is %d characters; keep it at or under %d.", len(step.CallToAction), maxCTALength),
			Location:    location,
			Match:       step.CallToAction,
		})
	}
	return warnings
}

// checkInventedCriteria is a best-effort heuristic: a growth area is flagged
// only when it both reads like a "you should have included..." demand and
// shares no meaningful vocabulary with any stated success criterion. False
// negatives are expected and acceptable.
func checkInventedCriteria(fs Session, criteria []string) []Warning {
	var warnings []Warning
	for i, item := range fs.GrowthAreas {
		phrase := firstPhraseMatch(item.Text, inventedCriteriaPhrases)
		if phrase == "" {
			continue
		}
		if overlapsAnyCriterion(item.Text, criteria) {
			continue
		}
		location := fmt.Sprintf("growth_areas[%d]", i)
		warnings = append(warnings, Warning{
			ID:          warningID(WarnInventedCriteria, location),
			Type:        WarnInventedCriteria,
			Severity:    SeverityStrong,
			Title:       "Possible invented requirement",
			Description: "The comment demands something the success criteria never asked for.",
			Location:    location,
			Match:       phrase,
		})
	}
	return warnings
}

func overlapsAnyCriterion(text string, criteria []string) bool {
	itemWords := significantWords(text)
	for _, criterion := range criteria {
		criterionWords := significantWords(criterion)
		required := minOverlapWords
		if len(criterionWords) <= 2 {
			required = 1
		}
		shared := 0
		for word := range criterionWords {
			if _, ok := itemWords[word]; ok {
				shared++
			}
		}
		if shared >= required {
			return true
		}
	}
	return false
}

func significantWords(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,;:!?\"'()[]")
		if len(word) < 3 {
			continue
		}
		if _, ok := stopwords[word]; ok {
			continue
		}
		words[word] = struct{}{}
	}
	return words
}

func forEachItem(fs Session, fn func(location string, item Item)) {
	for i, item := range fs.Strengths {
		fn(fmt.Sprintf("strengths[%d]", i), item)
	}
	for i, item := range fs.GrowthAreas {
		fn(fmt.Sprintf("growth_areas[%d]", i), item)
	}
}

func firstPhraseMatch(text string, phrases []string) string {
	lowered := strings.ToLower(text)
	for _, phrase := range phrases {
		if strings.Contains(lowered, phrase) {
			return phrase
		}
	}
	return ""
}

func warningID(warnType, location string) string {
	if location == "" {
		return warnType
	}
	return warnType + ":" + location
}
