package feedback

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func anchoredItem(itemType ItemType, text string, anchors ...string) Item {
	return Item{Type: itemType, Text: text, Anchors: anchors}
}

func warningTypes(warnings []Warning) []string {
	types := make([]string, 0, len(warnings))
	for _, w := range warnings {
		types = append(types, w.Type)
	}
	return types
}

func findWarning(t *testing.T, warnings []Warning, warnType string) Warning {
	t.Helper()
	for _, w := range warnings {
		if w.Type == warnType {
			return w
		}
	}
	t.Fatalf("expected warning %q, got %v", warnType, warningTypes(warnings))
	return Warning{}
}

func TestValidateCleanFeedbackProducesNoWarnings(t *testing.T) {
	fs := Session{
		Goal: "Strengthen sensory detail in the opening scene",
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "Your opening image places the reader on the dock immediately", "the fog swallowed the pier"),
			anchoredItem(ItemTypeProcess, "Drafting the ending first gave the piece a clear destination", "I knew where it had to land"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeSelfReg, "Plan a pause to reread before adding new paragraphs", "and then and then"),
		},
		NextSteps: []NextStep{{
			Action:           "rewrite",
			Target:           "second paragraph",
			SuccessIndicator: "two of the five senses appear",
			ReflectPrompt:    "Which sense was hardest to work in?",
			CallToAction:     "Add two senses",
		}},
	}

	warnings := Validate(fs, []string{"Use 3 sensory details"})
	require.Empty(t, warnings)
}

func TestValidateExcessiveStrengthsAndLowSpecificity(t *testing.T) {
	// Scenario: four strengths, zero anchors anywhere.
	fs := Session{
		Strengths: []Item{
			{Type: ItemTypeTask, Text: "The storm scene builds real tension across the page"},
			{Type: ItemTypeProcess, Text: "You reread and trimmed repeated words before submitting"},
			{Type: ItemTypeSelfReg, Text: "You paced the drafting time across the whole session"},
			{Type: ItemTypeTask, Text: "Dialogue carries the argument without narration stepping in"},
		},
		GrowthAreas: []Item{
			{Type: ItemTypeTask, Text: "The closing paragraph resolves the conflict too quickly"},
		},
	}

	warnings := Validate(fs, []string{"Use 3 sensory details"})

	excessive := findWarning(t, warnings, WarnExcessiveCount)
	require.Equal(t, "strengths", excessive.Location)
	require.Equal(t, SeveritySoft, excessive.Severity)

	specificity := findWarning(t, warnings, WarnLowSpecificity)
	require.Contains(t, specificity.Description, "0 of 5")

	counts := 0
	for _, w := range warnings {
		if w.Type == WarnExcessiveCount {
			counts++
		}
	}
	require.Equal(t, 1, counts, "only the strengths section exceeds its cap")
}

func TestValidateNoStrengthsIsStrongButInformational(t *testing.T) {
	fs := Session{
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "The essay never states the claim it argues for", "some people think things"),
		},
	}

	warnings := Validate(fs, nil)
	warning := findWarning(t, warnings, WarnNoStrengths)
	require.Equal(t, SeverityStrong, warning.Severity)
}

func TestValidateAbilityPraiseAndPeerComparison(t *testing.T) {
	fs := Session{
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "You are so smart, and it shows in the structure", "first, second, finally"),
			anchoredItem(ItemTypeProcess, "This draft is better than your classmates managed", "quote"),
			anchoredItem(ItemTypeSelfReg, "You checked the brief twice before starting", "quote"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "Vary the sentence openings in the middle section", "The dog. The dog. The dog."),
		},
	}

	warnings := Validate(fs, nil)

	praise := findWarning(t, warnings, WarnAbilityPraise)
	require.Equal(t, SeverityStrong, praise.Severity)
	require.Equal(t, "strengths[0]", praise.Location)
	require.Equal(t, "so smart", praise.Match)

	comparison := findWarning(t, warnings, WarnPeerComparison)
	require.Equal(t, "strengths[1]", comparison.Location)
}

func TestValidateVagueComment(t *testing.T) {
	fs := Session{
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "Good job", "quote"),
			anchoredItem(ItemTypeProcess, "You outlined before drafting and it kept the argument on course", "quote"),
			anchoredItem(ItemTypeSelfReg, "You budgeted time for a full reread at the end", "quote"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "Expand the counterargument beyond a single sentence", "quote"),
		},
	}

	warnings := Validate(fs, nil)
	vague := findWarning(t, warnings, WarnVagueComment)
	require.Equal(t, "strengths[0]", vague.Location)
	require.Equal(t, "good job", vague.Match)
}

func TestValidateTypeBalance(t *testing.T) {
	fs := Session{
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "The claim is stated in the first sentence", "quote"),
			anchoredItem(ItemTypeTask, "Evidence follows every assertion in order", "quote"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "Tighten the conclusion so it echoes the claim", "quote"),
		},
	}

	warnings := Validate(fs, nil)
	balance := findWarning(t, warnings, WarnMissingTypeBalance)
	require.Contains(t, balance.Description, "process")
	require.Contains(t, balance.Description, "self_reg")
}

func TestValidateMissingReflectionAndCTALength(t *testing.T) {
	fs := Session{
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "The metaphor in the second stanza lands cleanly", "a door of water"),
			anchoredItem(ItemTypeProcess, "You tried three titles before settling on one", "quote"),
			anchoredItem(ItemTypeSelfReg, "You left margin notes marking lines to revisit", "quote"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "The final stanza repeats the opening without developing it", "quote"),
		},
		NextSteps: []NextStep{{
			Action:           "replace",
			Target:           "final stanza",
			SuccessIndicator: "new image not used earlier",
			CallToAction:     strings.Repeat("rework the ending ", 3),
		}},
	}

	warnings := Validate(fs, nil)
	findWarning(t, warnings, WarnMissingReflection)

	cta := findWarning(t, warnings, WarnCTATooLong)
	require.Equal(t, "next_steps[0]", cta.Location)
}

func TestValidateInventedCriteria(t *testing.T) {
	criteria := []string{"Use 3 sensory details", "State a clear claim"}

	invented := Session{
		Strengths: []Item{
			anchoredItem(ItemTypeTask, "The journey sequence moves with real momentum", "quote"),
			anchoredItem(ItemTypeProcess, "You cut the slow opening after rereading it aloud", "quote"),
			anchoredItem(ItemTypeSelfReg, "You set a checkpoint halfway through the hour", "quote"),
		},
		GrowthAreas: []Item{
			anchoredItem(ItemTypeTask, "You should have included a bibliography of cited poems", "quote"),
		},
	}

	warnings := Validate(invented, criteria)
	warning := findWarning(t, warnings, WarnInventedCriteria)
	require.Equal(t, SeverityStrong, warning.Severity)
	require.Equal(t, "growth_areas[0]", warning.Location)

	// Same phrasing, but the demand overlaps a real criterion.
	grounded := invented
	grounded.GrowthAreas = []Item{
		anchoredItem(ItemTypeTask, "You should have included more sensory details beyond sight", "quote"),
	}
	warnings = Validate(grounded, criteria)
	for _, w := range warnings {
		require.NotEqual(t, WarnInventedCriteria, w.Type)
	}

	// No criteria supplied: the heuristic never runs.
	warnings = Validate(invented, nil)
	for _, w := range warnings {
		require.NotEqual(t, WarnInventedCriteria, w.Type)
	}
}

func TestValidateDeterministic(t *testing.T) {
	fs := Session{
		Strengths: []Item{
			{Type: ItemTypeTask, Text: "Good job"},
			{Type: ItemTypeTask, Text: "You are so smart about commas"},
			{Type: ItemTypeTask, Text: "Nice work"},
			{Type: ItemTypeTask, Text: "Great job"},
		},
		GrowthAreas: []Item{
			{Type: ItemTypeTask, Text: "You should have included an interview with the author"},
			{Type: ItemTypeTask, Text: "Needs more"},
			{Type: ItemTypeTask, Text: "Try harder"},
		},
		NextSteps: []NextStep{
			{Action: "a", Target: "b", SuccessIndicator: "c", CallToAction: strings.Repeat("x", 41)},
			{Action: "a", Target: "b", SuccessIndicator: "c", CallToAction: "short"},
			{Action: "a", Target: "b", SuccessIndicator: "c", CallToAction: "short"},
			{Action: "a", Target: "b", SuccessIndicator: "c", CallToAction: "short"},
		},
	}
	criteria := []string{"Use 3 sensory details"}

	first := Validate(fs, criteria)
	second := Validate(fs, criteria)
	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}
