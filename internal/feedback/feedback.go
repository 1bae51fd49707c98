package feedback

// ItemType classifies a strength or growth-area item.
type ItemType string

const (
	// ItemTypeTask targets qualities of the produced work itself.
	ItemTypeTask ItemType = "task"
	// ItemTypeProcess targets the strategies used while writing.
	ItemTypeProcess ItemType = "process"
	// ItemTypeSelfReg targets self-regulation and planning behaviour.
	ItemTypeSelfReg ItemType = "self_reg"
)

// Item is one strength or growth-area entry. Anchors are verbatim quotes
// lifted from the submission that ground the comment.
type Item struct {
	Type    ItemType `json:"type"`
	Text    string   `json:"text"`
	Anchors []string `json:"anchors,omitempty"`
}

// NextStep is a concrete, actionable follow-up offered to the student.
type NextStep struct {
	Action           string `json:"action"`
	Target           string `json:"target"`
	SuccessIndicator string `json:"success_indicator"`
	ReflectPrompt    string `json:"reflect_prompt,omitempty"`
	CallToAction     string `json:"call_to_action"`
}

// Session is the structured feedback object attached to one submission.
type Session struct {
	Goal        string     `json:"goal"`
	Strengths   []Item     `json:"strengths"`
	GrowthAreas []Item     `json:"growth_areas"`
	NextSteps   []NextStep `json:"next_steps"`
	Mastered    bool       `json:"mastered,omitempty"`
}

// Severity ranks how prominently a warning should be surfaced. Warnings never
// block approval regardless of severity.
type Severity string

const (
	// SeverityStrong marks safety or pedagogical violations.
	SeverityStrong Severity = "strong"
	// SeveritySoft marks quality suggestions.
	SeveritySoft Severity = "soft"
)

// Warning is a transient classification of a feedback session. It is never
// persisted; dismissal state lives with the reviewing teacher.
type Warning struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Match       string   `json:"match,omitempty"`
}
