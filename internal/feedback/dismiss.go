package feedback

// DismissSet tracks which warning ids the reviewing teacher has waved off.
// It lives only in the reviewer's session and is never persisted.
type DismissSet struct {
	ids map[string]struct{}
}

// NewDismissSet returns an empty dismissal set.
func NewDismissSet() *DismissSet {
	return &DismissSet{ids: make(map[string]struct{})}
}

// Dismiss hides a single warning id.
func (d *DismissSet) Dismiss(id string) {
	d.ids[id] = struct{}{}
}

// DismissAll hides every warning currently in the slice. Warnings produced by
// a later re-validation are unaffected unless they carry the same ids.
func (d *DismissSet) DismissAll(warnings []Warning) {
	for _, w := range warnings {
		d.ids[w.ID] = struct{}{}
	}
}

// Dismissed reports whether the id has been waved off.
func (d *DismissSet) Dismissed(id string) bool {
	_, ok := d.ids[id]
	return ok
}

// Filter returns the warnings that have not been dismissed, preserving order.
func (d *DismissSet) Filter(warnings []Warning) []Warning {
	remaining := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		if d.Dismissed(w.ID) {
			continue
		}
		remaining = append(remaining, w)
	}
	return remaining
}

// Reset clears all dismissals.
func (d *DismissSet) Reset() {
	d.ids = make(map[string]struct{})
}
