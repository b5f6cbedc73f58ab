package model

// SenderCount is one row of a FrequencyTable.
type SenderCount struct {
	// Sender is the address extracted from the From header.
	Sender string

	// Count is how many scanned messages came from Sender. It covers the
	// scanned window only, not the whole mailbox.
	Count int
}

// FrequencyTable lists senders by count, highest first. Senders with
// equal counts keep the order in which they were first seen.
type FrequencyTable struct {
	Senders []SenderCount

	// Scanned is how many message identifiers the scan covered.
	Scanned int

	// Skipped is how many of those could not be fetched.
	Skipped int
}

// Len returns the number of senders in the table.
func (t FrequencyTable) Len() int {
	return len(t.Senders)
}

// Addresses returns the senders in table order.
func (t FrequencyTable) Addresses() []string {
	out := make([]string, len(t.Senders))
	for i, s := range t.Senders {
		out[i] = s.Sender
	}
	return out
}

// SelectionSet records which senders of a FrequencyTable are chosen for
// labeling. It is created empty for each new table and discarded with it.
type SelectionSet struct {
	order    []string
	selected map[string]bool
}

// NewSelectionSet returns a selection over table's senders with nothing
// selected.
func NewSelectionSet(table FrequencyTable) *SelectionSet {
	s := &SelectionSet{
		order:    table.Addresses(),
		selected: make(map[string]bool, table.Len()),
	}
	for _, addr := range s.order {
		s.selected[addr] = false
	}
	return s
}

// Has reports whether sender belongs to the underlying table.
func (s *SelectionSet) Has(sender string) bool {
	_, ok := s.selected[sender]
	return ok
}

// Set marks sender as selected or not. Senders outside the table are
// ignored.
func (s *SelectionSet) Set(sender string, selected bool) {
	if s.Has(sender) {
		s.selected[sender] = selected
	}
}

// Toggle flips sender's selection and returns the new state.
func (s *SelectionSet) Toggle(sender string) bool {
	if !s.Has(sender) {
		return false
	}
	s.selected[sender] = !s.selected[sender]
	return s.selected[sender]
}

// IsSelected reports whether sender is selected.
func (s *SelectionSet) IsSelected(sender string) bool {
	return s.selected[sender]
}

// SetAll selects or clears every sender.
func (s *SelectionSet) SetAll(selected bool) {
	for _, addr := range s.order {
		s.selected[addr] = selected
	}
}

// Selected returns the chosen senders in table order.
func (s *SelectionSet) Selected() []string {
	var out []string
	for _, addr := range s.order {
		if s.selected[addr] {
			out = append(out, addr)
		}
	}
	return out
}

// Count returns how many senders are selected.
func (s *SelectionSet) Count() int {
	n := 0
	for _, v := range s.selected {
		if v {
			n++
		}
	}
	return n
}

// OutcomeStatus summarizes what happened to one sender during labeling.
type OutcomeStatus string

const (
	// OutcomeLabeled means the search succeeded and every match was
	// attempted.
	OutcomeLabeled OutcomeStatus = "labeled"
	// OutcomeSelectFailed means the folder could not be selected.
	OutcomeSelectFailed OutcomeStatus = "select failed"
	// OutcomeSearchFailed means the sender search did not succeed.
	OutcomeSearchFailed OutcomeStatus = "search failed"
	// OutcomeSkipped means the run stopped before this sender was reached.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeInvalid means the sender address was empty and nothing was
	// searched.
	OutcomeInvalid OutcomeStatus = "invalid"
)

// LabelingOutcome is the result for one sender of a label-apply run.
type LabelingOutcome struct {
	Sender string
	Status OutcomeStatus

	// Matched is how many messages the sender search returned; each one
	// had the label requested.
	Matched int

	// Failed is how many of the Matched store requests returned an error.
	Failed int

	// Err is the search/select failure, or the first store failure.
	Err error
}

// Labeled returns how many messages were labeled without error.
func (o LabelingOutcome) Labeled() int {
	return o.Matched - o.Failed
}

// OK reports whether the search succeeded and every match was labeled.
func (o LabelingOutcome) OK() bool {
	return o.Status == OutcomeLabeled && o.Failed == 0
}
