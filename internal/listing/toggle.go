package listing

// SortState is the sort selection of a list view.
type SortState struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle applies a click on column. A different column starts ascending; the
// active column cycles asc, desc, unsorted, asc.
func Toggle(state SortState, column string) SortState {
	if state.Key != column || state.Direction == None {
		return SortState{Key: column, Direction: Asc}
	}
	switch state.Direction {
	case Asc:
		return SortState{Key: column, Direction: Desc}
	default:
		return SortState{Key: column, Direction: None}
	}
}
