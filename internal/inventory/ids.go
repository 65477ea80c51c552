package inventory

// Display ids are single characters: sources use 'a'..'z', targets use
// '1'..'9' with '0' reserved for "unassigned".
const (
	MaxSourceIDs = 26
	MaxTargetIDs = 9

	// UnaddressableID is shown for items past the id range.
	UnaddressableID = "-"

	// UnassignID is the target id that clears a mapping entry.
	UnassignID = '0'
)

// SourceID returns the display id for the source at index.
func SourceID(index int) string {
	if index < 0 || index >= MaxSourceIDs {
		return UnaddressableID
	}
	return string(rune('a' + index))
}

// TargetID returns the display id for the target at index.
func TargetID(index int) string {
	if index < 0 || index >= MaxTargetIDs {
		return UnaddressableID
	}
	return string(rune('1' + index))
}

// ParseSourceID converts a source id into an index into a list of n sources.
func ParseSourceID(id rune, n int) (int, error) {
	if id < 'a' || id > 'z' {
		return 0, &InvalidIndexError{Kind: "source", ID: string(id), Max: min(n, MaxSourceIDs)}
	}
	index := int(id - 'a')
	if index >= n {
		return 0, &InvalidIndexError{Kind: "source", ID: string(id), Max: min(n, MaxSourceIDs)}
	}
	return index, nil
}

// ParseTargetID converts a target id into an index into a list of n targets.
// The unassign id returns ok == false with a nil error.
func ParseTargetID(id rune, n int) (index int, ok bool, err error) {
	if id == UnassignID {
		return 0, false, nil
	}
	if id < '1' || id > '9' {
		return 0, false, &InvalidIndexError{Kind: "target", ID: string(id), Max: min(n, MaxTargetIDs)}
	}
	index = int(id - '1')
	if index >= n {
		return 0, false, &InvalidIndexError{Kind: "target", ID: string(id), Max: min(n, MaxTargetIDs)}
	}
	return index, true, nil
}
