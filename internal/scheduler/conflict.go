package scheduler

// Slot is the view of an existing booking the conflict detector works on.
type Slot struct {
	BookingID string
	Interval  Interval
	Status    Status
}

// FindConflicts returns the existing slots whose intervals overlap the candidate.
//
// The caller scopes existing to one room and date. Cancelled slots and the slot
// identified by excludeID never conflict, so callers may pass an unfiltered set.
// Matches are returned in input order.
func FindConflicts(existing []Slot, candidate Interval, excludeID string) []Slot {
	var conflicts []Slot
	for _, slot := range existing {
		if slot.Status == StatusCancelled {
			continue
		}
		if excludeID != "" && slot.BookingID == excludeID {
			continue
		}
		if slot.Interval.Overlaps(candidate) {
			conflicts = append(conflicts, slot)
		}
	}
	return conflicts
}
