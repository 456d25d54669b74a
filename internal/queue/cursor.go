package queue

// updateReleaseCursor implements the release-cursor algorithm of spec §4.5.
// It must be called after the settled LogIndex has already been deleted
// from s.Idx, and is given the index's smallest key from immediately
// before that deletion (oldFirst) to compare against the LogIndex that was
// just settled (settledIdx).
//
// It returns a ReleaseCursorEffect, or the zero Effect with ok == false
// when the cursor is unchanged.
func updateReleaseCursor(s *State, logIndex LogIndex, settledIdx LogIndex, oldFirst LogIndex, hadOldFirst bool) (Effect, bool) {
	if s.Idx.Size() == 0 {
		return releaseCursorEffect(logIndex, shadowCopy(s)), true
	}

	if hadOldFirst && settledIdx == oldFirst {
		newFirst, shadow, ok := s.Idx.Smallest()
		if !ok {
			// Unreachable: Size() > 0 above guarantees Smallest succeeds.
			return Effect{}, false
		}
		if shadow != nil {
			return releaseCursorEffect(newFirst-1, shadow), true
		}
		return Effect{}, false
	}

	return Effect{}, false
}
