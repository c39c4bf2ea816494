package ledger

// Interval is one maximal contiguous run of snapshots in which a user was
// present in the relevant relationship list. To names the first snapshot
// after the run ended; an empty To means the run was still active at the end
// of the inspected window.
type Interval struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// PresenceIntervals reconstructs presence intervals for a category from the
// discrete snapshot samples inside the window [windowStart, windowEnd]
// (inclusive snapshot indices). Candidates may be supplied explicitly — the
// query layer passes the currently displayed list — and default to the
// category's own membership. Keys with zero presence anywhere in the window
// are omitted from the result.
func PresenceIntervals(dataset *Dataset, category Category, windowStart int, windowEnd int, candidates []*User) map[string][]Interval {
	intervals := map[string][]Interval{}
	if dataset == nil || len(dataset.MergedSnapshots) == 0 {
		return intervals
	}

	windowStart = clampIndex(windowStart, 0, len(dataset.MergedSnapshots)-1)
	windowEnd = clampIndex(windowEnd, 0, len(dataset.MergedSnapshots)-1)
	if windowEnd < windowStart {
		return intervals
	}

	if candidates == nil {
		candidates = CategoryUsers(dataset, category)
	}

	membership := make([]map[string]struct{}, 0, windowEnd-windowStart+1)
	for index := windowStart; index <= windowEnd; index++ {
		snapshot := dataset.MergedSnapshots[index]
		if category.FollowingOriented() {
			membership = append(membership, keySet(snapshot.Following))
		} else {
			membership = append(membership, keySet(snapshot.Followers))
		}
	}

	for _, candidate := range candidates {
		key := CanonicalKey(candidate.Username)
		if _, alreadyScanned := intervals[key]; alreadyScanned {
			continue
		}
		runs := presenceRuns(dataset.MergedSnapshots, membership, key, windowStart, windowEnd)
		if len(runs) > 0 {
			intervals[key] = runs
		}
	}
	return intervals
}

// presenceRuns scans the membership samples for one key and folds them into
// maximal contiguous runs.
func presenceRuns(mergedSnapshots []Snapshot, membership []map[string]struct{}, key string, windowStart int, windowEnd int) []Interval {
	var runs []Interval
	var openRun *Interval

	for index := windowStart; index <= windowEnd; index++ {
		_, present := membership[index-windowStart][key]
		switch {
		case present && openRun == nil:
			openRun = &Interval{From: mergedSnapshots[index].Timestamp}
		case !present && openRun != nil:
			openRun.To = mergedSnapshots[index].Timestamp
			runs = append(runs, *openRun)
			openRun = nil
		}
	}
	if openRun != nil {
		runs = append(runs, *openRun)
	}
	return runs
}

func clampIndex(value int, lowest int, highest int) int {
	if value < lowest {
		return lowest
	}
	if value > highest {
		return highest
	}
	return value
}
