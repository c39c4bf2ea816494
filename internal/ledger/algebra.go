package ledger

// CompareSnapshots computes the set differences between two snapshots. Every
// resulting entry is resolved through the supplied identity registry so that
// callers see the fully merged record rather than the raw per-snapshot
// observation. Membership is decided on canonical keys only; output order
// follows the input list order of the snapshot each difference is read from.
// A key that does not resolve in the registry indicates the registry was not
// built from the compared snapshot sequence; such keys are skipped.
func CompareSnapshots(baseSnapshot Snapshot, compareSnapshot Snapshot, registry map[string]*User) SnapshotComparison {
	baseFollowerKeys := keySet(baseSnapshot.Followers)
	baseFollowingKeys := keySet(baseSnapshot.Following)
	compareFollowerKeys := keySet(compareSnapshot.Followers)
	compareFollowingKeys := keySet(compareSnapshot.Following)

	return SnapshotComparison{
		LostFollowers: resolveDifference(baseSnapshot.Followers, compareFollowerKeys, registry),
		Unfollowed:    resolveDifference(baseSnapshot.Following, compareFollowingKeys, registry),
		NewFollowers:  resolveDifference(compareSnapshot.Followers, baseFollowerKeys, registry),
		NewFollowing:  resolveDifference(compareSnapshot.Following, baseFollowingKeys, registry),
	}
}

// resolveDifference returns registry records for every key listed in users
// but absent from excludedKeys, preserving list order and dropping duplicate
// keys within the list.
func resolveDifference(users []User, excludedKeys map[string]struct{}, registry map[string]*User) []ComparisonEntry {
	entries := []ComparisonEntry{}
	visited := make(map[string]struct{}, len(users))
	for _, user := range users {
		key := CanonicalKey(user.Username)
		if _, alreadyVisited := visited[key]; alreadyVisited {
			continue
		}
		visited[key] = struct{}{}
		if _, present := excludedKeys[key]; present {
			continue
		}
		record, resolvable := registry[key]
		if !resolvable {
			continue
		}
		entries = append(entries, ComparisonEntry{User: record})
	}
	return entries
}

func keySet(users []User) map[string]struct{} {
	keys := make(map[string]struct{}, len(users))
	for _, user := range users {
		keys[CanonicalKey(user.Username)] = struct{}{}
	}
	return keys
}
