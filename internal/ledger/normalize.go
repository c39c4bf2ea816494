package ledger

// NormalizeSnapshot converts either supported snapshot shape into the
// canonical one with explicit, non-nil follower and following lists. A
// legacy changed_users list is partitioned by its relationship flags; a
// single entry tagged with both flags lands in both lists. Normalization
// never fails: a snapshot with no usable data yields empty lists.
func NormalizeSnapshot(snapshot Snapshot) Snapshot {
	followers := snapshot.Followers
	following := snapshot.Following

	if len(snapshot.ChangedUsers) > 0 {
		if followers == nil {
			followers = usersWithFlag(snapshot.ChangedUsers, flagFollower)
		}
		if following == nil {
			following = usersWithFlag(snapshot.ChangedUsers, flagFollowing)
		}
	}
	if followers == nil {
		followers = []User{}
	}
	if following == nil {
		following = []User{}
	}

	return Snapshot{
		Timestamp: snapshot.Timestamp,
		Followers: followers,
		Following: following,
	}
}

// NormalizeDocument normalizes every snapshot in a document.
func NormalizeDocument(document Document) Document {
	normalized := document
	normalized.Snapshots = make([]Snapshot, len(document.Snapshots))
	for index, snapshot := range document.Snapshots {
		normalized.Snapshots[index] = NormalizeSnapshot(snapshot)
	}
	return normalized
}

type relationshipFlag int

const (
	flagFollower relationshipFlag = iota
	flagFollowing
)

func usersWithFlag(users []User, flag relationshipFlag) []User {
	selected := []User{}
	for _, user := range users {
		switch flag {
		case flagFollower:
			if user.Follower != nil && *user.Follower {
				selected = append(selected, user)
			}
		case flagFollowing:
			if user.Following != nil && *user.Following {
				selected = append(selected, user)
			}
		}
	}
	return selected
}
