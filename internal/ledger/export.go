package ledger

import "time"

const exportSchemaVersion = 1

// MergedDocument renders a dataset back into the document shape accepted as
// input, so an export from one session can seed the next one as its base.
// Snapshot entries are resolved through the registry before export, which is
// how annotations such as the whitelist flag survive the round trip.
func MergedDocument(dataset *Dataset, enrichedAt time.Time) Document {
	snapshots := make([]Snapshot, len(dataset.MergedSnapshots))
	for index, snapshot := range dataset.MergedSnapshots {
		snapshots[index] = Snapshot{
			Timestamp: snapshot.Timestamp,
			Followers: enrichUserList(dataset, snapshot.Followers),
			Following: enrichUserList(dataset, snapshot.Following),
		}
	}

	return Document{
		Account:    dataset.Account,
		Snapshots:  snapshots,
		EnrichedAt: enrichedAt.UTC().Format(time.RFC3339),
		Schema:     &SchemaInfo{Version: exportSchemaVersion},
	}
}

// enrichUserList replaces each snapshot entry with its fully merged registry
// record while preserving the entry's snapshot-local order index. Entries
// without a registry record are exported as captured.
func enrichUserList(dataset *Dataset, users []User) []User {
	enriched := make([]User, len(users))
	for index, user := range users {
		record, exists := dataset.registry[CanonicalKey(user.Username)]
		if !exists {
			enriched[index] = CloneUser(user)
			continue
		}
		resolved := CloneUser(*record)
		resolved.OrderIndex = cloneInt(user.OrderIndex)
		enriched[index] = resolved
	}
	return enriched
}
