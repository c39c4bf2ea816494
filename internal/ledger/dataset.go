package ledger

import (
	"errors"
	"sort"
	"time"
)

const errMessageNoSnapshots = "no snapshots available"

// ErrNoSnapshots indicates that neither the base document nor the uploaded
// documents contained any snapshot. An empty ledger is a legitimate initial
// state, not a malformed one, so callers are expected to branch on this
// sentinel rather than report a failure.
var ErrNoSnapshots = errors.New(errMessageNoSnapshots)

// BuildOptions carries the optional inputs of a dataset build.
type BuildOptions struct {
	// BaseSnapshotIndex and CompareSnapshotIndex select the optional pairwise
	// snapshot comparison. Both must be set and within bounds of the sorted
	// snapshot sequence; otherwise the comparison is omitted.
	BaseSnapshotIndex    *int
	CompareSnapshotIndex *int

	// BackfillCutoff enables the historical backfill correction for every
	// snapshot at or after the given timestamp. The correction repairs a
	// recording gap in which some mutual relationships were not captured: a
	// user listed in a snapshot's following list who is a follower in the
	// current latest state is appended to that snapshot's followers list, and
	// symmetrically for following. Empty disables the correction.
	BackfillCutoff string

	// Account overrides the account identity taken from the input documents.
	Account *Account
}

// BuildDataset folds an optional base document and any number of snapshot
// documents into one identity-resolved dataset. The build is a pure function
// of its inputs: every invocation allocates a fresh registry and derives all
// categories from scratch.
func BuildDataset(base *Document, documents []Document, options BuildOptions) (*Dataset, error) {
	orderedDocuments := make([]Document, 0, len(documents)+1)
	if base != nil {
		orderedDocuments = append(orderedDocuments, NormalizeDocument(*base))
	}
	for _, document := range documents {
		orderedDocuments = append(orderedDocuments, NormalizeDocument(document))
	}

	mergedSnapshots := []Snapshot{}
	for _, document := range orderedDocuments {
		for _, snapshot := range document.Snapshots {
			mergedSnapshots = append(mergedSnapshots, decorateSnapshot(snapshot))
		}
	}
	if len(mergedSnapshots) == 0 {
		return nil, ErrNoSnapshots
	}

	sort.SliceStable(mergedSnapshots, func(firstIndex, secondIndex int) bool {
		return parseTimestamp(mergedSnapshots[firstIndex].Timestamp).Before(parseTimestamp(mergedSnapshots[secondIndex].Timestamp))
	})

	dataset := &Dataset{
		Account:          resolveAccount(base, documents, options),
		MergedSnapshots:  mergedSnapshots,
		LatestFollowers:  map[string]*User{},
		LatestFollowing:  map[string]*User{},
		Mutuals:          map[string]*User{},
		NotFollowingBack: map[string]*User{},
		IDontFollowBack:  map[string]*User{},
		LostFollowers:    []TransitionEntry{},
		Unfollowed:       []TransitionEntry{},
		AlphaIndex:       map[string]string{},
		registry:         map[string]*User{},
	}

	foldIdentities(dataset, mergedSnapshots)
	deriveLatestState(dataset, mergedSnapshots[len(mergedSnapshots)-1])
	deriveTransitionHistory(dataset, mergedSnapshots)
	attachSelectedComparison(dataset, mergedSnapshots, options)

	for key, record := range dataset.registry {
		dataset.AlphaIndex[key] = AlphaHeader(record.Username)
	}

	if options.BackfillCutoff != "" {
		backfillMutualHistory(dataset, parseTimestamp(options.BackfillCutoff))
	}

	return dataset, nil
}

// decorateSnapshot produces the snapshot copy stored in the dataset: list
// entries are cloned, tagged with their snapshot-local order index, and the
// legacy changed_users payload is dropped.
func decorateSnapshot(snapshot Snapshot) Snapshot {
	decorated := Snapshot{
		Timestamp: snapshot.Timestamp,
		Followers: decorateUserList(snapshot.Followers),
		Following: decorateUserList(snapshot.Following),
	}
	return decorated
}

func decorateUserList(users []User) []User {
	decorated := make([]User, len(users))
	for index, user := range users {
		cloned := CloneUser(user)
		position := index
		cloned.OrderIndex = &position
		decorated[index] = cloned
	}
	return decorated
}

// foldIdentities walks every snapshot in ascending order and folds each
// observation into the identity registry, the single source of truth every
// derived structure resolves through.
func foldIdentities(dataset *Dataset, mergedSnapshots []Snapshot) {
	for _, snapshot := range mergedSnapshots {
		for _, list := range [][]User{snapshot.Followers, snapshot.Following} {
			for _, observed := range list {
				foldObservation(dataset, observed, snapshot.Timestamp)
			}
		}
	}
}

func foldObservation(dataset *Dataset, observed User, observedAt string) {
	key := CanonicalKey(observed.Username)

	incoming := CloneUser(observed)
	if incoming.ProfileURL == "" {
		incoming.ProfileURL = DefaultProfileURL(incoming.Username)
	}
	incoming.FirstSeen = earliestTimestamp(observed.FirstSeen, observedAt)
	incoming.LastSeen = latestTimestamp(observed.LastSeen, observedAt)

	existing, alreadySeen := dataset.registry[key]
	if !alreadySeen {
		created := MergeUsers(nil, incoming, observedAt)
		dataset.registry[key] = created
		return
	}
	MergeUsers(existing, incoming, observedAt)
}

// deriveLatestState resolves the chronologically last snapshot's membership
// through the registry and computes the three latest-state categories.
func deriveLatestState(dataset *Dataset, lastSnapshot Snapshot) {
	for _, user := range lastSnapshot.Followers {
		key := CanonicalKey(user.Username)
		if record, exists := dataset.registry[key]; exists {
			dataset.LatestFollowers[key] = record
		}
	}
	for _, user := range lastSnapshot.Following {
		key := CanonicalKey(user.Username)
		if record, exists := dataset.registry[key]; exists {
			dataset.LatestFollowing[key] = record
		}
	}

	for key, record := range dataset.LatestFollowers {
		if _, followed := dataset.LatestFollowing[key]; followed {
			dataset.Mutuals[key] = record
		} else {
			dataset.IDontFollowBack[key] = record
		}
	}
	for key, record := range dataset.LatestFollowing {
		if _, followsMe := dataset.LatestFollowers[key]; !followsMe {
			dataset.NotFollowingBack[key] = record
		}
	}
}

// deriveTransitionHistory records one entry per relationship lost between
// each adjacent snapshot pair. Entries are transition events, not users: a
// user lost and regained repeatedly appears once per loss.
func deriveTransitionHistory(dataset *Dataset, mergedSnapshots []Snapshot) {
	for index := 0; index < len(mergedSnapshots)-1; index++ {
		current := mergedSnapshots[index]
		next := mergedSnapshots[index+1]

		nextFollowerKeys := keySet(next.Followers)
		nextFollowingKeys := keySet(next.Following)

		for _, entry := range resolveDifference(current.Followers, nextFollowerKeys, dataset.registry) {
			dataset.LostFollowers = append(dataset.LostFollowers, TransitionEntry{
				User: entry.User,
				From: current.Timestamp,
				To:   next.Timestamp,
			})
		}
		for _, entry := range resolveDifference(current.Following, nextFollowingKeys, dataset.registry) {
			dataset.Unfollowed = append(dataset.Unfollowed, TransitionEntry{
				User: entry.User,
				From: current.Timestamp,
				To:   next.Timestamp,
			})
		}
	}
}

func attachSelectedComparison(dataset *Dataset, mergedSnapshots []Snapshot, options BuildOptions) {
	if options.BaseSnapshotIndex == nil || options.CompareSnapshotIndex == nil {
		return
	}
	baseIndex := *options.BaseSnapshotIndex
	compareIndex := *options.CompareSnapshotIndex
	if baseIndex < 0 || compareIndex < 0 || baseIndex >= len(mergedSnapshots) || compareIndex >= len(mergedSnapshots) {
		return
	}

	comparison := CompareSnapshots(mergedSnapshots[baseIndex], mergedSnapshots[compareIndex], dataset.registry)
	comparison.BaseIndex = baseIndex
	comparison.CompareIndex = compareIndex
	dataset.SelectedComparison = &comparison
}

// backfillMutualHistory repairs a known recording gap: for every snapshot at
// or after the cutoff, a user present in that snapshot's following list who
// is a follower in the current latest state is appended to that snapshot's
// followers list, and symmetrically for following. The test is deliberately
// forward-looking ("are they my follower now"), never against neighbouring
// snapshots.
func backfillMutualHistory(dataset *Dataset, cutoff time.Time) {
	lastSnapshot := dataset.MergedSnapshots[len(dataset.MergedSnapshots)-1]
	currentFollowerKeys := keySet(lastSnapshot.Followers)
	currentFollowingKeys := keySet(lastSnapshot.Following)

	for index := range dataset.MergedSnapshots {
		snapshot := &dataset.MergedSnapshots[index]
		if parseTimestamp(snapshot.Timestamp).Before(cutoff) {
			continue
		}

		existingFollowerKeys := keySet(snapshot.Followers)
		existingFollowingKeys := keySet(snapshot.Following)

		additionalFollowers := synthesizeMissingEntries(dataset, snapshot.Following, currentFollowerKeys, existingFollowerKeys, len(snapshot.Followers))
		additionalFollowing := synthesizeMissingEntries(dataset, snapshot.Followers, currentFollowingKeys, existingFollowingKeys, len(snapshot.Following))

		snapshot.Followers = append(snapshot.Followers, additionalFollowers...)
		snapshot.Following = append(snapshot.Following, additionalFollowing...)
	}
}

func synthesizeMissingEntries(dataset *Dataset, counterpartList []User, currentKeys map[string]struct{}, existingKeys map[string]struct{}, nextOrderIndex int) []User {
	synthesized := []User{}
	for _, user := range counterpartList {
		key := CanonicalKey(user.Username)
		if _, presentNow := currentKeys[key]; !presentNow {
			continue
		}
		if _, alreadyListed := existingKeys[key]; alreadyListed {
			continue
		}
		record, exists := dataset.registry[key]
		if !exists {
			continue
		}
		entry := CloneUser(*record)
		position := nextOrderIndex + len(synthesized)
		entry.OrderIndex = &position
		synthesized = append(synthesized, entry)
		existingKeys[key] = struct{}{}
	}
	return synthesized
}

func resolveAccount(base *Document, documents []Document, options BuildOptions) Account {
	var account Account
	switch {
	case options.Account != nil:
		account = *options.Account
	case base != nil:
		account = base.Account
	case len(documents) > 0:
		account = documents[0].Account
	}
	if account.ProfileURL == "" && account.Username != "" {
		account.ProfileURL = DefaultProfileURL(account.Username)
	}
	return account
}

// timestampLayouts lists the accepted snapshot timestamp formats, most
// specific first. Exports use RFC 3339; some historical captures omit the
// zone or the time component.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(value string) time.Time {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
