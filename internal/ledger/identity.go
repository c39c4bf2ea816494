package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const profileURLFormat = "https://instagram.com/%s"

// CanonicalKey normalizes a username to the key used for every identity join.
func CanonicalKey(username string) string {
	return strings.ToLower(username)
}

// DefaultProfileURL constructs the profile URL for a username.
func DefaultProfileURL(username string) string {
	return fmt.Sprintf(profileURLFormat, username)
}

// AlphaHeader returns the uppercase first character of a username, or "#"
// when the username is empty. Used for alphabetical section headers.
func AlphaHeader(username string) string {
	if username == "" {
		return "#"
	}
	return strings.ToUpper(username[:1])
}

// CloneUser deep-copies a user record so that registry entries never alias
// the input documents they were observed in.
func CloneUser(user User) User {
	cloned := user
	cloned.IsVerified = cloneBool(user.IsVerified)
	cloned.IsPrivate = cloneBool(user.IsPrivate)
	cloned.Follower = cloneBool(user.Follower)
	cloned.Following = cloneBool(user.Following)
	cloned.Whitelisted = cloneBool(user.Whitelisted)
	cloned.Blocked = cloneBool(user.Blocked)
	cloned.OrderIndex = cloneInt(user.OrderIndex)
	cloned.OrderIndexFollowing = cloneInt(user.OrderIndexFollowing)
	if len(user.Aliases) > 0 {
		cloned.Aliases = make([]AliasEntry, len(user.Aliases))
		copy(cloned.Aliases, user.Aliases)
	}
	return cloned
}

// MergeUsers folds a fresh observation into an existing identity record. The
// merge is right-biased: every field the incoming observation explicitly
// carries overwrites the existing value, while absent fields are left
// untouched. A case-insensitive username change is recorded once as an alias
// tagged with the observation time, and the profile URL is recomputed from
// the new username. first_seen widens to the earliest and last_seen to the
// latest of the two records. The existing record is mutated and returned.
func MergeUsers(existing *User, incoming User, observedAt string) *User {
	if existing == nil {
		created := CloneUser(incoming)
		ensureIdentityDefaults(&created, observedAt)
		return &created
	}

	if incoming.Username != "" && CanonicalKey(incoming.Username) != CanonicalKey(existing.Username) {
		appendAlias(existing, existing.Username, observedAt)
		existing.Username = incoming.Username
		existing.ProfileURL = DefaultProfileURL(incoming.Username)
		removeAlias(existing, incoming.Username)
	} else if incoming.Username != "" {
		// Adopt the canonical casing of the latest observation.
		existing.Username = incoming.Username
		if incoming.ProfileURL != "" {
			existing.ProfileURL = incoming.ProfileURL
		}
	}

	for _, alias := range incoming.Aliases {
		if CanonicalKey(alias.Username) != CanonicalKey(existing.Username) {
			appendAlias(existing, alias.Username, alias.ChangedAt)
		}
	}

	if incoming.FullName != "" {
		existing.FullName = incoming.FullName
	}
	if incoming.ProfilePicURL != "" {
		existing.ProfilePicURL = incoming.ProfilePicURL
	}
	if incoming.IsVerified != nil {
		existing.IsVerified = cloneBool(incoming.IsVerified)
	}
	if incoming.IsPrivate != nil {
		existing.IsPrivate = cloneBool(incoming.IsPrivate)
	}
	if incoming.Follower != nil {
		existing.Follower = cloneBool(incoming.Follower)
	}
	if incoming.Following != nil {
		existing.Following = cloneBool(incoming.Following)
	}
	if incoming.Whitelisted != nil {
		existing.Whitelisted = cloneBool(incoming.Whitelisted)
	}
	if incoming.Blocked != nil {
		existing.Blocked = cloneBool(incoming.Blocked)
	}
	if incoming.OrderIndex != nil {
		existing.OrderIndex = cloneInt(incoming.OrderIndex)
	}
	if incoming.OrderIndexFollowing != nil {
		existing.OrderIndexFollowing = cloneInt(incoming.OrderIndexFollowing)
	}
	if incoming.UUID != "" && existing.UUID == "" {
		existing.UUID = incoming.UUID
	}

	existing.FirstSeen = earliestTimestamp(existing.FirstSeen, incoming.FirstSeen)
	existing.LastSeen = latestTimestamp(existing.LastSeen, incoming.LastSeen)

	return existing
}

// ensureIdentityDefaults fills the fields every registry record must carry on
// first sight: a profile URL, first/last seen bounds, and a stable UUID.
func ensureIdentityDefaults(record *User, observedAt string) {
	if record.ProfileURL == "" {
		record.ProfileURL = DefaultProfileURL(record.Username)
	}
	if record.FirstSeen == "" {
		record.FirstSeen = observedAt
	}
	if record.LastSeen == "" {
		record.LastSeen = observedAt
	}
	if record.UUID == "" {
		record.UUID = uuid.NewString()
	}
}

// appendAlias records a prior username once per distinct value. The current
// username never appears in its own alias list.
func appendAlias(record *User, previousUsername string, changedAt string) {
	if previousUsername == "" {
		return
	}
	for _, alias := range record.Aliases {
		if CanonicalKey(alias.Username) == CanonicalKey(previousUsername) {
			return
		}
	}
	record.Aliases = append(record.Aliases, AliasEntry{Username: previousUsername, ChangedAt: changedAt})
}

// removeAlias drops alias entries matching the record's newly adopted
// username, keeping the invariant that a record never lists its current
// username as an alias even across rename cycles.
func removeAlias(record *User, username string) {
	kept := record.Aliases[:0]
	for _, alias := range record.Aliases {
		if CanonicalKey(alias.Username) != CanonicalKey(username) {
			kept = append(kept, alias)
		}
	}
	record.Aliases = kept
}

func earliestTimestamp(first string, second string) string {
	if first == "" {
		return second
	}
	if second == "" {
		return first
	}
	if parseTimestamp(second).Before(parseTimestamp(first)) {
		return second
	}
	return first
}

func latestTimestamp(existing string, incoming string) string {
	if incoming == "" {
		return existing
	}
	if existing == "" {
		return incoming
	}
	if parseTimestamp(incoming).Before(parseTimestamp(existing)) {
		return existing
	}
	return incoming
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
