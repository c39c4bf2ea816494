package ledger

import (
	"sort"
	"strings"
)

// VerifiedFilter narrows a listing by verification state.
type VerifiedFilter string

const (
	VerifiedAny  VerifiedFilter = "any"
	VerifiedOnly VerifiedFilter = "verified"
	VerifiedNot  VerifiedFilter = "notVerified"
)

// PrivacyFilter narrows a listing by account privacy.
type PrivacyFilter string

const (
	PrivacyAny     PrivacyFilter = "any"
	PrivacyPrivate PrivacyFilter = "private"
	PrivacyPublic  PrivacyFilter = "public"
)

// WhitelistFilter narrows a listing by the user-controlled whitelist
// annotation.
type WhitelistFilter string

const (
	WhitelistAny     WhitelistFilter = "any"
	WhitelistOnly    WhitelistFilter = "only"
	WhitelistExclude WhitelistFilter = "exclude"
)

// SortMode selects the ordering of a listing.
type SortMode string

const (
	SortAlpha     SortMode = "alpha"
	SortAlphaDesc SortMode = "alphaDesc"
	SortChrono    SortMode = "chrono"
	SortChronoNew SortMode = "chronoNewest"
)

// Filters gathers the independent, conjunctive listing predicates.
type Filters struct {
	Verified  VerifiedFilter
	Privacy   PrivacyFilter
	Whitelist WhitelistFilter
	Search    string
}

// CategoryUsers returns the records behind a category. Lost and unfollowed
// listings prefer the selected pairwise comparison when one is active; the
// new-follower and new-following categories only exist inside a comparison
// and are empty otherwise. The result for map-backed categories is ordered
// by canonical key so repeated calls are deterministic.
func CategoryUsers(dataset *Dataset, category Category) []*User {
	if dataset == nil {
		return []*User{}
	}
	switch category {
	case CategoryFollowers:
		return sortedMapUsers(dataset.LatestFollowers)
	case CategoryFollowing:
		return sortedMapUsers(dataset.LatestFollowing)
	case CategoryMutuals:
		return sortedMapUsers(dataset.Mutuals)
	case CategoryNotFollowingBack:
		return sortedMapUsers(dataset.NotFollowingBack)
	case CategoryIDontFollowBack:
		return sortedMapUsers(dataset.IDontFollowBack)
	case CategoryLostFollowers:
		if dataset.SelectedComparison != nil {
			return comparisonUsers(dataset.SelectedComparison.LostFollowers)
		}
		return transitionUsers(dataset.LostFollowers)
	case CategoryUnfollowed:
		if dataset.SelectedComparison != nil {
			return comparisonUsers(dataset.SelectedComparison.Unfollowed)
		}
		return transitionUsers(dataset.Unfollowed)
	case CategoryNewFollowers:
		if dataset.SelectedComparison != nil {
			return comparisonUsers(dataset.SelectedComparison.NewFollowers)
		}
		return []*User{}
	case CategoryNewFollowing:
		if dataset.SelectedComparison != nil {
			return comparisonUsers(dataset.SelectedComparison.NewFollowing)
		}
		return []*User{}
	}
	return []*User{}
}

// Counts reports the size of every category, honoring the selected
// comparison override for the history categories.
func (dataset *Dataset) Counts() map[Category]int {
	counts := map[Category]int{}
	if dataset == nil {
		return counts
	}
	for _, category := range Categories() {
		counts[category] = len(CategoryUsers(dataset, category))
	}
	return counts
}

// SetWhitelisted updates the whitelist annotation on the registry record for
// key. Every derived map shares the registry record, so the change is
// visible in all category views. Returns false when the key is unknown.
func (dataset *Dataset) SetWhitelisted(key string, whitelisted bool) bool {
	record, exists := dataset.registry[CanonicalKey(key)]
	if !exists {
		return false
	}
	record.Whitelisted = &whitelisted
	return true
}

// WhitelistAll applies the whitelist annotation to every listed user and
// reports how many records changed.
func (dataset *Dataset) WhitelistAll(users []*User) int {
	changed := 0
	for _, user := range users {
		if user.Whitelisted != nil && *user.Whitelisted {
			continue
		}
		if dataset.SetWhitelisted(user.Username, true) {
			changed++
		}
	}
	return changed
}

// FilterUsers applies the conjunctive listing predicates. The search term
// matches case-insensitively against username or full name.
func FilterUsers(users []*User, filters Filters) []*User {
	filtered := []*User{}
	searchTerm := strings.ToLower(filters.Search)
	for _, user := range users {
		if !matchesVerified(user, filters.Verified) {
			continue
		}
		if !matchesPrivacy(user, filters.Privacy) {
			continue
		}
		if !matchesWhitelist(user, filters.Whitelist) {
			continue
		}
		if searchTerm != "" {
			username := strings.ToLower(user.Username)
			fullName := strings.ToLower(user.FullName)
			if !strings.Contains(username, searchTerm) && !strings.Contains(fullName, searchTerm) {
				continue
			}
		}
		filtered = append(filtered, user)
	}
	return filtered
}

// LatestOrderIndex maps canonical keys to their position within the latest
// snapshot's follower or following list, depending on the category's
// orientation. The index is a snapshot-local presentation hint with no
// cross-snapshot meaning.
func LatestOrderIndex(dataset *Dataset, category Category) map[string]int {
	orderIndex := map[string]int{}
	if dataset == nil || len(dataset.MergedSnapshots) == 0 {
		return orderIndex
	}
	lastSnapshot := dataset.MergedSnapshots[len(dataset.MergedSnapshots)-1]
	list := lastSnapshot.Followers
	if category.UsesFollowingOrderIndex() {
		list = lastSnapshot.Following
	}
	for position, user := range list {
		key := CanonicalKey(user.Username)
		if _, exists := orderIndex[key]; exists {
			continue
		}
		if user.OrderIndex != nil {
			orderIndex[key] = *user.OrderIndex
		} else {
			orderIndex[key] = position
		}
	}
	return orderIndex
}

// SortUsers orders a listing without mutating the input slice. Chronological
// modes rank by the latest snapshot's order index, where a lower index means
// more recently observed; users without an index sort to the end,
// alphabetically among themselves.
func SortUsers(users []*User, mode SortMode, latestOrderIndex map[string]int) []*User {
	ordered := make([]*User, len(users))
	copy(ordered, users)

	switch mode {
	case SortAlpha:
		sort.SliceStable(ordered, func(firstIndex, secondIndex int) bool {
			return lowercaseUsername(ordered[firstIndex]) < lowercaseUsername(ordered[secondIndex])
		})
	case SortAlphaDesc:
		sort.SliceStable(ordered, func(firstIndex, secondIndex int) bool {
			return lowercaseUsername(ordered[firstIndex]) > lowercaseUsername(ordered[secondIndex])
		})
	case SortChrono, SortChronoNew:
		if latestOrderIndex == nil {
			return ordered
		}
		sort.SliceStable(ordered, func(firstIndex, secondIndex int) bool {
			return chronoLess(ordered[firstIndex], ordered[secondIndex], mode, latestOrderIndex)
		})
	}
	return ordered
}

func chronoLess(first *User, second *User, mode SortMode, latestOrderIndex map[string]int) bool {
	firstPosition, firstRanked := latestOrderIndex[CanonicalKey(first.Username)]
	secondPosition, secondRanked := latestOrderIndex[CanonicalKey(second.Username)]

	switch {
	case !firstRanked && !secondRanked:
		return lowercaseUsername(first) < lowercaseUsername(second)
	case !firstRanked:
		return false
	case !secondRanked:
		return true
	}
	if mode == SortChronoNew {
		return firstPosition < secondPosition
	}
	return firstPosition > secondPosition
}

// Paginate returns the requested one-based page of a listing.
func Paginate(users []*User, page int, pageSize int) []*User {
	if pageSize <= 0 || page <= 0 {
		return []*User{}
	}
	start := (page - 1) * pageSize
	if start >= len(users) {
		return []*User{}
	}
	end := start + pageSize
	if end > len(users) {
		end = len(users)
	}
	return users[start:end]
}

func matchesVerified(user *User, filter VerifiedFilter) bool {
	switch filter {
	case VerifiedOnly:
		return user.IsVerified != nil && *user.IsVerified
	case VerifiedNot:
		return user.IsVerified == nil || !*user.IsVerified
	}
	return true
}

func matchesPrivacy(user *User, filter PrivacyFilter) bool {
	switch filter {
	case PrivacyPrivate:
		return user.IsPrivate != nil && *user.IsPrivate
	case PrivacyPublic:
		return user.IsPrivate == nil || !*user.IsPrivate
	}
	return true
}

func matchesWhitelist(user *User, filter WhitelistFilter) bool {
	switch filter {
	case WhitelistOnly:
		return user.Whitelisted != nil && *user.Whitelisted
	case WhitelistExclude:
		return user.Whitelisted == nil || !*user.Whitelisted
	}
	return true
}

func sortedMapUsers(records map[string]*User) []*User {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	users := make([]*User, 0, len(keys))
	for _, key := range keys {
		users = append(users, records[key])
	}
	return users
}

func transitionUsers(entries []TransitionEntry) []*User {
	users := make([]*User, 0, len(entries))
	for _, entry := range entries {
		users = append(users, entry.User)
	}
	return users
}

func comparisonUsers(entries []ComparisonEntry) []*User {
	users := make([]*User, 0, len(entries))
	for _, entry := range entries {
		users = append(users, entry.User)
	}
	return users
}

func lowercaseUsername(user *User) string {
	return strings.ToLower(user.Username)
}
