package ledger

// AliasEntry records a username an identity was previously known by and when
// the change was detected.
type AliasEntry struct {
	Username  string `json:"username"`
	ChangedAt string `json:"changed_at"`
}

// User represents one tracked account as observed in snapshot documents.
// Optional boolean and integer attributes use pointers so that an absent field
// can be distinguished from an explicit false or zero.
type User struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name,omitempty"`
	ProfileURL    string `json:"profile_url,omitempty"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
	IsVerified    *bool  `json:"is_verified,omitempty"`
	IsPrivate     *bool  `json:"is_private,omitempty"`
	Follower      *bool  `json:"follower,omitempty"`
	Following     *bool  `json:"following,omitempty"`
	Whitelisted   *bool  `json:"whitelisted,omitempty"`
	Blocked       *bool  `json:"blocked,omitempty"`
	FirstSeen     string `json:"first_seen,omitempty"`
	LastSeen      string `json:"last_seen,omitempty"`
	OrderIndex    *int   `json:"order_index,omitempty"`
	// OrderIndexFollowing carries the legacy single-list shape's position in
	// the following list; the canonical shape stores positions per list in
	// OrderIndex.
	OrderIndexFollowing *int         `json:"order_index_following,omitempty"`
	UUID                string       `json:"uuid,omitempty"`
	Aliases             []AliasEntry `json:"aliases,omitempty"`
}

// Snapshot is one point-in-time capture of follower and following membership.
// ChangedUsers carries the legacy single-list shape until normalization.
type Snapshot struct {
	Timestamp    string `json:"timestamp"`
	Followers    []User `json:"followers,omitempty"`
	Following    []User `json:"following,omitempty"`
	ChangedUsers []User `json:"changed_users,omitempty"`
}

// Account identifies the owner of a snapshot document.
type Account struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name,omitempty"`
	ProfileURL    string `json:"profile_url"`
	ProfilePicURL string `json:"profile_pic_url,omitempty"`
}

// SchemaInfo carries the document schema version.
type SchemaInfo struct {
	Version int `json:"version"`
}

// Document is the uploaded and exported snapshot document shape.
type Document struct {
	Account    Account     `json:"account"`
	Snapshots  []Snapshot  `json:"snapshots"`
	EnrichedAt string      `json:"enriched_at,omitempty"`
	Schema     *SchemaInfo `json:"schema,omitempty"`
}

// TransitionEntry records one discrete relationship loss between two adjacent
// snapshots.
type TransitionEntry struct {
	User *User  `json:"user"`
	From string `json:"from"`
	To   string `json:"to"`
}

// ComparisonEntry wraps a registry-resolved user inside a pairwise comparison.
type ComparisonEntry struct {
	User *User `json:"user"`
}

// SnapshotComparison holds the set differences between two user-chosen
// snapshots. The two snapshots need not be adjacent.
type SnapshotComparison struct {
	BaseIndex     int               `json:"baseIndex"`
	CompareIndex  int               `json:"compareIndex"`
	LostFollowers []ComparisonEntry `json:"lostFollowers"`
	Unfollowed    []ComparisonEntry `json:"unfollowed"`
	NewFollowers  []ComparisonEntry `json:"newFollowers"`
	NewFollowing  []ComparisonEntry `json:"newFollowing"`
}

// Dataset is the fully reconciled view derived from an ordered snapshot
// sequence. It is rebuilt from scratch on every input change and holds no
// state beyond what its inputs determine.
type Dataset struct {
	Account            Account
	MergedSnapshots    []Snapshot
	LatestFollowers    map[string]*User
	LatestFollowing    map[string]*User
	Mutuals            map[string]*User
	NotFollowingBack   map[string]*User
	IDontFollowBack    map[string]*User
	LostFollowers      []TransitionEntry
	Unfollowed         []TransitionEntry
	AlphaIndex         map[string]string
	SelectedComparison *SnapshotComparison

	registry map[string]*User
}

// Registry exposes the identity registry as a read-only lookup.
func (dataset *Dataset) Registry() map[string]*User {
	return dataset.registry
}

// Resolve returns the fully merged record for a canonical key.
func (dataset *Dataset) Resolve(key string) (*User, bool) {
	record, exists := dataset.registry[key]
	return record, exists
}

// Category enumerates every relationship view the dataset can answer for.
type Category string

const (
	CategoryFollowers        Category = "followers"
	CategoryFollowing        Category = "following"
	CategoryMutuals          Category = "mutuals"
	CategoryNotFollowingBack Category = "notFollowingBack"
	CategoryIDontFollowBack  Category = "iDontFollowBack"
	CategoryLostFollowers    Category = "lostFollowers"
	CategoryUnfollowed       Category = "unfollowed"
	CategoryNewFollowers     Category = "newFollowers"
	CategoryNewFollowing     Category = "newFollowing"
)

// Categories lists every category in presentation order.
func Categories() []Category {
	return []Category{
		CategoryFollowers,
		CategoryFollowing,
		CategoryMutuals,
		CategoryNotFollowingBack,
		CategoryIDontFollowBack,
		CategoryLostFollowers,
		CategoryUnfollowed,
		CategoryNewFollowers,
		CategoryNewFollowing,
	}
}

// Valid reports whether the category is one of the closed enumeration values.
func (category Category) Valid() bool {
	switch category {
	case CategoryFollowers, CategoryFollowing, CategoryMutuals,
		CategoryNotFollowingBack, CategoryIDontFollowBack,
		CategoryLostFollowers, CategoryUnfollowed,
		CategoryNewFollowers, CategoryNewFollowing:
		return true
	}
	return false
}

// FollowingOriented reports whether presence scans for the category read the
// following list rather than the followers list.
func (category Category) FollowingOriented() bool {
	switch category {
	case CategoryFollowing, CategoryNotFollowingBack, CategoryNewFollowing, CategoryUnfollowed:
		return true
	}
	return false
}

// UsesFollowingOrderIndex reports whether chronological sorting for the
// category ranks by position in the latest snapshot's following list. Every
// other category ranks by position in the followers list.
func (category Category) UsesFollowingOrderIndex() bool {
	switch category {
	case CategoryFollowing, CategoryNotFollowingBack, CategoryNewFollowing:
		return true
	}
	return false
}
