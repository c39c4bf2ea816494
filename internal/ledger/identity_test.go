package ledger_test

import (
	"testing"

	"github.com/ldgr/ldgr/internal/ledger"
)

const (
	identityTestTimestampEarly = "2025-01-01T00:00:00Z"
	identityTestTimestampLate  = "2025-02-01T00:00:00Z"
)

func boolPointer(value bool) *bool {
	return &value
}

func intPointer(value int) *int {
	return &value
}

func TestMergeUsersRightBias(t *testing.T) {
	testCases := []struct {
		name     string
		existing ledger.User
		incoming ledger.User
		verify   func(t *testing.T, merged *ledger.User)
	}{
		{
			name:     "defined incoming scalar overwrites",
			existing: ledger.User{Username: "alice", FullName: "Alice A", IsVerified: boolPointer(true), IsPrivate: boolPointer(false)},
			incoming: ledger.User{Username: "alice", FullName: "Alice B", IsVerified: boolPointer(false), IsPrivate: boolPointer(true)},
			verify: func(t *testing.T, merged *ledger.User) {
				if merged.FullName != "Alice B" {
					t.Fatalf("full name = %q, want incoming value", merged.FullName)
				}
				if merged.IsVerified == nil || *merged.IsVerified {
					t.Fatalf("expected explicit incoming is_verified=false to win")
				}
				if merged.IsPrivate == nil || !*merged.IsPrivate {
					t.Fatalf("expected explicit incoming is_private=true to win")
				}
			},
		},
		{
			name:     "absent incoming fields leave existing untouched",
			existing: ledger.User{Username: "alice", FullName: "Alice A", IsVerified: boolPointer(true), OrderIndex: intPointer(3), UUID: "uuid-a"},
			incoming: ledger.User{Username: "alice"},
			verify: func(t *testing.T, merged *ledger.User) {
				if merged.FullName != "Alice A" {
					t.Fatalf("full name = %q, want existing value preserved", merged.FullName)
				}
				if merged.IsVerified == nil || !*merged.IsVerified {
					t.Fatalf("expected existing is_verified to survive an absent incoming field")
				}
				if merged.OrderIndex == nil || *merged.OrderIndex != 3 {
					t.Fatalf("expected existing order_index to survive")
				}
				if merged.UUID != "uuid-a" {
					t.Fatalf("uuid = %q, want first observed uuid preserved", merged.UUID)
				}
			},
		},
		{
			name:     "incoming uuid adopted only when existing has none",
			existing: ledger.User{Username: "alice"},
			incoming: ledger.User{Username: "alice", UUID: "uuid-b"},
			verify: func(t *testing.T, merged *ledger.User) {
				if merged.UUID != "uuid-b" {
					t.Fatalf("uuid = %q, want propagated incoming uuid", merged.UUID)
				}
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			existing := testCase.existing
			merged := ledger.MergeUsers(&existing, testCase.incoming, identityTestTimestampLate)
			testCase.verify(t, merged)
		})
	}
}

func TestMergeUsersUsernameChange(t *testing.T) {
	existing := ledger.User{Username: "old_name", ProfileURL: ledger.DefaultProfileURL("old_name")}
	incoming := ledger.User{Username: "new_name"}

	merged := ledger.MergeUsers(&existing, incoming, identityTestTimestampLate)

	if merged.Username != "new_name" {
		t.Fatalf("username = %q, want adopted incoming username", merged.Username)
	}
	if merged.ProfileURL != ledger.DefaultProfileURL("new_name") {
		t.Fatalf("profile url = %q, want recomputed from new username", merged.ProfileURL)
	}
	if len(merged.Aliases) != 1 || merged.Aliases[0].Username != "old_name" {
		t.Fatalf("aliases = %v, want single entry for prior username", merged.Aliases)
	}
	if merged.Aliases[0].ChangedAt != identityTestTimestampLate {
		t.Fatalf("alias changed_at = %q, want observation time", merged.Aliases[0].ChangedAt)
	}
}

func TestMergeUsersAliasAccumulationBound(t *testing.T) {
	existing := ledger.User{Username: "first"}

	ledger.MergeUsers(&existing, ledger.User{Username: "second"}, identityTestTimestampEarly)
	ledger.MergeUsers(&existing, ledger.User{Username: "first"}, identityTestTimestampLate)
	ledger.MergeUsers(&existing, ledger.User{Username: "second"}, identityTestTimestampLate)

	aliasOccurrences := map[string]int{}
	for _, alias := range existing.Aliases {
		aliasOccurrences[alias.Username]++
		if ledger.CanonicalKey(alias.Username) == ledger.CanonicalKey(existing.Username) {
			t.Fatalf("aliases contain the current username %q", existing.Username)
		}
	}
	for username, count := range aliasOccurrences {
		if count > 1 {
			t.Fatalf("alias %q recorded %d times, want at most once", username, count)
		}
	}
}

func TestMergeUsersCaseInsensitiveMatchKeepsLatestCasing(t *testing.T) {
	existing := ledger.User{Username: "Alice"}

	merged := ledger.MergeUsers(&existing, ledger.User{Username: "ALICE"}, identityTestTimestampLate)

	if merged.Username != "ALICE" {
		t.Fatalf("username = %q, want latest observed casing", merged.Username)
	}
	if len(merged.Aliases) != 0 {
		t.Fatalf("aliases = %v, want none for a case-only change", merged.Aliases)
	}
}

func TestMergeUsersSeenBounds(t *testing.T) {
	testCases := []struct {
		name              string
		existing          ledger.User
		incoming          ledger.User
		expectedFirstSeen string
		expectedLastSeen  string
	}{
		{
			name:              "widens to earliest first and latest last",
			existing:          ledger.User{Username: "alice", FirstSeen: identityTestTimestampLate, LastSeen: identityTestTimestampLate},
			incoming:          ledger.User{Username: "alice", FirstSeen: identityTestTimestampEarly, LastSeen: identityTestTimestampEarly},
			expectedFirstSeen: identityTestTimestampEarly,
			expectedLastSeen:  identityTestTimestampLate,
		},
		{
			name:              "absent incoming bounds keep existing ones",
			existing:          ledger.User{Username: "alice", FirstSeen: identityTestTimestampEarly, LastSeen: identityTestTimestampLate},
			incoming:          ledger.User{Username: "alice"},
			expectedFirstSeen: identityTestTimestampEarly,
			expectedLastSeen:  identityTestTimestampLate,
		},
		{
			name:              "fresher incoming last_seen wins",
			existing:          ledger.User{Username: "alice", FirstSeen: identityTestTimestampEarly, LastSeen: identityTestTimestampEarly},
			incoming:          ledger.User{Username: "alice", LastSeen: identityTestTimestampLate},
			expectedFirstSeen: identityTestTimestampEarly,
			expectedLastSeen:  identityTestTimestampLate,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			existing := testCase.existing
			merged := ledger.MergeUsers(&existing, testCase.incoming, identityTestTimestampLate)
			if merged.FirstSeen != testCase.expectedFirstSeen {
				t.Fatalf("first_seen = %q, want %q", merged.FirstSeen, testCase.expectedFirstSeen)
			}
			if merged.LastSeen != testCase.expectedLastSeen {
				t.Fatalf("last_seen = %q, want %q", merged.LastSeen, testCase.expectedLastSeen)
			}
		})
	}
}

func TestAlphaHeader(t *testing.T) {
	testCases := []struct {
		username string
		expected string
	}{
		{username: "alice", expected: "A"},
		{username: "Zed", expected: "Z"},
		{username: "", expected: "#"},
		{username: "9lives", expected: "9"},
	}

	for _, testCase := range testCases {
		if header := ledger.AlphaHeader(testCase.username); header != testCase.expected {
			t.Fatalf("AlphaHeader(%q) = %q, want %q", testCase.username, header, testCase.expected)
		}
	}
}
