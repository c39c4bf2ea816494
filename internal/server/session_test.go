package server_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/ldgr/ldgr/internal/ledger"
	"github.com/ldgr/ldgr/internal/server"
)

const (
	sessionTestTimestamp1 = "2024-01-01T00:00:00Z"
	sessionTestTimestamp2 = "2024-02-01T00:00:00Z"
	sessionTestTimestamp3 = "2024-03-01T00:00:00Z"
	concurrentWorkerCount = 4
	concurrentIterations  = 200
)

func sessionDocument(snapshots ...ledger.Snapshot) ledger.Document {
	return ledger.Document{Account: ledger.Account{Username: routerTestUsername}, Snapshots: snapshots}
}

func selectedComparison(testInstance *testing.T, session *server.Session) *ledger.SnapshotComparison {
	testInstance.Helper()
	var selected *ledger.SnapshotComparison
	viewError := session.View(func(dataset *ledger.Dataset) error {
		selected = dataset.SelectedComparison
		return nil
	})
	if viewError != nil {
		testInstance.Fatalf("unexpected dataset error: %v", viewError)
	}
	return selected
}

func TestSessionEmptyReportsNoDataset(testInstance *testing.T) {
	session := server.NewSession(server.SessionOptions{})

	viewError := session.View(func(dataset *ledger.Dataset) error { return nil })
	if !errors.Is(viewError, server.ErrNoDataset) {
		testInstance.Fatalf("expected ErrNoDataset, got %v", viewError)
	}
	if _, whitelistError := session.SetWhitelisted("alice", true); !errors.Is(whitelistError, server.ErrNoDataset) {
		testInstance.Fatalf("expected ErrNoDataset from whitelist, got %v", whitelistError)
	}
}

func TestSessionDefaultsComparisonToFirstVersusLast(testInstance *testing.T) {
	session := server.NewSession(server.SessionOptions{})

	addError := session.AddDocument(sessionDocument(
		snapshotWithMembers(sessionTestTimestamp1, []string{"alice", "bob"}, nil),
	))
	if addError != nil {
		testInstance.Fatalf("unexpected add error: %v", addError)
	}

	if selected := selectedComparison(testInstance, session); selected != nil {
		testInstance.Fatalf("expected no comparison with a single snapshot")
	}

	addError = session.AddDocument(sessionDocument(
		snapshotWithMembers(sessionTestTimestamp2, []string{"alice"}, nil),
		snapshotWithMembers(sessionTestTimestamp3, []string{"alice", "carol"}, nil),
	))
	if addError != nil {
		testInstance.Fatalf("unexpected add error: %v", addError)
	}

	selected := selectedComparison(testInstance, session)
	if selected == nil {
		testInstance.Fatalf("expected a default comparison over multiple snapshots")
	}
	if selected.BaseIndex != 0 || selected.CompareIndex != 2 {
		testInstance.Fatalf("expected first-versus-last default, got %d vs %d",
			selected.BaseIndex, selected.CompareIndex)
	}
}

func TestSessionComparisonSelectionAndClear(testInstance *testing.T) {
	session := server.NewSession(server.SessionOptions{})

	addError := session.AddDocument(sessionDocument(
		snapshotWithMembers(sessionTestTimestamp1, []string{"alice", "bob"}, nil),
		snapshotWithMembers(sessionTestTimestamp2, []string{"alice"}, nil),
		snapshotWithMembers(sessionTestTimestamp3, []string{"alice", "carol"}, nil),
	))
	if addError != nil {
		testInstance.Fatalf("unexpected add error: %v", addError)
	}

	if selectError := session.SelectComparison(1, 2); selectError != nil {
		testInstance.Fatalf("unexpected selection error: %v", selectError)
	}
	selected := selectedComparison(testInstance, session)
	if selected == nil || selected.BaseIndex != 1 {
		testInstance.Fatalf("expected explicit selection to override the default: %+v", selected)
	}

	if clearError := session.ClearComparison(); clearError != nil {
		testInstance.Fatalf("unexpected clear error: %v", clearError)
	}
	if selected := selectedComparison(testInstance, session); selected != nil {
		testInstance.Fatalf("expected a cleared comparison to stay cleared, got %+v", selected)
	}
}

func TestSessionWhitelistDoesNotRaceWithViews(testInstance *testing.T) {
	session := server.NewSession(server.SessionOptions{})

	addError := session.AddDocument(sessionDocument(
		snapshotWithMembers(sessionTestTimestamp1, []string{"alice", "bob"}, []string{"alice"}),
		snapshotWithMembers(sessionTestTimestamp2, []string{"alice", "carol"}, []string{"alice", "carol"}),
	))
	if addError != nil {
		testInstance.Fatalf("unexpected add error: %v", addError)
	}

	var waitGroup sync.WaitGroup
	for workerIndex := 0; workerIndex < concurrentWorkerCount; workerIndex++ {
		waitGroup.Add(2)
		go func() {
			defer waitGroup.Done()
			for iteration := 0; iteration < concurrentIterations; iteration++ {
				if _, whitelistError := session.SetWhitelisted("alice", iteration%2 == 0); whitelistError != nil {
					testInstance.Errorf("unexpected whitelist error: %v", whitelistError)
					return
				}
			}
		}()
		go func() {
			defer waitGroup.Done()
			for iteration := 0; iteration < concurrentIterations; iteration++ {
				viewError := session.View(func(dataset *ledger.Dataset) error {
					followers := ledger.CategoryUsers(dataset, ledger.CategoryFollowers)
					ledger.FilterUsers(followers, ledger.Filters{Whitelist: ledger.WhitelistOnly})
					return nil
				})
				if viewError != nil {
					testInstance.Errorf("unexpected view error: %v", viewError)
					return
				}
			}
		}()
	}
	waitGroup.Wait()
}
