package server

import (
	"errors"
	"sync"

	"github.com/ldgr/ldgr/internal/ledger"
)

const errMessageNoDataset = "no dataset available"

// ErrNoDataset indicates that the session holds no buildable snapshot data
// yet. This is the expected initial state, not a failure.
var ErrNoDataset = errors.New(errMessageNoDataset)

// SessionOptions configures dataset rebuild behavior for a session.
type SessionOptions struct {
	// BackfillCutoff is forwarded to every dataset build. Empty disables the
	// historical backfill correction.
	BackfillCutoff string
}

// Session owns the uploaded documents and the dataset derived from them. The
// dataset is rebuilt in full on every input change; readers always observe a
// consistent, fully built dataset.
type Session struct {
	mutex             sync.RWMutex
	options           SessionOptions
	base              *ledger.Document
	documents         []ledger.Document
	baseIndex         *int
	compareIndex      *int
	comparisonCleared bool
	dataset           *ledger.Dataset
}

// NewSession constructs an empty session.
func NewSession(options SessionOptions) *Session {
	return &Session{options: options}
}

// SetBase installs or replaces the optional base document and rebuilds.
func (session *Session) SetBase(document ledger.Document) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.base = &document
	return session.rebuildLocked()
}

// AddDocument appends one snapshot document and rebuilds.
func (session *Session) AddDocument(document ledger.Document) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.documents = append(session.documents, document)
	return session.rebuildLocked()
}

// SelectComparison chooses the pairwise snapshot comparison and rebuilds.
func (session *Session) SelectComparison(baseIndex int, compareIndex int) error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.baseIndex = &baseIndex
	session.compareIndex = &compareIndex
	session.comparisonCleared = false
	return session.rebuildLocked()
}

// ClearComparison removes the pairwise comparison selection and rebuilds.
func (session *Session) ClearComparison() error {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	session.baseIndex = nil
	session.compareIndex = nil
	session.comparisonCleared = true
	return session.rebuildLocked()
}

// View runs read against the current dataset while holding the session's
// read lock, so concurrent whitelist writes cannot race with traversal of
// the shared user records. The dataset must not escape the callback. View
// returns ErrNoDataset when nothing has been uploaded yet.
func (session *Session) View(read func(dataset *ledger.Dataset) error) error {
	session.mutex.RLock()
	defer session.mutex.RUnlock()
	if session.dataset == nil {
		return ErrNoDataset
	}
	return read(session.dataset)
}

// SetWhitelisted forwards the whitelist annotation to the dataset registry.
func (session *Session) SetWhitelisted(username string, whitelisted bool) (bool, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.dataset == nil {
		return false, ErrNoDataset
	}
	return session.dataset.SetWhitelisted(username, whitelisted), nil
}

// WhitelistCategory whitelists every record currently behind a category and
// reports how many records changed.
func (session *Session) WhitelistCategory(category ledger.Category) (int, error) {
	session.mutex.Lock()
	defer session.mutex.Unlock()
	if session.dataset == nil {
		return 0, ErrNoDataset
	}
	return session.dataset.WhitelistAll(ledger.CategoryUsers(session.dataset, category)), nil
}

// rebuildLocked reconstructs the dataset from the session's current inputs.
// The caller must hold the write lock.
func (session *Session) rebuildLocked() error {
	baseIndex, compareIndex := session.effectiveComparisonLocked()
	dataset, err := ledger.BuildDataset(session.base, session.documents, ledger.BuildOptions{
		BaseSnapshotIndex:    baseIndex,
		CompareSnapshotIndex: compareIndex,
		BackfillCutoff:       session.options.BackfillCutoff,
	})
	if errors.Is(err, ledger.ErrNoSnapshots) {
		session.dataset = nil
		return nil
	}
	if err != nil {
		return err
	}
	session.dataset = dataset
	return nil
}

// effectiveComparisonLocked resolves the comparison indices for a rebuild.
// Without an explicit selection the session defaults to comparing the first
// snapshot against the last one, unless the client cleared the comparison.
func (session *Session) effectiveComparisonLocked() (*int, *int) {
	if session.baseIndex != nil && session.compareIndex != nil {
		return session.baseIndex, session.compareIndex
	}
	if session.comparisonCleared {
		return nil, nil
	}

	totalSnapshots := 0
	if session.base != nil {
		totalSnapshots += len(session.base.Snapshots)
	}
	for _, document := range session.documents {
		totalSnapshots += len(document.Snapshots)
	}
	if totalSnapshots < 2 {
		return nil, nil
	}

	firstIndex := 0
	lastIndex := totalSnapshots - 1
	return &firstIndex, &lastIndex
}
