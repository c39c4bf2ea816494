// Package loader reads snapshot documents from disk and hands fully
// materialized, validated documents to the reconciliation core.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ldgr/ldgr/internal/ledger"
)

const (
	errMessageMissingAccount   = "document has no account username"
	errMessageMissingSnapshots = "document has no snapshots list"
	readErrorFormat            = "read %s: %w"
	decodeErrorFormat          = "decode %s: %w"
	validateErrorFormat        = "validate %s: %w"
)

// ErrMissingAccount indicates a document without an account username.
var ErrMissingAccount = errors.New(errMessageMissingAccount)

// ErrMissingSnapshots indicates a document without a snapshots list.
var ErrMissingSnapshots = errors.New(errMessageMissingSnapshots)

// ReadDocument reads and validates one snapshot document. Malformed JSON and
// structurally invalid documents are rejected here so the core only ever
// observes well-formed input.
func ReadDocument(path string) (ledger.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Document{}, fmt.Errorf(readErrorFormat, path, err)
	}
	return DecodeDocument(path, data)
}

// DecodeDocument parses and validates raw document bytes. The name parameter
// is only used to label errors.
func DecodeDocument(name string, data []byte) (ledger.Document, error) {
	var document ledger.Document
	if err := json.Unmarshal(data, &document); err != nil {
		return ledger.Document{}, fmt.Errorf(decodeErrorFormat, name, err)
	}
	if err := ValidateDocument(document); err != nil {
		return ledger.Document{}, fmt.Errorf(validateErrorFormat, name, err)
	}
	return document, nil
}

// ValidateDocument checks the structural requirements every document must
// meet before it reaches the normalizer.
func ValidateDocument(document ledger.Document) error {
	if document.Account.Username == "" {
		return ErrMissingAccount
	}
	if document.Snapshots == nil {
		return ErrMissingSnapshots
	}
	return nil
}

// ReadDocuments loads several documents concurrently, preserving input
// order. The first failure cancels the remaining reads.
func ReadDocuments(ctx context.Context, paths []string) ([]ledger.Document, error) {
	documents := make([]ledger.Document, len(paths))
	group, groupContext := errgroup.WithContext(ctx)
	for index, path := range paths {
		index := index
		path := path
		group.Go(func() error {
			if err := groupContext.Err(); err != nil {
				return err
			}
			document, err := ReadDocument(path)
			if err != nil {
				return err
			}
			documents[index] = document
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return documents, nil
}
