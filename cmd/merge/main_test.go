package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ldgr/ldgr/internal/ledger"
)

const (
	mergeTestTimestamp1 = "2024-01-01T00:00:00Z"
	mergeTestTimestamp2 = "2024-02-01T00:00:00Z"
	mergeTestUsername   = "owner"
)

func fixedClock() time.Time {
	return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
}

func snapshotDocument(timestamps ...string) ledger.Document {
	document := ledger.Document{Account: ledger.Account{Username: mergeTestUsername}, Snapshots: []ledger.Snapshot{}}
	for _, timestamp := range timestamps {
		document.Snapshots = append(document.Snapshots, ledger.Snapshot{
			Timestamp: timestamp,
			Followers: []ledger.User{{Username: "alice"}},
			Following: []ledger.User{{Username: "bob"}},
		})
	}
	return document
}

func TestMergeApplicationRunFailures(testInstance *testing.T) {
	readFailure := errors.New("read failure")
	buildFailure := errors.New("build failure")
	writeFailure := errors.New("write failure")

	testCases := []struct {
		name            string
		configuration   MergeConfiguration
		dependencies    MergeDependencies
		expectedMessage string
	}{
		{
			name:          "base document read failure",
			configuration: MergeConfiguration{BasePath: "base.json", SnapshotPaths: []string{"a.json"}},
			dependencies: MergeDependencies{
				ReadDocument: func(string) (ledger.Document, error) { return ledger.Document{}, readFailure },
			},
			expectedMessage: "read base.json",
		},
		{
			name:          "snapshot documents read failure",
			configuration: MergeConfiguration{SnapshotPaths: []string{"a.json"}},
			dependencies: MergeDependencies{
				ReadDocuments: func(context.Context, []string) ([]ledger.Document, error) { return nil, readFailure },
			},
			expectedMessage: "read documents",
		},
		{
			name:          "dataset build failure",
			configuration: MergeConfiguration{SnapshotPaths: []string{"a.json"}},
			dependencies: MergeDependencies{
				ReadDocuments: func(context.Context, []string) ([]ledger.Document, error) {
					return []ledger.Document{snapshotDocument(mergeTestTimestamp1)}, nil
				},
				BuildDataset: func(*ledger.Document, []ledger.Document, ledger.BuildOptions) (*ledger.Dataset, error) {
					return nil, buildFailure
				},
			},
			expectedMessage: "build dataset",
		},
		{
			name:          "output write failure",
			configuration: MergeConfiguration{SnapshotPaths: []string{"a.json"}},
			dependencies: MergeDependencies{
				ReadDocuments: func(context.Context, []string) ([]ledger.Document, error) {
					return []ledger.Document{snapshotDocument(mergeTestTimestamp1)}, nil
				},
				WriteOutputFile: func(string, []byte) error { return writeFailure },
			},
			expectedMessage: "write failure",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			testCase.configuration.BaseIndex = unselectedComparisonIndex
			testCase.configuration.CompareIndex = unselectedComparisonIndex
			testCase.dependencies.Stdout = &bytes.Buffer{}
			testCase.dependencies.Stderr = &bytes.Buffer{}
			testCase.dependencies.Now = fixedClock

			application := NewMergeApplicationWithDependencies(testCase.dependencies)
			runError := application.Run(context.Background(), testCase.configuration)
			if runError == nil {
				testInstance.Fatalf("expected an error")
			}
			if !strings.Contains(runError.Error(), testCase.expectedMessage) {
				testInstance.Fatalf("expected error containing %q, got %q", testCase.expectedMessage, runError.Error())
			}
		})
	}
}

func TestMergeApplicationRunWritesMergedDocument(testInstance *testing.T) {
	var writtenPath string
	var writtenContents []byte
	standardOutput := &bytes.Buffer{}

	application := NewMergeApplicationWithDependencies(MergeDependencies{
		ReadDocuments: func(_ context.Context, paths []string) ([]ledger.Document, error) {
			if len(paths) != 2 {
				testInstance.Fatalf("expected 2 snapshot paths, got %d", len(paths))
			}
			return []ledger.Document{
				snapshotDocument(mergeTestTimestamp1),
				snapshotDocument(mergeTestTimestamp2),
			}, nil
		},
		WriteOutputFile: func(path string, contents []byte) error {
			writtenPath = path
			writtenContents = contents
			return nil
		},
		Now:    fixedClock,
		Stdout: standardOutput,
	})

	configuration := MergeConfiguration{
		SnapshotPaths: []string{"a.json", "b.json"},
		OutputPath:    "merged.json",
		BaseIndex:     0,
		CompareIndex:  1,
	}
	if runError := application.Run(context.Background(), configuration); runError != nil {
		testInstance.Fatalf("unexpected error: %v", runError)
	}

	if writtenPath != "merged.json" {
		testInstance.Fatalf("unexpected output path %q", writtenPath)
	}

	var merged ledger.Document
	if decodeError := json.Unmarshal(writtenContents, &merged); decodeError != nil {
		testInstance.Fatalf("unexpected decode error: %v", decodeError)
	}
	if merged.Account.Username != mergeTestUsername {
		testInstance.Fatalf("unexpected merged account %q", merged.Account.Username)
	}
	if len(merged.Snapshots) != 2 {
		testInstance.Fatalf("expected 2 merged snapshots, got %d", len(merged.Snapshots))
	}
	if merged.EnrichedAt == "" {
		testInstance.Fatalf("expected an enrichment timestamp")
	}
	if !strings.Contains(standardOutput.String(), "merged.json") {
		testInstance.Fatalf("expected success message naming the output, got %q", standardOutput.String())
	}
}

func TestMergeApplicationEndToEnd(testInstance *testing.T) {
	temporaryDirectory := testInstance.TempDir()

	snapshotPath := filepath.Join(temporaryDirectory, "snapshot.json")
	document := snapshotDocument(mergeTestTimestamp1)
	encoded, marshalError := json.Marshal(document)
	if marshalError != nil {
		testInstance.Fatalf("unexpected marshal error: %v", marshalError)
	}
	if writeError := os.WriteFile(snapshotPath, encoded, 0o644); writeError != nil {
		testInstance.Fatalf("unexpected write error: %v", writeError)
	}

	outputPath := filepath.Join(temporaryDirectory, "merged.json")
	application := NewMergeApplicationWithDependencies(MergeDependencies{
		Now:    fixedClock,
		Stdout: &bytes.Buffer{},
	})

	configuration := MergeConfiguration{
		SnapshotPaths: []string{snapshotPath},
		OutputPath:    outputPath,
		BaseIndex:     unselectedComparisonIndex,
		CompareIndex:  unselectedComparisonIndex,
	}
	if runError := application.Run(context.Background(), configuration); runError != nil {
		testInstance.Fatalf("unexpected error: %v", runError)
	}

	written, readError := os.ReadFile(outputPath)
	if readError != nil {
		testInstance.Fatalf("unexpected read error: %v", readError)
	}
	var merged ledger.Document
	if decodeError := json.Unmarshal(written, &merged); decodeError != nil {
		testInstance.Fatalf("unexpected decode error: %v", decodeError)
	}
	if len(merged.Snapshots) != 1 {
		testInstance.Fatalf("expected 1 merged snapshot, got %d", len(merged.Snapshots))
	}
}
