package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ldgr/ldgr/internal/ledger"
	"github.com/ldgr/ldgr/internal/loader"
)

// MergeConfiguration carries the resolved command-line inputs for one merge run.
type MergeConfiguration struct {
	BasePath       string
	SnapshotPaths  []string
	OutputPath     string
	BaseIndex      int
	CompareIndex   int
	BackfillCutoff string
}

// MergeDependencies injects the side-effecting collaborators of the merge
// application so tests can substitute them.
type MergeDependencies struct {
	ReadDocument    func(string) (ledger.Document, error)
	ReadDocuments   func(context.Context, []string) ([]ledger.Document, error)
	BuildDataset    func(*ledger.Document, []ledger.Document, ledger.BuildOptions) (*ledger.Dataset, error)
	WriteOutputFile func(string, []byte) error
	Now             func() time.Time
	Stdout          io.Writer
	Stderr          io.Writer
}

// MergeApplication folds snapshot documents into one merged export document.
type MergeApplication struct {
	dependencies MergeDependencies
}

func NewMergeApplication() MergeApplication {
	return NewMergeApplicationWithDependencies(newDefaultMergeDependencies())
}

func NewMergeApplicationWithDependencies(dependencies MergeDependencies) MergeApplication {
	defaultDependencies := newDefaultMergeDependencies()

	if dependencies.ReadDocument == nil {
		dependencies.ReadDocument = defaultDependencies.ReadDocument
	}
	if dependencies.ReadDocuments == nil {
		dependencies.ReadDocuments = defaultDependencies.ReadDocuments
	}
	if dependencies.BuildDataset == nil {
		dependencies.BuildDataset = defaultDependencies.BuildDataset
	}
	if dependencies.WriteOutputFile == nil {
		dependencies.WriteOutputFile = defaultDependencies.WriteOutputFile
	}
	if dependencies.Now == nil {
		dependencies.Now = defaultDependencies.Now
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = defaultDependencies.Stdout
	}
	if dependencies.Stderr == nil {
		dependencies.Stderr = defaultDependencies.Stderr
	}

	return MergeApplication{dependencies: dependencies}
}

func (application MergeApplication) Run(executionContext context.Context, configuration MergeConfiguration) error {
	var baseDocument *ledger.Document
	if configuration.BasePath != "" {
		document, readBaseError := application.dependencies.ReadDocument(configuration.BasePath)
		if readBaseError != nil {
			return fmt.Errorf(loadErrorFormat, configuration.BasePath, readBaseError)
		}
		baseDocument = &document
	}

	documents, readError := application.dependencies.ReadDocuments(executionContext, configuration.SnapshotPaths)
	if readError != nil {
		return fmt.Errorf(loadDocumentsErrorFormat, readError)
	}

	buildOptions := ledger.BuildOptions{BackfillCutoff: configuration.BackfillCutoff}
	if configuration.BaseIndex >= 0 && configuration.CompareIndex >= 0 {
		baseIndex := configuration.BaseIndex
		compareIndex := configuration.CompareIndex
		buildOptions.BaseSnapshotIndex = &baseIndex
		buildOptions.CompareSnapshotIndex = &compareIndex
	}

	dataset, buildError := application.dependencies.BuildDataset(baseDocument, documents, buildOptions)
	if buildError != nil {
		return fmt.Errorf(buildErrorFormat, buildError)
	}

	merged := ledger.MergedDocument(dataset, application.dependencies.Now())
	encoded, marshalError := json.MarshalIndent(merged, "", "  ")
	if marshalError != nil {
		return fmt.Errorf(encodeErrorFormat, marshalError)
	}

	if writeError := application.dependencies.WriteOutputFile(configuration.OutputPath, encoded); writeError != nil {
		return writeError
	}

	fmt.Fprintf(application.dependencies.Stdout, writeSuccessMessageFormat+"\n",
		configuration.OutputPath, len(merged.Snapshots), len(dataset.Registry()))
	return nil
}

func newDefaultMergeDependencies() MergeDependencies {
	return MergeDependencies{
		ReadDocument:    loader.ReadDocument,
		ReadDocuments:   loader.ReadDocuments,
		BuildDataset:    ledger.BuildDataset,
		WriteOutputFile: defaultWriteOutputFile,
		Now:             time.Now,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	}
}

func defaultWriteOutputFile(outputPath string, contents []byte) error {
	file, createError := os.Create(outputPath)
	if createError != nil {
		return fmt.Errorf(createFileErrorFormat, outputPath, createError)
	}
	defer file.Close()

	if _, writeError := file.Write(contents); writeError != nil {
		return fmt.Errorf(writeFileErrorFormat, outputPath, writeError)
	}
	return nil
}
