package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const (
	flagBaseName                  = "base"
	flagBaseDescription           = "Path to an optional base document merged before the snapshot documents"
	flagOutName                   = "out"
	flagOutDescription            = "Output path for the merged document"
	flagBaseIndexName             = "base-index"
	flagBaseIndexDescription      = "Snapshot index on the base side of the pairwise comparison"
	flagCompareIndexName          = "compare-index"
	flagCompareIndexDescription   = "Snapshot index on the compare side of the pairwise comparison"
	flagBackfillCutoffName        = "backfill-cutoff"
	flagBackfillCutoffDescription = "Timestamp from which historical mutual backfill applies (empty disables it)"
	defaultOutputFileName         = "merged_snapshots.json"
	unselectedComparisonIndex     = -1
	missingSnapshotsErrorMessage  = "error: at least one snapshot document path is required"
	loadErrorFormat               = "read %s: %v"
	loadDocumentsErrorFormat      = "read documents: %v"
	buildErrorFormat              = "build dataset: %v"
	encodeErrorFormat             = "encode merged document: %v"
	createFileErrorFormat         = "create %s: %v"
	writeFileErrorFormat          = "write %s: %v"
	writeSuccessMessageFormat     = "Wrote %s (%d snapshots, %d known users)"
)

func main() {
	var basePath string
	var outputPath string
	var baseIndex int
	var compareIndex int
	var backfillCutoff string

	flag.StringVar(&basePath, flagBaseName, "", flagBaseDescription)
	flag.StringVar(&outputPath, flagOutName, defaultOutputFileName, flagOutDescription)
	flag.IntVar(&baseIndex, flagBaseIndexName, unselectedComparisonIndex, flagBaseIndexDescription)
	flag.IntVar(&compareIndex, flagCompareIndexName, unselectedComparisonIndex, flagCompareIndexDescription)
	flag.StringVar(&backfillCutoff, flagBackfillCutoffName, "", flagBackfillCutoffDescription)
	flag.Parse()

	snapshotPaths := flag.Args()
	if len(snapshotPaths) == 0 {
		fmt.Fprintln(os.Stderr, missingSnapshotsErrorMessage)
		os.Exit(2)
	}

	application := NewMergeApplication()
	configuration := MergeConfiguration{
		BasePath:       basePath,
		SnapshotPaths:  snapshotPaths,
		OutputPath:     outputPath,
		BaseIndex:      baseIndex,
		CompareIndex:   compareIndex,
		BackfillCutoff: backfillCutoff,
	}

	if runError := application.Run(context.Background(), configuration); runError != nil {
		fmt.Fprintln(os.Stderr, runError)
		os.Exit(1)
	}
}
