package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ldgr/ldgr/internal/server"
	"github.com/ldgr/ldgr/internal/store"
)

const (
	commandUse                    = "server"
	commandShortDescription       = "Serve the snapshot ledger dashboard API over HTTP"
	envPrefix                     = "LDGR_SERVER"
	flagHostName                  = "host"
	flagHostDescription           = "Host interface for the HTTP server"
	flagPortName                  = "port"
	flagPortDescription           = "Port for the HTTP server"
	flagDatabasePathName          = "db-path"
	flagDatabasePathDescription   = "Path to the SQLite database used for export persistence"
	flagBackfillCutoffName        = "backfill-cutoff"
	flagBackfillCutoffDescription = "Timestamp from which historical mutual backfill applies (empty disables it)"
	defaultHost                   = "127.0.0.1"
	defaultPort                   = 8080
	defaultDatabasePath           = "ldgr.db"
	errMessageLoggerCreate        = "create logger"
	errMessageStoreOpen           = "open export store"
	errMessageStoredExportLoad    = "load stored export"
	errMessageListenAndServe      = "listen and serve"
	logMessageStoreOpened         = "export store opened"
	logMessageStoredExportLoaded  = "stored export restored into session"
	logMessageStartingServer      = "starting HTTP server"
	logMessageServerStopped       = "server stopped"
	logMessageListenError         = "server listen failure"
	logFieldAddress               = "address"
	logFieldDatabasePath          = "path"
	logFieldSnapshotCount         = "snapshots"
)

func main() {
	cobra.CheckErr(newServerCommand().Execute())
}

func newServerCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   commandUse,
		Short: commandShortDescription,
		RunE:  runServerCommand,
	}

	command.Flags().String(flagHostName, defaultHost, flagHostDescription)
	command.Flags().Int(flagPortName, defaultPort, flagPortDescription)
	command.Flags().String(flagDatabasePathName, defaultDatabasePath, flagDatabasePathDescription)
	command.Flags().String(flagBackfillCutoffName, "", flagBackfillCutoffDescription)

	bindFlagToViper(command, flagHostName)
	bindFlagToViper(command, flagPortName)
	bindFlagToViper(command, flagDatabasePathName)
	bindFlagToViper(command, flagBackfillCutoffName)

	cobra.OnInitialize(configureEnvironment)

	return command
}

func bindFlagToViper(command *cobra.Command, flagName string) {
	cobra.CheckErr(viper.BindPFlag(flagName, command.Flags().Lookup(flagName)))
}

func configureEnvironment() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func runServerCommand(*cobra.Command, []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("%s: %w", errMessageLoggerCreate, err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	databasePath := viper.GetString(flagDatabasePathName)
	exportStore, storeErr := store.Open(databasePath)
	if storeErr != nil {
		return fmt.Errorf("%s: %w", errMessageStoreOpen, storeErr)
	}
	defer func() {
		_ = exportStore.Close()
	}()
	logger.Info(logMessageStoreOpened, zap.String(logFieldDatabasePath, databasePath))

	session := server.NewSession(server.SessionOptions{
		BackfillCutoff: viper.GetString(flagBackfillCutoffName),
	})
	if restoreErr := restoreStoredExport(session, exportStore, logger); restoreErr != nil {
		return restoreErr
	}

	router, err := server.NewRouter(server.RouterConfig{
		Session: session,
		Store:   exportStore,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	host := viper.GetString(flagHostName)
	port := viper.GetInt(flagPortName)
	address := fmt.Sprintf("%s:%d", host, port)
	logger.Info(logMessageStartingServer, zap.String(logFieldAddress, address))

	httpServer := &http.Server{Addr: address, Handler: router}
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(logMessageListenError, zap.Error(err))
		return fmt.Errorf("%s: %w", errMessageListenAndServe, err)
	}

	logger.Info(logMessageServerStopped)
	return nil
}

// restoreStoredExport seeds the session with the most recently persisted
// export so the dashboard survives restarts.
func restoreStoredExport(session *server.Session, exportStore *store.DB, logger *zap.Logger) error {
	document, found, loadErr := exportStore.LoadExport()
	if loadErr != nil {
		return fmt.Errorf("%s: %w", errMessageStoredExportLoad, loadErr)
	}
	if !found {
		return nil
	}
	if baseErr := session.SetBase(document); baseErr != nil {
		return fmt.Errorf("%s: %w", errMessageStoredExportLoad, baseErr)
	}
	logger.Info(logMessageStoredExportLoaded, zap.Int(logFieldSnapshotCount, len(document.Snapshots)))
	return nil
}
