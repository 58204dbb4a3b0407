package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simaogato/fundfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/fundfolio-backend/internal/config"
	"github.com/simaogato/fundfolio-backend/internal/logger"
)

// app carries what every command shares. The database is opened on first use
// so commands such as xirr run without one.
type app struct {
	cfg *config.Config
	log *zap.SugaredLogger
	db  *postgres.DB

	dbConnStr string
}

func (a *app) database(ctx context.Context) (*postgres.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := postgres.NewDB(a.cfg.DBConnStr)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	return db, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fundfolio",
		Short:         "Mutual fund portfolio valuation: FIFO lots, XIRR and snapshot history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if a.dbConnStr != "" {
				cfg.DBConnStr = a.dbConnStr
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Env)
			cmd.SetContext(logger.WithContext(cmd.Context(), a.log))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.dbConnStr, "db", "", "database connection string (overrides DB_CONN_STR)")

	root.AddCommand(
		newRebuildCmd(a),
		newReplayCmd(a),
		newImportPricesCmd(a),
		newImportHoldingsCmd(a),
		newImportTransactionsCmd(a),
		newHoldingsCmd(a),
		newSnapshotsCmd(a),
		newXIRRCmd(),
	)
	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).ExecuteContext(context.Background())
	a.close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
