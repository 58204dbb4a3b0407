package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/simaogato/fundfolio-backend/internal/adapter/csvimport"
	"github.com/simaogato/fundfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/fundfolio-backend/internal/usecase/disposal"
	"github.com/simaogato/fundfolio-backend/internal/usecase/seeder"
)

func newImportPricesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-prices FILE",
		Short: "Bulk load daily prices from a CSV with columns holding_id,date,price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			points, err := csvimport.ReadPrices(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			// The schema must exist before COPY targets it
			if _, err := a.database(cmd.Context()); err != nil {
				return err
			}
			importer, err := postgres.NewPriceImporter(cmd.Context(), a.cfg.DBConnStr)
			if err != nil {
				return err
			}
			defer importer.Close()

			n, err := importer.Import(cmd.Context(), points)
			if err != nil {
				return err
			}
			a.log.Infow("imported prices", "file", args[0], "rows", len(points), "written", n)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d prices\n", n)
			return nil
		},
	}
}

func newImportHoldingsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import-holdings FILE",
		Short: "Register funds from a CSV with columns id,name,isin,scheme_code,category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			holdings, err := csvimport.ReadHoldings(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := seeder.NewHoldingSeeder(postgres.NewHoldingRepository(db)).Seed(cmd.Context(), holdings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d holdings, %d already present\n", rep.Created, rep.Existing)
			return nil
		},
	}
}

func newImportTransactionsCmd(a *app) *cobra.Command {
	var applyLots bool
	cmd := &cobra.Command{
		Use:   "import-transactions FILE",
		Short: "Store transactions from a CSV with columns id,user_id,holding_id,date,kind,quantity,gross_amount,price_per_unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			txns, err := csvimport.ReadTransactions(f)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			created, err := postgres.NewTransactionRepository(db).CreateBatch(cmd.Context(), txns)
			if err != nil {
				return fmt.Errorf("failed to store transactions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d transactions, %d already present\n", created, len(txns)-created)

			if !applyLots {
				return nil
			}
			svc := disposal.NewDisposalService(postgres.NewLotRepository(db), a.log)
			rep, err := svc.Replay(cmd.Context(), txns)
			if err != nil {
				return err
			}
			printReplay(cmd, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&applyLots, "apply-lots", false, "also apply the transactions to the persisted lot book")
	return cmd
}

func newReplayCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "replay-lots",
		Short: "Rebuild a user's persisted lot book from stored transactions; safe to rerun",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("invalid user ID %q: %w", user, err)
			}

			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			txns, err := postgres.NewTransactionRepository(db).ListByUsers(cmd.Context(), []uuid.UUID{userID})
			if err != nil {
				return err
			}

			svc := disposal.NewDisposalService(postgres.NewLotRepository(db), a.log)
			rep, err := svc.Replay(cmd.Context(), txns)
			if err != nil {
				return err
			}
			printReplay(cmd, rep)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printReplay(cmd *cobra.Command, rep *disposal.ReplayReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "lots opened %d (already %d), sells applied %d (already %d), deferred %d\n",
		rep.Acquired, rep.AlreadyAcquired, rep.Applied, rep.AlreadyApplied, len(rep.Deferred))
	for _, d := range rep.Deferred {
		fmt.Fprintf(out, "  deferred %s %s %s: %v\n",
			d.Transaction.ID, d.Transaction.Date.Format(time.DateOnly), d.Transaction.HoldingID, d.Err)
	}
}
