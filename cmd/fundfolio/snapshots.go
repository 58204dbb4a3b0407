package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/simaogato/fundfolio-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/fundfolio-backend/internal/domain"
	"github.com/simaogato/fundfolio-backend/internal/report"
	"github.com/simaogato/fundfolio-backend/internal/usecase/snapshot"
)

// subjectFlags selects a user or a family
type subjectFlags struct {
	user   string
	family string
}

func (f *subjectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "user ID (personal scope)")
	cmd.Flags().StringVar(&f.family, "family", "", "family ID (family scope)")
	cmd.MarkFlagsMutuallyExclusive("user", "family")
}

func (f *subjectFlags) resolve() (uuid.UUID, domain.Scope, error) {
	raw, scope := f.user, domain.ScopePersonal
	if f.family != "" {
		raw, scope = f.family, domain.ScopeFamily
	}
	if raw == "" {
		return uuid.Nil, "", fmt.Errorf("one of --user or --family is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid subject ID %q: %w", raw, err)
	}
	return id, scope, nil
}

// renderFlags controls markdown output
type renderFlags struct {
	raw      bool
	currency string
}

func (f *renderFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.raw, "raw", false, "print plain markdown instead of styled terminal output")
	cmd.Flags().StringVar(&f.currency, "currency", "INR", "currency code used to display amounts")
}

func (f *renderFlags) print(cmd *cobra.Command, markdown string) error {
	out := markdown
	if !f.raw {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err != nil {
			return fmt.Errorf("failed to create renderer: %w", err)
		}
		if out, err = r.Render(markdown); err != nil {
			return fmt.Errorf("failed to render markdown: %w", err)
		}
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

func (a *app) snapshotService(cmd *cobra.Command) (*snapshot.Service, error) {
	db, err := a.database(cmd.Context())
	if err != nil {
		return nil, err
	}
	return snapshot.NewService(
		postgres.NewTransactionRepository(db),
		postgres.NewPriceRepository(db),
		postgres.NewSnapshotRepository(db),
		postgres.NewSubjectRepository(db),
		a.cfg.Snapshot,
		a.log,
	), nil
}

func newRebuildCmd(a *app) *cobra.Command {
	var (
		subject subjectFlags
		all     bool
	)
	cmd := &cobra.Command{
		Use:   "rebuild-snapshots",
		Short: "Regenerate the semi-monthly value snapshots of a user, a family, or everyone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.snapshotService(cmd)
			if err != nil {
				return err
			}

			if all {
				rep, err := svc.RebuildAll(cmd.Context())
				if rep != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d users, %d families, %d snapshots, %d failures\n",
						rep.PersonalRebuilt, rep.FamilyRebuilt, rep.Snapshots, len(rep.Failures))
				}
				return err
			}

			id, scope, err := subject.resolve()
			if err != nil {
				return err
			}
			snaps, err := svc.Rebuild(cmd.Context(), id, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d %s snapshots for %s\n", len(snaps), scope, id)
			return nil
		},
	}
	subject.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "rebuild every user and family")
	cmd.MarkFlagsMutuallyExclusive("all", "user")
	cmd.MarkFlagsMutuallyExclusive("all", "family")
	cmd.MarkFlagsOneRequired("all", "user", "family")
	return cmd
}

func newSnapshotsCmd(a *app) *cobra.Command {
	var (
		subject subjectFlags
		render  renderFlags
	)
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Show the stored snapshot history of a user or family",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, scope, err := subject.resolve()
			if err != nil {
				return err
			}
			svc, err := a.snapshotService(cmd)
			if err != nil {
				return err
			}
			history, err := svc.History(cmd.Context(), id, scope)
			if err != nil {
				return err
			}
			return render.print(cmd, report.HistoryMarkdown(id.String(), scope, history, render.currency))
		},
	}
	subject.register(cmd)
	render.register(cmd)
	return cmd
}
