package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/trustledger/trustledger/internal/auditlog"
	"github.com/trustledger/trustledger/internal/config"
	"github.com/trustledger/trustledger/internal/id"
	"github.com/trustledger/trustledger/internal/importer"
	"github.com/trustledger/trustledger/internal/ledger"
	"github.com/trustledger/trustledger/internal/logging"
	"github.com/trustledger/trustledger/internal/metrics"
	"github.com/trustledger/trustledger/internal/model"
	"github.com/trustledger/trustledger/internal/posting"
	"github.com/trustledger/trustledger/internal/reconcile"
	"github.com/trustledger/trustledger/internal/statement"
	"github.com/trustledger/trustledger/internal/store"
)

const dateLayout = "2006-01-02"

// globals are the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	merchantID string
	userID     string
}

// app is the wired service graph for one CLI invocation.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	db         *store.DB
	metrics    *metrics.Collector
	ledgers    *ledger.Service
	poster     *posting.Poster
	statements *statement.Service
	engine     *reconcile.Engine
	importer   *importer.Importer

	merchantID string
	userID     string
	out        io.Writer
	errOut     io.Writer
}

func (g *globals) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s not found; run 'trustledger init' first: %w", g.configPath, err)
		}
		return nil, err
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cmd.Context(), cfg.Database.DSN(), cfg.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}

	merchantID := g.merchantID
	if merchantID == "" {
		merchantID = cfg.Firm.MerchantID
	}

	m := metrics.NewCollector()
	engine := reconcile.NewEngine(db, logger, m)
	return &app{
		cfg:        cfg,
		log:        logger,
		db:         db,
		metrics:    m,
		ledgers:    ledger.NewService(db, logger),
		poster:     posting.NewPoster(db, logger, m),
		statements: statement.NewService(db, logger, cfg.Statements.DefaultRangeMonths),
		engine:     engine,
		importer: importer.New(db, engine, logger, importer.Options{
			DateWindowDays: cfg.Import.DateWindowDays,
			Metrics:        m,
		}),
		merchantID: merchantID,
		userID:     g.userID,
		out:        cmd.OutOrStdout(),
		errOut:     cmd.ErrOrStderr(),
	}, nil
}

// run opens the app, calls fn and closes the database.
func (g *globals) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer a.db.Close()

	if a.merchantID == "" {
		return errors.New("no merchant: pass --merchant or set firm.merchant_id in the config")
	}
	return fn(logging.WithContext(cmd.Context(), a.log), a)
}

func (a *app) requireUser() error {
	if strings.TrimSpace(a.userID) == "" {
		return errors.New("this command changes trust records: pass --user")
	}
	return nil
}

// audit appends one entry to the audit log. A failed write is reported
// but does not undo the committed operation.
func (a *app) audit(action, entityID, details string) {
	err := auditlog.Append(a.cfg.Audit.Dir, []auditlog.Entry{{
		Timestamp:  time.Now(),
		Actor:      a.userID,
		MerchantID: a.merchantID,
		Action:     action,
		EntityID:   entityID,
		Details:    details,
	}})
	if err != nil {
		fmt.Fprintf(a.errOut, "warning: failed to write audit log: %v\n", err)
	}
}

// entityArgs accepts exactly n arguments, the first being an entity id.
func entityArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return err
		}
		return checkIDs(args[:1]...)
	}
}

func checkIDs(ids ...string) error {
	for _, s := range ids {
		if !id.Valid(s) {
			return &model.ValidationError{Field: "id", Description: fmt.Sprintf("%q is not a valid id", s)}
		}
	}
	return nil
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func parseDate(flag, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, s)
	}
	return t, nil
}

// parseOptionalDate returns nil for an empty flag.
func parseOptionalDate(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(flag, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// endOfDay makes a date flag inclusive of everything booked that day.
func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}

func parseMoney(flag, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("--%s: invalid amount %q", flag, s)
	}
	return d, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}
