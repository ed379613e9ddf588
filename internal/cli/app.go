// Package cli implements the interactive menu that drives the blacklist,
// integrated and custom query flows.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"black-heatmap/internal/blacklist"
	"black-heatmap/internal/config"
	"black-heatmap/internal/integration"
	"black-heatmap/internal/observability"
	"black-heatmap/internal/querystore"
	"black-heatmap/internal/spreadsheet"
	"black-heatmap/internal/storage"
	"black-heatmap/internal/table"
	"black-heatmap/internal/trading"
	"black-heatmap/internal/visualization"
)

// ErrInvalidInput is returned for malformed menu answers.
var ErrInvalidInput = errors.New("invalid input")

const rule = "=================================================="

// Options wires an App.
type Options struct {
	In  io.Reader
	Out io.Writer

	Config        config.AppConfig
	Store         *querystore.Store
	Oracle        storage.Connector
	Warehouse     storage.Connector
	WarehouseKind string

	// InputPath is offered as the default workbook path.
	InputPath string

	Logger  zerolog.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// App is the interactive menu.
type App struct {
	opts   Options
	in     *bufio.Scanner
	out    io.Writer
	logger zerolog.Logger
	now    func() time.Time

	// lines is fed by a single reader goroutine so prompts can give up
	// when done closes.
	readOnce sync.Once
	lines    chan string
	done     <-chan struct{}
}

// New creates an App reading answers from o.In.
func New(o Options) *App {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.WarehouseKind == "" {
		o.WarehouseKind = querystore.KindRedshift
	}
	return &App{
		opts:   o,
		in:     bufio.NewScanner(o.In),
		out:    o.Out,
		logger: o.Logger.With().Str("component", "cli").Logger(),
		now:    o.Now,
	}
}

// Run shows the menu until the user exits or input ends. Failed operations
// are logged and reported, then the menu is shown again.
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, rule)
	fmt.Fprintln(a.out, "Black Heatmap data processing")
	fmt.Fprintln(a.out, rule)

	a.done = ctx.Done()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(a.out, "\nMenu:")
		fmt.Fprintln(a.out, "1. Blacklist MID lookup (Oracle)")
		fmt.Fprintln(a.out, "2. Integrated processing (Oracle + warehouse)")
		fmt.Fprintln(a.out, "3. Run a saved query")
		fmt.Fprintln(a.out, "4. Exit")

		choice, ok := a.ask("\nSelect: ")
		if !ok {
			if err := ctx.Err(); err != nil {
				a.logger.Info().Msg("interrupted")
				return err
			}
			a.logger.Info().Msg("input closed")
			return nil
		}

		switch choice {
		case "1":
			a.run(ctx, "blacklist", a.blacklistFlow)
		case "2":
			a.run(ctx, "integrated", a.integratedFlow)
		case "3":
			a.run(ctx, "custom_query", a.customQueryFlow)
		case "4":
			fmt.Fprintln(a.out, "Exiting.")
			a.logger.Info().Msg("exit")
			return nil
		default:
			fmt.Fprintln(a.out, "Invalid selection, try again.")
		}
	}
}

// run executes one menu operation under its own run_id.
func (a *App) run(ctx context.Context, op string, fn func(context.Context, zerolog.Logger) error) {
	logger := a.opts.Logger.With().Str("run_id", uuid.NewString()).Str("operation", op).Logger()
	start := a.now()
	logger.Info().Msg("operation started")

	err := fn(ctx, logger)
	a.opts.Metrics.RecordRun(op, a.now().Sub(start), err)
	if err != nil {
		logger.Error().Err(err).Msg("operation failed")
		fmt.Fprintf(a.out, "Error: %v\n", err)
		return
	}
	logger.Info().Dur("elapsed", a.now().Sub(start)).Msg("operation finished")
}

func (a *App) blacklistFlow(ctx context.Context, logger zerolog.Logger) error {
	path, err := a.askPath()
	if err != nil {
		return err
	}

	result, err := a.blacklistProcessor(logger).Process(ctx, path, true)
	if err != nil {
		return err
	}
	if result.Empty() {
		fmt.Fprintln(a.out, "No data found.")
		return nil
	}

	fmt.Fprintln(a.out, "\n"+rule)
	fmt.Fprintln(a.out, "Result summary")
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "Customers found: %s\n", count(result.Len()))
	fmt.Fprintf(a.out, "Columns: %s\n", strings.Join(result.Columns, ", "))
	fmt.Fprintln(a.out, "\nFirst rows:")
	a.preview(result)

	if a.confirm("\nSave the result to Excel? (y/n): ", false) {
		return a.save(logger, result, "black_mid_result", "Black_MID_Info")
	}
	return nil
}

func (a *App) integratedFlow(ctx context.Context, logger zerolog.Logger) error {
	path, err := a.askPath()
	if err != nil {
		return err
	}
	checkpoint, err := a.askTime("Access checkpoint date (YYYY-MM-DD, empty to skip): ", time.DateOnly)
	if err != nil {
		return err
	}
	start, err := a.askTime("Trade range start (YYYY-MM-DD HH:MM:SS, empty to skip): ", time.DateTime, time.DateOnly)
	if err != nil {
		return err
	}
	end, err := a.askTime("Trade range end (YYYY-MM-DD HH:MM:SS, empty to skip): ", time.DateTime, time.DateOnly)
	if err != nil {
		return err
	}
	validate := a.confirm("Validate MID format? (Y/n): ", true)

	res := a.integrate(ctx, logger, integration.Request{
		Path:           path,
		Checkpoint:     checkpoint,
		Start:          start,
		End:            end,
		ValidateFormat: validate,
	})
	a.summary(res)

	if a.confirm("\nSave the results to Excel? (y/n): ", false) {
		if err := a.saveIntegrated(logger, res); err != nil {
			return err
		}
	}
	if hasAggregates(res) && a.confirm("Render charts? (y/n): ", false) {
		a.renderCharts(logger, res)
	}
	return nil
}

// RunIntegrated runs the integrated flow without prompts, saving every
// non-empty table and optionally rendering charts.
func (a *App) RunIntegrated(ctx context.Context, req integration.Request, charts bool) (integration.Result, error) {
	var res integration.Result
	var runErr error
	a.run(ctx, "integrated", func(ctx context.Context, logger zerolog.Logger) error {
		if _, err := os.Stat(req.Path); err != nil {
			runErr = fmt.Errorf("input workbook: %w", err)
			return runErr
		}
		res = a.integrate(ctx, logger, req)
		a.summary(res)
		if err := a.saveIntegrated(logger, res); err != nil {
			runErr = err
			return err
		}
		if charts && hasAggregates(res) {
			a.renderCharts(logger, res)
		}
		return nil
	})
	return res, runErr
}

func (a *App) integrate(ctx context.Context, logger zerolog.Logger, req integration.Request) integration.Result {
	p := integration.NewProcessor(a.blacklistProcessor(logger), a.tradingProcessor(logger), logger)
	return p.Process(ctx, req)
}

func (a *App) summary(res integration.Result) {
	fmt.Fprintln(a.out, "\n"+rule)
	fmt.Fprintln(a.out, "Integrated result")
	fmt.Fprintln(a.out, rule)
	fmt.Fprintf(a.out, "MID records:        %s\n", count(res.BlackMidInfo.Len()))
	fmt.Fprintf(a.out, "1h trade buckets:   %s\n", count(res.H1.Len()))
	fmt.Fprintf(a.out, "4h trade buckets:   %s\n", count(res.H4.Len()))
	fmt.Fprintf(a.out, "Daily trade detail: %s\n", count(res.Daily.Len()))
	if !res.BlackMidInfo.Empty() {
		fmt.Fprintln(a.out, "\nFirst rows:")
		a.preview(res.BlackMidInfo)
	}
}

func (a *App) saveIntegrated(logger zerolog.Logger, res integration.Result) error {
	if !res.BlackMidInfo.Empty() {
		if err := a.save(logger, res.BlackMidInfo, "black_mid_integrated", "Black_MID_Info"); err != nil {
			return err
		}
	}
	for _, part := range []struct {
		name string
		t    *table.Table
	}{
		{trading.KeyHourly, res.H1},
		{trading.KeyFourHour, res.H4},
		{trading.KeyDaily, res.Daily},
	} {
		if part.t.Empty() {
			continue
		}
		if err := a.save(logger, part.t, part.name, part.name); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) renderCharts(logger zerolog.Logger, res integration.Result) {
	v := visualization.New(visualization.OptionsFromConfig(a.opts.Config, logger, a.opts.Metrics))
	paths := v.CreateAll(res.H1, res.H4, res.Daily)
	fmt.Fprintln(a.out, "\nCharts:")
	for _, kind := range sortedKeys(paths) {
		if paths[kind] == "" {
			fmt.Fprintf(a.out, "  %-14s failed\n", kind)
			continue
		}
		fmt.Fprintf(a.out, "  %-14s %s\n", kind, paths[kind])
	}
}

func (a *App) customQueryFlow(ctx context.Context, logger zerolog.Logger) error {
	fmt.Fprintln(a.out, "\nDatabase:")
	fmt.Fprintln(a.out, "1. Oracle")
	fmt.Fprintf(a.out, "2. Warehouse (%s)\n", a.opts.WarehouseKind)
	choice, _ := a.ask("Select (1 or 2): ")

	var kind string
	var conn storage.Connector
	switch choice {
	case "1":
		kind, conn = querystore.KindOracle, a.opts.Oracle
	case "2":
		kind, conn = a.opts.WarehouseKind, a.opts.Warehouse
	default:
		return fmt.Errorf("%w: database %q", ErrInvalidInput, choice)
	}

	names, err := a.opts.Store.Names(kind)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(a.out, "No queries available for %s.\n", kind)
		return nil
	}
	fmt.Fprintln(a.out, "\nAvailable queries:")
	for i, name := range names {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, name)
	}
	answer, _ := a.ask("Query number: ")
	idx, err := strconv.Atoi(answer)
	if err != nil || idx < 1 || idx > len(names) {
		return fmt.Errorf("%w: query number %q", ErrInvalidInput, answer)
	}
	name := names[idx-1]

	query, err := a.opts.Store.Load(kind, name)
	if err != nil {
		return err
	}
	if placeholders := querystore.Placeholders(query); len(placeholders) > 0 {
		fmt.Fprintf(a.out, "\nThe query needs parameters: %s\n", strings.Join(placeholders, ", "))
		fmt.Fprintln(a.out, "List parameters take space separated values.")
		raw, _ := a.ask("Values (comma separated, in order): ")
		query, err = bindPositional(query, placeholders, raw)
		if err != nil {
			return err
		}
	}

	result, err := storage.Query(ctx, conn, query)
	if err != nil {
		return err
	}
	logger.Info().Str("query", name).Int("rows", result.Len()).Msg("query executed")
	if result.Empty() {
		fmt.Fprintln(a.out, "Query returned no rows.")
		return nil
	}

	fmt.Fprintf(a.out, "\nRows: %s\n", count(result.Len()))
	a.preview(result)
	if a.confirm("\nSave the result to Excel? (y/n): ", false) {
		return a.save(logger, result, name, "")
	}
	return nil
}

// bindPositional substitutes comma separated values onto placeholders in order.
func bindPositional(query string, placeholders []string, raw string) (string, error) {
	values := strings.Split(raw, ",")
	if len(values) < len(placeholders) {
		return "", fmt.Errorf("%w: %d values for %d parameters", ErrInvalidInput, len(values), len(placeholders))
	}
	params := make(map[string]string, len(placeholders))
	for i, p := range placeholders {
		v := strings.TrimSpace(values[i])
		if v == "" {
			return "", fmt.Errorf("%w: empty value for %s", ErrInvalidInput, p)
		}
		if querystore.IsListPlaceholder(p) {
			params[p] = querystore.QuoteList(strings.Fields(v))
		} else {
			params[p] = querystore.Quote(v)
		}
	}
	return querystore.SubstituteAll(query, params), nil
}

func (a *App) blacklistProcessor(logger zerolog.Logger) *blacklist.Processor {
	p := blacklist.NewProcessor(a.opts.Store, a.opts.Oracle, logger, a.opts.Metrics)
	if a.opts.Config.BatchSize > 0 {
		p.BatchSize = a.opts.Config.BatchSize
	}
	return p
}

func (a *App) tradingProcessor(logger zerolog.Logger) *trading.Processor {
	return trading.NewProcessor(a.opts.Store, a.opts.Warehouse, a.opts.WarehouseKind, logger, a.opts.Metrics)
}

// save writes t to {OutputDir}/{name}_{timestamp}.xlsx.
func (a *App) save(logger zerolog.Logger, t *table.Table, name, sheet string) error {
	path := spreadsheet.TimestampedName(a.opts.Config.OutputDir, name, "xlsx", a.now())
	if err := spreadsheet.SaveTable(t, path, sheet); err != nil {
		return err
	}
	a.opts.Metrics.RecordExport()
	logger.Info().Str("path", path).Int("rows", t.Len()).Msg("result saved")
	fmt.Fprintf(a.out, "Saved: %s\n", path)
	return nil
}

func hasAggregates(res integration.Result) bool {
	return !res.H1.Empty() || !res.H4.Empty() || !res.Daily.Empty()
}
