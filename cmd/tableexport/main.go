// Command tableexport writes a whole admin table to a CSV, XLSX or PDF
// file, the same export the dashboard's "All rows" menu produces.
//
//	tableexport --entity votes --format xlsx --filter paymentStatus=paid
//	tableexport --entity users --query 'search=ann&sortBy=name' --out users.csv
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/votedesk/internal/apiclient"
	"github.com/JonMunkholm/votedesk/internal/config"
	"github.com/JonMunkholm/votedesk/internal/datatable"
	"github.com/JonMunkholm/votedesk/internal/entities"
	"github.com/JonMunkholm/votedesk/internal/logging"
	"github.com/JonMunkholm/votedesk/internal/store"
)

type options struct {
	entity  string
	format  string
	query   string
	search  string
	filters map[string]string
	from    string
	to      string
	out     string
}

func main() {
	var opts options
	pflag.StringVarP(&opts.entity, "entity", "e", "", "table to export (see the dashboard's navigation)")
	pflag.StringVarP(&opts.format, "format", "f", "csv", "csv, xlsx or pdf")
	pflag.StringVarP(&opts.query, "query", "q", "", "table state as a page query string")
	pflag.StringVar(&opts.search, "search", "", "search text")
	pflag.StringToStringVar(&opts.filters, "filter", nil, "filter key=value, repeatable")
	pflag.StringVar(&opts.from, "from", "", "first day, YYYY-MM-DD")
	pflag.StringVar(&opts.to, "to", "", "last day, YYYY-MM-DD")
	pflag.StringVarP(&opts.out, "out", "o", "", "output file; - for stdout (default: a timestamped name)")
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Debug("no .env file found", "file", *envFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.Export.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Export.Timeout)
		defer cancel()
	}

	if err := run(ctx, cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, "tableexport:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	if cfg.Table.Definitions != "" {
		if _, err := entities.LoadFile(cfg.Table.Definitions); err != nil {
			return err
		}
	}
	def, ok := entities.Get(opts.entity)
	if !ok {
		return fmt.Errorf("unknown table %q", opts.entity)
	}
	desc := def.ExportDescriptor()
	if desc == nil {
		return fmt.Errorf("%s: %w", def.Key, datatable.ErrExportDisabled)
	}
	format, err := datatable.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	req, err := buildRequest(def, opts)
	if err != nil {
		return err
	}

	fetch, closeSource, err := openSource(ctx, cfg, def)
	if err != nil {
		return err
	}
	defer closeSource()

	start := time.Now()
	rows, err := datatable.CollectAll(ctx, fetch, req)
	if err != nil {
		return err
	}

	name := opts.out
	if name == "" {
		name = datatable.Filename(desc.EntityName, format, time.Now())
	}
	n, err := writeTo(name, func(w io.Writer) (int64, error) {
		return datatable.WriteExport(w, format, *desc, rows)
	})
	if err != nil {
		return err
	}

	slog.Info("export written",
		"entity", def.Key,
		"rows", len(rows),
		"file", name,
		"size", humanize.Bytes(uint64(n)),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// buildRequest reads the table state the same way the dashboard reads its
// URL, then applies the flag overrides.
func buildRequest(def entities.Definition, opts options) (datatable.PageRequest, error) {
	q, err := url.ParseQuery(opts.query)
	if err != nil {
		return datatable.PageRequest{}, fmt.Errorf("--query: %w", err)
	}
	state := datatable.NewURLState(datatable.NewQueryPort(q), def.URLDefaults(), def.CaseConfig())

	if opts.search != "" {
		state.SetSearch(opts.search)
	}
	for key, value := range opts.filters {
		if _, ok := def.Filter(key); !ok {
			return datatable.PageRequest{}, fmt.Errorf("--filter: %s has no filter %q", def.Key, key)
		}
		state.SetFilter(key, value)
	}
	if opts.from != "" || opts.to != "" {
		state.SetDateRange(&datatable.DateRange{From: opts.from, To: opts.to})
	}
	return state.Request(), nil
}

func openSource(ctx context.Context, cfg *config.Config, def entities.Definition) (datatable.FetchFunc, func(), error) {
	if cfg.Source.Kind == config.SourceAPI {
		client := apiclient.New(cfg.Source.APIURL, cfg.Source.Timeout, apiclient.WithToken(cfg.Source.APIToken))
		return client.Fetcher(def.Source.APIPath, def.CaseConfig()), func() {}, nil
	}

	pool, err := store.Open(ctx, cfg.Database.URL, store.PoolConfig{MaxConns: 2})
	if err != nil {
		return nil, nil, err
	}
	return store.New(pool, slog.Default()).Fetcher(def.StoreSource()), pool.Close, nil
}

// writeTo writes to name, or stdout for "-". A failed write removes the
// partial file.
func writeTo(name string, write func(io.Writer) (int64, error)) (int64, error) {
	if name == "-" {
		bw := bufio.NewWriter(os.Stdout)
		n, err := write(bw)
		return n, errors.Join(err, bw.Flush())
	}

	f, err := os.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(name)
		return 0, err
	}
	return n, nil
}
