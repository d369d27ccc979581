package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/JonMunkholm/folio/internal/core"
	"github.com/JonMunkholm/folio/internal/grid"
	"github.com/JonMunkholm/folio/internal/store"
)

var errUsage = errors.New("missing arguments")

func listCollections(c *cli.Context) error {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	refreshErr := e.service.RefreshAll(e.ctx)

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tLABEL\tPUBLIC\tRECORDS\tSOURCE")
	for _, s := range e.service.Collections() {
		source := "store"
		if s.Fallback {
			source = "fallback"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", s.Key, s.Label, s.Public, s.Records, source)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return refreshErr
}

func listRecords(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("%w: list <collection>", errUsage)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.manager(c.Args().First())
	if err != nil {
		return err
	}
	if err := applyTableFlags(m.Table(), c); err != nil {
		return err
	}
	m.Table().SetPage(c.Int("page") - 1)

	view := m.Table().View()
	columns := m.Definition().Columns

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	headers := append([]string{"ID"}, headerRow(columns)...)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, rec := range view.Rows {
		cells := []string{rec.ID}
		for _, col := range columns {
			cells = append(cells, oneLine(col.Display(rec)))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "page %d of %d, %d of %d records\n",
		view.Page+1, max(view.PageCount, 1), view.TotalFiltered, view.TotalRecords)
	return nil
}

func exportRecords(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("%w: export <collection>", errUsage)
	}
	format, err := grid.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.manager(c.Args().First())
	if err != nil {
		return err
	}
	if err := applyTableFlags(m.Table(), c); err != nil {
		return err
	}

	file, err := m.Export(e.ctx, format, core.ScopeAll, c.StringSlice("field"))
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		_, err := fmt.Fprint(c.App.Writer, file.Body)
		return err
	}
	if err := os.WriteFile(out, []byte(file.Body), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "wrote %s (%s, %d records)\n",
		out, humanize.Bytes(uint64(len(file.Body))), m.Table().TotalFiltered())
	return nil
}

func seedRecords(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	seed, err := core.ParseSeed(data)
	if err != nil {
		return err
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	keys := make([]string, 0, len(seed))
	for key := range seed {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	start := time.Now()
	var total int
	for _, key := range keys {
		m, err := e.service.Manager(key)
		if err != nil {
			return err
		}

		inputs := seed[key]
		bar := newSeedBar(c, key, len(inputs))
		created, err := m.Import(e.ctx, inputs, func(int) { _ = bar.Add(1) })
		_ = bar.Finish()
		total += created
		if err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
	}

	fmt.Fprintf(c.App.ErrWriter, "seeded %d records into %d collections in %s\n",
		total, len(keys), time.Since(start).Round(time.Millisecond))
	return nil
}

func newSeedBar(c *cli.Context, key string, n int) *progressbar.ProgressBar {
	if c.Bool("quiet") {
		return progressbar.DefaultSilent(int64(n))
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(c.App.ErrWriter),
		progressbar.OptionSetDescription(key),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetItsString("records"),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.App.ErrWriter) }),
	)
}

func deleteRecords(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("%w: delete <collection> <id>...", errUsage)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	m, err := e.manager(c.Args().First())
	if err != nil {
		return err
	}

	for _, id := range c.Args().Tail() {
		if _, ok := m.Record(id); !ok {
			return fmt.Errorf("%s/%s: %w", m.Key(), id, store.ErrNotFound)
		}
		if err := m.Table().Toggle(id); err != nil {
			return err
		}
	}

	n, err := m.BulkDelete(e.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "deleted %d records from %s\n", n, m.Key())
	return nil
}

func pruneAudit(c *cli.Context) error {
	days := c.Int("days")
	if days <= 0 {
		return fmt.Errorf("--days must be positive, got %d", days)
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer e.close()

	n, err := e.service.PruneAudit(e.ctx, days)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "pruned %d audit entries older than %d days\n", n, days)
	return nil
}

// tableState is the part of the grid controller the table flags drive.
type tableState interface {
	SetQuery(q string)
	SetFilter(key string, values []string)
	SetSort(key string)
}

func applyTableFlags(t tableState, c *cli.Context) error {
	if q := c.String("query"); q != "" {
		t.SetQuery(q)
	}
	for _, raw := range c.StringSlice("filter") {
		key, values, err := parseFilter(raw)
		if err != nil {
			return err
		}
		t.SetFilter(key, values)
	}
	if raw := c.String("sort"); raw != "" {
		key, dir := parseSort(raw)
		// The sort cycles like a header click: once for ascending, twice
		// for descending.
		t.SetSort(key)
		if dir == grid.Descending {
			t.SetSort(key)
		}
	}
	return nil
}

// parseFilter parses "status=offer,applied".
func parseFilter(raw string) (string, []string, error) {
	key, list, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid filter %q, want key=value[,value]", raw)
	}

	var values []string
	for _, v := range strings.Split(list, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return key, values, nil
}

// parseSort parses "title" or "-title".
func parseSort(raw string) (string, grid.Direction) {
	raw = strings.TrimSpace(raw)
	if key, ok := strings.CutPrefix(raw, "-"); ok {
		return key, grid.Descending
	}
	return strings.TrimPrefix(raw, "+"), grid.Ascending
}

func headerRow(columns grid.Columns) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = strings.ToUpper(col.Header)
	}
	return out
}

// oneLine keeps multi-line cells from breaking the tab layout.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
