package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/chatshard"
	"github.com/poiesic/chatshard/core"
	"github.com/poiesic/chatshard/reindex"
	"github.com/poiesic/chatshard/storage/jsonl"
	"github.com/urfave/cli/v2"
)

// maxImportLine bounds a single transcript line on import.
const maxImportLine = 64 * 1024 * 1024

func listCommand(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	names, err := store.List(args[0])
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(c.App.Writer, name)
	}
	return nil
}

func infoCommand(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	path, err := store.Path(args[0], args[1])
	if err != nil {
		return err
	}
	format, err := store.Engine().DetectFormat(path)
	if err != nil {
		return fmt.Errorf("failed to inspect conversation: %w", err)
	}
	if format.Kind == jsonl.FormatMissing {
		return fmt.Errorf("conversation %s/%s not found", args[0], args[1])
	}
	summary, err := store.Summary(args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to summarize conversation: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Path:     %s\n", path)
	fmt.Fprintf(w, "Layout:   %s\n", format.Kind)
	fmt.Fprintf(w, "Messages: %s\n", humanize.Comma(int64(summary.MessageCount)))
	if summary.LastMes > 0 {
		last := time.UnixMilli(summary.LastMes)
		fmt.Fprintf(w, "Last:     %s (%s)\n", last.Format(time.RFC3339), humanize.Time(last))
	}
	switch format.Kind {
	case jsonl.FormatChunked:
		idx := format.Index
		fmt.Fprintf(w, "Shards:   %d x %d messages\n", len(idx.Shards), idx.ChunkSize)
		fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(idx.TotalBytes)))
	case jsonl.FormatLegacy:
		if info, err := os.Stat(path); err == nil {
			fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(info.Size())))
		}
	}
	return nil
}

func tailCommand(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	var before *int64
	if cursor := c.Int64("before"); cursor >= 0 {
		before = &cursor
	}
	page, err := store.ReadTail(args[0], args[1], c.Int("limit"), before)
	if err != nil {
		return fmt.Errorf("tail failed: %w", err)
	}
	for _, line := range page.Lines {
		fmt.Fprintln(c.App.Writer, string(line))
	}
	if page.HasMore {
		fmt.Fprintf(c.App.ErrWriter, "more: --before %d\n", page.Cursor)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	args, err := requireArgs(c, 1)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(context.Background(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	for _, hit := range hits {
		when := "never"
		if hit.Result.LastMesDate > 0 {
			when = humanize.Time(time.UnixMilli(hit.Result.LastMesDate))
		}
		fmt.Fprintf(c.App.Writer, "%s\t%d messages\t%s\t%s\n",
			hit.Name, hit.Result.MessageCount, when, preview(hit.Result.LastMessage, 60))
	}
	return nil
}

func importCommand(c *cli.Context) error {
	args, err := requireArgs(c, 3)
	if err != nil {
		return err
	}

	f, err := os.Open(args[2])
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()
	header, messages, err := parseTranscript(f)
	if err != nil {
		return fmt.Errorf("failed to read transcript: %w", err)
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.Save(chatshard.SaveRequest{
		Owner:    args[0],
		Name:     args[1],
		Header:   header,
		Messages: messages,
		Force:    c.Bool("force"),
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Imported %d messages into %s (%s)\n", result.Appended, result.Path, result.Sync)
	return nil
}

func exportCommand(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := store.Export(args[0], args[1])
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if out := c.String("output"); out != "" {
		if err := jsonl.WriteFileAtomic(out, data); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Wrote %s to %s\n", humanize.Bytes(uint64(len(data))), out)
		return nil
	}
	_, err = c.App.Writer.Write(data)
	return err
}

func migrateCommand(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	idx, err := store.Migrate(args[0], args[1])
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Migrated %d messages into %d shards\n", idx.MessageCount, len(idx.Shards))
	return nil
}

func deleteCommand(c *cli.Context) error {
	args, err := requireArgs(c, 2)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0], args[1]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

func renameCommand(c *cli.Context) error {
	args, err := requireArgs(c, 3)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Rename(args[0], args[1], args[2]); err != nil {
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	cfg := reindex.DefaultConfig()
	cfg.BatchSize = c.Int("batch-size")
	cfg.ReportInterval = c.Int("report-interval")
	cfg.MaxRetries = c.Int("max-retries")
	cfg.RetryDelay = c.Duration("retry-delay")
	cfg.Rebuild = c.Bool("rebuild")

	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if cfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()
	cfg.PoolSize = store.Config().PoolSize

	reindexer, err := store.NewReindexer(cfg, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("failed to create reindexer: %w", err)
	}

	fmt.Fprintf(c.App.ErrWriter, "Root: %s\n", store.Config().Root)
	fmt.Fprintf(c.App.ErrWriter, "Chunk size: %d\n", store.Config().ChunkSize)
	fmt.Fprintln(c.App.ErrWriter)

	report, err := reindexer.Run(context.Background())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	for _, failed := range report.Failed {
		fmt.Fprintf(c.App.ErrWriter, "failed: %s: %v\n", failed.Path, failed.Err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d conversations failed", len(report.Failed))
	}
	return nil
}

// parseTranscript reads a single-file transcript. A header line is only
// recognized as the first record; malformed lines are dropped.
func parseTranscript(r io.Reader) (*core.Record, []*core.Record, error) {
	var header *core.Record
	messages := make([]*core.Record, 0)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	first := true
	for scanner.Scan() {
		line := scanner.Bytes()
		if !core.IsRecordLine(line) {
			continue
		}
		if first {
			first = false
			if core.IsHeaderLine(line) {
				header = core.DecodeRecord(line)
				continue
			}
		}
		if rec := core.DecodeRecord(line); rec != nil {
			messages = append(messages, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return header, messages, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
