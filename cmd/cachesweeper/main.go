package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"pdfquiz"
)

func main() {
	var (
		dbPath  = flag.String("db", "./quizcache.db", "sqlite cache file")
		ttl     = flag.Duration("ttl", pdfquiz.DefaultTTL, "Entries older than this are swept")
		list    = flag.Bool("list", false, "List live entries after sweeping")
		dryRun  = flag.Bool("dry-run", false, "Only list, do not sweep")
		verbose = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	pdfquiz.SetVerbose(*verbose)

	if err := run(*dbPath, *ttl, *list, *dryRun); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run(dbPath string, ttl time.Duration, list, dryRun bool) error {
	backend, err := pdfquiz.OpenSQLiteBackend(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	gateway := pdfquiz.NewGateway(backend, ttl, nil)
	defer gateway.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if !dryRun {
		n, err := gateway.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("failed to sweep cache: %w", err)
		}
		log.Printf("Swept %d expired entries from %s", n, dbPath)
	}

	if list || dryRun {
		if err := listEntries(ctx, os.Stdout, backend, ttl, time.Now()); err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
	}
	return nil
}

func listEntries(ctx context.Context, out io.Writer, backend *pdfquiz.SQLiteBackend, ttl time.Duration, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tSESSION\tINSERTED\tAGE\tSTATE")

	for _, bucket := range []string{pdfquiz.BucketQuiz, pdfquiz.BucketResults} {
		rows, err := backend.ListEntries(ctx, bucket)
		if err != nil {
			return err
		}
		for _, row := range rows {
			age := now.Sub(row.InsertedAt)
			state := "live"
			if age > ttl {
				state = "expired"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				row.Bucket, row.Key, row.InsertedAt.Format(time.RFC3339), age.Round(time.Second), state)
		}
	}
	return tw.Flush()
}
