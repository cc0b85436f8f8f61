package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/adapters/repository"
	service "github.com/okian/diarisk/internal/app"
)

const maxLineBytes = 1 << 20

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	Workers int
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{}
	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Score JSON lines from a file or stdin",
		Long: `Score one JSON object per input line and print one JSON line per
input line in the same order. Blank lines are skipped. Lines that fail
print {"error": "..."}; the command exits 1 if any line failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "open input", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return runBatch(cmd, rootOpts, opts, in)
		},
	}
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "batch workers (default from DIARISK_BATCH_WORKERS)")
	return cmd
}

// batchLine is one input line: a parsed record or the reason it was rejected.
type batchLine struct {
	record map[string]any
	err    error
}

func runBatch(cmd *cobra.Command, rootOpts *RootOptions, opts *BatchOptions, in io.Reader) error {
	out := cmd.OutOrStdout()

	lines, err := readLines(in)
	if err != nil {
		return WrapExitError(ExitFailure, "read input", err)
	}

	var extra []service.Option
	switch {
	case opts.Workers > 0:
		extra = append(extra, service.WithBatchWorkers(opts.Workers))
	case rootOpts.cfg != nil:
		extra = append(extra, service.WithBatchWorkers(rootOpts.cfg.BatchWorkers))
	}
	ctx := service.WithSource(cmd.Context(), repository.SourceBatch)
	svc, err := rootOpts.startService(ctx, extra...)
	if err != nil {
		return fail(out, err)
	}
	defer svc.Stop()

	chunk := 1000
	if rootOpts.cfg != nil {
		chunk = min(rootOpts.cfg.MaxBatchSize, rootOpts.cfg.BatchQueueSize)
	}

	failed := 0
	for start := 0; start < len(lines); start += chunk {
		part := lines[start:min(start+chunk, len(lines))]

		var records []map[string]any
		var pos []int
		for i, l := range part {
			if l.err == nil {
				records = append(records, l.record)
				pos = append(pos, i)
			}
		}
		results := make([]service.BatchItem, len(part))
		if len(records) > 0 {
			items, err := svc.PredictBatch(ctx, records)
			if err != nil {
				return fail(out, err)
			}
			for k, it := range items {
				results[pos[k]] = it
			}
		}

		for i, l := range part {
			itemErr := l.err
			if itemErr == nil {
				itemErr = results[i].Err
			}
			if itemErr != nil {
				failed++
				if err := writeErrorLine(out, itemErr); err != nil {
					return WrapExitError(ExitFailure, "write output", err)
				}
				continue
			}
			if err := writeLine(out, results[i].Result); err != nil {
				failed++
				if werr := writeErrorLine(out, err); werr != nil {
					return WrapExitError(ExitFailure, "write output", werr)
				}
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d records failed", failed, len(lines)))
	}
	return nil
}

func readLines(in io.Reader) ([]batchLine, error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []batchLine
	for sc.Scan() {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := parseRecord(b)
		lines = append(lines, batchLine{record: rec, err: err})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
