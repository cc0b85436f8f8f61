package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/diarisk/internal/adapters/repository"
	service "github.com/okian/diarisk/internal/app"
	"github.com/okian/diarisk/internal/domain/types"
	"github.com/okian/diarisk/pkg/logger"
)

// NewPredictCommand creates the predict command.
func NewPredictCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict [json]",
		Short: "Score one patient record",
		Long: `Score one patient record given as a JSON object.

Field names may be canonical (Glucose), snake_case (blood_pressure),
camelCase (bloodPressure) or short aliases (bp). Missing fields take
population defaults. The result is printed as indented JSON; failures
print {"error": "..."} and exit non-zero.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPredict(cmd, rootOpts, args)
		},
	}
	return cmd
}

func runPredict(cmd *cobra.Command, opts *RootOptions, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 || len(bytes.TrimSpace([]byte(args[0]))) == 0 {
		return fail(out, types.MissingInput())
	}
	raw, err := parseRecord([]byte(args[0]))
	if err != nil {
		return fail(out, err)
	}

	ctx := service.WithSource(cmd.Context(), repository.SourceCLI)
	svc, err := opts.startService(ctx)
	if err != nil {
		return fail(out, err)
	}
	defer svc.Stop()

	res, err := svc.Predict(ctx, raw)
	if err != nil {
		return fail(out, err)
	}
	if err := writeResult(out, res); err != nil {
		return fail(out, err)
	}
	return nil
}

// parseRecord decodes one JSON object, keeping numbers as json.Number.
func parseRecord(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, types.InvalidJSON(err)
	}
	if dec.More() {
		return nil, types.InvalidJSON(errors.New("unexpected data after JSON value"))
	}
	if raw == nil {
		return nil, types.MissingInput()
	}
	return raw, nil
}

// startService builds and starts a service over the configured artifact
// and history store.
func (o *RootOptions) startService(ctx context.Context, extra ...service.Option) (*service.Service, error) {
	svcOpts := []service.Option{
		service.WithLogger(logger.Named("cli")),
		service.WithModelDir(o.ModelDir),
	}
	if o.cfg != nil {
		svcOpts = append(svcOpts,
			service.WithLoadTimeout(o.cfg.LoadTimeout()),
			service.WithBatchQueueSize(o.cfg.BatchQueueSize),
			service.WithMaxBatchSize(o.cfg.MaxBatchSize),
		)
	}
	var store repository.Store
	if o.HistoryPath != "" {
		limit := 0
		if o.cfg != nil {
			limit = o.cfg.HistoryLimit
		}
		sqlite, err := repository.OpenSQLite(o.HistoryPath, repository.WithMaxRecords(limit))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		store = sqlite
		svcOpts = append(svcOpts, service.WithHistory(store))
	}
	svc := service.New(append(svcOpts, extra...)...)
	if err := svc.Start(ctx); err != nil {
		// A service that never started does not own the store yet.
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return svc, nil
}
