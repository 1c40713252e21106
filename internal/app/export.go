package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"goldbridge/internal/zone"
)

// Export renders zone snapshot history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.ZoneID == "" {
		return errors.New("zone id is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Feed.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	snapshots, err := store.ListSnapshotsBetween(ctx, opts.ZoneID, from, to)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		a.Logger.Info().Str("zone", opts.ZoneID).Msg("no snapshots found for export window")
		return nil
	}

	downsampled := downsampleSnapshots(snapshots, opts.MaxPoints)
	a.Logger.Info().Int("total", len(snapshots)).Int("exported", len(downsampled)).Msg("exporting snapshots")

	if opts.CSVPath != "" {
		if err := writeSnapshotsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSnapshotsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSnapshots(snapshots []zone.Snapshot, max int) []zone.Snapshot {
	if max <= 0 || len(snapshots) <= max {
		return snapshots
	}

	result := make([]zone.Snapshot, 0, max)
	step := float64(len(snapshots)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(snapshots) {
			idx = len(snapshots) - 1
		}
		result = append(result, snapshots[idx])
	}
	return result
}

func writeSnapshotsCSV(path string, snapshots []zone.Snapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "zone_id", "stability_deviation", "reference_price", "target_price", "volatility", "liquidity_depth"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snapshots {
		record := []string{
			snap.Bucket.Format(time.RFC3339),
			snap.ZoneID,
			snap.StabilityDeviation.String(),
			snap.ReferencePrice.String(),
			snap.TargetPrice.String(),
			snap.Volatility.String(),
			snap.LiquidityDepth.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSnapshotsPNG(path string, snapshots []zone.Snapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(snapshots))
	reference := make([]float64, len(snapshots))
	target := make([]float64, len(snapshots))
	deviation := make([]float64, len(snapshots))

	for i, snap := range snapshots {
		x[i] = snap.Bucket
		reference[i] = snap.ReferencePrice.InexactFloat64()
		target[i] = snap.TargetPrice.InexactFloat64()
		deviation[i] = snap.StabilityDeviation.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.3f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Reference Price (USD)",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Deviation",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Reference",
				XValues: x,
				YValues: reference,
			},
			chart.TimeSeries{
				Name:    "Target",
				XValues: x,
				YValues: target,
			},
			chart.TimeSeries{
				Name:    "Deviation",
				XValues: x,
				YValues: deviation,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
