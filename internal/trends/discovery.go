package trends

import (
	"context"
	"sort"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
	"github.com/tickerpulse/ticker-mentions-bot/internal/storage"
)

// Discovery scans return at most this many spikes.
const maxDiscoverySpikes = 20

// DiscoverOptions tunes open-world discovery. Zero values fall back to the
// defaults.
type DiscoverOptions struct {
	MinMentions   int     // low-activity noise floor on the current day
	MinSpikeRatio float64 // minimum finite ratio to report
}

const (
	defaultMinMentions   = 5
	defaultMinSpikeRatio = 2.0
)

// Discover finds spiking symbols without a watchlist: the candidate set is
// every symbol with any trend row for the platform inside the window.
// Symbols below MinMentions on the current day are skipped before any
// ratio is computed. A symbol with no history at all gets an unbounded
// ratio, but only when its current count reaches 2x MinMentions; weaker
// zero-history symbols are dropped as noise. Results are ranked unbounded
// first, then by ratio, ties broken by current mentions, and truncated to
// the top 20.
func (d *Detector) Discover(ctx context.Context, platform string, lookbackDays int, opts DiscoverOptions) (*models.ScanResult, error) {
	if lookbackDays < 1 {
		return nil, ErrInvalidLookback
	}
	if opts.MinMentions <= 0 {
		opts.MinMentions = defaultMinMentions
	}
	if opts.MinSpikeRatio <= 0 {
		opts.MinSpikeRatio = defaultMinSpikeRatio
	}

	today := storage.DayOf(d.now())
	from := today.AddDate(0, 0, -(lookbackDays - 1))

	rows, err := d.trends.TrendsInRange(ctx, platform, from, today)
	if err != nil {
		return nil, err
	}

	bySymbol := make(map[string][]models.DailyTrend)
	for _, row := range rows {
		bySymbol[row.Symbol] = append(bySymbol[row.Symbol], row)
	}

	scan := &models.ScanResult{
		Platform:     platform,
		LookbackDays: lookbackDays,
		TotalScanned: len(bySymbol),
	}

	for symbol, symbolRows := range bySymbol {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		series := buildSeries(symbolRows, from, lookbackDays)
		result := d.evaluate(symbol, platform, lookbackDays, series)

		if result.CurrentMentions < opts.MinMentions {
			continue
		}

		if result.AvgMentions == 0 {
			// Previously silent symbol: the ratio is unbounded, but only a
			// current count of at least 2x the mention floor is a strong
			// enough signal to report.
			if result.CurrentMentions < 2*opts.MinMentions {
				continue
			}
			result.InfiniteRatio = true
			result.SpikeDetected = true
		} else if result.SpikeRatio < opts.MinSpikeRatio {
			continue
		} else {
			result.SpikeDetected = true
		}

		scan.Spikes = append(scan.Spikes, *result)
	}

	scan.SpikesDetected = len(scan.Spikes)
	sort.Slice(scan.Spikes, func(i, j int) bool {
		a, b := scan.Spikes[i], scan.Spikes[j]
		if a.InfiniteRatio != b.InfiniteRatio {
			return a.InfiniteRatio
		}
		if a.InfiniteRatio || a.SpikeRatio == b.SpikeRatio {
			return a.CurrentMentions > b.CurrentMentions
		}
		return a.SpikeRatio > b.SpikeRatio
	})
	if len(scan.Spikes) > maxDiscoverySpikes {
		scan.Spikes = scan.Spikes[:maxDiscoverySpikes]
	}

	return scan, nil
}
