package trends

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tickerpulse/ticker-mentions-bot/internal/models"
)

// Watchlist scans return at most this many spikes.
const maxWatchlistSpikes = 10

// ScanWatchlist runs spike detection for every symbol in the watchlist
// concurrently. A failure for one symbol is recorded in the result's
// Errors map and never aborts the others. Detected spikes are sorted
// descending by ratio and truncated to the top 10.
func (d *Detector) ScanWatchlist(ctx context.Context, symbols []string, platform string, lookbackDays int) (*models.ScanResult, error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyWatchlist
	}
	if lookbackDays < 1 {
		return nil, ErrInvalidLookback
	}

	type symbolOutcome struct {
		symbol string
		result *models.SpikeResult
		err    error
	}

	var wg sync.WaitGroup
	outcomes := make(chan symbolOutcome, len(symbols))

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			if ctx.Err() != nil {
				outcomes <- symbolOutcome{symbol: symbol, err: ctx.Err()}
				return
			}

			result, err := d.Detect(ctx, symbol, platform, lookbackDays)
			outcomes <- symbolOutcome{symbol: symbol, result: result, err: err}
		}(symbol)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	scan := &models.ScanResult{
		Platform:     platform,
		LookbackDays: lookbackDays,
		TotalScanned: len(symbols),
	}

	for outcome := range outcomes {
		if outcome.err != nil {
			logrus.Errorf("Spike detection failed for %s on %s: %v", outcome.symbol, platform, outcome.err)
			if scan.Errors == nil {
				scan.Errors = make(map[string]string)
			}
			scan.Errors[outcome.symbol] = outcome.err.Error()
			continue
		}
		if outcome.result.SpikeDetected {
			scan.Spikes = append(scan.Spikes, *outcome.result)
		}
	}

	scan.SpikesDetected = len(scan.Spikes)
	sort.Slice(scan.Spikes, func(i, j int) bool {
		return scan.Spikes[i].SpikeRatio > scan.Spikes[j].SpikeRatio
	})
	if len(scan.Spikes) > maxWatchlistSpikes {
		scan.Spikes = scan.Spikes[:maxWatchlistSpikes]
	}

	return scan, nil
}
