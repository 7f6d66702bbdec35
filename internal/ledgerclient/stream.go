package ledgerclient

import (
	"context"
	"time"

	"github.com/hedisam/pipeline/chans"
)

// StreamCount polls the ledger's count every pollTick and emits it whenever it differs from the last emitted value.
// The first successful poll is always emitted. The returned channel is closed once ctx is done.
func (c *Client) StreamCount(ctx context.Context, pollTick time.Duration) <-chan uint64 {
	out := make(chan uint64)

	go func() {
		defer close(out)

		t := time.NewTicker(pollTick)
		defer t.Stop()

		var (
			last    uint64
			emitted bool
		)
		for range chans.ReceiveOrDoneSeq(ctx, t.C) {
			count, err := c.Count(ctx)
			if err != nil {
				c.logger.WithError(err).Error("Failed to poll ledger count")
				continue
			}
			polledCounts.Inc()

			if emitted && count == last {
				c.logger.WithField("count", count).Debug("No new ledger records yet")
				continue
			}

			if !chans.SendOrDone(ctx, out, count) {
				return
			}
			last, emitted = count, true
		}
	}()

	return out
}
