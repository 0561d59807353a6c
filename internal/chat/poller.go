package chat

import (
	"context"
	"sync"
	"time"

	"modguard/internal/metrics"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

// Handler processes a single update. Updates are delivered one at a time,
// in arrival order, from a single goroutine.
type Handler func(ctx context.Context, upd Update)

// Poller consumes updates from the Bot API via getUpdates long polling.
type Poller struct {
	api     *BotAPI
	handler Handler

	// PollTimeout is the server-side long-poll hold time.
	PollTimeout time.Duration

	offset int64
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPoller creates a poller delivering updates to handler.
func NewPoller(api *BotAPI, handler Handler) *Poller {
	return &Poller{
		api:         api,
		handler:     handler,
		PollTimeout: 50 * time.Second,
		stopCh:      make(chan struct{}),
	}
}

// Start begins polling in a background goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

// Stop requests shutdown and waits for the poll loop to exit.
func (p *Poller) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	retry := &backoff.Backoff{
		Min:    time.Second,
		Max:    30 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller: context cancelled, stopping")
			return
		case <-p.stopCh:
			log.Info().Msg("poller: stop requested, stopping")
			return
		default:
		}

		updates, err := p.api.GetUpdates(ctx, p.offset, p.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.PollerConnected.Set(0)
			wait := retry.Duration()
			log.Warn().Err(err).Dur("retry_in", wait).Msg("poller: getUpdates failed")

			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-time.After(wait):
			}
			continue
		}

		retry.Reset()
		metrics.PollerConnected.Set(1)

		for _, upd := range updates {
			p.offset = upd.UpdateID + 1
			metrics.UpdatesReceivedTotal.Inc()
			p.handler(ctx, upd)
		}
	}
}
