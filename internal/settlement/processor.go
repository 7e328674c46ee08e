package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor is the periodic settlement sweep. The lazy read path already
// reports expired auctions as ENDED; the sweep just persists the terminal
// state promptly instead of waiting for a read to trigger it. Both paths
// share the same end-time predicate, so they can never disagree.
type Processor struct {
	service       *Service
	sweepInterval time.Duration
}

func NewProcessor(service *Service, sweepInterval time.Duration) *Processor {
	return &Processor{
		service:       service,
		sweepInterval: sweepInterval,
	}
}

// Start begins the settlement sweep loop. Blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Dur("interval", p.sweepInterval).Msg("starting settlement processor")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if err := p.sweep(); err != nil {
				logger.Error().Err(err).Msg("settlement sweep failed")
			}
		}
	}
}

// sweep settles every auction whose bidding window has closed. Resolve is
// idempotent, so overlapping with a lazy settlement triggered by a read is
// harmless.
func (p *Processor) sweep() error {
	logger := log.With().Str("component", "settlement_processor").Logger()

	expired, err := p.service.GetDB().GetExpiredLiveAuctions(time.Now())
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	logger.Info().Int("expired_count", len(expired)).Msg("settling expired auctions")

	for i := range expired {
		if _, err := p.service.Resolve(expired[i].AuctionID); err != nil {
			logger.Error().
				Err(err).
				Str("auction_id", expired[i].AuctionID).
				Msg("failed to settle expired auction")
			continue
		}
	}

	return nil
}
