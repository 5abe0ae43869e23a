package collab

import (
	"context"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	collabsdk "collabhub/sdk/go"
)

// scheduleRetry re-runs attempt in the background after ErrorRetryDelay *
// 2^n for n in [0, MaxRetries). It stops on the first success, on a
// permanent error, when the epoch moves or when the store closes.
// Permanent errors are never scheduled.
func (s *Store) scheduleRetry(slot string, epoch uint64, cause error, attempt func(context.Context) error) {
	if s.opts.MaxRetries == 0 || !collabsdk.IsTransient(cause) {
		return
	}
	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	backoff := retry.WithMaxRetries(uint64(s.opts.MaxRetries), retry.NewExponential(s.opts.ErrorRetryDelay))
	go func() {
		defer s.wg.Done()
		for n := 1; ; n++ {
			delay, stop := backoff.Next()
			if stop {
				s.logger.Debug("retries exhausted", zap.String("slot", slot))
				return
			}
			select {
			case <-s.clock.After(delay):
			case <-s.bg.Done():
				return
			}
			if !s.epochIs(epoch) {
				return
			}
			err := attempt(s.bg)
			if err == nil {
				s.logger.Debug("retry succeeded", zap.String("slot", slot), zap.Int("attempt", n))
				return
			}
			s.logger.Debug("retry failed", zap.String("slot", slot), zap.Int("attempt", n), zap.Error(err))
			if !collabsdk.IsTransient(err) {
				return
			}
		}
	}()
}
