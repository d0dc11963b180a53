package session

import (
	"context"

	"localmart/internal/app/api"
)

// RunValidator checks the token every validate interval while the session is
// Authenticated, until ctx is cancelled. It returns ctx.Err().
func (s *Session) RunValidator(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.validateInterval)
	defer ticker.Stop()

	s.logger.Debug().Dur("interval", s.validateInterval).Msg("Token validator started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !s.State().IsAuthenticated() {
				continue
			}
			if err := s.ValidateToken(ctx); err != nil && !api.IsCanceled(err) {
				s.logger.Debug().Err(err).Msg("Periodic token validation failed")
			}
		}
	}
}
