package postgres

import "context"

// Truncate empties the sessions table between tests.
func Truncate(ctx context.Context, s *Storage) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE parking_sessions`)
	return err
}
