package api

import "time"

// SetClock replaces the server clock used by manual checks.
func (s *Server) SetClock(now func() time.Time) { s.now = now }
