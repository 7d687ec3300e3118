package cache

import "time"

// SetNow overrides the clock on every partition. Test hook only.
func (s *Service) SetNow(now func() time.Time) {
	for _, p := range []*partition{s.search, s.all, s.misc} {
		p.mu.Lock()
		p.now = now
		p.mu.Unlock()
	}
}
