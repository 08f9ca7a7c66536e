/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package sqlcheck

import "sync"

// SharedOptions is one mutable Options value read by every validation site:
// the run_sql tool and the explorer endpoints. A config reload stores new
// thresholds and the next statement validated sees them.
type SharedOptions struct {
	mu   sync.RWMutex
	opts Options
}

// NewSharedOptions seeds the holder with the startup thresholds.
func NewSharedOptions(opts Options) *SharedOptions {
	return &SharedOptions{opts: opts}
}

// Load returns the current thresholds.
func (s *SharedOptions) Load() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Store replaces the thresholds.
func (s *SharedOptions) Store(opts Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
}
