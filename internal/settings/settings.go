// Package settings exposes the externally-owned user settings consulted by
// the observers. The pipeline only reads them; mutation happens through the
// HTTP surface on behalf of the owning app.
package settings

import "sync"

// Settings is the read-only view consulted by the notification observer.
type Settings interface {
	IsAuthenticated() bool
	AmbientAlertsEnabled() bool
}

// Store holds the current settings. Zero value: everything off.
type Store struct {
	mu                   sync.RWMutex
	authenticated        bool
	ambientAlerts        bool
	notificationsGranted bool
}

var _ Settings = (*Store)(nil)

// NewStore creates a settings store with everything disabled.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Store) AmbientAlertsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambientAlerts
}

// NotificationsGranted reports whether the platform notification permission
// is currently held; consulted by the install observer before alerting.
func (s *Store) NotificationsGranted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationsGranted
}

func (s *Store) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = v
}

func (s *Store) SetAmbientAlerts(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambientAlerts = v
}

func (s *Store) SetNotificationsGranted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationsGranted = v
}

// Snapshot returns the current settings for the HTTP surface.
func (s *Store) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]bool{
		"authenticated":         s.authenticated,
		"ambient_alerts":        s.ambientAlerts,
		"notifications_granted": s.notificationsGranted,
	}
}
