// Package profile holds the signed-in user's profile for the session and
// populates it from the identity provider and the directory service.
package profile

import (
	"sync"

	"github.com/nhle/task-suite/internal/model"
)

// Store is the session's single profile. It starts empty; mutation goes
// through SetName and SetImage only.
type Store struct {
	mu      sync.RWMutex
	profile model.Profile
	subs    []chan model.Profile
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current profile.
func (s *Store) Snapshot() model.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// SetName replaces the profile name.
func (s *Store) SetName(name string) {
	s.mu.Lock()
	s.profile.Name = name
	p := s.profile
	s.mu.Unlock()
	s.publish(p)
}

// SetImage replaces the profile image.
func (s *Store) SetImage(image string) {
	s.mu.Lock()
	s.profile.Image = image
	p := s.profile
	s.mu.Unlock()
	s.publish(p)
}

// Reset clears the profile, e.g. after logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.profile = model.Profile{}
	s.mu.Unlock()
	s.publish(model.Profile{})
}

// Subscribe returns a channel that receives the profile after every
// mutation. Only the latest value is kept for slow readers.
func (s *Store) Subscribe() <-chan model.Profile {
	ch := make(chan model.Profile, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) publish(p model.Profile) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
