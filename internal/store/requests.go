// Package store owns the shared request and maintenance-log lists. Every
// mutation and its write-through save run in one critical section; the
// in-memory list stays authoritative when a save fails.
package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/models"
)

// RequestPersister saves a full snapshot of the request list.
type RequestPersister interface {
	SaveAllRequests(requests []models.Request) error
}

type Requests struct {
	mu      sync.Mutex
	items   []models.Request
	nextID  int64
	persist RequestPersister
	logger  *zap.Logger
}

// NewRequests seeds the store with previously saved requests.
func NewRequests(initial []models.Request, persist RequestPersister, logger *zap.Logger) *Requests {
	s := &Requests{
		items:   append([]models.Request(nil), initial...),
		persist: persist,
		logger:  logger.Named("requests"),
	}
	for _, r := range s.items {
		if r.ID > s.nextID {
			s.nextID = r.ID
		}
	}
	return s
}

// save must be called with mu held.
func (s *Requests) save() {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveAllRequests(s.items); err != nil {
		s.logger.Error("persist requests failed; keeping in-memory state",
			zap.Int("count", len(s.items)),
			zap.Error(apperr.Wrap(apperr.KindPersistence, "save requests", err)),
		)
	}
}

func (s *Requests) indexOf(id int64) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Append assigns the next ID and stores the request.
func (s *Requests) Append(r models.Request) models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r.ID = s.nextID
	s.items = append(s.items, r)
	s.save()
	s.logger.Info("request created", logging.RequestID(r.ID), zap.String("district", r.District))
	return r
}

func (s *Requests) Get(id int64) (models.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i], true
	}
	return models.Request{}, false
}

// At returns the request at a 1-based list position.
func (s *Requests) At(position int) (models.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 1 || position > len(s.items) {
		return models.Request{}, false
	}
	return s.items[position-1], true
}

// List returns a copy of every request in creation order.
func (s *Requests) List() []models.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Request(nil), s.items...)
}

// Update applies fn to the request under the lock and saves. If fn returns
// an error nothing is changed or saved.
func (s *Requests) Update(id int64, fn func(r *models.Request) error) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Request{}, apperr.NotFound(fmt.Sprintf("request %d not found", id)).WithOp("store.Update")
	}
	next := s.items[i]
	if err := fn(&next); err != nil {
		return s.items[i], err
	}
	s.items[i] = next
	s.save()
	return next, nil
}

// Delete removes a request.
func (s *Requests) Delete(id int64) (models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.Request{}, apperr.NotFound(fmt.Sprintf("request %d not found", id)).WithOp("store.Delete")
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.save()
	s.logger.Info("request deleted", logging.RequestID(id))
	return removed, nil
}

// AttachStaffMessage records where the staff copy of a request was posted.
func (s *Requests) AttachStaffMessage(id, chatID int64, messageID int) error {
	_, err := s.Update(id, func(r *models.Request) error {
		r.StaffChatID = chatID
		r.StaffMsgID = messageID
		return nil
	})
	return err
}
