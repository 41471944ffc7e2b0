// Package statussync applies staff and dashboard status changes to requests
// and produces the chat effects that keep the resident, the staff chat and
// the dashboard in step. Buttons and dashboard actions share this one path.
package statussync

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/store"
)

// DashboardActor is the processor name recorded for dashboard actions.
const DashboardActor = "Оператор з веб"

// Actor identifies who triggered a transition.
type Actor struct {
	Name   string
	UserID int64
	// FromButton marks a staff-chat button press, which is subject to the
	// section's button gate.
	FromButton bool
}

// Dashboard returns the actor used for dashboard actions.
func Dashboard() Actor {
	return Actor{Name: DashboardActor}
}

// Directory resolves district contacts and sections.
type Directory interface {
	Phones(district string) []string
	SectionOf(district string) string
}

// Gate decides whether a staff member may press status buttons.
type Gate interface {
	CanPressStatus(section string, userID int64) bool
}

type Syncer struct {
	requests *store.Requests
	dir      Directory
	gate     Gate
	now      func() time.Time
	logger   *zap.Logger
}

func New(requests *store.Requests, dir Directory, gate Gate, now func() time.Time, logger *zap.Logger) *Syncer {
	if now == nil {
		now = time.Now
	}
	return &Syncer{requests: requests, dir: dir, gate: gate, now: now, logger: logger.Named("statussync")}
}

func (s *Syncer) authorize(id int64, actor Actor) error {
	if !actor.FromButton || s.gate == nil {
		return nil
	}
	r, ok := s.requests.Get(id)
	if !ok {
		return apperr.NotFound(fmt.Sprintf("request %d not found", id))
	}
	if !s.gate.CanPressStatus(s.dir.SectionOf(r.District), actor.UserID) {
		return apperr.Forbidden("status buttons are disabled for this section")
	}
	return nil
}

// Complete marks a request done. Repeating it keeps the first completion
// time and processor but emits the notifications again.
func (s *Syncer) Complete(id int64, actor Actor) ([]chat.Effect, error) {
	if err := s.authorize(id, actor); err != nil {
		return nil, err
	}
	r, err := s.requests.Update(id, func(r *models.Request) error {
		if r.Status == models.StatusDone {
			return nil
		}
		now := s.now()
		r.Status = models.StatusDone
		r.CompletedAt = &now
		r.ProcessedBy = actor.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("request completed", logging.RequestID(id), zap.String("by", actor.Name))

	var effects []chat.Effect
	if r.StaffMsgID != 0 {
		effects = append(effects, chat.EditMarkup(r.StaffChatID, r.StaffMsgID, nil))
	}
	if r.UserID != 0 {
		effects = append(effects, chat.Send(r.UserID, format.Completed))
	}
	return effects, nil
}

// MarkNotWorking records that staff visited but the lift is still down.
// A done request cannot move back and yields Conflict with no effects.
func (s *Syncer) MarkNotWorking(id int64, actor Actor) ([]chat.Effect, error) {
	if err := s.authorize(id, actor); err != nil {
		return nil, err
	}
	r, err := s.requests.Update(id, func(r *models.Request) error {
		switch r.Status {
		case models.StatusDone:
			return apperr.Conflict(fmt.Sprintf("request %d is already done", r.ID)).WithOp("statussync.MarkNotWorking")
		case models.StatusError:
			return nil
		}
		now := s.now()
		r.Status = models.StatusError
		r.CompletedAt = &now
		r.ProcessedBy = actor.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("request marked not working", logging.RequestID(id), zap.String("by", actor.Name))

	var effects []chat.Effect
	if r.StaffMsgID != 0 {
		effects = append(effects, chat.EditMarkup(r.StaffChatID, r.StaffMsgID, format.DoneOnlyButtons(r.ID)))
	}
	if r.UserID != 0 {
		effects = append(effects, chat.Send(r.UserID, format.NotWorking(s.dir.Phones(r.District))))
	}
	return effects, nil
}

// Delete removes a request and strips the buttons from its staff message.
func (s *Syncer) Delete(id int64) ([]chat.Effect, error) {
	r, err := s.requests.Delete(id)
	if err != nil {
		return nil, err
	}
	if r.StaffMsgID == 0 {
		return nil, nil
	}
	return []chat.Effect{chat.EditMarkup(r.StaffChatID, r.StaffMsgID, nil)}, nil
}
