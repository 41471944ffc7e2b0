// Package access tracks who may act in the staff chats: admins, authorized
// section members, each section's representative, and whether status
// buttons are open to everyone in a section.
package access

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/models"
)

// Persister stores the access lists.
type Persister interface {
	ChatRights() (map[string]bool, error)
	SetChatRight(section string, enabled bool) error
	StaffMembers() ([]models.StaffMember, error)
	AddStaffMember(section string, userID int64) error
	RemoveStaffMember(section string, userID int64) error
	SetRepresentative(section string, userID int64) error
}

type Registry struct {
	dir     *config.Directory
	persist Persister
	logger  *zap.Logger

	mu      sync.RWMutex
	rights  map[string]bool
	members map[string]map[int64]bool
	reps    map[string]int64
}

// Load reads the stored access lists.
func Load(dir *config.Directory, persist Persister, logger *zap.Logger) (*Registry, error) {
	r := &Registry{
		dir:     dir,
		persist: persist,
		logger:  logger.Named("access"),
		rights:  map[string]bool{},
		members: map[string]map[int64]bool{},
		reps:    map[string]int64{},
	}
	if persist == nil {
		return r, nil
	}

	rights, err := persist.ChatRights()
	if err != nil {
		return nil, fmt.Errorf("load chat rights: %w", err)
	}
	r.rights = rights

	members, err := persist.StaffMembers()
	if err != nil {
		return nil, fmt.Errorf("load staff members: %w", err)
	}
	for _, m := range members {
		r.addMember(m.Section, m.UserID)
		if m.Representative {
			r.reps[m.Section] = m.UserID
		}
	}
	return r, nil
}

func (r *Registry) addMember(section string, userID int64) {
	set, ok := r.members[section]
	if !ok {
		set = map[int64]bool{}
		r.members[section] = set
	}
	set[userID] = true
}

func (r *Registry) warnPersist(op string, err error) {
	if err != nil {
		r.logger.Error("persist access change failed; keeping in-memory state",
			zap.String("op", op),
			zap.Error(apperr.Wrap(apperr.KindPersistence, op, err)),
		)
	}
}

func (r *Registry) knownSection(section string) bool {
	_, ok := r.dir.StaffChats[section]
	return ok
}

func (r *Registry) IsAdmin(userID int64) bool {
	return r.dir.IsAdmin(userID)
}

// ButtonsEnabled reports whether anyone in the section's chat may press
// status buttons. Sections default to enabled.
func (r *Registry) ButtonsEnabled(section string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	enabled, ok := r.rights[section]
	return !ok || enabled
}

// Rights lists the toggle state of every configured section.
func (r *Registry) Rights() map[string]bool {
	out := make(map[string]bool, len(r.dir.StaffChats))
	for _, section := range r.dir.Sections() {
		out[section] = r.ButtonsEnabled(section)
	}
	return out
}

func (r *Registry) SetButtonsEnabled(section string, enabled bool) error {
	if !r.knownSection(section) {
		return apperr.NotFound(fmt.Sprintf("unknown section %q", section)).WithOp("access.SetButtonsEnabled")
	}
	r.mu.Lock()
	r.rights[section] = enabled
	r.mu.Unlock()
	if r.persist != nil {
		r.warnPersist("set chat right", r.persist.SetChatRight(section, enabled))
	}
	r.logger.Info("status buttons toggled", zap.String("section", section), zap.Bool("enabled", enabled))
	return nil
}

// CanPressStatus gates staff status buttons. With buttons disabled only
// admins and the section representative may act.
func (r *Registry) CanPressStatus(section string, userID int64) bool {
	if r.ButtonsEnabled(section) || r.IsAdmin(userID) {
		return true
	}
	return r.Representative(section) == userID
}

func (r *Registry) IsAuthorized(section string, userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[section][userID]
}

// Authorize adds userID to the section's members.
func (r *Registry) Authorize(section string, userID int64) error {
	if !r.knownSection(section) {
		return apperr.NotFound(fmt.Sprintf("unknown section %q", section)).WithOp("access.Authorize")
	}
	r.mu.Lock()
	already := r.members[section][userID]
	r.addMember(section, userID)
	r.mu.Unlock()
	if !already && r.persist != nil {
		r.warnPersist("add staff member", r.persist.AddStaffMember(section, userID))
	}
	return nil
}

// Leave removes userID from the section, clearing the representative if it
// was them. It reports whether anything changed.
func (r *Registry) Leave(section string, userID int64) bool {
	r.mu.Lock()
	wasMember := r.members[section][userID]
	delete(r.members[section], userID)
	wasRep := r.reps[section] == userID && userID != 0
	if wasRep {
		delete(r.reps, section)
	}
	r.mu.Unlock()

	if wasMember && r.persist != nil {
		r.warnPersist("remove staff member", r.persist.RemoveStaffMember(section, userID))
	}
	return wasMember || wasRep
}

// Members lists the authorized users of a section in id order.
func (r *Registry) Members(section string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.members[section]))
	for id := range r.members[section] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Representative returns the section representative, or 0.
func (r *Registry) Representative(section string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reps[section]
}

// SetRepresentative appoints an authorized member; 0 clears the post.
func (r *Registry) SetRepresentative(section string, userID int64) error {
	r.mu.Lock()
	if userID != 0 && !r.members[section][userID] {
		r.mu.Unlock()
		return apperr.Validation(fmt.Sprintf("user %d is not authorized in %s", userID, section)).WithOp("access.SetRepresentative")
	}
	if userID == 0 {
		delete(r.reps, section)
	} else {
		r.reps[section] = userID
	}
	r.mu.Unlock()

	if r.persist != nil {
		r.warnPersist("set representative", r.persist.SetRepresentative(section, userID))
	}
	return nil
}
