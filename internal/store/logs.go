package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/models"
)

// LogPersister appends a single maintenance log.
type LogPersister interface {
	AppendLog(log *models.MaintenanceLog) error
}

type Logs struct {
	mu      sync.Mutex
	items   []models.MaintenanceLog
	nextID  int64
	persist LogPersister
	logger  *zap.Logger
}

func NewLogs(initial []models.MaintenanceLog, persist LogPersister, logger *zap.Logger) *Logs {
	s := &Logs{
		items:   append([]models.MaintenanceLog(nil), initial...),
		persist: persist,
		logger:  logger.Named("maintenance_logs"),
	}
	for _, l := range s.items {
		if l.ID > s.nextID {
			s.nextID = l.ID
		}
	}
	return s
}

// Append stores a log. The backing store assigns the ID when it accepts the
// write; otherwise a local sequence number is used.
func (s *Logs) Append(log models.MaintenanceLog) models.MaintenanceLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.AppendLog(&log); err != nil {
			s.logger.Error("persist maintenance log failed; keeping in-memory state",
				zap.String("address", log.Address),
				zap.Error(apperr.Wrap(apperr.KindPersistence, "append log", err)),
			)
		}
	}
	if log.ID <= s.nextID {
		log.ID = s.nextID + 1
	}
	s.nextID = log.ID
	s.items = append(s.items, log)
	s.logger.Info("maintenance logged",
		zap.String("address", log.Address),
		zap.String("entrance", log.Entrance),
		zap.String("date", log.Date.Format("2006-01-02")),
	)
	return log
}

func (s *Logs) List() []models.MaintenanceLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MaintenanceLog(nil), s.items...)
}
