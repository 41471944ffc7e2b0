// Package digest sends each staff chat its daily list of unfinished requests.
package digest

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/store"
)

// JobName keys the digest in the job run table.
const JobName = "daily_digest"

const dateLayout = "2006-01-02"

// RunStore remembers the last date a job fired.
type RunStore interface {
	LastRun(job string) (string, error)
	SetLastRun(job, date string) error
}

// Directory routes a district to its staff chat.
type Directory interface {
	StaffChat(district string) (int64, bool)
}

// Runner delivers effects.
type Runner interface {
	Run(ctx context.Context, effects []chat.Effect) int
}

type Digest struct {
	requests *store.Requests
	dir      Directory
	runner   Runner
	runs     RunStore
	hour     int
	minute   int
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger

	mu   sync.Mutex
	last string
}

type Config struct {
	Hour     int
	Minute   int
	Location *time.Location
	Now      func() time.Time
}

// New loads the last fired date so a restart does not send twice.
func New(requests *store.Requests, dir Directory, runner Runner, runs RunStore, cfg Config, logger *zap.Logger) *Digest {
	d := &Digest{
		requests: requests,
		dir:      dir,
		runner:   runner,
		runs:     runs,
		hour:     cfg.Hour,
		minute:   cfg.Minute,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   logger.Named("digest"),
	}
	if d.loc == nil {
		d.loc = time.Local
	}
	if d.now == nil {
		d.now = time.Now
	}
	if runs != nil {
		last, err := runs.LastRun(JobName)
		if err != nil {
			d.logger.Warn("could not read last digest date", zap.Error(err))
		}
		d.last = last
	}
	return d
}

// Due reports whether the digest should fire at now: the configured time of
// day has passed and nothing was sent yet for that date. A tick missed at
// the exact minute is caught up by the next one on the same day.
func (d *Digest) Due(now time.Time) bool {
	local := now.In(d.loc)
	fireAt := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if local.Before(fireAt) {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last != local.Format(dateLayout)
}

// Tick is the once-per-minute job body.
func (d *Digest) Tick(ctx context.Context) {
	now := d.now()
	if !d.Due(now) {
		return
	}
	date := now.In(d.loc).Format(dateLayout)

	d.mu.Lock()
	d.last = date
	d.mu.Unlock()
	if d.runs != nil {
		if err := d.runs.SetLastRun(JobName, date); err != nil {
			d.logger.Error("could not persist digest date", zap.String("date", date), zap.Error(err))
		}
	}

	effects := d.Build()
	failed := d.runner.Run(ctx, effects)
	d.logger.Info("daily digest sent",
		zap.String("date", date),
		zap.Int("chats", len(effects)),
		zap.Int("failed", failed),
	)
}

// Build renders one digest message per staff chat that has unfinished
// requests, ordered by chat id.
func (d *Digest) Build() []chat.Effect {
	byChat := map[int64][]format.DigestItem{}
	for i, r := range d.requests.List() {
		if !r.Unfinished() {
			continue
		}
		chatID, ok := d.dir.StaffChat(r.District)
		if !ok {
			d.logger.Warn("request district has no staff chat", zap.Int64("request_id", r.ID), zap.String("district", r.District))
			continue
		}
		byChat[chatID] = append(byChat[chatID], format.DigestItem{Position: i + 1, Request: r})
	}

	chats := make([]int64, 0, len(byChat))
	for id := range byChat {
		chats = append(chats, id)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })

	effects := make([]chat.Effect, 0, len(chats))
	for _, id := range chats {
		effects = append(effects, chat.SendHTML(id, format.Digest(byChat[id])))
	}
	return effects
}
