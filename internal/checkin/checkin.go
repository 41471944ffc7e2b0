// Package checkin runs the technician conversation that records a scheduled
// maintenance visit: location, entrance, then a photo of the service journal.
package checkin

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/ocr"
	"github.com/liftcare/field-bot/internal/schedule"
	"github.com/liftcare/field-bot/internal/sessions"
	"github.com/liftcare/field-bot/internal/store"
)

type Step int

const (
	StepWaitLocation Step = iota
	StepWaitEntrance
	StepEnterEntranceManual
	StepWaitPhoto
)

func (s Step) String() string {
	return [...]string{"wait_location", "wait_entrance", "enter_entrance_manual", "wait_photo"}[s]
}

type Session struct {
	Step      Step
	District  string
	Street    string
	Building  string
	Suggested string
	Entrances []string
	Entrance  string
}

const (
	entranceRule    = "required,number,max=2"
	entrancesPerRow = 5
)

const (
	msgPhotoPrompt = "📷 Надішліть фото журналу ТО. Підписувати не потрібно — бот зчитає дату, роботи та підпис."
	msgManualEntry = "Введіть номер під'їзду цифрою (наприклад: 2)."
)

type Engine struct {
	sessions *sessions.Store[Session]
	gaz      *gazetteer.Gazetteer
	book     *schedule.Book
	logs     *store.Logs
	photos   chat.PhotoFetcher
	ocr      ocr.Recognizer
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

type Deps struct {
	Sessions   *sessions.Store[Session]
	Gazetteer  *gazetteer.Gazetteer
	Schedule   *schedule.Book
	Logs       *store.Logs
	Photos     chat.PhotoFetcher
	Recognizer ocr.Recognizer
	Now        func() time.Time
	Logger     *zap.Logger
}

func New(d Deps) *Engine {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sessions: d.Sessions,
		gaz:      d.Gazetteer,
		book:     d.Schedule,
		logs:     d.Logs,
		photos:   d.Photos,
		ocr:      d.Recognizer,
		validate: validator.New(),
		now:      now,
		logger:   d.Logger.Named("checkin"),
	}
}

func locationKeyboard() *chat.Keyboard {
	return &chat.Keyboard{RequestLocation: format.BtnSendLocation}
}

func entrancesKeyboard(entrances []string) *chat.Keyboard {
	kb := &chat.Keyboard{}
	for i := 0; i < len(entrances); i += entrancesPerRow {
		end := i + entrancesPerRow
		if end > len(entrances) {
			end = len(entrances)
		}
		kb.Rows = append(kb.Rows, append([]string(nil), entrances[i:end]...))
	}
	kb.Rows = append(kb.Rows, []string{format.BtnOtherEntrance})
	return kb
}

// Handle consumes one private-chat event.
func (e *Engine) Handle(ctx context.Context, ev chat.Event) []chat.Effect {
	if !ev.IsPrivate {
		return nil
	}
	switch ev.Kind {
	case chat.EventCommand:
		if ev.Command != "start" {
			return nil
		}
		e.sessions.Put(ev.ChatID, Session{Step: StepWaitLocation})
		return []chat.Effect{
			chat.Send(ev.ChatID, "👋 Вітаю! Надішліть геолокацію через скріпку або натисніть кнопку нижче.").WithKeyboard(locationKeyboard()),
		}
	case chat.EventLocation:
		return e.handleLocation(ev)
	case chat.EventText:
		return e.handleText(ev)
	case chat.EventPhoto:
		return e.handlePhoto(ctx, ev)
	default:
		return nil
	}
}

func (e *Engine) askLocation(chatID int64) []chat.Effect {
	e.sessions.Put(chatID, Session{Step: StepWaitLocation})
	return []chat.Effect{
		chat.Send(chatID, "📍 Надішліть геолокацію через скріпку (або натисніть кнопку):").WithKeyboard(locationKeyboard()),
	}
}

// Locations are accepted at any step and restart the check-in for the
// building found.
func (e *Engine) handleLocation(ev chat.Event) []chat.Effect {
	snap := e.gaz.Snapshot()
	p, ok := snap.Nearest(ev.Lat, ev.Lon)
	if !ok {
		e.sessions.Put(ev.ChatID, Session{Step: StepWaitLocation})
		e.logger.Debug("check-in location outside all points", logging.ChatID(ev.ChatID))
		return []chat.Effect{
			chat.Send(ev.ChatID, "❌ Локацію не знайдено в базі (радіус 10 м). Надішліть геолокацію ще раз.").WithKeyboard(locationKeyboard()),
		}
	}

	entrances := snap.ActiveEntrances(p.District, p.Street, p.Building)
	e.sessions.Put(ev.ChatID, Session{
		Step:      StepWaitEntrance,
		District:  p.District,
		Street:    p.Street,
		Building:  p.Building,
		Suggested: p.Entrance,
		Entrances: entrances,
	})

	text := fmt.Sprintf(
		"🏙️ Район: <b>%s</b>\n📫 Адреса: <b>%s %s</b>\n🚪 Під'їзд поблизу: <b>%s</b>\n\n"+
			"Оберіть під'їзд або натисніть «%s» і введіть номер самостійно.",
		p.District, p.Street, p.Building, p.Entrance, format.BtnOtherEntrance,
	)
	kb := &chat.Keyboard{Remove: true}
	if len(entrances) > 0 {
		kb = entrancesKeyboard(entrances)
	}
	return []chat.Effect{chat.SendHTML(ev.ChatID, text).WithKeyboard(kb)}
}

func (e *Engine) handleText(ev chat.Event) []chat.Effect {
	s, ok := e.sessions.Get(ev.ChatID)
	if !ok {
		return e.askLocation(ev.ChatID)
	}
	text := strings.TrimSpace(ev.Text)

	switch s.Step {
	case StepWaitLocation:
		return []chat.Effect{
			chat.Send(ev.ChatID, "📍 Надішліть геолокацію через скріпку (або натисніть кнопку):").WithKeyboard(locationKeyboard()),
		}

	case StepWaitEntrance:
		if text == format.BtnOtherEntrance {
			s.Step = StepEnterEntranceManual
			e.sessions.Put(ev.ChatID, s)
			return []chat.Effect{chat.Send(ev.ChatID, msgManualEntry)}
		}
		if slices.Contains(s.Entrances, text) || e.validate.Var(text, entranceRule) == nil {
			return e.entranceChosen(ev.ChatID, s, text)
		}
		return []chat.Effect{chat.Send(ev.ChatID, "Будь ласка, оберіть під'їзд з кнопок або введіть номер (1-99).")}

	case StepEnterEntranceManual:
		if err := e.validate.Var(text, entranceRule); err != nil {
			return []chat.Effect{chat.Send(ev.ChatID, "Введіть номер під'їзду цифрою, наприклад 3.")}
		}
		return e.entranceChosen(ev.ChatID, s, text)

	case StepWaitPhoto:
		return []chat.Effect{chat.Send(ev.ChatID, "Будь ласка, надішліть фото журналу ТО.")}
	}
	return nil
}

func (e *Engine) entranceChosen(chatID int64, s Session, entrance string) []chat.Effect {
	s.Entrance = entrance
	s.Step = StepWaitPhoto
	e.sessions.Put(chatID, s)
	return []chat.Effect{chat.Send(chatID, msgPhotoPrompt).WithKeyboard(&chat.Keyboard{Remove: true})}
}

func reasonText(r schedule.Reason) string {
	switch r {
	case schedule.ReasonNoSchedule:
		return "❌ В графіку немає записів для цього будинку."
	case schedule.ReasonNoDates:
		return "❌ В графіку немає дат для цього будинку."
	case schedule.ReasonOutOfWindow:
		return fmt.Sprintf("❌ Дата ТО не відповідає графіку (±%d дні).", schedule.ToleranceDays)
	default:
		return "❌ Дата не відповідає графіку."
	}
}

func (e *Engine) handlePhoto(ctx context.Context, ev chat.Event) []chat.Effect {
	s, ok := e.sessions.Get(ev.ChatID)
	if !ok || s.Step != StepWaitPhoto {
		return []chat.Effect{chat.Send(ev.ChatID, "Спочатку надішліть геолокацію, оберіть під'їзд і лише потім фото.")}
	}

	raw, err := e.photos.FetchPhoto(ctx, ev.PhotoID)
	if err != nil {
		e.logger.Error("failed to download photo", logging.ChatID(ev.ChatID), zap.Error(err))
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Не вдалося отримати фото. Спробуйте ще раз.")}
	}

	date, found, err := e.ocr.RecognizeDate(ctx, raw)
	if err != nil {
		e.logger.Warn("ocr failed", logging.ChatID(ev.ChatID), zap.Error(err))
	}
	if err != nil || !found {
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Не вдалося зчитати дату з фото. Надішліть більш чітке фото.")}
	}

	if err := e.book.Check(s.Street, s.Building, date); err != nil {
		e.logger.Info("check-in rejected by schedule",
			logging.ChatID(ev.ChatID),
			zap.String("street", s.Street),
			zap.String("building", s.Building),
			zap.Time("date", date),
			zap.Stringer("reason", schedule.ReasonOf(err)),
		)
		return []chat.Effect{chat.Send(ev.ChatID, reasonText(schedule.ReasonOf(err)))}
	}

	address := fmt.Sprintf("%s %s", s.Street, s.Building)
	entry := e.logs.Append(models.MaintenanceLog{
		MechanicName: ev.FullName,
		District:     s.District,
		Address:      address,
		Entrance:     s.Entrance,
		Date:         date,
		PhotoFileID:  ev.PhotoID,
		Verified:     true,
		CreatedAt:    e.now(),
	})
	e.logger.Info("maintenance recorded",
		zap.Int64("log_id", entry.ID),
		zap.String("address", address),
		zap.String("entrance", s.Entrance),
	)

	e.sessions.Put(ev.ChatID, Session{Step: StepWaitLocation})
	return []chat.Effect{
		chat.SendHTML(ev.ChatID, fmt.Sprintf(
			"✅ ТО за адресою <b>%s</b>, під'їзд <b>%s</b> зафіксовано на дату <b>%s</b>.",
			address, s.Entrance, date.Format("02.01.2006"),
		)),
		chat.Send(ev.ChatID, "Якщо потрібно зафіксувати ще — надішліть нову геолокацію.").WithKeyboard(locationKeyboard()),
	}
}
