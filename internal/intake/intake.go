// Package intake runs the resident-facing repair request conversation:
// name, address (typed or by location), entrance, issue and phone.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/geocode"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/phone"
	"github.com/liftcare/field-bot/internal/policy"
	"github.com/liftcare/field-bot/internal/sessions"
	"github.com/liftcare/field-bot/internal/store"
)

type Step int

const (
	StepName Step = iota
	StepChooseInput
	StepChooseDistrict
	StepEnterAddress
	StepAwaitLocation
	StepEnterEntrance
	StepEnterIssue
	StepEnterPhone
)

func (s Step) String() string {
	return [...]string{
		"name", "choose_input_method", "choose_district", "enter_address",
		"await_location", "enter_entrance", "enter_issue", "enter_phone",
	}[s]
}

// Session is the partial request collected so far.
type Session struct {
	Step     Step
	Name     string
	District string
	Street   string
	Building string
	Address  string
	Entrance string
	Issue    string
}

const (
	entranceRule = "required,number,max=2"
	phoneRule    = "required,number,len=10"
)

// ReverseGeocoder resolves coordinates the local gazetteer does not cover.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geocode.Address, error)
}

// Directory is the district lookup intake needs.
type Directory interface {
	Names() []string
	Lookup(name string) (config.District, bool)
	Phones(district string) []string
	StaffChat(district string) (int64, bool)
}

type Engine struct {
	sessions *sessions.Store[Session]
	gaz      *gazetteer.Gazetteer
	requests *store.Requests
	dir      Directory
	geocoder ReverseGeocoder
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

type Deps struct {
	Sessions  *sessions.Store[Session]
	Gazetteer *gazetteer.Gazetteer
	Requests  *store.Requests
	Directory Directory
	Geocoder  ReverseGeocoder // optional
	Now       func() time.Time
	Logger    *zap.Logger
}

func New(d Deps) *Engine {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		sessions: d.Sessions,
		gaz:      d.Gazetteer,
		requests: d.Requests,
		dir:      d.Directory,
		geocoder: d.Geocoder,
		validate: validator.New(),
		now:      now,
		logger:   d.Logger.Named("intake"),
	}
}

// Handle consumes one private-chat event.
func (e *Engine) Handle(ctx context.Context, ev chat.Event) []chat.Effect {
	if !ev.IsPrivate {
		return nil
	}
	switch ev.Kind {
	case chat.EventCommand:
		if ev.Command == "start" {
			return e.start(ev.ChatID)
		}
		return nil
	case chat.EventCallback:
		if ev.CallbackData == format.CallbackStart {
			return append([]chat.Effect{chat.Answer(ev.CallbackID, "")}, e.start(ev.ChatID)...)
		}
		return nil
	case chat.EventText:
		return e.handleText(ev)
	case chat.EventLocation:
		return e.handleLocation(ctx, ev)
	default:
		return nil
	}
}

func (e *Engine) start(chatID int64) []chat.Effect {
	e.sessions.Put(chatID, Session{Step: StepName})
	return []chat.Effect{
		chat.SendHTML(chatID, "👋 <b>Вітаю!</b>\nЯ бот для прийому заявок з ремонту ліфтів.\n\nВведіть ваше ім’я будь ласка:").
			WithKeyboard(&chat.Keyboard{Remove: true}),
	}
}

func inputMethodKeyboard() *chat.Keyboard {
	return &chat.Keyboard{RequestLocation: format.BtnSendLocation, Rows: [][]string{{format.BtnManualAddress}}}
}

func (e *Engine) districtKeyboard() *chat.Keyboard {
	kb := &chat.Keyboard{}
	for _, name := range e.dir.Names() {
		kb.Rows = append(kb.Rows, []string{name})
	}
	return kb
}

func (e *Engine) chooseDistrict(chatID int64, s Session) chat.Effect {
	s.Step = StepChooseDistrict
	e.sessions.Put(chatID, s)
	return chat.Send(chatID, "Оберіть район:").WithKeyboard(e.districtKeyboard())
}

func (e *Engine) handleText(ev chat.Event) []chat.Effect {
	s, ok := e.sessions.Get(ev.ChatID)
	if !ok {
		return []chat.Effect{chat.Send(ev.ChatID, "Натисніть /start щоб почати.")}
	}
	text := strings.TrimSpace(ev.Text)

	switch s.Step {
	case StepName:
		name := strings.Join(strings.Fields(text), " ")
		if name == "" {
			return []chat.Effect{chat.Send(ev.ChatID, "Введіть ваше ім’я будь ласка:")}
		}
		s.Name = name
		s.Step = StepChooseInput
		e.sessions.Put(ev.ChatID, s)
		return []chat.Effect{chat.Send(ev.ChatID, "Оберіть спосіб введення адреси:").WithKeyboard(inputMethodKeyboard())}

	case StepChooseInput, StepAwaitLocation:
		switch text {
		case format.BtnManualAddress:
			return []chat.Effect{e.chooseDistrict(ev.ChatID, s)}
		case format.BtnSendLocation:
			s.Step = StepAwaitLocation
			e.sessions.Put(ev.ChatID, s)
			return []chat.Effect{chat.Send(ev.ChatID, "📎 Надішліть геолокацію через скріпку.")}
		}
		if s.Step == StepAwaitLocation {
			return []chat.Effect{chat.Send(ev.ChatID, "📎 Надішліть геолокацію через скріпку.").WithKeyboard(inputMethodKeyboard())}
		}
		return []chat.Effect{chat.Send(ev.ChatID, "Будь ласка, оберіть опцію з клавіатури.")}

	case StepChooseDistrict:
		if _, ok := e.dir.Lookup(text); !ok {
			return []chat.Effect{chat.Send(ev.ChatID, "❌ Невірний район, спробуйте ще.")}
		}
		s.District = text
		s.Step = StepEnterAddress
		e.sessions.Put(ev.ChatID, s)
		return []chat.Effect{chat.Send(ev.ChatID, "Введіть адресу (Лазурна 32):").WithKeyboard(&chat.Keyboard{Remove: true})}

	case StepEnterAddress:
		return e.enterAddress(ev.ChatID, s, text)

	case StepEnterEntrance:
		return e.enterEntrance(ev.ChatID, s, text)

	case StepEnterIssue:
		if text == "" {
			return []chat.Effect{chat.Send(ev.ChatID, "✍️ Опишіть проблему:")}
		}
		s.Issue = text
		s.Step = StepEnterPhone
		e.sessions.Put(ev.ChatID, s)
		return []chat.Effect{chat.Send(ev.ChatID, "📞 Телефон (10 цифр):")}

	case StepEnterPhone:
		return e.submit(ev, s, text)
	}
	return nil
}

func (e *Engine) enterAddress(chatID int64, s Session, text string) []chat.Effect {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return []chat.Effect{chat.Send(chatID, "❌ Формат: назва вулиці + номер будинку")}
	}
	street, building := strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]

	snap := e.gaz.Snapshot()
	res, err := snap.Match(s.District, street, building)
	if err != nil {
		if apperr.Is(err, apperr.KindNotServiced) {
			return []chat.Effect{chat.Send(chatID, "❌ Ця адреса не обслуговується.")}
		}
		msg := "❌ Адреса не знайдена, спробуйте ще."
		if hint, ok := snap.Suggest(s.District, street); ok {
			msg += fmt.Sprintf("\nМожливо, ви мали на увазі: %s?", hint)
		}
		return []chat.Effect{chat.Send(chatID, msg)}
	}
	return e.addressResolved(chatID, s, res, false)
}

func (e *Engine) addressResolved(chatID int64, s Session, res gazetteer.Resolution, announce bool) []chat.Effect {
	s.District = res.District
	s.Street = res.Street
	s.Building = res.Building
	s.Address = res.Address()
	s.Step = StepEnterEntrance
	e.sessions.Put(chatID, s)

	var effects []chat.Effect
	if announce {
		effects = append(effects, chat.SendHTML(chatID, fmt.Sprintf("📍 Адреса: <b>%s</b>\n🏙️ Район: <b>%s</b>", s.Address, s.District)))
	}
	return append(effects, chat.Send(chatID, "Введіть номер під'їзду:").WithKeyboard(&chat.Keyboard{Remove: true}))
}

func (e *Engine) enterEntrance(chatID int64, s Session, text string) []chat.Effect {
	if err := e.validate.Var(text, entranceRule); err != nil {
		return []chat.Effect{chat.Send(chatID, "❌ Введіть лише цифри (не більше 2):")}
	}
	point, ok := e.gaz.Snapshot().Entrance(s.District, s.Street, s.Building, text)
	if !ok {
		return []chat.Effect{chat.Send(chatID, "❌ Такого під'їзду немає в базі, спробуйте ще.")}
	}
	if !point.Active {
		return []chat.Effect{chat.Send(chatID, "❌ Цей під'їзд не обслуговується.")}
	}
	s.Entrance = text

	decision := policy.Check(e.now(), e.requests.List(), s.Address, s.Entrance)
	if decision.Blocked {
		e.sessions.Delete(chatID)
		e.logger.Info("duplicate request blocked",
			logging.ChatID(chatID),
			zap.String("address", s.Address),
			zap.String("entrance", s.Entrance),
			zap.Time("until", decision.Deadline),
		)
		return []chat.Effect{
			chat.Send(chatID, format.Blocked(decision.Blocked, e.dir.Phones(s.District))).WithButtons(format.NewRequestButton()...),
		}
	}

	s.Step = StepEnterIssue
	e.sessions.Put(chatID, s)
	return []chat.Effect{chat.Send(chatID, "✍️ Опишіть проблему:")}
}

func (e *Engine) submit(ev chat.Event, s Session, text string) []chat.Effect {
	if err := e.validate.Var(text, phoneRule); err != nil {
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Має бути 10 цифр.")}
	}

	staffChat, hasStaff := e.dir.StaffChat(s.District)
	r := e.requests.Append(models.Request{
		Name:      s.Name,
		Phone:     phone.Normalize(text),
		District:  s.District,
		Address:   s.Address,
		Entrance:  s.Entrance,
		Issue:     s.Issue,
		Status:    models.StatusPending,
		CreatedAt: e.now(),
		UserID:    ev.ChatID,
	})
	e.sessions.Delete(ev.ChatID)

	card := format.RequestCard(r)
	effects := []chat.Effect{
		chat.SendHTML(ev.ChatID, card).WithButtons(format.NewRequestButton()...),
	}
	if hasStaff {
		staff := chat.SendHTML(staffChat, card).WithButtons(format.StaffButtons(r.ID)...)
		staff.TrackRequest = r.ID
		effects = append(effects, staff)
	} else {
		e.logger.Error("no staff chat for district", zap.String("district", s.District), logging.RequestID(r.ID))
	}
	return append(effects, chat.SendHTML(ev.ChatID, format.EmergencyContacts(e.dir.Phones(s.District))))
}

func (e *Engine) handleLocation(ctx context.Context, ev chat.Event) []chat.Effect {
	s, ok := e.sessions.Get(ev.ChatID)
	if !ok {
		return []chat.Effect{chat.Send(ev.ChatID, "Натисніть /start щоб почати.")}
	}
	if s.Step != StepChooseInput && s.Step != StepAwaitLocation {
		return nil
	}

	snap := e.gaz.Snapshot()
	if p, ok := snap.Nearest(ev.Lat, ev.Lon); ok {
		res := gazetteer.Resolution{District: p.District, Street: p.Street, Building: p.Building}
		return e.addressResolved(ev.ChatID, s, res, true)
	}

	if e.geocoder != nil {
		addr, err := e.geocoder.Reverse(ctx, ev.Lat, ev.Lon)
		switch {
		case err != nil:
			e.logger.Warn("reverse geocoding failed; falling back to manual entry",
				logging.ChatID(ev.ChatID),
				zap.Stringer("kind", apperr.GetKind(err)),
				zap.Error(err),
			)
		case addr.HouseNumber == "":
			e.logger.Debug("reverse geocoding returned no house number", logging.ChatID(ev.ChatID))
		default:
			res, err := snap.MatchAny(addr.Road, addr.HouseNumber)
			if err == nil {
				return e.addressResolved(ev.ChatID, s, res, true)
			}
			e.logger.Debug("geocoded address not in gazetteer",
				zap.String("road", addr.Road),
				zap.String("house", addr.HouseNumber),
				zap.Error(err),
			)
		}
	}

	return []chat.Effect{
		chat.Send(ev.ChatID, "❌ Не вдалося визначити адресу за геолокацією.\nБудь ласка, введіть її вручну."),
		e.chooseDistrict(ev.ChatID, s),
	}
}
