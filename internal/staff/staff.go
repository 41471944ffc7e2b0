// Package staff handles events from the section staff chats: status buttons,
// request listings, member authorization, representatives and the admin
// gazetteer commands.
package staff

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/access"
	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/logging"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/statussync"
	"github.com/liftcare/field-bot/internal/store"
)

const (
	cmdRequests = "заявки"
	cmdAssign   = "призначити"
	cmdUnassign = "скасувати"
	cmdDisable  = "вимкнути"
	cmdEnable   = "увімкнути"
	cmdReload   = "оновити"

	prefixAuth     = "auth:"
	prefixAssign   = "assign_rep:"
	prefixUnassign = "unassign_rep:"
	prefixFilter   = "filter:"
	prefixStatus   = "status:"
)

const (
	msgForbidden    = "⛔️ Дію заборонено."
	msgOnlySection  = "❌ Лише в чаті району."
	msgOnlyAdmin    = "⛔️ Тільки адміністратор."
	msgNotSection   = "❌ Ця команда доступна лише в чатах дільниць."
	msgEmptyFilter  = "❌ Немає заявок для цього району за обраним фільтром."
	msgNoMembers    = "❌ Немає авторизованих користувачів у цьому районі."
	msgNoRep        = "❌ Представник не призначений."
	msgAuthorized   = "✅ Ви авторизовані для цього району."
	msgAssigned     = "✅ Користувача призначено представником."
	msgUnassigned   = "🗑️ Представника скасовано."
	msgTargetFormat = "❌ Формат: /%s <вулиця> <будинок>[_<під'їзд>]"
)

type Dispatcher struct {
	requests *store.Requests
	sync     *statussync.Syncer
	access   *access.Registry
	dir      *config.Directory
	gaz      *gazetteer.Gazetteer
	logger   *zap.Logger
}

type Deps struct {
	Requests  *store.Requests
	Sync      *statussync.Syncer
	Access    *access.Registry
	Directory *config.Directory
	Gazetteer *gazetteer.Gazetteer
	Logger    *zap.Logger
}

func New(d Deps) *Dispatcher {
	return &Dispatcher{
		requests: d.Requests,
		sync:     d.Sync,
		access:   d.Access,
		dir:      d.Directory,
		gaz:      d.Gazetteer,
		logger:   d.Logger.Named("staff"),
	}
}

// Handle consumes one staff chat event.
func (d *Dispatcher) Handle(_ context.Context, ev chat.Event) []chat.Effect {
	switch ev.Kind {
	case chat.EventCommand:
		return d.command(ev)
	case chat.EventCallback:
		return d.callback(ev)
	case chat.EventMemberJoined:
		return d.memberJoined(ev)
	case chat.EventMemberLeft:
		if section, ok := d.dir.SectionOfChat(ev.ChatID); ok && d.access.Leave(section, ev.UserID) {
			d.logger.Info("staff member left", zap.String("section", section), zap.Int64("user_id", ev.UserID))
		}
		return nil
	default:
		return nil
	}
}

func (d *Dispatcher) command(ev chat.Event) []chat.Effect {
	switch ev.Command {
	case cmdRequests:
		if _, ok := d.dir.SectionOfChat(ev.ChatID); !ok {
			return []chat.Effect{chat.Send(ev.ChatID, msgNotSection)}
		}
		return []chat.Effect{chat.Send(ev.ChatID, "Оберіть тип заявок для перегляду:").WithButtons(format.FilterButtons()...)}
	case cmdAssign:
		return d.assign(ev)
	case cmdUnassign:
		return d.unassign(ev)
	case cmdDisable, cmdEnable:
		return d.toggle(ev, ev.Command == cmdEnable)
	case cmdReload:
		return d.reload(ev)
	}
	return nil
}

func (d *Dispatcher) assign(ev chat.Event) []chat.Effect {
	section, ok := d.dir.SectionOfChat(ev.ChatID)
	if !ok {
		return []chat.Effect{chat.Send(ev.ChatID, msgOnlySection)}
	}
	if !d.access.IsAdmin(ev.UserID) {
		return []chat.Effect{chat.Send(ev.ChatID, "⛔️ Тільки адміністратор може призначати.")}
	}

	if ev.ReplyToUser != 0 {
		if err := d.access.SetRepresentative(section, ev.ReplyToUser); err != nil {
			return []chat.Effect{chat.Send(ev.ChatID, "❌ Користувач не авторизований у цьому районі.")}
		}
		return []chat.Effect{chat.Send(ev.ChatID, msgAssigned)}
	}

	members := d.access.Members(section)
	if len(members) == 0 {
		return []chat.Effect{chat.Send(ev.ChatID, msgNoMembers)}
	}
	rows := make([][]chat.Button, 0, len(members))
	for _, uid := range members {
		rows = append(rows, []chat.Button{{
			Text: fmt.Sprintf("👤 ID %d", uid),
			Data: fmt.Sprintf("%s%s:%d", prefixAssign, section, uid),
		}})
	}
	return []chat.Effect{chat.Send(ev.ChatID, "Оберіть представника:").WithButtons(rows...)}
}

func (d *Dispatcher) unassign(ev chat.Event) []chat.Effect {
	section, ok := d.dir.SectionOfChat(ev.ChatID)
	if !ok {
		return []chat.Effect{chat.Send(ev.ChatID, msgOnlySection)}
	}
	if !d.access.IsAdmin(ev.UserID) {
		return []chat.Effect{chat.Send(ev.ChatID, "⛔️ Тільки адміністратор може скасувати.")}
	}
	rep := d.access.Representative(section)
	if rep == 0 {
		return []chat.Effect{chat.Send(ev.ChatID, msgNoRep)}
	}
	return []chat.Effect{
		chat.Send(ev.ChatID, "Скасувати представника:").WithButtons([]chat.Button{{
			Text: fmt.Sprintf("🗑️ ID %d", rep),
			Data: fmt.Sprintf("%s%s:%d", prefixUnassign, section, rep),
		}}),
	}
}

func (d *Dispatcher) toggle(ev chat.Event, active bool) []chat.Effect {
	if !d.access.IsAdmin(ev.UserID) {
		return []chat.Effect{chat.Send(ev.ChatID, msgOnlyAdmin)}
	}
	target, err := gazetteer.ParseTarget(ev.Text)
	if err != nil {
		return []chat.Effect{chat.Send(ev.ChatID, fmt.Sprintf(msgTargetFormat, ev.Command))}
	}
	n, err := d.gaz.SetActive(target, active)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Адресу не знайдено в базі.")}
	case apperr.Is(err, apperr.KindPersistence):
		return []chat.Effect{chat.Send(ev.ChatID, fmt.Sprintf("⚠️ Змінено точок: %d, але файл бази не збережено.", n))}
	case err != nil:
		d.logger.Error("gazetteer toggle failed", zap.Error(err))
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Не вдалося змінити базу адрес.")}
	}
	verb := "вимкнено"
	if active {
		verb = "увімкнено"
	}
	return []chat.Effect{chat.Send(ev.ChatID, fmt.Sprintf("✅ %s: %d точок.", verb, n))}
}

func (d *Dispatcher) reload(ev chat.Event) []chat.Effect {
	if !d.access.IsAdmin(ev.UserID) {
		return []chat.Effect{chat.Send(ev.ChatID, msgOnlyAdmin)}
	}
	if err := d.gaz.Reload(); err != nil {
		d.logger.Error("gazetteer reload failed", zap.Error(err))
		return []chat.Effect{chat.Send(ev.ChatID, "❌ Не вдалося перезавантажити базу адрес.")}
	}
	return []chat.Effect{chat.Send(ev.ChatID, fmt.Sprintf("🔄 Базу адрес оновлено: %d точок.", d.gaz.Snapshot().Len()))}
}

func (d *Dispatcher) memberJoined(ev chat.Event) []chat.Effect {
	section, ok := d.dir.SectionOfChat(ev.ChatID)
	if !ok || d.access.IsAdmin(ev.UserID) || d.access.IsAuthorized(section, ev.UserID) {
		return nil
	}
	return []chat.Effect{
		chat.Send(ev.ChatID, fmt.Sprintf("👋 Вітаю, %s!\nНатисніть кнопку для авторизації:", ev.FirstName)).
			WithButtons([]chat.Button{{Text: "🔐 Авторизація", Data: prefixAuth + section}}),
	}
}

func (d *Dispatcher) callback(ev chat.Event) []chat.Effect {
	data := ev.CallbackData
	switch {
	case strings.HasPrefix(data, prefixStatus):
		return d.status(ev)
	case strings.HasPrefix(data, prefixFilter):
		return d.filter(ev, strings.TrimPrefix(data, prefixFilter))
	case strings.HasPrefix(data, prefixAuth):
		section := strings.TrimPrefix(data, prefixAuth)
		if err := d.access.Authorize(section, ev.UserID); err != nil {
			return []chat.Effect{chat.Answer(ev.CallbackID, msgForbidden)}
		}
		d.logger.Info("staff member authorized", zap.String("section", section), zap.Int64("user_id", ev.UserID))
		return []chat.Effect{
			chat.Answer(ev.CallbackID, "✅ Ви авторизовані."),
			chat.EditText(ev.ChatID, ev.MessageID, msgAuthorized),
		}
	case strings.HasPrefix(data, prefixAssign), strings.HasPrefix(data, prefixUnassign):
		return d.representative(ev)
	}
	return nil
}

func parseSectionUser(data string) (string, int64, bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 {
		return "", 0, false
	}
	uid, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return parts[1], uid, true
}

func (d *Dispatcher) representative(ev chat.Event) []chat.Effect {
	section, uid, ok := parseSectionUser(ev.CallbackData)
	if !ok || !d.access.IsAdmin(ev.UserID) {
		return []chat.Effect{chat.Answer(ev.CallbackID, msgForbidden)}
	}

	if strings.HasPrefix(ev.CallbackData, prefixAssign) {
		if err := d.access.SetRepresentative(section, uid); err != nil {
			return []chat.Effect{chat.Answer(ev.CallbackID, "❌ Користувач не авторизований.")}
		}
		return []chat.Effect{
			chat.Answer(ev.CallbackID, "✅ Призначено."),
			chat.EditText(ev.ChatID, ev.MessageID, msgAssigned),
		}
	}

	if d.access.Representative(section) == uid {
		_ = d.access.SetRepresentative(section, 0)
	}
	return []chat.Effect{
		chat.Answer(ev.CallbackID, "✅ Скасовано."),
		chat.EditText(ev.ChatID, ev.MessageID, msgUnassigned),
	}
}

func matchesFilter(filter string, r models.Request) bool {
	switch filter {
	case format.FilterPending:
		return r.Unfinished()
	case format.FilterDone:
		return r.Status == models.StatusDone
	case format.FilterError:
		return r.Status == models.StatusError
	}
	return false
}

func (d *Dispatcher) filter(ev chat.Event, filter string) []chat.Effect {
	effects := []chat.Effect{chat.Answer(ev.CallbackID, "")}
	section, ok := d.dir.SectionOfChat(ev.ChatID)
	if !ok {
		return append(effects, chat.Send(ev.ChatID, msgNotSection))
	}

	var matched []models.Request
	for _, r := range d.requests.List() {
		if d.dir.SectionOf(r.District) == section && matchesFilter(filter, r) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return append(effects, chat.Send(ev.ChatID, msgEmptyFilter))
	}
	return append(effects, chat.SendHTML(ev.ChatID, format.FilteredList(filter, matched)))
}

func (d *Dispatcher) status(ev chat.Event) []chat.Effect {
	action, id, ok := format.ParseStatusData(ev.CallbackData)
	if !ok {
		return []chat.Effect{chat.Answer(ev.CallbackID, "")}
	}
	actor := statussync.Actor{Name: ev.FirstName, UserID: ev.UserID, FromButton: true}

	var (
		effects []chat.Effect
		err     error
	)
	if action == format.ActionDone {
		effects, err = d.sync.Complete(id, actor)
	} else {
		effects, err = d.sync.MarkNotWorking(id, actor)
	}

	switch {
	case apperr.Is(err, apperr.KindForbidden):
		return []chat.Effect{chat.Answer(ev.CallbackID, msgForbidden)}
	case err != nil:
		d.logger.Info("status button ignored",
			logging.RequestID(id),
			zap.String("action", action),
			zap.Stringer("kind", apperr.GetKind(err)),
		)
		return []chat.Effect{chat.Answer(ev.CallbackID, "")}
	}
	return append(effects, chat.Answer(ev.CallbackID, ""))
}
