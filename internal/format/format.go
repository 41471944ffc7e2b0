// Package format renders the chat texts and button layouts shared by the
// intake, status and digest flows.
package format

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/models"
)

// Reply keyboard labels and callback data the engines match on.
const (
	BtnSendLocation  = "📍 Надіслати геолокацію"
	BtnManualAddress = "✏️ Ввести адресу вручну"
	BtnOtherEntrance = "Інший"

	CallbackStart = "start"

	ActionDone       = "done"
	ActionNotWorking = "not_working"

	FilterPending = "pending"
	FilterDone    = "done"
	FilterError   = "error"
)

// StatusData encodes a staff status button.
func StatusData(action string, requestID int64) string {
	return fmt.Sprintf("status:%s:%d", action, requestID)
}

// ParseStatusData decodes "status:<action>:<id>".
func ParseStatusData(data string) (action string, requestID int64, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "status" {
		return "", 0, false
	}
	if parts[1] != ActionDone && parts[1] != ActionNotWorking {
		return "", 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return parts[1], id, true
}

// StaffButtons are the actions attached to a fresh staff message.
func StaffButtons(requestID int64) [][]chat.Button {
	return [][]chat.Button{{
		{Text: "✅ Виконано", Data: StatusData(ActionDone, requestID)},
		{Text: "🚫 Не працює", Data: StatusData(ActionNotWorking, requestID)},
	}}
}

// DoneOnlyButtons replace StaffButtons once a lift is reported not working.
func DoneOnlyButtons(requestID int64) [][]chat.Button {
	return [][]chat.Button{{{Text: "✅ Виконано", Data: StatusData(ActionDone, requestID)}}}
}

func NewRequestButton() [][]chat.Button {
	return [][]chat.Button{{{Text: "📨 Створити нову заявку", Data: CallbackStart}}}
}

func FilterButtons() [][]chat.Button {
	return [][]chat.Button{{
		{Text: "🕐 Очікують", Data: "filter:" + FilterPending},
		{Text: "✅ Виконані", Data: "filter:" + FilterDone},
		{Text: "❌ Не працює", Data: "filter:" + FilterError},
	}}
}

// RequestCard is the accepted-request summary sent to the resident and the
// staff chat.
func RequestCard(r models.Request) string {
	var sb strings.Builder

	sb.WriteString("✅ <b>Заявку прийнято!</b>\n\n")
	sb.WriteString("📋 <b>Дані заявки:</b>\n")
	sb.WriteString(fmt.Sprintf("👤 Ім'я: <b>%s</b>\n", html.EscapeString(r.Name)))
	sb.WriteString(fmt.Sprintf("📍 Адреса: <b>%s п.%s</b>\n", html.EscapeString(r.Address), html.EscapeString(r.Entrance)))
	sb.WriteString(fmt.Sprintf("🏙️ Район: <b>%s</b>\n", html.EscapeString(r.District)))
	sb.WriteString(fmt.Sprintf("🔧 Проблема: %s\n", html.EscapeString(r.Issue)))
	sb.WriteString(fmt.Sprintf("📱 Телефон: %s", html.EscapeString(r.Phone)))

	return sb.String()
}

// PhoneList renders one "📞 <number>" line per phone.
func PhoneList(phones []string) string {
	lines := make([]string, 0, len(phones))
	for _, p := range phones {
		lines = append(lines, "📞 "+p)
	}
	return strings.Join(lines, "\n")
}

// EmergencyContacts is sent to the resident after a request is accepted.
func EmergencyContacts(phones []string) string {
	var sb strings.Builder

	sb.WriteString("🔴🚨 <b>АВАРІЙНА СЛУЖБА</b> 🚨🔴\n\n")
	for _, p := range phones {
		sb.WriteString(fmt.Sprintf("📞 <a href='tel:%s'>%s</a>\n", html.EscapeString(p), html.EscapeString(p)))
	}
	sb.WriteString("⏱️ Працюємо цілодобово!")

	return sb.String()
}

// Blocked explains a refused duplicate. pending selects the "documents being
// prepared" phase over "documents transferred".
func Blocked(pending bool, phones []string) string {
	msg := "⚠️ Необхідні документи передані управляючій компанії або ОСББ"
	if pending {
		msg = "⚠️ Необхідні документи готуються і будуть передані управляючій компанії або ОСББ"
	}
	return msg + "\n" + PhoneList(phones)
}

// NotWorking is sent to the resident when staff report the lift still down.
func NotWorking(phones []string) string {
	return "⚠️ Заявку відпрацьовано, але ліфт не працює.\n" + PhoneList(phones)
}

const Completed = "✅ Ваша заявка виконана."

// StaffLink deep-links a message in a private supergroup.
func StaffLink(chatID int64, messageID int) string {
	id := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	return fmt.Sprintf("https://t.me/c/%s/%d", id, messageID)
}

func requestLink(r models.Request) string {
	label := fmt.Sprintf("%s п.%s", html.EscapeString(r.Address), html.EscapeString(r.Entrance))
	if r.StaffMsgID == 0 {
		return label
	}
	return fmt.Sprintf("<a href='%s'>%s</a>", StaffLink(r.StaffChatID, r.StaffMsgID), label)
}

// FilterTitle names a staff list filter.
func FilterTitle(filter string) string {
	switch filter {
	case FilterPending:
		return "🕐 Очікують"
	case FilterDone:
		return "✅ Виконані"
	case FilterError:
		return "❌ Не працює"
	default:
		return "Заявки"
	}
}

// FilteredList renders a staff chat listing.
func FilteredList(filter string, requests []models.Request) string {
	lines := []string{fmt.Sprintf("<b>%s:</b>", FilterTitle(filter))}
	for _, r := range requests {
		lines = append(lines, fmt.Sprintf("📍 %s — %s", requestLink(r), html.EscapeString(r.Issue)))
	}
	return strings.Join(lines, "\n")
}

// DigestItem is one unfinished request with its 1-based list position.
type DigestItem struct {
	Position int
	Request  models.Request
}

// Digest renders the daily list of unfinished requests for one staff chat.
func Digest(items []DigestItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("#%d %s", it.Position, requestLink(it.Request)))
	}
	return "📋 <b>Невиконані заявки:</b>\n" + strings.Join(lines, " \n")
}
