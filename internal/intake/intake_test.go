package intake

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/geocode"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/sessions"
	"github.com/liftcare/field-bot/internal/store"
)

const (
	userChat  int64 = 501
	staffChat int64 = -1001234567890
	pointLat        = 46.9750
	pointLon        = 31.9940
)

type fakeGeocoder struct {
	addr  geocode.Address
	err   error
	calls int
}

func (g *fakeGeocoder) Reverse(context.Context, float64, float64) (geocode.Address, error) {
	g.calls++
	return g.addr, g.err
}

type harness struct {
	engine   *Engine
	requests *store.Requests
	sessions *sessions.Store[Session]
	geocoder *fakeGeocoder
	now      time.Time
}

func newHarness(t *testing.T, existing ...models.Request) *harness {
	t.Helper()
	doc := gazetteer.Document{
		"Central": {
			"Лазурна": {
				"32": {
					"1": {Lat: pointLat, Lon: pointLon, Radius: 10, Active: true},
					"2": {Lat: pointLat + 0.0002, Lon: pointLon, Radius: 10, Active: true},
					"3": {Lat: pointLat + 0.0004, Lon: pointLon, Radius: 10, Active: true},
					"4": {Lat: pointLat + 0.0006, Lon: pointLon, Radius: 10, Active: false},
				},
			},
		},
	}
	dir := &config.Directory{
		Districts:  []config.District{{Name: "Central", Section: "north", Phones: []string{"0671111111", "0672222222"}}},
		StaffChats: map[string]int64{"north": staffChat},
	}
	h := &harness{
		requests: store.NewRequests(existing, nil, zap.NewNop()),
		sessions: sessions.New[Session](time.Hour),
		geocoder: &fakeGeocoder{err: apperr.New(apperr.KindGeoTimeout, "timeout")},
		now:      time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC),
	}
	h.engine = New(Deps{
		Sessions:  h.sessions,
		Gazetteer: gazetteer.NewStatic(gazetteer.Build(doc, nil)),
		Requests:  h.requests,
		Directory: dir,
		Geocoder:  h.geocoder,
		Now:       func() time.Time { return h.now },
		Logger:    zap.NewNop(),
	})
	return h
}

func (h *harness) text(t *testing.T, text string) []chat.Effect {
	t.Helper()
	return h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventText, ChatID: userChat, UserID: userChat, IsPrivate: true, Text: text})
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	effects := h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventCommand, Command: "start", ChatID: userChat, IsPrivate: true})
	require.Len(t, effects, 1)
}

func (h *harness) step(t *testing.T) Step {
	t.Helper()
	s, ok := h.sessions.Get(userChat)
	require.True(t, ok, "session expected")
	return s.Step
}

func (h *harness) toEntrance(t *testing.T) {
	t.Helper()
	h.start(t)
	h.text(t, "Iвана")
	h.text(t, format.BtnManualAddress)
	h.text(t, "Central")
	h.text(t, "Lazurna 32")
	require.Equal(t, StepEnterEntrance, h.step(t))
}

type recordingTransport struct {
	sent   []chat.Effect
	nextID int
}

func (r *recordingTransport) Send(_ context.Context, e chat.Effect) (int, error) {
	r.nextID++
	r.sent = append(r.sent, e)
	return 900 + r.nextID, nil
}
func (r *recordingTransport) EditMarkup(context.Context, chat.Effect) error     { return nil }
func (r *recordingTransport) EditText(context.Context, chat.Effect) error       { return nil }
func (r *recordingTransport) AnswerCallback(context.Context, chat.Effect) error { return nil }

func TestManualEntryEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	assert.Equal(t, StepName, h.step(t))

	h.text(t, "  Iвана ")
	assert.Equal(t, StepChooseInput, h.step(t))

	effects := h.text(t, format.BtnManualAddress)
	require.Len(t, effects, 1)
	require.NotNil(t, effects[0].Keyboard)
	assert.Equal(t, [][]string{{"Central"}}, effects[0].Keyboard.Rows)

	h.text(t, "Central")
	assert.Equal(t, StepEnterAddress, h.step(t))

	h.text(t, "Lazurna 32")
	assert.Equal(t, StepEnterEntrance, h.step(t))

	h.text(t, "3")
	assert.Equal(t, StepEnterIssue, h.step(t))

	h.text(t, "stuck")
	assert.Equal(t, StepEnterPhone, h.step(t))

	effects = h.text(t, "0671234567")
	_, ok := h.sessions.Get(userChat)
	assert.False(t, ok, "session is deleted on submit")

	all := h.requests.List()
	require.Len(t, all, 1)
	r := all[0]
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, "+380671234567", r.Phone)
	assert.Equal(t, "Iвана", r.Name)
	assert.Equal(t, "Central", r.District)
	assert.Equal(t, "Лазурна, 32", r.Address)
	assert.Equal(t, "3", r.Entrance)
	assert.Equal(t, "stuck", r.Issue)
	assert.Equal(t, userChat, r.UserID)
	assert.True(t, h.now.Equal(r.CreatedAt))

	require.Len(t, effects, 3)
	assert.Equal(t, userChat, effects[0].ChatID)
	assert.Equal(t, format.NewRequestButton(), effects[0].Buttons)
	assert.Equal(t, staffChat, effects[1].ChatID)
	assert.Equal(t, format.StaffButtons(r.ID), effects[1].Buttons)
	assert.Equal(t, r.ID, effects[1].TrackRequest)
	assert.Contains(t, effects[2].Text, "АВАРІЙНА СЛУЖБА")

	tr := &recordingTransport{}
	chat.NewExecutor(tr, h.requests, zap.NewNop()).Run(context.Background(), effects)
	r, _ = h.requests.Get(r.ID)
	assert.Equal(t, staffChat, r.StaffChatID)
	assert.Equal(t, 902, r.StaffMsgID, "staff message reference recorded")
}

func TestInvalidInputKeepsState(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.text(t, "Іван")

	effects := h.text(t, "щось")
	assert.Equal(t, "Будь ласка, оберіть опцію з клавіатури.", effects[0].Text)
	assert.Equal(t, StepChooseInput, h.step(t))

	h.text(t, format.BtnManualAddress)
	effects = h.text(t, "Атлантида")
	assert.Equal(t, "❌ Невірний район, спробуйте ще.", effects[0].Text)
	assert.Equal(t, StepChooseDistrict, h.step(t))

	h.text(t, "Central")
	effects = h.text(t, "Лазурна")
	assert.Equal(t, "❌ Формат: назва вулиці + номер будинку", effects[0].Text)
	effects = h.text(t, "Зелена 1")
	assert.True(t, strings.HasPrefix(effects[0].Text, "❌ Адреса не знайдена"))
	assert.Equal(t, StepEnterAddress, h.step(t))

	h.text(t, "вул. Лазурна 32")
	for _, bad := range []string{"123", "a", "-1", ""} {
		effects = h.text(t, bad)
		assert.Equal(t, "❌ Введіть лише цифри (не більше 2):", effects[0].Text, "input %q", bad)
	}
	effects = h.text(t, "9")
	assert.Contains(t, effects[0].Text, "немає в базі")
	effects = h.text(t, "4")
	assert.Contains(t, effects[0].Text, "не обслуговується")
	assert.Equal(t, StepEnterEntrance, h.step(t))

	s, _ := h.sessions.Get(userChat)
	assert.Equal(t, "Іван", s.Name, "partial data survives re-prompts")

	h.text(t, "1")
	h.text(t, "stuck")
	effects = h.text(t, "067123")
	assert.Equal(t, "❌ Має бути 10 цифр.", effects[0].Text)
	assert.Equal(t, StepEnterPhone, h.step(t))
	assert.Empty(t, h.requests.List())
}

func TestDuplicateIsBlocked(t *testing.T) {
	existing := models.Request{
		ID: 1, Address: "Лазурна, 32", Entrance: "3", Status: models.StatusError,
		CreatedAt: time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC),
	}
	h := newHarness(t, existing)
	h.toEntrance(t)

	effects := h.text(t, "3")
	require.Len(t, effects, 1)
	assert.Equal(t, format.Blocked(true, []string{"0671111111", "0672222222"}), effects[0].Text)
	assert.Equal(t, format.NewRequestButton(), effects[0].Buttons)

	_, ok := h.sessions.Get(userChat)
	assert.False(t, ok, "session is discarded")
	assert.Len(t, h.requests.List(), 1, "no request created")
}

func TestDuplicateAfterWindowIsAllowed(t *testing.T) {
	existing := models.Request{
		ID: 1, Address: "Лазурна, 32", Entrance: "3", Status: models.StatusError,
		CreatedAt: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	h := newHarness(t, existing)
	h.toEntrance(t)
	h.text(t, "3")
	assert.Equal(t, StepEnterIssue, h.step(t))
}

func TestLocationMatchesGazetteer(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.text(t, "Іван")
	h.text(t, format.BtnSendLocation)
	assert.Equal(t, StepAwaitLocation, h.step(t))

	effects := h.engine.Handle(context.Background(), chat.Event{
		Kind: chat.EventLocation, ChatID: userChat, IsPrivate: true, Lat: pointLat + 0.00003, Lon: pointLon,
	})
	require.Len(t, effects, 2)
	assert.Contains(t, effects[0].Text, "Лазурна, 32")
	assert.Equal(t, StepEnterEntrance, h.step(t))
	assert.Zero(t, h.geocoder.calls)
}

func TestLocationFallsBackToReverseGeocoding(t *testing.T) {
	h := newHarness(t)
	h.geocoder.err = nil
	h.geocoder.addr = geocode.Address{Road: "вулиця Лазурна", HouseNumber: "32"}
	h.start(t)
	h.text(t, "Іван")

	h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventLocation, ChatID: userChat, IsPrivate: true, Lat: 50, Lon: 30})
	assert.Equal(t, StepEnterEntrance, h.step(t))
	s, _ := h.sessions.Get(userChat)
	assert.Equal(t, "Лазурна, 32", s.Address)
	assert.Equal(t, 1, h.geocoder.calls)
}

func TestLocationTimeoutFallsBackToManual(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	h.text(t, "Іван")

	effects := h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventLocation, ChatID: userChat, IsPrivate: true, Lat: 50, Lon: 30})
	require.Len(t, effects, 2)
	assert.Contains(t, effects[0].Text, "введіть її вручну")
	assert.Equal(t, "Оберіть район:", effects[1].Text)
	assert.Equal(t, StepChooseDistrict, h.step(t))
}

func TestWithoutSessionAndOutsidePrivateChats(t *testing.T) {
	h := newHarness(t)
	effects := h.text(t, "hello")
	assert.Equal(t, "Натисніть /start щоб почати.", effects[0].Text)

	effects = h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventCommand, Command: "start", ChatID: staffChat})
	assert.Empty(t, effects)
}

func TestStartButtonRestarts(t *testing.T) {
	h := newHarness(t)
	h.toEntrance(t)

	effects := h.engine.Handle(context.Background(), chat.Event{
		Kind: chat.EventCallback, ChatID: userChat, IsPrivate: true, CallbackID: "cb1", CallbackData: format.CallbackStart,
	})
	require.Len(t, effects, 2)
	assert.Equal(t, chat.EffectAnswerCallback, effects[0].Kind)
	assert.Equal(t, StepName, h.step(t))
}
