package checkin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/format"
	"github.com/liftcare/field-bot/internal/gazetteer"
	"github.com/liftcare/field-bot/internal/models"
	"github.com/liftcare/field-bot/internal/schedule"
	"github.com/liftcare/field-bot/internal/sessions"
	"github.com/liftcare/field-bot/internal/store"
)

const (
	techChat int64 = 77
	baseLat        = 46.9750
	baseLon        = 31.9940
	// about five meters of latitude
	fiveMeters = 0.000045
)

type fakePhotos struct{ err error }

func (f fakePhotos) FetchPhoto(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("jpeg"), nil
}

type fakeOCR struct {
	date  time.Time
	found bool
	err   error
}

func (f *fakeOCR) RecognizeDate(context.Context, []byte) (time.Time, bool, error) {
	return f.date, f.found, f.err
}

type harness struct {
	engine   *Engine
	sessions *sessions.Store[Session]
	logs     *store.Logs
	ocr      *fakeOCR
	photos   *fakePhotos
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newHarness(t *testing.T, entries ...models.ScheduleEntry) *harness {
	t.Helper()
	doc := gazetteer.Document{
		"Central": {
			"Лазурна": {
				"32": {
					"1": {Lat: baseLat + 0.001, Lon: baseLon, Radius: 10, Active: true},
					"2": {Lat: baseLat + 0.0005, Lon: baseLon, Radius: 10, Active: true},
					"3": {Lat: baseLat, Lon: baseLon, Radius: 10, Active: true},
				},
			},
		},
	}
	h := &harness{
		sessions: sessions.New[Session](time.Hour),
		logs:     store.NewLogs(nil, nil, zap.NewNop()),
		ocr:      &fakeOCR{},
		photos:   &fakePhotos{},
	}
	h.engine = New(Deps{
		Sessions:   h.sessions,
		Gazetteer:  gazetteer.NewStatic(gazetteer.Build(doc, nil)),
		Schedule:   schedule.NewBook(entries),
		Logs:       h.logs,
		Photos:     h.photos,
		Recognizer: h.ocr,
		Now:        func() time.Time { return date(2025, 3, 11).Add(9 * time.Hour) },
		Logger:     zap.NewNop(),
	})
	return h
}

func (h *harness) send(ev chat.Event) []chat.Effect {
	ev.ChatID = techChat
	ev.IsPrivate = true
	if ev.FullName == "" {
		ev.FullName = "Петро Механік"
	}
	return h.engine.Handle(context.Background(), ev)
}

func (h *harness) step(t *testing.T) Step {
	t.Helper()
	s, ok := h.sessions.Get(techChat)
	require.True(t, ok)
	return s.Step
}

func (h *harness) toPhoto(t *testing.T) {
	t.Helper()
	h.send(chat.Event{Kind: chat.EventLocation, Lat: baseLat + fiveMeters, Lon: baseLon})
	h.send(chat.Event{Kind: chat.EventText, Text: "3"})
	require.Equal(t, StepWaitPhoto, h.step(t))
}

func TestCheckinEndToEnd(t *testing.T) {
	h := newHarness(t, models.ScheduleEntry{Key: "вул. Лазурна 32 (під. 1-3)", Date: date(2025, 3, 14)})
	h.ocr.date, h.ocr.found = date(2025, 3, 11), true

	h.send(chat.Event{Kind: chat.EventCommand, Command: "start"})
	assert.Equal(t, StepWaitLocation, h.step(t))

	effects := h.send(chat.Event{Kind: chat.EventLocation, Lat: baseLat + fiveMeters, Lon: baseLon})
	require.Len(t, effects, 1)
	assert.Contains(t, effects[0].Text, "Під'їзд поблизу: <b>3</b>")
	require.NotNil(t, effects[0].Keyboard)
	assert.Equal(t, [][]string{{"1", "2", "3"}, {format.BtnOtherEntrance}}, effects[0].Keyboard.Rows)
	assert.Equal(t, StepWaitEntrance, h.step(t))

	h.send(chat.Event{Kind: chat.EventText, Text: "3"})
	assert.Equal(t, StepWaitPhoto, h.step(t))

	effects = h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "file-1"})
	require.Len(t, effects, 2)
	assert.Contains(t, effects[0].Text, "11.03.2025")

	logs := h.logs.List()
	require.Len(t, logs, 1)
	l := logs[0]
	assert.True(t, l.Verified)
	assert.Equal(t, "Central", l.District)
	assert.Equal(t, "Лазурна 32", l.Address)
	assert.Equal(t, "3", l.Entrance)
	assert.Equal(t, "Петро Механік", l.MechanicName)
	assert.Equal(t, "file-1", l.PhotoFileID)
	assert.Equal(t, date(2025, 3, 11), l.Date)

	assert.Equal(t, StepWaitLocation, h.step(t), "ready for the next entrance")
}

func TestScheduleRejectionKeepsPhotoStep(t *testing.T) {
	cases := []struct {
		name    string
		entries []models.ScheduleEntry
		want    string
	}{
		{"no schedule", nil, "❌ В графіку немає записів для цього будинку."},
		{"no dates", []models.ScheduleEntry{{Key: "Лазурна 32"}}, "❌ В графіку немає дат для цього будинку."},
		{"out of window", []models.ScheduleEntry{{Key: "Лазурна 32", Date: date(2025, 3, 20)}}, "❌ Дата ТО не відповідає графіку (±4 дні)."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.entries...)
			h.ocr.date, h.ocr.found = date(2025, 3, 11), true
			h.toPhoto(t)

			effects := h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "f"})
			require.Len(t, effects, 1)
			assert.Equal(t, tc.want, effects[0].Text)
			assert.Equal(t, StepWaitPhoto, h.step(t))
			assert.Empty(t, h.logs.List())
		})
	}
}

func TestUnreadablePhoto(t *testing.T) {
	h := newHarness(t, models.ScheduleEntry{Key: "Лазурна 32", Date: date(2025, 3, 14)})
	h.toPhoto(t)

	effects := h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "f"})
	assert.Contains(t, effects[0].Text, "Не вдалося зчитати дату")

	h.ocr.err = errors.New("ocr down")
	effects = h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "f"})
	assert.Contains(t, effects[0].Text, "Не вдалося зчитати дату")

	h.photos.err = errors.New("download failed")
	effects = h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "f"})
	assert.Contains(t, effects[0].Text, "Не вдалося отримати фото")

	assert.Equal(t, StepWaitPhoto, h.step(t))
	assert.Empty(t, h.logs.List())
}

func TestEntranceSelection(t *testing.T) {
	h := newHarness(t)
	h.send(chat.Event{Kind: chat.EventLocation, Lat: baseLat, Lon: baseLon})

	effects := h.send(chat.Event{Kind: chat.EventText, Text: "перший"})
	assert.Contains(t, effects[0].Text, "оберіть під'їзд з кнопок")
	assert.Equal(t, StepWaitEntrance, h.step(t))

	h.send(chat.Event{Kind: chat.EventText, Text: format.BtnOtherEntrance})
	assert.Equal(t, StepEnterEntranceManual, h.step(t))

	effects = h.send(chat.Event{Kind: chat.EventText, Text: "abc"})
	assert.Equal(t, "Введіть номер під'їзду цифрою, наприклад 3.", effects[0].Text)
	assert.Equal(t, StepEnterEntranceManual, h.step(t))

	h.send(chat.Event{Kind: chat.EventText, Text: "7"})
	s, _ := h.sessions.Get(techChat)
	assert.Equal(t, StepWaitPhoto, s.Step)
	assert.Equal(t, "7", s.Entrance)
}

func TestOutOfOrderInput(t *testing.T) {
	h := newHarness(t)

	effects := h.send(chat.Event{Kind: chat.EventPhoto, PhotoID: "f"})
	assert.Contains(t, effects[0].Text, "Спочатку надішліть геолокацію")

	effects = h.send(chat.Event{Kind: chat.EventText, Text: "привіт"})
	assert.Equal(t, format.BtnSendLocation, effects[0].Keyboard.RequestLocation)
	assert.Equal(t, StepWaitLocation, h.step(t))

	effects = h.send(chat.Event{Kind: chat.EventLocation, Lat: 50, Lon: 30})
	assert.Contains(t, effects[0].Text, "Локацію не знайдено")
	assert.Equal(t, StepWaitLocation, h.step(t))

	h.toPhoto(t)
	effects = h.send(chat.Event{Kind: chat.EventText, Text: "ось"})
	assert.Equal(t, "Будь ласка, надішліть фото журналу ТО.", effects[0].Text)
}

func TestIgnoresGroupChats(t *testing.T) {
	h := newHarness(t)
	effects := h.engine.Handle(context.Background(), chat.Event{Kind: chat.EventCommand, Command: "start", ChatID: -100})
	assert.Empty(t, effects)
}
