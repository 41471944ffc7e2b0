package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "REQUESTS_BOT_TOKEN", "MAINTENANCE_BOT_TOKEN", "DB_PATH", "TIMEZONE",
		"CORS_ORIGINS", "OCR_URL", "SESSION_TTL", "DIGEST_AT", "SEND_RATE", "GEOCODER_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REQUESTS_BOT_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "Europe/Kyiv", cfg.Location.String())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 6*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, "08:30", cfg.DigestAt)
	assert.Equal(t, 25.0, cfg.SendRate)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAINTENANCE_BOT_TOKEN", "token")
	t.Setenv("OCR_URL", "http://ocr:8000/ocr")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("SEND_RATE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 6*time.Hour, cfg.SessionTTL, "bad durations fall back")
	assert.Equal(t, 5.0, cfg.SendRate)
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.ErrorContains(t, err, "REQUESTS_BOT_TOKEN")

	cfg, err := LoadOffline()
	require.NoError(t, err, "offline commands need no tokens")
	assert.Equal(t, "./data/fieldbot.db", cfg.DBPath)

	t.Setenv("MAINTENANCE_BOT_TOKEN", "token")
	_, err = Load()
	assert.ErrorContains(t, err, "OCR_URL")

	t.Setenv("OCR_URL", "http://ocr")
	t.Setenv("DIGEST_AT", "25:99")
	_, err = Load()
	assert.ErrorContains(t, err, "DIGEST_AT")

	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = LoadOffline()
	assert.ErrorContains(t, err, "TIMEZONE")
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock(" 08:05 ")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 5, m)
}

const directoryYAML = `
districts:
  - name: Central
    section: north
    phones: ["0671111111", "0501111111"]
  - name: Port
    section: south
    phones: ["0672222222"]
staff_chats:
  north: -1001111
  south: -1002222
admins: [1, 2]
`

func TestLoadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o600))

	dir, err := LoadDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"0671111111", "0501111111"}, dir.Phones("Central"))
	assert.Equal(t, "south", dir.SectionOf("Port"))

	chatID, ok := dir.StaffChat("Port")
	require.True(t, ok)
	assert.Equal(t, int64(-1002222), chatID)

	section, ok := dir.SectionOfChat(-1001111)
	require.True(t, ok)
	assert.Equal(t, "north", section)

	assert.True(t, dir.IsAdmin(2))
	assert.False(t, dir.IsAdmin(3))
	_, ok = dir.StaffChat("Nowhere")
	assert.False(t, ok)
}

func TestDirectoryValidate(t *testing.T) {
	dir := &Directory{
		Districts:  []District{{Name: "Central", Section: "east"}},
		StaffChats: map[string]int64{"north": -1},
	}
	assert.ErrorContains(t, dir.Validate(), `section "east" has no staff chat`)

	dir.Districts = append(dir.Districts, District{Name: "Central", Section: "north"})
	dir.Districts[0].Section = "north"
	assert.ErrorContains(t, dir.Validate(), "duplicate district")

	assert.Error(t, (&Directory{}).Validate())
}
