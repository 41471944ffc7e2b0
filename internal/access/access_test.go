package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liftcare/field-bot/internal/apperr"
	"github.com/liftcare/field-bot/internal/config"
	"github.com/liftcare/field-bot/internal/db"
)

func testDirectory() *config.Directory {
	return &config.Directory{
		Districts: []config.District{
			{Name: "Central", Section: "north", Phones: []string{"0671111111"}},
		},
		StaffChats: map[string]int64{"north": -100200, "south": -100300},
		Admins:     []int64{1},
	}
}

func TestButtonGate(t *testing.T) {
	r, err := Load(testDirectory(), nil, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, r.CanPressStatus("north", 50), "enabled by default")

	require.NoError(t, r.SetButtonsEnabled("north", false))
	assert.False(t, r.CanPressStatus("north", 50))
	assert.True(t, r.CanPressStatus("north", 1), "admin")

	require.NoError(t, r.Authorize("north", 50))
	require.NoError(t, r.SetRepresentative("north", 50))
	assert.True(t, r.CanPressStatus("north", 50), "representative")
	assert.False(t, r.CanPressStatus("north", 51))

	assert.Equal(t, map[string]bool{"north": false, "south": true}, r.Rights())

	err = r.SetButtonsEnabled("west", true)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestMembership(t *testing.T) {
	r, err := Load(testDirectory(), nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Authorize("north", 20))
	require.NoError(t, r.Authorize("north", 10))
	assert.Equal(t, []int64{10, 20}, r.Members("north"))

	err = r.SetRepresentative("north", 30)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, r.SetRepresentative("north", 20))
	assert.True(t, r.Leave("north", 20))
	assert.Zero(t, r.Representative("north"), "leaving clears representative")
	assert.False(t, r.IsAuthorized("north", 20))
	assert.False(t, r.Leave("north", 20))
}

func TestPersistsThroughDatabase(t *testing.T) {
	store, err := db.New(":memory:", time.UTC)
	require.NoError(t, err)
	defer store.Close()

	r, err := Load(testDirectory(), store, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.Authorize("north", 10))
	require.NoError(t, r.SetRepresentative("north", 10))
	require.NoError(t, r.SetButtonsEnabled("south", false))

	reloaded, err := Load(testDirectory(), store, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, reloaded.IsAuthorized("north", 10))
	assert.Equal(t, int64(10), reloaded.Representative("north"))
	assert.False(t, reloaded.ButtonsEnabled("south"))
}
