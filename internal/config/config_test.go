package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEET_URL", "https://docs.google.com/spreadsheets/d/abc123/edit")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "Đơn hàng", cfg.OrderSheet)
		assert.Equal(t, "Nguồn", cfg.SourceSheet)
		assert.Equal(t, "Bảng giá", cfg.PriceSheet)
		assert.Equal(t, 4, cfg.RenewalThresholdDays)
		assert.Equal(t, 24*time.Hour, cfg.ExpiryCheckInterval)
		assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Location().String())
	})

	t.Run("MissingSheet", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEET_URL", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GOOGLE_SHEET_URL")
	})

	t.Run("ChatLists", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEET_URL", "sheet")
		t.Setenv("TELEGRAM_OPERATOR_CHAT_ID", "-100200")
		t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "11, 22,,33")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, []int64{11, 22, 33}, cfg.TelegramAllowedChatIDs)
		chats := cfg.AllowedChats()
		assert.True(t, chats[-100200])
		assert.True(t, chats[22])
		assert.Len(t, chats, 4)
	})

	t.Run("BadInterval", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEET_URL", "sheet")
		t.Setenv("EXPIRY_CHECK_INTERVAL", "daily")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestValidateBot(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.ValidateBot())

	cfg.TelegramBotToken = "token"
	require.Error(t, cfg.ValidateBot())

	cfg.TelegramOperatorChatID = 42
	require.NoError(t, cfg.ValidateBot())
}
