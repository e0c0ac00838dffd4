package usecases

import (
	"fmt"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

// Callback data understood by the Telegram router.
const (
	CallbackStats           = "settings_stats"
	CallbackAds             = "settings_ads"
	CallbackAIOn            = "settings_ai_on"
	CallbackAIOff           = "settings_ai_off"
	CallbackBroadcastUsers  = "settings_broadcast_users"
	CallbackBroadcastGroups = "settings_broadcast_groups"
	CallbackBroadcastAll    = "settings_broadcast_all"
	CallbackClose           = "settings_close"

	CallbackAdPause  = "ad_pause"
	CallbackAdResume = "ad_resume"
	CallbackAdDelete = "ad_delete"
)

// SettingsKeyboard is the owner's /settings menu.
func SettingsKeyboard(aiEnabled bool) [][]entities.Button {
	toggle := entities.Button{Text: "⛔ Turn AI off", Data: CallbackAIOff}
	if !aiEnabled {
		toggle = entities.Button{Text: "✅ Turn AI on", Data: CallbackAIOn}
	}
	return [][]entities.Button{
		{{Text: "📊 View Statistics", Data: CallbackStats}, {Text: "📣 Scheduled Ads", Data: CallbackAds}},
		{toggle},
		{{Text: "📢 Broadcast to Users", Data: CallbackBroadcastUsers}},
		{{Text: "📢 Broadcast to Groups", Data: CallbackBroadcastGroups}},
		{{Text: "📢 Broadcast to All", Data: CallbackBroadcastAll}},
		{{Text: "❌ Close", Data: CallbackClose}},
	}
}

// AdKeyboard has one row of controls per ad.
func AdKeyboard(ads []entities.AdSummary) [][]entities.Button {
	rows := make([][]entities.Button, 0, len(ads))
	for _, ad := range ads {
		toggle := entities.Button{Text: fmt.Sprintf("⏸️ #%d", ad.ID), Data: fmt.Sprintf("%s:%d", CallbackAdPause, ad.ID)}
		if !ad.Enabled {
			toggle = entities.Button{Text: fmt.Sprintf("▶️ #%d", ad.ID), Data: fmt.Sprintf("%s:%d", CallbackAdResume, ad.ID)}
		}
		rows = append(rows, []entities.Button{
			toggle,
			{Text: fmt.Sprintf("🗑️ #%d", ad.ID), Data: fmt.Sprintf("%s:%d", CallbackAdDelete, ad.ID)},
		})
	}
	return rows
}
