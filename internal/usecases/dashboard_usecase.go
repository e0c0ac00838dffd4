package usecases

import (
	"context"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	log "github.com/sirupsen/logrus"
)

// RuntimeSettings holds owner toggles that survive restarts.
type RuntimeSettings struct {
	configRepo *repository.ConfigRepository
	aiDefault  bool
}

func NewRuntimeSettings(configRepo *repository.ConfigRepository, aiDefault bool) *RuntimeSettings {
	return &RuntimeSettings{configRepo: configRepo, aiDefault: aiDefault}
}

// AIEnabled reports whether questions are answered at all.
func (s *RuntimeSettings) AIEnabled() bool {
	return s.configRepo.GetBool(repository.KeyAIEnabled, s.aiDefault)
}

func (s *RuntimeSettings) SetAIEnabled(ctx context.Context, enabled bool) error {
	if err := s.configRepo.SetBool(ctx, repository.KeyAIEnabled, enabled); err != nil {
		return err
	}
	log.WithField("ai_enabled", enabled).Info("AI toggle changed")
	return nil
}

type Stats struct {
	TotalUsers     int   `json:"total_users"`
	TotalQuestions int64 `json:"total_questions"`
	UserChats      int   `json:"user_chats"`
	GroupChats     int   `json:"group_chats"`
	TotalChats     int   `json:"total_chats"`
	TotalAds       int   `json:"total_ads"`
	ActiveAds      int   `json:"active_ads"`
	AIEnabled      bool  `json:"ai_enabled"`
}

type DashboardUsecase struct {
	accounts *repository.AccountRepository
	chats    *repository.ChatRepository
	ads      *repository.AdRepository
	settings *RuntimeSettings
}

func NewDashboardUsecase(accounts *repository.AccountRepository, chats *repository.ChatRepository, ads *repository.AdRepository, settings *RuntimeSettings) *DashboardUsecase {
	return &DashboardUsecase{
		accounts: accounts,
		chats:    chats,
		ads:      ads,
		settings: settings,
	}
}

func (u *DashboardUsecase) GetStats() Stats {
	users, groups := u.chats.Counts()
	stats := Stats{
		TotalUsers:     u.accounts.Count(),
		TotalQuestions: u.accounts.TotalQuestions(),
		UserChats:      users,
		GroupChats:     groups,
		TotalChats:     users + groups,
		AIEnabled:      u.settings.AIEnabled(),
	}
	for _, ad := range u.ads.List() {
		stats.TotalAds++
		if ad.Enabled {
			stats.ActiveAds++
		}
	}
	return stats
}
