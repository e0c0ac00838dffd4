package entities

// UserAccount is the per-user quota record kept by the admission ledger.
type UserAccount struct {
	ID             string `json:"id"`              // Telegram user ID as string
	Balance        int64  `json:"balance"`         // Credits left, never negative
	DailyUsage     int64  `json:"daily_usage"`     // Credits spent on LastResetDate
	LastResetDate  string `json:"last_reset_date"` // YYYY-MM-DD in the ledger's location
	TotalQuestions int64  `json:"total_questions"`
	DisplayName    string `json:"display_name,omitempty"`
}

// QuotaStatus is what /status and the admin API show for an account.
type QuotaStatus struct {
	Balance        int64 `json:"balance"`
	DailyCap       int64 `json:"daily_cap"`
	DailyUsed      int64 `json:"daily_used"`
	DailyRemaining int64 `json:"daily_remaining"`
	TotalQuestions int64 `json:"total_questions"`
}
