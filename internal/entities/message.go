package entities

import "time"

// Event is an inbound event the core reacts to. The set is closed:
// QuestionEvent, AdminCommandEvent and TickEvent.
type Event interface {
	isEvent()
}

// QuestionEvent is a user question, optionally with an image.
type QuestionEvent struct {
	UserID      string
	ChatID      int64
	ChatKind    ChatKind
	ChatTitle   string
	MessageID   int
	DisplayName string
	Text        string
	Image       *Media
}

// IsImage reports whether the question is billed at the image rate.
func (q QuestionEvent) IsImage() bool {
	return q.Image != nil
}

type AdminCommand string

const (
	CmdStats         AdminCommand = "stats"
	CmdBroadcast     AdminCommand = "broadcast"
	CmdAIOn          AdminCommand = "ai_on"
	CmdAIOff         AdminCommand = "ai_off"
	CmdAddBalance    AdminCommand = "add_balance"
	CmdSetBalance    AdminCommand = "set_balance"
	CmdListAds       AdminCommand = "list_ads"
	CmdPauseAd       AdminCommand = "pause_ad"
	CmdResumeAd      AdminCommand = "resume_ad"
	CmdDeleteAd      AdminCommand = "delete_ad"
	CmdNewAd         AdminCommand = "new_ad"
	CmdAdBuilderStep AdminCommand = "ad_builder_step"
	CmdCancel        AdminCommand = "cancel"
)

// AdminCommandEvent is an owner command. Args are the raw arguments after
// the command; Image carries a photo reference for ad builder steps.
type AdminCommandEvent struct {
	UserID   string
	ChatID   int64
	Command  AdminCommand
	Args     []string
	Text     string
	ImageRef string
}

// TickEvent asks the scheduler to run a due cycle.
type TickEvent struct {
	At time.Time
}

func (QuestionEvent) isEvent()     {}
func (AdminCommandEvent) isEvent() {}
func (TickEvent) isEvent()         {}
