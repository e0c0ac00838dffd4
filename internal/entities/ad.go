package entities

import (
	"sort"
	"time"
)

type AdKind string

const (
	AdKindText  AdKind = "text"
	AdKindImage AdKind = "image"
)

// Content is an outbound message body. ImageRef set means a photo with
// Caption, otherwise Text is sent as a plain message.
type Content struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"image_ref,omitempty"` // Telegram file_id
	Caption  string `json:"caption,omitempty"`
	Markdown bool   `json:"markdown,omitempty"` // render as MarkdownV2 with LaTeX, plain text on failure

	Buttons [][]Button `json:"-"` // inline keyboard rows, not persisted
}

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// IsImage reports whether the content is a photo.
func (c Content) IsImage() bool {
	return c.ImageRef != ""
}

// ScheduledAd is a recurring advertisement posted by the scheduler.
type ScheduledAd struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Kind             AdKind        `json:"kind"`
	Content          Content       `json:"content"`
	IntervalHours    int           `json:"interval_hours"`
	TargetChats      []int64       `json:"target_chats"`
	Enabled          bool          `json:"enabled"`
	CreatedAt        time.Time     `json:"created_at"`
	LastPostedAt     *time.Time    `json:"last_posted_at"`
	TotalPosts       int64         `json:"total_posts"`
	PostedMessageIDs map[int64]int `json:"posted_message_ids,omitempty"` // chat -> message, last cycle only
}

// Interval returns the posting interval as a duration.
func (a *ScheduledAd) Interval() time.Duration {
	return time.Duration(a.IntervalHours) * time.Hour
}

// IsDue reports whether the ad must be posted in a cycle running at now.
// Disabled ads are never due.
func (a *ScheduledAd) IsDue(now time.Time) bool {
	if !a.Enabled {
		return false
	}
	if a.LastPostedAt == nil {
		return true
	}
	return now.Sub(*a.LastPostedAt) >= a.Interval()
}

// NextPostAt returns when the ad becomes due next, or nil when disabled.
func (a *ScheduledAd) NextPostAt() *time.Time {
	if !a.Enabled {
		return nil
	}
	if a.LastPostedAt == nil {
		t := a.CreatedAt
		return &t
	}
	t := a.LastPostedAt.Add(a.Interval())
	return &t
}

// Summary converts the ad to its list form.
func (a *ScheduledAd) Summary() AdSummary {
	return AdSummary{
		ID:            a.ID,
		Name:          a.Name,
		Kind:          a.Kind,
		IntervalHours: a.IntervalHours,
		TargetCount:   len(a.TargetChats),
		Enabled:       a.Enabled,
		LastPostedAt:  a.LastPostedAt,
		NextPostAt:    a.NextPostAt(),
		TotalPosts:    a.TotalPosts,
	}
}

// AdSummary is the owner-facing listing of an ad.
type AdSummary struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Kind          AdKind     `json:"kind"`
	IntervalHours int        `json:"interval_hours"`
	TargetCount   int        `json:"target_count"`
	Enabled       bool       `json:"enabled"`
	LastPostedAt  *time.Time `json:"last_posted_at"`
	NextPostAt    *time.Time `json:"next_post_at"`
	TotalPosts    int64      `json:"total_posts"`
}

// NormalizeTargets sorts and de-duplicates chat ids so every cycle posts in
// the same order.
func NormalizeTargets(chats []int64) []int64 {
	seen := make(map[int64]struct{}, len(chats))
	out := make([]int64, 0, len(chats))
	for _, id := range chats {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
