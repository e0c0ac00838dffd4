package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/interfaces"
	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/repository"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTickPeriod   = 5 * time.Minute
	DefaultInitialDelay = 30 * time.Second
)

var (
	ErrAdNotFound              = errors.New("scheduler: ad not found")
	ErrInvalidScheduleInterval = errors.New("scheduler: interval must be at least 1 hour")
	ErrInvalidAd               = errors.New("scheduler: invalid ad")
)

// NewAd is the input for CreateAd.
type NewAd struct {
	Name          string
	Kind          entities.AdKind
	Content       entities.Content
	IntervalHours int
	TargetChats   []int64
}

// AdPatch is an owner edit. Nil fields are left unchanged.
type AdPatch struct {
	Name          *string
	Content       *entities.Content
	IntervalHours *int
	TargetChats   []int64
}

// TickReport summarizes one due cycle.
type TickReport struct {
	Due            int `json:"due"`
	Posted         int `json:"posted"`
	Sent           int `json:"sent"`
	SendFailures   int `json:"send_failures"`
	Deleted        int `json:"deleted"`
	DeleteFailures int `json:"delete_failures"`
}

// Scheduler posts recurring ads to their target chats.
type Scheduler struct {
	ads       *repository.AdRepository
	messenger interfaces.Messenger
	limiter   interfaces.SendLimiter
	now       func() time.Time

	period       time.Duration
	initialDelay time.Duration

	tickMu sync.Mutex
}

func NewScheduler(ads *repository.AdRepository, messenger interfaces.Messenger, limiter interfaces.SendLimiter, period, initialDelay time.Duration) *Scheduler {
	if period <= 0 {
		period = DefaultTickPeriod
	}
	if initialDelay < 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		ads:          ads,
		messenger:    messenger,
		limiter:      limiter,
		now:          time.Now,
		period:       period,
		initialDelay: initialDelay,
	}
}

// EventHandler consumes inbound events; the Coordinator is the one used in
// production.
type EventHandler interface {
	Handle(ctx context.Context, ev entities.Event) error
}

// Start emits a TickEvent to h after the initial delay and then every
// period. The returned function stops the worker and waits for it to exit.
func (s *Scheduler) Start(ctx context.Context, h EventHandler) func() {
	emit := func() {
		if err := h.Handle(ctx, entities.TickEvent{At: s.now()}); err != nil {
			log.WithError(err).Error("Scheduler tick failed")
		}
	}

	stopChan := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		log.WithFields(log.Fields{
			"period":        s.period.String(),
			"initial_delay": s.initialDelay.String(),
		}).Info("Ad scheduler started")

		timer := time.NewTimer(s.initialDelay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-stopChan:
			return
		case <-timer.C:
			emit()
		}

		ticker := time.NewTicker(s.period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Ad scheduler stopping due to context cancellation")
				return
			case <-stopChan:
				log.Info("Ad scheduler stopping")
				return
			case <-ticker.C:
				emit()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopChan) })
		<-done
	}
}

// Tick posts every ad that is due at now. Ticks never overlap; an ad posted
// in a cycle is not due again until its interval has passed.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) TickReport {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var report TickReport
	for _, ad := range s.ads.List() {
		if !ad.IsDue(now) {
			continue
		}
		report.Due++

		// Owner changes made while earlier ads were posting win.
		current, ok := s.ads.Get(ad.ID)
		if !ok || !current.IsDue(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			break
		}
		if s.postAd(ctx, current, now, &report) {
			report.Posted++
		}
	}

	if report.Due > 0 {
		log.WithFields(log.Fields{
			"due":             report.Due,
			"posted":          report.Posted,
			"sent":            report.Sent,
			"send_failures":   report.SendFailures,
			"deleted":         report.Deleted,
			"delete_failures": report.DeleteFailures,
		}).Info("Ad cycle complete")
	}
	return report
}

func (s *Scheduler) postAd(ctx context.Context, ad entities.ScheduledAd, now time.Time, report *TickReport) bool {
	logger := log.WithFields(log.Fields{"ad_id": ad.ID, "ad_name": ad.Name})

	chats := make([]int64, 0, len(ad.PostedMessageIDs))
	for chatID := range ad.PostedMessageIDs {
		chats = append(chats, chatID)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	for _, chatID := range chats {
		if err := s.messenger.Delete(ctx, chatID, ad.PostedMessageIDs[chatID]); err != nil {
			report.DeleteFailures++
			logger.WithField("chat_id", chatID).WithError(err).Warn("Failed to delete previous ad post")
			continue
		}
		report.Deleted++
	}

	posted := make(map[int64]int, len(ad.TargetChats))
	for _, chatID := range ad.TargetChats {
		if err := s.limiter.Wait(ctx, chatID); err != nil {
			logger.WithError(err).Warn("Ad cycle interrupted")
			break
		}
		messageID, err := s.messenger.Send(ctx, chatID, ad.Content)
		if err != nil {
			report.SendFailures++
			logger.WithField("chat_id", chatID).WithError(err).Warn("Failed to post ad")
			continue
		}
		report.Sent++
		posted[chatID] = messageID
	}

	// The cycle counts as attempted even when some chats failed.
	_, err := s.ads.Mutate(context.WithoutCancel(ctx), ad.ID, func(current *entities.ScheduledAd) error {
		postedAt := now
		current.LastPostedAt = &postedAt
		current.TotalPosts++
		current.PostedMessageIDs = posted
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("Ad deleted during cycle, dropping bookkeeping")
		return false
	}
	if err != nil {
		logger.WithError(err).Error("Failed to record ad cycle")
		return false
	}
	return true
}

func validateContent(kind entities.AdKind, content entities.Content) error {
	switch kind {
	case entities.AdKindText:
		if strings.TrimSpace(content.Text) == "" {
			return fmt.Errorf("%w: text ad needs text", ErrInvalidAd)
		}
	case entities.AdKindImage:
		if content.ImageRef == "" {
			return fmt.Errorf("%w: image ad needs an image", ErrInvalidAd)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAd, kind)
	}
	return nil
}

// CreateAd validates and stores a new enabled ad. It is due on the next tick.
func (s *Scheduler) CreateAd(ctx context.Context, in NewAd) (int64, error) {
	if in.IntervalHours < 1 {
		return 0, ErrInvalidScheduleInterval
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrInvalidAd)
	}
	if err := validateContent(in.Kind, in.Content); err != nil {
		return 0, err
	}
	targets := entities.NormalizeTargets(in.TargetChats)
	if len(targets) == 0 {
		return 0, fmt.Errorf("%w: no target chats", ErrInvalidAd)
	}

	ad, err := s.ads.Create(ctx, entities.ScheduledAd{
		Name:          name,
		Kind:          in.Kind,
		Content:       in.Content,
		IntervalHours: in.IntervalHours,
		TargetChats:   targets,
		Enabled:       true,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"ad_id":          ad.ID,
		"interval_hours": ad.IntervalHours,
		"targets":        len(ad.TargetChats),
	}).Info("Ad created")
	return ad.ID, nil
}

func (s *Scheduler) setEnabled(ctx context.Context, id int64, enabled bool) error {
	_, err := s.ads.Mutate(ctx, id, func(ad *entities.ScheduledAd) error {
		ad.Enabled = enabled
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAdNotFound
	}
	return err
}

func (s *Scheduler) Pause(ctx context.Context, id int64) error {
	return s.setEnabled(ctx, id, false)
}

// Resume re-enables an ad. Its schedule continues from LastPostedAt.
func (s *Scheduler) Resume(ctx context.Context, id int64) error {
	return s.setEnabled(ctx, id, true)
}

func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	err := s.ads.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAdNotFound
	}
	if err == nil {
		log.WithField("ad_id", id).Info("Ad deleted")
	}
	return err
}

// EditAd applies an owner edit. Scheduler-owned fields are never touched.
func (s *Scheduler) EditAd(ctx context.Context, id int64, patch AdPatch) (entities.AdSummary, error) {
	if patch.IntervalHours != nil && *patch.IntervalHours < 1 {
		return entities.AdSummary{}, ErrInvalidScheduleInterval
	}

	ad, err := s.ads.Mutate(ctx, id, func(ad *entities.ScheduledAd) error {
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidAd)
			}
			ad.Name = name
		}
		if patch.Content != nil {
			if err := validateContent(ad.Kind, *patch.Content); err != nil {
				return err
			}
			ad.Content = *patch.Content
		}
		if patch.IntervalHours != nil {
			ad.IntervalHours = *patch.IntervalHours
		}
		if patch.TargetChats != nil {
			targets := entities.NormalizeTargets(patch.TargetChats)
			if len(targets) == 0 {
				return fmt.Errorf("%w: no target chats", ErrInvalidAd)
			}
			ad.TargetChats = targets
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return entities.AdSummary{}, ErrAdNotFound
	}
	if err != nil {
		return entities.AdSummary{}, err
	}
	return ad.Summary(), nil
}

func (s *Scheduler) Get(id int64) (entities.ScheduledAd, error) {
	ad, ok := s.ads.Get(id)
	if !ok {
		return entities.ScheduledAd{}, ErrAdNotFound
	}
	return ad, nil
}

// ListAds returns every ad ordered by ID.
func (s *Scheduler) ListAds(ctx context.Context) []entities.AdSummary {
	ads := s.ads.List()
	out := make([]entities.AdSummary, len(ads))
	for i := range ads {
		out[i] = ads[i].Summary()
	}
	return out
}
