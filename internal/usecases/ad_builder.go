package usecases

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
)

var ErrUnexpectedStep = errors.New("ad builder: unexpected step")

// BuilderStep is the guided ad creation state.
type BuilderStep int

const (
	StepName BuilderStep = iota
	StepKind
	StepContent
	StepInterval
	StepTargets
	StepComplete
)

func (s BuilderStep) String() string {
	switch s {
	case StepName:
		return "name"
	case StepKind:
		return "kind"
	case StepContent:
		return "content"
	case StepInterval:
		return "interval"
	case StepTargets:
		return "targets"
	case StepComplete:
		return "complete"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// AdBuilder collects a NewAd one field at a time. Each setter only works in
// its own step; a validation error keeps the builder on that step.
type AdBuilder struct {
	step  BuilderStep
	draft NewAd
}

func NewAdBuilder() *AdBuilder {
	return &AdBuilder{step: StepName}
}

func (b *AdBuilder) Step() BuilderStep {
	return b.step
}

func (b *AdBuilder) expect(step BuilderStep) error {
	if b.step != step {
		return fmt.Errorf("%w: at %s, got %s", ErrUnexpectedStep, b.step, step)
	}
	return nil
}

func (b *AdBuilder) SetName(name string) error {
	if err := b.expect(StepName); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAd)
	}
	b.draft.Name = name
	b.step = StepKind
	return nil
}

func (b *AdBuilder) SetKind(kind entities.AdKind) error {
	if err := b.expect(StepKind); err != nil {
		return err
	}
	if kind != entities.AdKindText && kind != entities.AdKindImage {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAd, kind)
	}
	b.draft.Kind = kind
	b.step = StepContent
	return nil
}

func (b *AdBuilder) SetContent(content entities.Content) error {
	if err := b.expect(StepContent); err != nil {
		return err
	}
	if err := validateContent(b.draft.Kind, content); err != nil {
		return err
	}
	b.draft.Content = content
	b.step = StepInterval
	return nil
}

func (b *AdBuilder) SetInterval(hours int) error {
	if err := b.expect(StepInterval); err != nil {
		return err
	}
	if hours < 1 {
		return ErrInvalidScheduleInterval
	}
	b.draft.IntervalHours = hours
	b.step = StepTargets
	return nil
}

func (b *AdBuilder) SetTargets(chats []int64) error {
	if err := b.expect(StepTargets); err != nil {
		return err
	}
	targets := entities.NormalizeTargets(chats)
	if len(targets) == 0 {
		return fmt.Errorf("%w: no target chats", ErrInvalidAd)
	}
	b.draft.TargetChats = targets
	b.step = StepComplete
	return nil
}

// Draft returns the finished ad.
func (b *AdBuilder) Draft() (NewAd, error) {
	if err := b.expect(StepComplete); err != nil {
		return NewAd{}, err
	}
	return b.draft, nil
}

// BuilderSessions tracks one in-progress builder per chat.
type BuilderSessions struct {
	mu       sync.Mutex
	builders map[int64]*AdBuilder
}

func NewBuilderSessions() *BuilderSessions {
	return &BuilderSessions{builders: make(map[int64]*AdBuilder)}
}

// Begin starts a new builder for chatID, replacing any unfinished one.
func (s *BuilderSessions) Begin(chatID int64) *AdBuilder {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := NewAdBuilder()
	s.builders[chatID] = b
	return b
}

// Update runs fn on chatID's builder under the sessions lock.
func (s *BuilderSessions) Update(chatID int64, fn func(b *AdBuilder) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.builders[chatID]
	if !ok {
		return fmt.Errorf("%w: no ad in progress", ErrUnexpectedStep)
	}
	return fn(b)
}

func (s *BuilderSessions) Active(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.builders[chatID]
	return ok
}

func (s *BuilderSessions) End(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.builders[chatID]
	delete(s.builders, chatID)
	return ok
}
