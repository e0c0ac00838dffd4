package usecases

import (
	"testing"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdBuilder_HappyPath(t *testing.T) {
	b := NewAdBuilder()
	require.NoError(t, b.SetName(" Exam promo "))
	require.NoError(t, b.SetKind(entities.AdKindImage))
	require.NoError(t, b.SetContent(entities.Content{ImageRef: "file-1", Caption: "Join now"}))
	require.NoError(t, b.SetInterval(24))
	require.NoError(t, b.SetTargets([]int64{5, 3, 5}))
	assert.Equal(t, StepComplete, b.Step())

	draft, err := b.Draft()
	require.NoError(t, err)
	assert.Equal(t, NewAd{
		Name:          "Exam promo",
		Kind:          entities.AdKindImage,
		Content:       entities.Content{ImageRef: "file-1", Caption: "Join now"},
		IntervalHours: 24,
		TargetChats:   []int64{3, 5},
	}, draft)
}

func TestAdBuilder_OutOfOrderInput(t *testing.T) {
	b := NewAdBuilder()

	assert.ErrorIs(t, b.SetInterval(2), ErrUnexpectedStep)
	_, err := b.Draft()
	assert.ErrorIs(t, err, ErrUnexpectedStep)

	require.NoError(t, b.SetName("promo"))
	assert.ErrorIs(t, b.SetName("again"), ErrUnexpectedStep)
	assert.Equal(t, StepKind, b.Step())
}

func TestAdBuilder_ValidationKeepsStep(t *testing.T) {
	b := NewAdBuilder()
	require.NoError(t, b.SetName("promo"))
	assert.ErrorIs(t, b.SetKind("video"), ErrInvalidAd)
	require.NoError(t, b.SetKind(entities.AdKindText))
	assert.ErrorIs(t, b.SetContent(entities.Content{Text: "  "}), ErrInvalidAd)
	require.NoError(t, b.SetContent(entities.Content{Text: "hi"}))
	assert.ErrorIs(t, b.SetInterval(0), ErrInvalidScheduleInterval)
	assert.Equal(t, StepInterval, b.Step())
	require.NoError(t, b.SetInterval(1))
	assert.ErrorIs(t, b.SetTargets(nil), ErrInvalidAd)
	assert.Equal(t, StepTargets, b.Step())
}

func TestBuilderSessions(t *testing.T) {
	s := NewBuilderSessions()
	assert.False(t, s.Active(1))
	assert.ErrorIs(t, s.Update(1, func(*AdBuilder) error { return nil }), ErrUnexpectedStep)

	s.Begin(1)
	assert.True(t, s.Active(1))
	require.NoError(t, s.Update(1, func(b *AdBuilder) error { return b.SetName("x") }))
	assert.True(t, s.End(1))
	assert.False(t, s.End(1))
}
