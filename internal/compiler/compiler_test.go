package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
)

func TestCompile(t *testing.T) {
	raw := "demo\n" +
		"Demo survey\n" +
		`1. Color?//\\Red/\Blue/\Green` + "\n" +
		`[{1 -> Red}]2. Shade of red?//\\Light/\Dark` + "\n" +
		`3. Comments?//\\MANUAL_INPUT` + "\n" +
		"Thanks"

	quiz, err := Compile(raw)
	require.NoError(t, err)

	assert.Equal(t, "demo", quiz.Name)
	assert.Equal(t, "Demo survey", quiz.Title)
	assert.Equal(t, "Thanks", quiz.Gratitude)
	assert.False(t, quiz.Visible)
	require.Len(t, quiz.Questions, 3)

	q1 := quiz.Questions[0]
	assert.Equal(t, 1, q1.Ordinal)
	assert.Equal(t, "1. Color?", q1.Text)
	assert.Equal(t, []string{"Red", "Blue", "Green"}, q1.Options)
	assert.Nil(t, q1.Relation)

	q2 := quiz.Questions[1]
	assert.Equal(t, 2, q2.Ordinal)
	require.NotNil(t, q2.Relation)
	assert.Equal(t, 1, q2.Relation.PrereqOrdinal)
	assert.Equal(t, "Red", q2.Relation.RequiredAnswer)

	q3 := quiz.Questions[2]
	assert.True(t, q3.FreeText())
	assert.Nil(t, q3.Options)
}

func TestCompileNormalizesLineEndings(t *testing.T) {
	raw := "demo\r\nDemo\r\n" + `1. Ok?//\\Yes/\No` + "\r\nThanks\r\n\r\n"

	quiz, err := Compile(raw)
	require.NoError(t, err)
	assert.Equal(t, "Thanks", quiz.Gratitude)
	require.Len(t, quiz.Questions, 1)
}

func TestCompileRejections(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantLine int
	}{
		{
			name:     "too short",
			raw:      "demo\nDemo\nThanks",
			wantLine: 4,
		},
		{
			name:     "empty name",
			raw:      "\nDemo\n" + `1. Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 1,
		},
		{
			name:     "empty title",
			raw:      "demo\n\n" + `1. Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 2,
		},
		{
			name:     "missing separator",
			raw:      "demo\nDemo\n1. Ok?\nThanks",
			wantLine: 3,
		},
		{
			name:     "doubled separator",
			raw:      "demo\nDemo\n" + `1. Ok?//\\Yes//\\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "non-numeric ordinal",
			raw:      "demo\nDemo\n" + `one. Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "missing ordinal prefix",
			raw:      "demo\nDemo\n" + `Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "ordinal sequence gap",
			raw:      "demo\nDemo\n" + `2. Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name: "self relation",
			raw: "demo\nDemo\n" + `1. Ok?//\\Yes/\No` + "\n" +
				`[{2 -> Yes}]2. Sure?//\\Yes/\No` + "\nThanks",
			wantLine: 4,
		},
		{
			name: "forward relation",
			raw: "demo\nDemo\n" + `[{2 -> Yes}]1. Ok?//\\Yes/\No` + "\n" +
				`2. Sure?//\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "unterminated relation tag",
			raw:      "demo\nDemo\n" + `[{1 -> Yes 2. Ok?//\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "relation without arrow",
			raw:      "demo\nDemo\n" + `1. Ok?//\\Yes/\No` + "\n" + `[{1:Yes}]2. Sure?//\\Yes/\No` + "\nThanks",
			wantLine: 4,
		},
		{
			name:     "empty required answer",
			raw:      "demo\nDemo\n" + `1. Ok?//\\Yes/\No` + "\n" + `[{1 -> }]2. Sure?//\\Yes/\No` + "\nThanks",
			wantLine: 4,
		},
		{
			name:     "empty option",
			raw:      "demo\nDemo\n" + `1. Ok?//\\Yes/\` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "no options",
			raw:      "demo\nDemo\n" + `1. Ok?//\\` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "reserved placeholder option",
			raw:      "demo\nDemo\n" + `1. Ok?//\\Yes/\not answered` + "\nThanks",
			wantLine: 3,
		},
		{
			name:     "empty prompt",
			raw:      "demo\nDemo\n" + `1. //\\Yes/\No` + "\nThanks",
			wantLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz, err := Compile(tt.raw)
			require.Error(t, err)
			assert.Nil(t, quiz)

			var malformed *MalformedQuizError
			require.True(t, errors.As(err, &malformed), "expected MalformedQuizError, got %v", err)
			assert.Equal(t, tt.wantLine, malformed.Line)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}

func TestCompileManualInputSentinel(t *testing.T) {
	raw := "demo\nDemo\n" + `1. Tell me more//\\` + models.ManualInput + "\nThanks"

	quiz, err := Compile(raw)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 1)
	assert.True(t, quiz.Questions[0].FreeText())
}
