package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jenderlion/Quiz-bot/internal/errs"
	"github.com/Jenderlion/Quiz-bot/internal/models"
)

// Quiz file layout, one record per line:
//
//	line 1        internal quiz name
//	line 2        display title
//	lines 3..n-1  one question per line
//	line n        gratitude text
//
// Question line grammar:
//
//	[{<prereq> -> <answer>}]<ordinal>. <text>//\\<opt>/\<opt>/\...
//
// The relation tag is optional. The option list may instead be the literal
// MANUAL_INPUT sentinel, meaning free-text input.
const (
	questionSeparator = `//\\`
	relationOpen      = "[{"
	relationClose     = "}]"
	relationArrow     = " -> "
)

// MalformedQuizError names the offending line of a rejected quiz file.
type MalformedQuizError struct {
	Line   int
	Reason string
}

func (e *MalformedQuizError) Error() string {
	return fmt.Sprintf("malformed quiz at line %d: %s", e.Line, e.Reason)
}

// Unwrap ties malformed-quiz failures into the validation error class.
func (e *MalformedQuizError) Unwrap() error {
	return errs.ErrValidation
}

func malformed(line int, format string, args ...interface{}) error {
	return &MalformedQuizError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Compile parses a raw quiz definition into a Quiz with Questions. It is pure:
// no stores are touched and the returned quiz carries no ids. Quizzes compile
// hidden; publication and visibility are the quiz service's business.
func Compile(raw string) (*models.Quiz, error) {
	lines := splitLines(raw)
	if len(lines) < 4 {
		return nil, malformed(len(lines)+1, "expected name, title, at least one question and gratitude")
	}

	name := lines[0]
	title := lines[1]
	gratitude := lines[len(lines)-1]

	if name == "" {
		return nil, malformed(1, "empty quiz name")
	}
	if title == "" {
		return nil, malformed(2, "empty quiz title")
	}
	if gratitude == "" {
		return nil, malformed(len(lines), "empty gratitude text")
	}

	quiz := &models.Quiz{
		Name:      name,
		Title:     title,
		Gratitude: gratitude,
	}

	for i, line := range lines[2 : len(lines)-1] {
		lineNo := i + 3
		question, err := parseQuestionLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		// sequencing assumes ordinals form a dense 1..N sequence matching
		// list position
		if question.Ordinal != i+1 {
			return nil, malformed(lineNo, "ordinal %d breaks the 1..N sequence, expected %d", question.Ordinal, i+1)
		}
		quiz.Questions = append(quiz.Questions, *question)
	}

	return quiz, nil
}

func parseQuestionLine(line string, lineNo int) (*models.Question, error) {
	relation, rest, err := parseRelationTag(line, lineNo)
	if err != nil {
		return nil, err
	}

	if strings.Count(rest, questionSeparator) != 1 {
		return nil, malformed(lineNo, "expected exactly one %q separator", questionSeparator)
	}
	parts := strings.SplitN(rest, questionSeparator, 2)
	text, rawOptions := parts[0], parts[1]

	ordinal, err := parseOrdinalPrefix(text, lineNo)
	if err != nil {
		return nil, err
	}

	if relation != nil && relation.PrereqOrdinal >= ordinal {
		return nil, malformed(lineNo, "relation must point at an earlier ordinal, got %d -> %d", ordinal, relation.PrereqOrdinal)
	}

	options, err := parseOptions(rawOptions, lineNo)
	if err != nil {
		return nil, err
	}

	return &models.Question{
		Ordinal:  ordinal,
		Text:     text,
		Options:  options,
		Relation: relation,
	}, nil
}

func parseRelationTag(line string, lineNo int) (*models.Relation, string, error) {
	if !strings.HasPrefix(line, relationOpen) {
		return nil, line, nil
	}

	end := strings.Index(line, relationClose)
	if end < 0 {
		return nil, "", malformed(lineNo, "unterminated relation tag")
	}

	inner := line[len(relationOpen):end]
	rest := line[end+len(relationClose):]

	arrow := strings.Index(inner, relationArrow)
	if arrow < 0 {
		return nil, "", malformed(lineNo, "relation %q must look like N -> Answer", inner)
	}

	prereq, err := strconv.Atoi(inner[:arrow])
	if err != nil || prereq < 1 {
		return nil, "", malformed(lineNo, "relation prerequisite %q is not a positive ordinal", inner[:arrow])
	}

	required := inner[arrow+len(relationArrow):]
	if required == "" {
		return nil, "", malformed(lineNo, "relation %q has an empty required answer", inner)
	}

	return &models.Relation{PrereqOrdinal: prereq, RequiredAnswer: required}, rest, nil
}

func parseOrdinalPrefix(text string, lineNo int) (int, error) {
	dot := strings.Index(text, ". ")
	if dot <= 0 {
		return 0, malformed(lineNo, "question %q must start with \"<ordinal>. \"", text)
	}
	ordinal, err := strconv.Atoi(text[:dot])
	if err != nil || ordinal < 1 {
		return 0, malformed(lineNo, "ordinal %q is not a positive number", text[:dot])
	}
	if strings.TrimSpace(text[dot+2:]) == "" {
		return 0, malformed(lineNo, "question %d has no prompt text", ordinal)
	}
	return ordinal, nil
}

func parseOptions(rawOptions string, lineNo int) ([]string, error) {
	if rawOptions == models.ManualInput {
		return nil, nil
	}
	if rawOptions == "" {
		return nil, malformed(lineNo, "empty answer options")
	}
	options := strings.Split(rawOptions, models.OptionSeparator)
	for _, opt := range options {
		if opt == "" {
			return nil, malformed(lineNo, "empty answer option")
		}
		if opt == models.SkippedAnswer {
			// the placeholder literal must stay unreachable as a real answer
			return nil, malformed(lineNo, "option %q is reserved", models.SkippedAnswer)
		}
	}
	return options, nil
}

// splitLines normalizes line endings and drops trailing blank lines, the way
// the uploaded files actually arrive from chat clients.
func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "")
	lines := strings.Split(raw, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
