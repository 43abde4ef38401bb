package models

import "time"

// Role is the access group of a user.
type Role string

const (
	RoleUser       Role = "user"
	RoleEditor     Role = "editor"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

var roleRank = map[Role]int{
	RoleUser:       0,
	RoleEditor:     1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants everything other grants.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

const (
	// ManualInput is the option-list sentinel meaning "accept free text".
	ManualInput = "MANUAL_INPUT"
	// SkippedAnswer is the placeholder stored for questions skipped by an
	// unmet relation. It keeps ordinals dense for export and, because it is
	// never a legal option literal, relations chained off a skipped question
	// can never match.
	SkippedAnswer = "not answered"
	// OptionSeparator joins literal answer options in quiz files and in the
	// questions table.
	OptionSeparator = `/\`
)

// Session is a user's position inside a quiz. A nil *Session means no active
// quiz. Ordinal is 1-based and never decreases while the session is active.
type Session struct {
	QuizID  uint64
	Ordinal int
	Rewrite bool
}

// User is a chat user. Created on first contact, never deleted.
type User struct {
	InternalID uint64
	TGUserID   int64
	Role       Role
	Banned     bool
	Mailing    bool
	Session    *Session
	CreatedAt  time.Time
}

// Relation makes a question conditional: it is only posed if the recorded
// answer to PrereqOrdinal equals RequiredAnswer exactly.
type Relation struct {
	PrereqOrdinal  int
	RequiredAnswer string
}

// Question belongs to exactly one quiz. Ordinal is 1-based and unique within
// the quiz. A nil Options slice means free-text input.
type Question struct {
	QuizID   uint64
	Ordinal  int
	Text     string
	Options  []string
	Relation *Relation
}

// FreeText reports whether the question accepts arbitrary text.
func (q *Question) FreeText() bool {
	return len(q.Options) == 0
}

// Quiz is immutable once published. Hidden quizzes stay completable by users
// already inside them but are excluded from discovery.
type Quiz struct {
	ID        uint64
	Name      string
	Title     string
	Gratitude string
	Visible   bool
	Questions []Question
}

// Question returns the question with the given ordinal, or nil.
func (q *Quiz) Question(ordinal int) *Question {
	for i := range q.Questions {
		if q.Questions[i].Ordinal == ordinal {
			return &q.Questions[i]
		}
	}
	return nil
}

// MaxOrdinal returns the highest question ordinal, 0 for an empty quiz.
func (q *Quiz) MaxOrdinal() int {
	max := 0
	for i := range q.Questions {
		if q.Questions[i].Ordinal > max {
			max = q.Questions[i].Ordinal
		}
	}
	return max
}

// Answer is one recorded reply. At most one live row exists per
// (user, quiz, ordinal); rewrite replaces Text in place.
type Answer struct {
	ID             uint64
	QuizID         uint64
	Ordinal        int
	InternalUserID uint64
	Text           string
	CreatedAt      time.Time
}

// Ban is one historical ban record. Multiple records per subject are kept;
// at most one active record per subject is meaningful.
type Ban struct {
	ID             uint64
	InternalUserID uint64
	TGUserID       int64
	InitiatorID    uint64
	Reason         string
	BanTime        time.Time
	UnbanTime      time.Time
	Active         bool
}

// MessageLog is one inbound transport event.
type MessageLog struct {
	ID        uint64
	TGUserID  int64
	Text      string
	Timestamp time.Time
}

// QuestionSummary annotates a question with its relation for the rewrite menu.
type QuestionSummary struct {
	Ordinal  int
	Text     string
	Relation *Relation
}

// FrequencyRow is one (question, answer, count) aggregate for export.
type FrequencyRow struct {
	Ordinal int
	Answer  string
	Count   int
}

// DumpRow is one raw answer row for export.
type DumpRow struct {
	InternalUserID uint64
	Ordinal        int
	Answer         string
}
