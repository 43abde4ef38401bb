package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/Jenderlion/Quiz-bot/internal/models"
)

// memStore is a shared in-memory backing store for the repository fakes. It
// enforces the same uniqueness rules as the schema and supports the snapshot
// rollback the TxRunner fake needs.
type memStore struct {
	mu sync.Mutex

	nextUserID   uint64
	nextQuizID   uint64
	nextAnswerID uint64
	nextBanID    uint64

	usersByID map[uint64]*models.User
	usersByTG map[int64]*models.User
	quizzes   map[uint64]*models.Quiz
	answers   map[answerKey]*models.Answer
	bans      map[uint64]*models.Ban

	failCreateAnswer  error
	failUpdateSession error
}

type answerKey struct {
	user    uint64
	quiz    uint64
	ordinal int
}

func newMemStore() *memStore {
	return &memStore{
		usersByID: make(map[uint64]*models.User),
		usersByTG: make(map[int64]*models.User),
		quizzes:   make(map[uint64]*models.Quiz),
		answers:   make(map[answerKey]*models.Answer),
		bans:      make(map[uint64]*models.Ban),
	}
}

func (s *memStore) addUser(tgID int64, role models.Role) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := &models.User{
		InternalID: s.nextUserID,
		TGUserID:   tgID,
		Role:       role,
		CreatedAt:  time.Now(),
	}
	s.usersByID[user.InternalID] = user
	s.usersByTG[tgID] = user
	return user
}

func (s *memStore) addQuiz(quiz *models.Quiz) *models.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextQuizID++
	quiz.ID = s.nextQuizID
	for i := range quiz.Questions {
		quiz.Questions[i].QuizID = quiz.ID
	}
	s.quizzes[quiz.ID] = quiz
	return quiz
}

func (s *memStore) answerRows(userID, quizID uint64) []models.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []models.Answer
	for key, answer := range s.answers {
		if key.user == userID && key.quiz == quizID {
			rows = append(rows, *answer)
		}
	}
	return rows
}

func (s *memStore) user(internalID uint64) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.usersByID[internalID])
}

func copyUser(user *models.User) *models.User {
	if user == nil {
		return nil
	}
	clone := *user
	if user.Session != nil {
		session := *user.Session
		clone.Session = &session
	}
	return &clone
}

func copyQuiz(quiz *models.Quiz) *models.Quiz {
	if quiz == nil {
		return nil
	}
	clone := *quiz
	clone.Questions = append([]models.Question(nil), quiz.Questions...)
	return &clone
}

// --- user repository fake ---

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) GetByTGID(_ context.Context, tgID int64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyUser(r.s.usersByTG[tgID]), nil
}

func (r *memUserRepo) GetByInternalID(_ context.Context, internalID uint64) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyUser(r.s.usersByID[internalID]), nil
}

func (r *memUserRepo) Create(_ context.Context, tgID int64) (*models.User, error) {
	return r.s.addUser(tgID, models.RoleUser), nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, internalID uint64, role models.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user, ok := r.s.usersByID[internalID]; ok {
		user.Role = role
	}
	return nil
}

func (r *memUserRepo) UpdateBanned(_ context.Context, internalID uint64, banned bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user, ok := r.s.usersByID[internalID]; ok {
		user.Banned = banned
	}
	return nil
}

func (r *memUserRepo) UpdateMailing(_ context.Context, internalID uint64, mailing bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if user, ok := r.s.usersByID[internalID]; ok {
		user.Mailing = mailing
	}
	return nil
}

func (r *memUserRepo) UpdateSession(_ context.Context, internalID uint64, session *models.Session) error {
	return r.setSession(internalID, session)
}

func (r *memUserRepo) UpdateSessionTx(_ context.Context, _ *sql.Tx, internalID uint64, session *models.Session) error {
	return r.setSession(internalID, session)
}

func (r *memUserRepo) setSession(internalID uint64, session *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUpdateSession != nil {
		return r.s.failUpdateSession
	}
	user, ok := r.s.usersByID[internalID]
	if !ok {
		return errors.New("no such user")
	}
	if session == nil {
		user.Session = nil
		return nil
	}
	clone := *session
	user.Session = &clone
	return nil
}

func (r *memUserRepo) ListMailing(_ context.Context) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var users []models.User
	for _, user := range r.s.usersByID {
		if user.Mailing && !user.Banned {
			users = append(users, *copyUser(user))
		}
	}
	return users, nil
}

// --- quiz repository fake ---

type memQuizRepo struct{ s *memStore }

func (r *memQuizRepo) Create(_ context.Context, quiz *models.Quiz) (uint64, error) {
	return r.s.addQuiz(quiz).ID, nil
}

func (r *memQuizRepo) GetByID(_ context.Context, quizID uint64) (*models.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return copyQuiz(r.s.quizzes[quizID]), nil
}

func (r *memQuizRepo) GetByName(_ context.Context, name string) (*models.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, quiz := range r.s.quizzes {
		if quiz.Name == name {
			return copyQuiz(quiz), nil
		}
	}
	return nil, nil
}

func (r *memQuizRepo) ListVisible(_ context.Context) ([]models.Quiz, error) {
	return r.list(true)
}

func (r *memQuizRepo) List(_ context.Context) ([]models.Quiz, error) {
	return r.list(false)
}

func (r *memQuizRepo) list(visibleOnly bool) ([]models.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var quizzes []models.Quiz
	for id := uint64(1); id <= r.s.nextQuizID; id++ {
		quiz, ok := r.s.quizzes[id]
		if !ok {
			continue
		}
		if visibleOnly && !quiz.Visible {
			continue
		}
		quizzes = append(quizzes, *copyQuiz(quiz))
	}
	return quizzes, nil
}

func (r *memQuizRepo) SetVisibility(_ context.Context, quizID uint64, visible bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	quiz, ok := r.s.quizzes[quizID]
	if !ok {
		return sql.ErrNoRows
	}
	quiz.Visible = visible
	return nil
}

// --- answer repository fake ---

type memAnswerRepo struct{ s *memStore }

func (r *memAnswerRepo) CreateTx(_ context.Context, _ *sql.Tx, answer *models.Answer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failCreateAnswer != nil {
		return r.s.failCreateAnswer
	}
	key := answerKey{user: answer.InternalUserID, quiz: answer.QuizID, ordinal: answer.Ordinal}
	if _, exists := r.s.answers[key]; exists {
		return errors.New("duplicate answer row")
	}
	r.s.nextAnswerID++
	answer.ID = r.s.nextAnswerID
	answer.CreatedAt = time.Now()
	clone := *answer
	r.s.answers[key] = &clone
	return nil
}

func (r *memAnswerRepo) RewriteTx(_ context.Context, _ *sql.Tx, userID, quizID uint64, ordinal int, text string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	answer, ok := r.s.answers[answerKey{user: userID, quiz: quizID, ordinal: ordinal}]
	if !ok {
		return sql.ErrNoRows
	}
	answer.Text = text
	return nil
}

func (r *memAnswerRepo) Get(_ context.Context, userID, quizID uint64, ordinal int) (*models.Answer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	answer, ok := r.s.answers[answerKey{user: userID, quiz: quizID, ordinal: ordinal}]
	if !ok {
		return nil, nil
	}
	clone := *answer
	return &clone, nil
}

func (r *memAnswerRepo) ListByUserQuiz(_ context.Context, userID, quizID uint64) ([]models.Answer, error) {
	return r.s.answerRows(userID, quizID), nil
}

func (r *memAnswerRepo) CompletedQuizIDs(_ context.Context, userID uint64) ([]uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[uint64]bool)
	var ids []uint64
	for key := range r.s.answers {
		if key.user == userID && !seen[key.quiz] {
			seen[key.quiz] = true
			ids = append(ids, key.quiz)
		}
	}
	return ids, nil
}

func (r *memAnswerRepo) Frequencies(_ context.Context, quizID uint64) ([]models.FrequencyRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[int]map[string]int)
	for key, answer := range r.s.answers {
		if key.quiz != quizID {
			continue
		}
		if counts[key.ordinal] == nil {
			counts[key.ordinal] = make(map[string]int)
		}
		counts[key.ordinal][answer.Text]++
	}
	var rows []models.FrequencyRow
	for ordinal, byText := range counts {
		for text, count := range byText {
			rows = append(rows, models.FrequencyRow{Ordinal: ordinal, Answer: text, Count: count})
		}
	}
	return rows, nil
}

func (r *memAnswerRepo) Dump(_ context.Context, quizID uint64) ([]models.DumpRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var rows []models.DumpRow
	for key, answer := range r.s.answers {
		if key.quiz == quizID {
			rows = append(rows, models.DumpRow{
				InternalUserID: key.user,
				Ordinal:        key.ordinal,
				Answer:         answer.Text,
			})
		}
	}
	return rows, nil
}

// --- ban repository fake ---

type memBanRepo struct{ s *memStore }

func (r *memBanRepo) Create(_ context.Context, ban *models.Ban) (uint64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextBanID++
	ban.ID = r.s.nextBanID
	ban.Active = true
	clone := *ban
	r.s.bans[ban.ID] = &clone
	return ban.ID, nil
}

func (r *memBanRepo) ActiveByUser(_ context.Context, internalID uint64) (*models.Ban, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Ban
	for _, ban := range r.s.bans {
		if ban.InternalUserID == internalID && ban.Active {
			if latest == nil || ban.ID > latest.ID {
				latest = ban
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	clone := *latest
	return &clone, nil
}

func (r *memBanRepo) Deactivate(_ context.Context, banID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ban, ok := r.s.bans[banID]; ok {
		ban.Active = false
	}
	return nil
}

func (r *memBanRepo) ListActiveExpired(_ context.Context, now time.Time) ([]models.Ban, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var bans []models.Ban
	for _, ban := range r.s.bans {
		if ban.Active && !ban.UnbanTime.After(now) {
			bans = append(bans, *ban)
		}
	}
	return bans, nil
}

// --- transaction runner fake ---

// memTxRunner snapshots sessions and answers before the function runs and
// restores them when it fails, mirroring a real rollback.
type memTxRunner struct{ s *memStore }

func (r *memTxRunner) InTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	sessions, answers, nextAnswerID := r.snapshot()
	if err := fn(nil); err != nil {
		r.restore(sessions, answers, nextAnswerID)
		return err
	}
	return nil
}

func (r *memTxRunner) snapshot() (map[uint64]*models.Session, map[answerKey]*models.Answer, uint64) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sessions := make(map[uint64]*models.Session)
	for id, user := range r.s.usersByID {
		if user.Session != nil {
			clone := *user.Session
			sessions[id] = &clone
		} else {
			sessions[id] = nil
		}
	}
	answers := make(map[answerKey]*models.Answer, len(r.s.answers))
	for key, answer := range r.s.answers {
		clone := *answer
		answers[key] = &clone
	}
	return sessions, answers, r.s.nextAnswerID
}

func (r *memTxRunner) restore(sessions map[uint64]*models.Session, answers map[answerKey]*models.Answer, nextAnswerID uint64) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range sessions {
		if user, ok := r.s.usersByID[id]; ok {
			user.Session = session
		}
	}
	r.s.answers = answers
	r.s.nextAnswerID = nextAnswerID
}

// --- wiring helper ---

type fixture struct {
	store      *memStore
	users      *memUserRepo
	quizzes    *memQuizRepo
	answers    *memAnswerRepo
	bans       *memBanRepo
	locks      *UserLocks
	sessionSvc SessionService
}

func newFixture() *fixture {
	store := newMemStore()
	users := &memUserRepo{s: store}
	quizzes := &memQuizRepo{s: store}
	answers := &memAnswerRepo{s: store}
	locks := NewUserLocks()
	return &fixture{
		store:      store,
		users:      users,
		quizzes:    quizzes,
		answers:    answers,
		bans:       &memBanRepo{s: store},
		locks:      locks,
		sessionSvc: NewSessionService(users, quizzes, answers, &memTxRunner{s: store}, locks),
	}
}
