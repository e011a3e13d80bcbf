package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-duel-service/internal/domain"
)

// QuestionStore reads the question bank. Only published, non-deleted rows are playable.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const playableQuestions = `SELECT id, body, correct_answers FROM questions WHERE published AND deleted_at IS NULL`

// LoadPublished returns the whole playable pool; it feeds the question caches.
func (s *QuestionStore) LoadPublished(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, playableQuestions+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return scanQuestions(rows)
}

// SampleQuestions picks n distinct playable questions at random without a cache.
func (s *QuestionStore) SampleQuestions(ctx context.Context, n int) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, playableQuestions+` ORDER BY random() LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if len(questions) < n {
		return nil, domain.ErrInsufficientQuestions
	}
	return questions, nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()

	questions := []domain.Question{}
	for rows.Next() {
		var (
			q   domain.Question
			raw []byte
		)
		if err := rows.Scan(&q.ID, &q.Body, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(raw, &q.CorrectAnswers); err != nil {
			return nil, fmt.Errorf("unmarshal answers of %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}
