package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"livequiz-service/internal/domain"
)

// AnswerLog is the durable sink for accepted answer records. One row per
// submission, analytics-only; nothing in the live path reads it back.
type AnswerLog struct {
	pool *pgxpool.Pool
}

func NewAnswerLog(pool *pgxpool.Pool) *AnswerLog {
	return &AnswerLog{pool: pool}
}

func (l *AnswerLog) WriteAnswer(ctx context.Context, record domain.AnswerRecord) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO answers (session_code, participant_name, question_index, question_text, option_letter, is_correct, quiz_type, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.SessionCode,
		record.ParticipantName,
		record.QuestionIndex,
		record.QuestionText,
		record.Option,
		record.Correct,
		string(record.QuizType),
		record.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}
