package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/johnlen7/teacher-sarah/internal/domain"
)

type PostgresStudentsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStudentsRepository(ctx context.Context, databaseURL string) (*PostgresStudentsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresStudentsRepository{pool: pool}, nil
}

func (r *PostgresStudentsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresStudentsRepository) UpsertUser(ctx context.Context, user *domain.User) error {
	level := user.EnglishLevel
	if level == "" {
		level = domain.DefaultEnglishLevel
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (chat_id, username, first_name, last_name, english_level, created_at, last_active)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (chat_id) DO UPDATE
		SET username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_active = NOW()
	`, user.ChatID, user.Username, user.FirstName, user.LastName, level)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *PostgresStudentsRepository) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	var (
		user       domain.User
		createdAt  time.Time
		lastActive time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT chat_id, username, first_name, last_name, english_level, created_at, last_active
		FROM users
		WHERE chat_id = $1
	`, chatID).Scan(
		&user.ChatID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.EnglishLevel,
		&createdAt,
		&lastActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = createdAt
	user.LastActive = lastActive
	return &user, nil
}

func (r *PostgresStudentsRepository) SetEnglishLevel(ctx context.Context, chatID int64, level string) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE users
		SET english_level = $2,
			last_active = NOW()
		WHERE chat_id = $1
	`, chatID, level)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresStudentsRepository) AppendMessage(ctx context.Context, message *domain.StoredMessage) error {
	createdAt := message.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO messages (chat_id, author, content, is_voice, has_errors, corrections, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		message.ChatID,
		string(message.Author),
		message.Content,
		message.IsVoice,
		message.HasErrors,
		message.Corrections,
		createdAt,
	).Scan(&message.ID)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	message.CreatedAt = createdAt
	return nil
}

func (r *PostgresStudentsRepository) RecentMessages(
	ctx context.Context,
	chatID int64,
	limit int,
) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, chat_id, author, content, is_voice, has_errors, corrections, created_at
		FROM (
			SELECT id, chat_id, author, content, is_voice, has_errors, corrections, created_at
			FROM messages
			WHERE chat_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]domain.StoredMessage, 0, limit)
	for rows.Next() {
		var (
			message domain.StoredMessage
			author  string
		)
		if err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&author,
			&message.Content,
			&message.IsVoice,
			&message.HasErrors,
			&message.Corrections,
			&message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		message.Author = domain.MessageAuthor(author)
		messages = append(messages, message)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}
	return messages, nil
}
