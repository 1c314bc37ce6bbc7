package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"askpdf/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBStorer is the relational persistence boundary: chats, conversation
// turns, citation sets, usage counters, subscriptions and app settings.
type DBStorer interface {
	CreateChat(context.Context, types.Chat) error
	GetChat(context.Context, uuid.UUID) (*types.Chat, error)
	DeleteChat(context.Context, uuid.UUID) error

	SaveMessage(context.Context, types.Message) (uuid.UUID, error)
	ListMessages(context.Context, uuid.UUID) ([]types.Message, error)
	CountMessages(context.Context, uuid.UUID) (int, error)
	DeleteMessages(context.Context, uuid.UUID) error

	SaveSources(ctx context.Context, messageID, chatID uuid.UUID, sources []types.Source) error
	GetSourcesByMessage(context.Context, uuid.UUID) ([]types.Source, error)
	DeleteSources(ctx context.Context, chatID uuid.UUID) error

	GetUserSettings(ctx context.Context, userID string) (*types.UserSettings, error)
	IncrementMessageCount(ctx context.Context, userID string) error
	IncrementChatCount(ctx context.Context, userID string) error

	GetSubscription(ctx context.Context, userID string) (*types.Subscription, error)
	GetAppSetting(ctx context.Context, name string) (string, error)
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) CreateChat(ctx context.Context, chat types.Chat) error {
	query := `INSERT INTO chats (id, user_id, pdf_name, file_key, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := p.pool.Exec(ctx, query, chat.ID, chat.UserID, chat.PDFName, chat.FileKey, chat.CreatedAt)
	return err
}

func (p *PostgresStore) GetChat(ctx context.Context, chatID uuid.UUID) (*types.Chat, error) {
	chat := &types.Chat{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, pdf_name, file_key, created_at FROM chats WHERE id = $1`, chatID).
		Scan(&chat.ID, &chat.UserID, &chat.PDFName, &chat.FileKey, &chat.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", chatID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (p *PostgresStore) DeleteChat(ctx context.Context, chatID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	return err
}

func (p *PostgresStore) SaveMessage(ctx context.Context, m types.Message) (uuid.UUID, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	query := `INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := p.pool.Exec(ctx, query, m.ID, m.ChatID, string(m.Role), m.Content, m.CreatedAt)
	if err != nil {
		return uuid.Nil, err
	}
	return m.ID, nil
}

func (p *PostgresStore) ListMessages(ctx context.Context, chatID uuid.UUID) ([]types.Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, chat_id, role, content, created_at FROM messages
		 WHERE chat_id = $1 ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []types.Message
	for rows.Next() {
		var m types.Message
		var role string
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = types.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (p *PostgresStore) CountMessages(ctx context.Context, chatID uuid.UUID) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = $1`, chatID).Scan(&count)
	return count, err
}

func (p *PostgresStore) DeleteMessages(ctx context.Context, chatID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, chatID)
	return err
}

func (p *PostgresStore) SaveSources(ctx context.Context, messageID, chatID uuid.UUID, sources []types.Source) error {
	data, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	query := `INSERT INTO sources (id, message_id, chat_id, data, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = p.pool.Exec(ctx, query, uuid.New(), messageID, chatID, data, time.Now())
	return err
}

func (p *PostgresStore) GetSourcesByMessage(ctx context.Context, messageID uuid.UUID) ([]types.Source, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM sources WHERE message_id = $1`, messageID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sources []types.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (p *PostgresStore) DeleteSources(ctx context.Context, chatID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM sources WHERE chat_id = $1`, chatID)
	return err
}

// GetUserSettings returns the user's counters, creating the row with zero
// counts and no overrides on first touch.
func (p *PostgresStore) GetUserSettings(ctx context.Context, userID string) (*types.UserSettings, error) {
	s := &types.UserSettings{UserID: userID}
	err := p.pool.QueryRow(ctx,
		`SELECT message_count, chat_count, free_chats, free_messages
		 FROM user_settings WHERE user_id = $1`, userID).
		Scan(&s.MessageCount, &s.ChatCount, &s.FreeChats, &s.FreeMessages)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = p.pool.Exec(ctx,
			`INSERT INTO user_settings (id, user_id) VALUES ($1, $2)
			 ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) IncrementMessageCount(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE user_settings SET message_count = message_count + 1 WHERE user_id = $1`, userID)
	return err
}

func (p *PostgresStore) IncrementChatCount(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE user_settings SET chat_count = chat_count + 1 WHERE user_id = $1`, userID)
	return err
}

func (p *PostgresStore) GetSubscription(ctx context.Context, userID string) (*types.Subscription, error) {
	sub := &types.Subscription{UserID: userID}
	var priceID *string
	var periodEnd *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT price_id, current_period_end FROM subscriptions WHERE user_id = $1`, userID).
		Scan(&priceID, &periodEnd)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("subscription for %s: %w", userID, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if priceID != nil {
		sub.PriceID = *priceID
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return sub, nil
}

func (p *PostgresStore) GetAppSetting(ctx context.Context, name string) (string, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM app_settings WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("app setting %s: %w", name, types.ErrNotFound)
	}
	return value, err
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS chats (
		id UUID PRIMARY KEY,
		user_id VARCHAR(256) NOT NULL,
		pdf_name TEXT NOT NULL,
		file_key TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_chats_user_id ON chats(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id UUID PRIMARY KEY,
		chat_id UUID NOT NULL REFERENCES chats(id),
		role TEXT NOT NULL CHECK (role IN ('user','assistant')),
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id);

	CREATE TABLE IF NOT EXISTS sources (
		id UUID PRIMARY KEY,
		message_id UUID NOT NULL REFERENCES messages(id),
		chat_id UUID NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_sources_message_id ON sources(message_id);

	CREATE TABLE IF NOT EXISTS user_settings (
		id UUID PRIMARY KEY,
		user_id VARCHAR(256) NOT NULL UNIQUE,
		message_count INT NOT NULL DEFAULT 0,
		chat_count INT NOT NULL DEFAULT 0,
		free_chats INT,
		free_messages INT,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id UUID PRIMARY KEY,
		user_id VARCHAR(256) NOT NULL UNIQUE,
		price_id VARCHAR(256),
		current_period_end TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS app_settings (
		id UUID PRIMARY KEY,
		name VARCHAR(256) NOT NULL UNIQUE,
		value TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		file_key TEXT NOT NULL,
		page_number INT NOT NULL,
		chunk_length INT NOT NULL,
		preview TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(1536) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vectors_file_key ON vectors(file_key);
	CREATE INDEX IF NOT EXISTS idx_vectors_embedding ON vectors
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	`
	if _, err := p.pool.Exec(ctx, query); err != nil {
		return err
	}
	return p.seedAppSettings(ctx)
}

// seedAppSettings inserts the free-tier defaults unless an operator has
// already tuned them.
func (p *PostgresStore) seedAppSettings(ctx context.Context) error {
	defaults := map[string]string{
		SettingFreeChats:    "3",
		SettingFreeMessages: "10",
	}
	for name, value := range defaults {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO app_settings (id, name, value) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO NOTHING`, uuid.New(), name, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// Names of the process-wide settings the usage gate reads.
const (
	SettingFreeChats    = "free_chats"
	SettingFreeMessages = "free_messages"
)

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
