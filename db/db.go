package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wabridge/whatsapp-mcp/models"
)

// DB caches chats and messages seen through the bridge in SQLite
type DB interface {
	StoreChat(ctx context.Context, chat models.Chat) error
	StoreMessage(ctx context.Context, msg models.Message) error
	GetMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
	GetChats(ctx context.Context, limit, offset int) ([]models.Chat, error)
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	Close() error
}

type db struct {
	db *sql.DB
}

// NewDB creates a new database
func NewDB(ctx context.Context, dir string) (DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %v", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, "cache.db")))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}

	db := &db{conn}
	if err := db.initDB(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	return db, nil
}

func (s *db) initDB(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`)
	if err != nil {
		return fmt.Errorf("failed to set journal mode: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			name TEXT,
			is_group BOOLEAN,
			last_message TEXT,
			last_message_time TIMESTAMP,
			participant_count INTEGER
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create chats table: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT,
			chat_id TEXT,
			sender TEXT,
			content TEXT,
			timestamp TIMESTAMP,
			is_from_me BOOLEAN,
			PRIMARY KEY (id, chat_id),
			FOREIGN KEY (chat_id) REFERENCES chats(id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create messages table: %v", err)
	}

	_, err = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_chat_timestamp ON messages(chat_id, timestamp);`)
	if err != nil {
		return fmt.Errorf("failed to create chat_timestamp index: %v", err)
	}

	return nil
}

func (s *db) Close() error {
	return s.db.Close()
}

// StoreChat stores a chat in the database
func (s *db) StoreChat(ctx context.Context, chat models.Chat) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chats
		(id, name, is_group, last_message, last_message_time, participant_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.Name, chat.IsGroup, chat.LastMessage, chat.LastMessageTime, chat.ParticipantCount,
	)
	return err
}

// StoreMessage stores a message in the database
func (s *db) StoreMessage(ctx context.Context, msg models.Message) error {
	if msg.Content == "" {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages
		(id, chat_id, sender, content, timestamp, is_from_me)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Sender, msg.Content, msg.Timestamp, msg.IsFromMe,
	)
	return err
}

// GetMessages retrieves messages from a chat, newest first
func (s *db) GetMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, chat_id, sender, content, timestamp, is_from_me FROM messages WHERE chat_id = ? ORDER BY timestamp DESC LIMIT ?",
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg := models.Message{}
		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Sender, &msg.Content, &msg.Timestamp, &msg.IsFromMe)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// GetChats retrieves cached chats ordered by recency
func (s *db) GetChats(ctx context.Context, limit, offset int) ([]models.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, is_group, last_message, last_message_time, participant_count
		FROM chats ORDER BY last_message_time DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat := models.Chat{}
		var name, lastMessage sql.NullString
		var lastMessageTime sql.NullTime
		err := rows.Scan(&chat.ID, &name, &chat.IsGroup, &lastMessage, &lastMessageTime, &chat.ParticipantCount)
		if err != nil {
			return nil, err
		}
		chat.Name = name.String
		chat.LastMessage = lastMessage.String
		if lastMessageTime.Valid {
			chat.LastMessageTime = lastMessageTime.Time
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

// GetChat retrieves a specific chat
func (s *db) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	chat := &models.Chat{}
	var name, lastMessage sql.NullString
	var lastMessageTime sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_group, last_message, last_message_time, participant_count
		FROM chats WHERE id = ?`,
		id,
	).Scan(&chat.ID, &name, &chat.IsGroup, &lastMessage, &lastMessageTime, &chat.ParticipantCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chat.Name = name.String
	chat.LastMessage = lastMessage.String
	if lastMessageTime.Valid {
		chat.LastMessageTime = lastMessageTime.Time
	}
	return chat, nil
}
