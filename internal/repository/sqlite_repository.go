package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anirudh9911/AI-Chatbot/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	query := "INSERT INTO chats (id, title, model, created_at, updated_at) VALUES (?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, chat.ID, chat.Title, chat.Model, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func (r *sqliteRepository) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	query := "SELECT id, title, model, created_at, updated_at FROM chats WHERE id = ?"
	row := r.db.QueryRowContext(ctx, query, chatID)
	var chat model.Chat
	err := row.Scan(&chat.ID, &chat.Title, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *sqliteRepository) GetChats(ctx context.Context) ([]*model.Chat, error) {
	query := "SELECT id, title, model, created_at, updated_at FROM chats ORDER BY updated_at DESC"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	chats := []*model.Chat{}
	for rows.Next() {
		var chat model.Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Model, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &chat)
	}
	return chats, rows.Err()
}

func (r *sqliteRepository) UpdateChatTitle(ctx context.Context, chatID, newTitle string) error {
	query := "UPDATE chats SET title = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, newTitle, time.Now().UTC(), chatID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteChat removes the chat; its messages go with it through ON DELETE CASCADE.
func (r *sqliteRepository) DeleteChat(ctx context.Context, chatID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AddMessage inserts the message and bumps the chat's updated_at in one transaction.
func (r *sqliteRepository) AddMessage(ctx context.Context, chatID string, message *model.Message) error {
	isLoading, searchInfo, err := encodeOptional(message)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	insertMsgQuery := `
		INSERT INTO messages (chat_id, id, is_user, type, content, is_loading, search_info, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, insertMsgQuery,
		chatID, message.ID, message.IsUser, message.Type, message.Content, isLoading, searchInfo, now,
	); err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	if err := touchChat(ctx, tx, chatID, now); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateMessage overwrites content, type, isLoading and searchInfo of an
// existing message.
func (r *sqliteRepository) UpdateMessage(ctx context.Context, chatID string, message *model.Message) error {
	isLoading, searchInfo, err := encodeOptional(message)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer rollback(tx)

	query := "UPDATE messages SET type = ?, content = ?, is_loading = ?, search_info = ? WHERE chat_id = ? AND id = ?"
	res, err := tx.ExecContext(ctx, query, message.Type, message.Content, isLoading, searchInfo, chatID, message.ID)
	if err != nil {
		return fmt.Errorf("could not update message: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if err := touchChat(ctx, tx, chatID, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteRepository) GetMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	query := `
		SELECT id, is_user, type, content, is_loading, search_info
		FROM messages
		WHERE chat_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	messages := []model.Message{}
	for rows.Next() {
		var msg model.Message
		var isLoading sql.NullBool
		var searchInfo sql.NullString

		if err := rows.Scan(&msg.ID, &msg.IsUser, &msg.Type, &msg.Content, &isLoading, &searchInfo); err != nil {
			return nil, err
		}
		if isLoading.Valid {
			msg.IsLoading = model.Bool(isLoading.Bool)
		}
		if searchInfo.Valid {
			var info model.SearchInfo
			if err := json.Unmarshal([]byte(searchInfo.String), &info); err != nil {
				return nil, fmt.Errorf("could not decode search info of message %d: %w", msg.ID, err)
			}
			msg.SearchInfo = &info
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *sqliteRepository) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ? AND id = ?", chatID, messageID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *sqliteRepository) ClearMessages(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID)
	return err
}

// InterruptedReplyContent replaces the empty content of a reply that was cut
// off before it produced any text.
const InterruptedReplyContent = "The reply was interrupted before it finished."

// FinalizeLoadingMessages turns replies left loading by a crash or an expired
// shutdown into completed error messages. Partial content is kept.
func (r *sqliteRepository) FinalizeLoadingMessages(ctx context.Context) (int64, error) {
	query := `
		UPDATE messages
		SET is_loading = 0,
			type = ?,
			content = CASE WHEN content = '' THEN ? ELSE content END
		WHERE is_loading = 1
	`
	res, err := r.db.ExecContext(ctx, query, model.MessageTypeError, InterruptedReplyContent)
	if err != nil {
		return 0, fmt.Errorf("could not finalize loading messages: %w", err)
	}
	return res.RowsAffected()
}

// encodeOptional maps absent optional fields to NULL.
func encodeOptional(message *model.Message) (sql.NullBool, sql.NullString, error) {
	var isLoading sql.NullBool
	if message.IsLoading != nil {
		isLoading = sql.NullBool{Bool: *message.IsLoading, Valid: true}
	}

	var searchInfo sql.NullString
	if message.SearchInfo != nil {
		data, err := json.Marshal(message.SearchInfo)
		if err != nil {
			return isLoading, searchInfo, fmt.Errorf("could not encode search info: %w", err)
		}
		searchInfo = sql.NullString{String: string(data), Valid: true}
	}
	return isLoading, searchInfo, nil
}

func touchChat(ctx context.Context, tx *sql.Tx, chatID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", now, chatID); err != nil {
		return fmt.Errorf("could not update chat timestamp: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Warn("Failed to roll back transaction", "error", err)
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Warn("Failed to close rows", "error", err)
	}
}
