// Package msgstore is the persistent publish-subscribe message store.
// It is the only coordination channel between personas: planner results,
// spoken output and user messages all land here as topic-scoped
// messages. Machine state is never persisted; only messages are.
package msgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Message is one stored pub-sub message.
type Message struct {
	Seq       int64
	ID        string
	Topic     string
	Sender    string
	Body      string
	CreatedAt time.Time
}

// Store wraps the sqlite database holding all messages.
type Store struct {
	db    *sql.DB
	index *Index // optional full-text recall index
}

// Open opens (or creates) the store at dbPath. WAL mode keeps concurrent
// persona readers cheap while writes stay serialized.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open message store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping message store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize message store schema: %w", err)
	}
	return s, nil
}

// Close closes the database and the recall index, if attached.
func (s *Store) Close() error {
	if s.index != nil {
		s.index.Close()
	}
	return s.db.Close()
}

// AttachIndex wires a full-text recall index; every subsequent Publish
// is indexed as well as stored.
func (s *Store) AttachIndex(index *Index) { s.index = index }

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		topic      TEXT NOT NULL,
		sender     TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_topic_seq ON messages(topic, seq);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Publish appends one message to a topic and returns it with its
// assigned sequence number.
func (s *Store) Publish(ctx context.Context, topic, sender, body string) (Message, error) {
	if topic == "" {
		return Message{}, fmt.Errorf("topic must not be empty")
	}
	msg := Message{
		ID:        uuid.NewString(),
		Topic:     topic,
		Sender:    sender,
		Body:      body,
		CreatedAt: time.Now(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, topic, sender, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Topic, msg.Sender, msg.Body, msg.CreatedAt.Unix(),
	)
	if err != nil {
		return Message{}, fmt.Errorf("failed to publish message: %w", err)
	}
	msg.Seq, err = res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("failed to read message seq: %w", err)
	}

	if s.index != nil {
		if err := s.index.Add(msg); err != nil {
			// Recall is best effort; the message is durably stored.
			return msg, nil
		}
	}
	return msg, nil
}

// ReadSince returns up to limit messages of a topic with seq greater
// than afterSeq, oldest first. afterSeq 0 reads from the beginning.
func (s *Store) ReadSince(ctx context.Context, topic string, afterSeq int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, topic, sender, body, created_at FROM messages
		 WHERE topic = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		topic, afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.Seq, &m.ID, &m.Topic, &m.Sender, &m.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Get fetches one message by its ID.
func (s *Store) Get(ctx context.Context, id string) (Message, error) {
	var m Message
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT seq, id, topic, sender, body, created_at FROM messages WHERE id = ?`, id,
	).Scan(&m.Seq, &m.ID, &m.Topic, &m.Sender, &m.Body, &createdAt)
	if err == sql.ErrNoRows {
		return Message{}, fmt.Errorf("message not found: %s", id)
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to get message: %w", err)
	}
	m.CreatedAt = time.Unix(createdAt, 0)
	return m, nil
}

// Topics lists all topics that have at least one message.
func (s *Store) Topics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT topic FROM messages ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// Recall runs a full-text query over stored messages via the attached
// index and resolves the hits back to messages.
func (s *Store) Recall(ctx context.Context, query string, limit int) ([]Message, error) {
	if s.index == nil {
		return nil, fmt.Errorf("no recall index attached")
	}
	ids, err := s.index.Search(query, limit)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if err != nil {
			continue // index may be ahead of or behind the table
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
