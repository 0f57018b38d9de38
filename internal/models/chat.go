package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Chat represents a conversation stored in MongoDB
type Chat struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ChatID    string             `bson:"chatId" json:"id"` // Server-generated UUID
	UserID    string             `bson:"userId,omitempty" json:"user_id,omitempty"`
	Messages  []Message          `bson:"messages" json:"messages"`
	Context   string             `bson:"context" json:"-"` // JSON-serialized []WebSource, optionally encrypted
	Version   int64              `bson:"version" json:"version"` // Optimistic locking
	CreatedAt time.Time          `bson:"createdAt" json:"created_at"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updated_at"`
}

// Message is a single turn in a conversation, attributed to the user or the
// assistant. Turns are append-only.
type Message struct {
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// WebSource is the extracted text content of one fetched URL. Immutable once
// created; the JSON field names match the serialized context format.
type WebSource struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// QueryResult is the outcome of resolving one query. Ephemeral: it is only
// persisted as a pair of turns on the chat.
type QueryResult struct {
	Answer         string `json:"response"`
	ExtendedSearch bool   `json:"extended_search"`
}

// QueryRequest is the request body for POST /api/query
type QueryRequest struct {
	Query  string `json:"query"`
	ChatID string `json:"chat_id,omitempty"`
}

// CreateChatRequest is the request body for POST /api/chats
type CreateChatRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// AddMessageRequest is the request body for POST /api/chats/:id/messages
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatListItem is a summary of a chat for listing (no messages)
type ChatListItem struct {
	ChatID       string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
