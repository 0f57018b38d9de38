package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"webresearch/internal/crypto"
	"webresearch/internal/database"
	"webresearch/internal/errs"
	"webresearch/internal/models"
)

// casAttempts bounds the optimistic-locking retry loop on context writes.
// Exhaustion drops the write: concurrent queries on one chat may lose a
// context update, which is an accepted limitation.
const casAttempts = 3

// ChatService persists conversations and their cached web context in MongoDB.
// Cached context is stored as a JSON-serialized source list, optionally
// encrypted at rest with a per-chat key.
type ChatService struct {
	collection *mongo.Collection
	encryption *crypto.EncryptionService // nil disables encryption at rest
}

// NewChatService creates a chat service. encryption may be nil.
func NewChatService(db *database.MongoDB, encryption *crypto.EncryptionService) *ChatService {
	return &ChatService{
		collection: db.Collection(database.CollectionChats),
		encryption: encryption,
	}
}

// Create inserts a new empty chat and returns it.
func (s *ChatService) Create(ctx context.Context, userID string) (*models.Chat, error) {
	now := time.Now()
	chat := &models.Chat{
		ChatID:    uuid.NewString(),
		UserID:    userID,
		Messages:  []models.Message{},
		Context:   "",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := s.collection.InsertOne(ctx, chat); err != nil {
		return nil, errs.Persistence("create chat", err)
	}

	log.Printf("✅ Created chat %s", chat.ChatID)
	return chat, nil
}

// GetByID returns the chat with the given ID, or ErrNotFound.
func (s *ChatService) GetByID(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := s.collection.FindOne(ctx, bson.M{"chatId": chatID}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, errs.Persistence("get chat", err)
	}
	return &chat, nil
}

// List returns chat summaries sorted by most recently updated.
func (s *ChatService) List(ctx context.Context) ([]models.ChatListItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errs.Persistence("list chats", err)
	}
	defer cursor.Close(ctx)

	items := []models.ChatListItem{}
	for cursor.Next(ctx) {
		var chat models.Chat
		if err := cursor.Decode(&chat); err != nil {
			return nil, errs.Persistence("decode chat", err)
		}
		items = append(items, models.ChatListItem{
			ChatID:       chat.ChatID,
			UserID:       chat.UserID,
			MessageCount: len(chat.Messages),
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, errs.Persistence("iterate chats", err)
	}
	return items, nil
}

// AppendMessages appends turns to a chat. Turns are append-only: $push cannot
// lose concurrent appends, so no version check is needed here.
func (s *ChatService) AppendMessages(ctx context.Context, chatID string, messages ...models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	update := bson.M{
		"$push": bson.M{"messages": bson.M{"$each": messages}},
		"$set":  bson.M{"updatedAt": time.Now()},
		"$inc":  bson.M{"version": 1},
	}

	result, err := s.collection.UpdateOne(ctx, bson.M{"chatId": chatID}, update)
	if err != nil {
		return errs.Persistence("append messages", err)
	}
	if result.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// LoadContext deserializes a chat's cached web sources. Malformed or
// undecryptable context is treated as "no cache": it is reset to empty
// (best effort) rather than surfaced as an error.
func (s *ChatService) LoadContext(ctx context.Context, chat *models.Chat) []models.WebSource {
	if chat.Context == "" {
		return nil
	}

	raw := []byte(chat.Context)
	if s.encryption != nil {
		decrypted, err := s.encryption.Decrypt(chat.ChatID, chat.Context)
		if err != nil {
			log.Printf("⚠️ Failed to decrypt context for chat %s, resetting: %v", chat.ChatID, err)
			s.resetContext(ctx, chat.ChatID)
			return nil
		}
		raw = decrypted
	}

	sources, err := parseContext(raw)
	if err != nil {
		log.Printf("⚠️ Malformed cached context for chat %s, resetting: %v", chat.ChatID, err)
		s.resetContext(ctx, chat.ChatID)
		return nil
	}
	return sources
}

// SaveContext stores the full source list on a chat, replacing what was
// there. Uses compare-and-swap on the version field with bounded retries.
func (s *ChatService) SaveContext(ctx context.Context, chatID string, sources []models.WebSource) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		chat, err := s.GetByID(ctx, chatID)
		if err != nil {
			return err
		}

		swapped, err := s.swapContext(ctx, chat, sources)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return errs.Persistence("save context", fmt.Errorf("version conflict after %d attempts", casAttempts))
}

// AppendContextSource reloads the persisted context, appends one source, and
// writes it back under compare-and-swap. Duplicate URLs are intentionally not
// deduplicated; the same page can appear in both the initial batch and an
// extended search.
func (s *ChatService) AppendContextSource(ctx context.Context, chatID string, source models.WebSource) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		chat, err := s.GetByID(ctx, chatID)
		if err != nil {
			return err
		}

		sources := s.LoadContext(ctx, chat)
		sources = append(sources, source)

		swapped, err := s.swapContext(ctx, chat, sources)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return errs.Persistence("append context source", fmt.Errorf("version conflict after %d attempts", casAttempts))
}

// DeleteIdleBefore removes chats whose last update is older than cutoff.
func (s *ChatService) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"updatedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, errs.Persistence("delete idle chats", err)
	}
	return result.DeletedCount, nil
}

// swapContext writes the serialized source list if the chat's version has not
// moved. Returns false (and no error) on a version conflict.
func (s *ChatService) swapContext(ctx context.Context, chat *models.Chat, sources []models.WebSource) (bool, error) {
	serialized, err := renderContext(sources)
	if err != nil {
		return false, errs.Persistence("serialize context", err)
	}

	stored := serialized
	if s.encryption != nil && serialized != "" {
		stored, err = s.encryption.Encrypt(chat.ChatID, []byte(serialized))
		if err != nil {
			return false, errs.Persistence("encrypt context", err)
		}
	}

	filter := bson.M{"chatId": chat.ChatID, "version": chat.Version}
	update := bson.M{
		"$set": bson.M{"context": stored, "updatedAt": time.Now()},
		"$inc": bson.M{"version": 1},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, errs.Persistence("write context", err)
	}
	return result.MatchedCount == 1, nil
}

// resetContext clears a chat's cached context. Best effort: failures are
// logged, not returned, since the caller already degrades to an empty cache.
func (s *ChatService) resetContext(ctx context.Context, chatID string) {
	update := bson.M{
		"$set": bson.M{"context": ""},
		"$inc": bson.M{"version": 1},
	}
	if _, err := s.collection.UpdateOne(ctx, bson.M{"chatId": chatID}, update); err != nil {
		log.Printf("⚠️ Failed to reset context for chat %s: %v", chatID, err)
	}
}

// parseContext deserializes the stored source list.
func parseContext(raw []byte) ([]models.WebSource, error) {
	var sources []models.WebSource
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// renderContext serializes a source list for storage. An empty list renders
// as the empty string, which reads back as "not yet fetched".
func renderContext(sources []models.WebSource) (string, error) {
	if len(sources) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
