package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	chatCollection       = "chat_messages"
	automationCollection = "automation_logs"
	connectTimeout       = 10 * time.Second
)

// MongoStore implements Store on MongoDB.
type MongoStore struct {
	client *mongo.Client
	chat   *mongo.Collection
	logs   *mongo.Collection
}

// NewMongoStore connects to uri, selects dbName and ensures the
// session/timestamp indexes exist.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, mongoClientOptions().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	s := newMongoStore(client, client.Database(dbName))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// mongoClientOptions decodes nested documents as maps so intent data
// round-trips to JSON unchanged.
func mongoClientOptions() *options.ClientOptions {
	return options.Client().
		SetConnectTimeout(connectTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client: client,
		chat:   db.Collection(chatCollection),
		logs:   db.Collection(automationCollection),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.chat, s.logs} {
		_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// withoutID drops MongoDB's _id from returned documents.
var withoutID = bson.D{{Key: "_id", Value: 0}}

func (s *MongoStore) SaveMessage(ctx context.Context, msg *ChatMessage) error {
	prepareMessage(msg)
	msg.Timestamp = msg.Timestamp.UTC()

	_, err := s.chat.ReplaceOne(ctx, bson.D{{Key: "id", Value: msg.ID}}, msg,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving chat message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *MongoStore) GetMessage(ctx context.Context, id string) (*ChatMessage, error) {
	var msg ChatMessage
	err := s.chat.FindOne(ctx, bson.D{{Key: "id", Value: id}},
		options.FindOne().SetProjection(withoutID)).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat message %s: %w", id, err)
	}
	return &msg, nil
}

func (s *MongoStore) UpdateApproval(ctx context.Context, id string, update ApprovalUpdate) error {
	set := bson.D{{Key: "approved", Value: update.Approved}}
	if update.Approved {
		set = append(set,
			bson.E{Key: "n8n_response", Value: update.N8NResponse},
			bson.E{Key: "edited_data", Value: update.EditedData})
	}

	result, err := s.chat.UpdateOne(ctx, bson.D{{Key: "id", Value: id}}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return fmt.Errorf("updating approval of %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) History(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetLimit(int64(limitOr(limit, DefaultHistoryLimit))).
		SetProjection(withoutID)

	cursor, err := s.chat.Find(ctx, bson.D{{Key: "session_id", Value: sessionID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}

	out := []ChatMessage{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding chat history: %w", err)
	}
	return out, nil
}

func (s *MongoStore) ClearHistory(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.chat.DeleteMany(ctx, bson.D{{Key: "session_id", Value: sessionID}})
	if err != nil {
		return 0, fmt.Errorf("clearing chat history: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) SaveAutomationLog(ctx context.Context, log *AutomationLog) error {
	prepareLog(log)
	log.Timestamp = log.Timestamp.UTC()

	if _, err := s.logs.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("saving automation log %s: %w", log.ID, err)
	}
	return nil
}

func (s *MongoStore) AutomationHistory(ctx context.Context, sessionID string, limit int) ([]AutomationLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limitOr(limit, DefaultAutomationHistoryLimit))).
		SetProjection(withoutID)

	cursor, err := s.logs.Find(ctx, bson.D{{Key: "session_id", Value: sessionID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying automation history: %w", err)
	}

	out := []AutomationLog{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding automation history: %w", err)
	}
	return out, nil
}

// Ping checks connectivity with the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
