package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionLearningRecords = "learning_records"
	CollectionPatternMetrics  = "pattern_metrics"
	CollectionUserSkills      = "user_skills"
	CollectionSkillTrials     = "skill_trials"
	CollectionUsageEvents     = "usage_events"
)

// NewMongoDB creates a new MongoDB connection with connection pooling
func NewMongoDB(uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "acey"
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from a MongoDB URI
// mongodb://localhost:27017/acey?authSource=admin -> acey
func extractDBName(uri string) string {
	lastSlash := -1
	questionMark := -1

	for i, c := range uri {
		if c == '/' {
			lastSlash = i
		}
		if c == '?' && questionMark == -1 {
			questionMark = i
		}
	}

	if lastSlash != -1 {
		start := lastSlash + 1
		end := len(uri)
		if questionMark != -1 && questionMark > lastSlash {
			end = questionMark
		}
		if start < end {
			dbName := uri[start:end]
			if dbName != "" {
				return dbName
			}
		}
	}

	return "acey"
}

// Initialize creates indexes for all collections
func (m *MongoDB) Initialize(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	learningColl := m.Collection(CollectionLearningRecords)
	learningIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "skillId", Value: 1}, {Key: "contentType", Value: 1}},
			Options: options.Index().SetName("idx_skill_content"),
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_timestamp"),
		},
	}
	if _, err := learningColl.Indexes().CreateMany(ctx, learningIndexes); err != nil {
		return fmt.Errorf("failed to create learning_records indexes: %w", err)
	}

	userSkillsColl := m.Collection(CollectionUserSkills)
	userSkillIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "skillId", Value: 1}},
			Options: options.Index().SetName("idx_user_skill").SetUnique(true),
		},
	}
	if _, err := userSkillsColl.Indexes().CreateMany(ctx, userSkillIndexes); err != nil {
		return fmt.Errorf("failed to create user_skills indexes: %w", err)
	}

	trialsColl := m.Collection(CollectionSkillTrials)
	trialIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "skillId", Value: 1}},
			Options: options.Index().SetName("idx_trial_user_skill").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("idx_trial_expiry").SetExpireAfterSeconds(0),
		},
	}
	if _, err := trialsColl.Indexes().CreateMany(ctx, trialIndexes); err != nil {
		return fmt.Errorf("failed to create skill_trials indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized")
	return nil
}

// Collection returns a handle to the named collection
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Database returns the underlying database handle
func (m *MongoDB) Database() *mongo.Database {
	return m.database
}

// Close disconnects from MongoDB
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}
