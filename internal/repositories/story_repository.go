package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StoryRepository defines the interface for story operations. Every read
// takes the evaluation instant and filters on expires_at itself, so results
// never depend on whether a purge has run.
type StoryRepository interface {
	CreateStory(ctx context.Context, story *models.Story) error
	GetStoryByID(ctx context.Context, id string) (*models.Story, error)
	GetActiveStoriesByUser(ctx context.Context, userID uint, now time.Time) ([]models.Story, error)
	GetActiveStoriesByUsers(ctx context.Context, userIDs []uint, now time.Time) ([]models.Story, error)
	DeleteStory(ctx context.Context, id string) error
	DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error)
}

type mongoStoryRepository struct {
	collection *mongo.Collection
}

func NewStoryRepository(mongoDB *mongo.Database) StoryRepository {
	return &mongoStoryRepository{collection: mongoDB.Collection("stories")}
}

// EnsureStoryIndexes creates the owner/created_at index and a TTL index on
// expires_at. The TTL monitor only reclaims storage; reads filter regardless.
func EnsureStoryIndexes(ctx context.Context, mongoDB *mongo.Database) error {
	_, err := mongoDB.Collection("stories").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	return err
}

// CreateStory inserts a story; the caller has already stamped CreatedAt and ExpiresAt
func (r *mongoStoryRepository) CreateStory(ctx context.Context, story *models.Story) error {
	story.ID = primitive.NewObjectID()
	_, err := r.collection.InsertOne(ctx, story)
	return err
}

func (r *mongoStoryRepository) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var story models.Story
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&story); err != nil {
		return nil, translate(err)
	}
	return &story, nil
}

func (r *mongoStoryRepository) GetActiveStoriesByUser(ctx context.Context, userID uint, now time.Time) ([]models.Story, error) {
	return r.findActive(ctx, bson.M{"user_id": userID}, now)
}

func (r *mongoStoryRepository) GetActiveStoriesByUsers(ctx context.Context, userIDs []uint, now time.Time) ([]models.Story, error) {
	if len(userIDs) == 0 {
		return []models.Story{}, nil
	}
	return r.findActive(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, now)
}

func (r *mongoStoryRepository) findActive(ctx context.Context, filter bson.M, now time.Time) ([]models.Story, error) {
	filter["expires_at"] = bson.M{"$gt": now}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stories := make([]models.Story, 0)
	if err = cursor.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

func (r *mongoStoryRepository) DeleteStory(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoStoryRepository) DeleteExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
