package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/verdant-labs/forestwatch/internal/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// auditRetention bounds how long audit entries are kept for the
// recent-activity feed. 90 days, enforced by a TTL index.
const auditRetention = 90 * 24 * 60 * 60

type Engine struct {
	trees   *mongo.Collection
	forests *mongo.Collection
	images  *mongo.Collection
	audit   *mongo.Collection
}

func NewEngine(client *mongo.Client, databaseName string) *Engine {
	database := client.Database(databaseName)

	return &Engine{
		trees:   database.Collection("trees"),
		forests: database.Collection("forests"),
		images:  database.Collection("tree_images"),
		audit:   database.Collection("audit_log"),
	}
}

func (e *Engine) Setup(ctx context.Context) error {
	ttlIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "timestamp", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(auditRetention),
	}

	_, err := e.audit.Indexes().CreateOne(ctx, ttlIndexModel)
	if err != nil {
		return err
	}

	forestIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "forestId", Value: 1},
			{Key: "plantedAt", Value: -1},
		},
	}

	_, err = e.trees.Indexes().CreateOne(ctx, forestIndexModel)
	if err != nil {
		return err
	}

	treeImageIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "treeId", Value: 1},
			{Key: "uploadedAt", Value: -1},
		},
	}

	_, err = e.images.Indexes().CreateOne(ctx, treeImageIndexModel)

	return err
}

func (e *Engine) TreeById(ctx context.Context, treeId string) (store.Tree, error) {
	var tree store.Tree

	err := e.trees.FindOne(ctx, bson.M{"_id": treeId}).Decode(&tree)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Tree{}, store.ErrNotFound
	}

	return tree, err
}

func (e *Engine) CountTrees(ctx context.Context) (int64, error) {
	return e.trees.EstimatedDocumentCount(ctx)
}

func (e *Engine) CountTreesByForest(ctx context.Context, forestId string) (int64, error) {
	return e.trees.CountDocuments(ctx, bson.M{"forestId": forestId})
}

func (e *Engine) RecentTreesByForest(ctx context.Context, forestId string, limit int64) ([]store.Tree, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "plantedAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := e.trees.Find(ctx, bson.M{"forestId": forestId}, opts)
	if err != nil {
		return nil, err
	}

	var trees []store.Tree
	err = cursor.All(ctx, &trees)

	return trees, err
}

func (e *Engine) SaveTree(ctx context.Context, tree store.Tree) (store.Tree, error) {
	if tree.Id == "" {
		tree.Id = bson.NewObjectID().Hex()
	}
	tree.UpdatedAt = time.Now()

	_, err := e.trees.InsertOne(ctx, tree)

	return tree, err
}

func (e *Engine) UpdateTree(ctx context.Context, treeId string, changes map[string]any) (store.Tree, error) {
	changes["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var tree store.Tree
	err := e.trees.
		FindOneAndUpdate(ctx, bson.M{"_id": treeId}, bson.M{"$set": changes}, opts).
		Decode(&tree)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Tree{}, store.ErrNotFound
	}

	return tree, err
}

func (e *Engine) ForestById(ctx context.Context, forestId string) (store.Forest, error) {
	var forest store.Forest

	err := e.forests.FindOne(ctx, bson.M{"_id": forestId}).Decode(&forest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Forest{}, store.ErrNotFound
	}

	return forest, err
}

func (e *Engine) CountActiveForests(ctx context.Context) (int64, error) {
	return e.forests.CountDocuments(ctx, bson.M{"status": "active"})
}

func (e *Engine) SaveForest(ctx context.Context, forest store.Forest) (store.Forest, error) {
	if forest.Id == "" {
		forest.Id = bson.NewObjectID().Hex()
	}
	forest.UpdatedAt = time.Now()

	_, err := e.forests.InsertOne(ctx, forest)

	return forest, err
}

func (e *Engine) UpdateForest(ctx context.Context, forestId string, changes map[string]any) (store.Forest, error) {
	changes["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var forest store.Forest
	err := e.forests.
		FindOneAndUpdate(ctx, bson.M{"_id": forestId}, bson.M{"$set": changes}, opts).
		Decode(&forest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.Forest{}, store.ErrNotFound
	}

	return forest, err
}

func (e *Engine) RecentImages(ctx context.Context, limit int64) ([]store.TreeImage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "uploadedAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := e.images.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var images []store.TreeImage
	err = cursor.All(ctx, &images)

	return images, err
}

func (e *Engine) SaveImage(ctx context.Context, image store.TreeImage) (store.TreeImage, error) {
	if image.Id == "" {
		image.Id = bson.NewObjectID().Hex()
	}
	if image.UploadedAt.IsZero() {
		image.UploadedAt = time.Now()
	}

	_, err := e.images.InsertOne(ctx, image)

	return image, err
}

func (e *Engine) RecentEntries(ctx context.Context, limit int64) ([]store.AuditEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := e.audit.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}

	var entries []store.AuditEntry
	err = cursor.All(ctx, &entries)

	return entries, err
}

func (e *Engine) UserStats(ctx context.Context, userId string) (store.UserStats, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"userId": userId}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"actions": bson.M{"$sum": 1},
			"treesTouched": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$resource", "tree"}}, 1, 0},
			}},
			"imagesUploaded": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$action", "image:upload"}}, 1, 0},
			}},
			"lastActivity": bson.M{"$max": "$timestamp"},
		}}},
	}

	cursor, err := e.audit.Aggregate(ctx, pipeline)
	if err != nil {
		return store.UserStats{}, err
	}

	var results []struct {
		Actions        int64      `bson:"actions"`
		TreesTouched   int64      `bson:"treesTouched"`
		ImagesUploaded int64      `bson:"imagesUploaded"`
		LastActivity   *time.Time `bson:"lastActivity"`
	}
	err = cursor.All(ctx, &results)
	if err != nil {
		return store.UserStats{}, err
	}

	stats := store.UserStats{UserId: userId}
	if len(results) > 0 {
		stats.Actions = results[0].Actions
		stats.TreesTouched = results[0].TreesTouched
		stats.ImagesUploaded = results[0].ImagesUploaded
		stats.LastActivity = results[0].LastActivity
	}

	return stats, nil
}
