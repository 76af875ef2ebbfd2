package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by id-keyed lookups when the record does not exist.
var ErrNotFound = errors.New("record not found")

type Tree struct {
	Id        string    `json:"_id" bson:"_id"`
	ForestId  string    `json:"forestId" bson:"forestId"`
	Species   string    `json:"species" bson:"species"`
	Height    float64   `json:"height" bson:"height"`
	Health    string    `json:"health" bson:"health"`
	PlantedAt time.Time `json:"plantedAt" bson:"plantedAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type Forest struct {
	Id        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Region    string    `json:"region" bson:"region"`
	AreaHa    float64   `json:"areaHa" bson:"areaHa"`
	Status    string    `json:"status" bson:"status"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type TreeImage struct {
	Id         string    `json:"_id" bson:"_id"`
	TreeId     string    `json:"treeId" bson:"treeId"`
	Url        string    `json:"url" bson:"url"`
	UploadedBy string    `json:"uploadedBy" bson:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

type AuditEntry struct {
	Id         string    `json:"_id" bson:"_id"`
	UserId     string    `json:"userId" bson:"userId"`
	Action     string    `json:"action" bson:"action"`
	Resource   string    `json:"resource" bson:"resource"`
	ResourceId string    `json:"resourceId" bson:"resourceId"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

type UserStats struct {
	UserId         string     `json:"userId"`
	Actions        int64      `json:"actions"`
	TreesTouched   int64      `json:"treesTouched"`
	ImagesUploaded int64      `json:"imagesUploaded"`
	LastActivity   *time.Time `json:"lastActivity,omitempty"`
}

type TreeStore interface {
	TreeById(ctx context.Context, treeId string) (Tree, error)
	CountTrees(ctx context.Context) (int64, error)
	CountTreesByForest(ctx context.Context, forestId string) (int64, error)
	RecentTreesByForest(ctx context.Context, forestId string, limit int64) ([]Tree, error)

	SaveTree(ctx context.Context, tree Tree) (Tree, error)
	UpdateTree(ctx context.Context, treeId string, changes map[string]any) (Tree, error)
}

type ForestStore interface {
	ForestById(ctx context.Context, forestId string) (Forest, error)
	CountActiveForests(ctx context.Context) (int64, error)

	SaveForest(ctx context.Context, forest Forest) (Forest, error)
	UpdateForest(ctx context.Context, forestId string, changes map[string]any) (Forest, error)
}

type ImageStore interface {
	RecentImages(ctx context.Context, limit int64) ([]TreeImage, error)
	SaveImage(ctx context.Context, image TreeImage) (TreeImage, error)
}

type AuditStore interface {
	RecentEntries(ctx context.Context, limit int64) ([]AuditEntry, error)
	UserStats(ctx context.Context, userId string) (UserStats, error)
}
