package server

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/verdant-labs/forestwatch/internal/store"
)

type mockTreeWriter struct {
	mock.Mock
}

func (m *mockTreeWriter) TreeById(ctx context.Context, treeId string) (store.Tree, error) {
	args := m.Called(ctx, treeId)

	return args.Get(0).(store.Tree), args.Error(1)
}

func (m *mockTreeWriter) CountTrees(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTreeWriter) CountTreesByForest(ctx context.Context, forestId string) (int64, error) {
	args := m.Called(ctx, forestId)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTreeWriter) RecentTreesByForest(ctx context.Context, forestId string, limit int64) ([]store.Tree, error) {
	args := m.Called(ctx, forestId, limit)

	return args.Get(0).([]store.Tree), args.Error(1)
}

func (m *mockTreeWriter) SaveTree(ctx context.Context, tree store.Tree) (store.Tree, error) {
	args := m.Called(ctx, tree)

	return args.Get(0).(store.Tree), args.Error(1)
}

func (m *mockTreeWriter) UpdateTree(ctx context.Context, treeId string, changes map[string]any) (store.Tree, error) {
	args := m.Called(ctx, treeId, changes)

	return args.Get(0).(store.Tree), args.Error(1)
}

type mockForestWriter struct {
	mock.Mock
}

func (m *mockForestWriter) ForestById(ctx context.Context, forestId string) (store.Forest, error) {
	args := m.Called(ctx, forestId)

	return args.Get(0).(store.Forest), args.Error(1)
}

func (m *mockForestWriter) CountActiveForests(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func (m *mockForestWriter) SaveForest(ctx context.Context, forest store.Forest) (store.Forest, error) {
	args := m.Called(ctx, forest)

	return args.Get(0).(store.Forest), args.Error(1)
}

func (m *mockForestWriter) UpdateForest(ctx context.Context, forestId string, changes map[string]any) (store.Forest, error) {
	args := m.Called(ctx, forestId, changes)

	return args.Get(0).(store.Forest), args.Error(1)
}

type mockImageWriter struct {
	mock.Mock
}

func (m *mockImageWriter) RecentImages(ctx context.Context, limit int64) ([]store.TreeImage, error) {
	args := m.Called(ctx, limit)

	return args.Get(0).([]store.TreeImage), args.Error(1)
}

func (m *mockImageWriter) SaveImage(ctx context.Context, image store.TreeImage) (store.TreeImage, error) {
	args := m.Called(ctx, image)

	return args.Get(0).(store.TreeImage), args.Error(1)
}

type mockAuditReader struct {
	mock.Mock
}

func (m *mockAuditReader) RecentEntries(ctx context.Context, limit int64) ([]store.AuditEntry, error) {
	args := m.Called(ctx, limit)

	return args.Get(0).([]store.AuditEntry), args.Error(1)
}

func (m *mockAuditReader) UserStats(ctx context.Context, userId string) (store.UserStats, error) {
	args := m.Called(ctx, userId)

	return args.Get(0).(store.UserStats), args.Error(1)
}
