package inmemdb

import (
	"context"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

type settingsRepository struct {
	db *settingsTable
}

var _ grade.SettingsRepository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) grade.SettingsRepository {
	return &settingsRepository{db: db.settings}
}

func (repo *settingsRepository) GetGradeConfig(_ context.Context, schoolID string, _ ...core.DBExecutor) (grade.Config, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	cfg, ok := repo.db.table[schoolID]
	if !ok {
		return grade.Config{}, grade.ErrNotFound
	}
	return cfg, nil
}

func (repo *settingsRepository) SaveGradeConfig(_ context.Context, schoolID string, cfg grade.Config, _ ...core.DBExecutor) (grade.Config, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table[schoolID] = cfg
	return cfg, nil
}
