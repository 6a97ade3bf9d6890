package sql

import (
	"context"

	"gorm.io/gorm/clause"

	"tempmail/worker/internal/domain"
)

// ========== Alias Repository ==========

// InsertAlias 插入地址，主键冲突时忽略
func (s *Store) InsertAlias(ctx context.Context, address string) error {
	err := s.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Alias{Address: address}).Error
	if err != nil {
		return storageError("insert alias", err)
	}
	return nil
}

// CountAliases 返回地址总数
func (s *Store) CountAliases(ctx context.Context) (int64, error) {
	var count int64
	if err := s.gormDB.WithContext(ctx).Model(&domain.Alias{}).Count(&count).Error; err != nil {
		return 0, storageError("count aliases", err)
	}
	return count, nil
}
