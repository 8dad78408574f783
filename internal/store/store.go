package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/common/middleware"
	"github.com/VCRTS/VCRTS/internal/job"
	"github.com/VCRTS/VCRTS/internal/vehicle"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 把内存权威状态写透到 MySQL，用作持久留痕。
// 写入经熔断器保护：数据库抖动时快速失败，不拖垮命令处理。
// 同时实现 account.Recorder 与 dispatch.Recorder。
type GormStore struct {
	db *gorm.DB
	cb *middleware.CircuitBreaker
}

// NewGormStore 创建存储并迁移表结构。
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := db.AutoMigrate(&AccountRecord{}, &VehicleRecord{}, &JobRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &GormStore{
		db: db,
		cb: middleware.NewCircuitBreaker("store", 5, 30*time.Second),
	}, nil
}

// SaveAccount 账户写透（account.Recorder）
func (s *GormStore) SaveAccount(a account.Account) error {
	rec := toAccountRecord(a)
	return s.save(&rec)
}

// SaveVehicle 车辆写透（dispatch.Recorder）
func (s *GormStore) SaveVehicle(v vehicle.Vehicle) error {
	rec := toVehicleRecord(v)
	return s.save(&rec)
}

// SaveJob 任务写透（dispatch.Recorder）
func (s *GormStore) SaveJob(j job.Job) error {
	rec := toJobRecord(j)
	return s.save(&rec)
}

func (s *GormStore) save(rec interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store db is nil")
	}
	return s.cb.Call(context.Background(), func() error {
		return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
	})
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
