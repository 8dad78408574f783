package store

import (
	"strings"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/job"
	"github.com/VCRTS/VCRTS/internal/vehicle"
)

// AccountRecord accounts 表的 GORM 模型
type AccountRecord struct {
	Username     string    `gorm:"primaryKey;size:64"`
	PasswordHash string    `gorm:"size:128;not null"`
	PasswordSalt string    `gorm:"size:64;not null"`
	FirstName    string    `gorm:"size:64"`
	LastName     string    `gorm:"size:64"`
	Email        string    `gorm:"size:128"`
	DateOfBirth  time.Time
	Role         string    `gorm:"size:32;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// VehicleRecord vehicles 表的 GORM 模型。VIN 不建唯一索引：重复登记是允许的。
type VehicleRecord struct {
	ID             uint64 `gorm:"primaryKey"`
	OwnerUsername  string `gorm:"index;size:64;not null"`
	Model          string `gorm:"size:64"`
	Brand          string `gorm:"size:64"`
	PlateNumber    string `gorm:"size:32"`
	SerialNumber   string `gorm:"size:64"`
	VIN            string `gorm:"size:64"`
	ResidencyStart time.Time
	Status         string    `gorm:"type:varchar(16);index;not null"`
	RegisteredAt   time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// JobRecord jobs 表的 GORM 模型。分配的车辆以逗号分隔存储（数量 ≤ 冗余度，很小）。
type JobRecord struct {
	ID                uint64 `gorm:"primaryKey"`
	SubmitterUsername string `gorm:"index;size:64;not null"`
	Description       string `gorm:"size:255"`
	DurationHours     int    `gorm:"not null"`
	Deadline          time.Time
	RedundancyLevel   int    `gorm:"not null"`
	Status            string `gorm:"type:varchar(16);index;not null"`
	AssignedVehicles  string `gorm:"size:255"`
	SubmittedAt       time.Time
	AssignedAt        *time.Time
	CompletedAt       *time.Time
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

func toAccountRecord(a account.Account) AccountRecord {
	return AccountRecord{
		Username:     a.Username,
		PasswordHash: a.PasswordHash,
		PasswordSalt: a.PasswordSalt,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Email:        a.Email,
		DateOfBirth:  a.DateOfBirth,
		Role:         string(a.Role),
		CreatedAt:    a.CreatedAt,
	}
}

func toVehicleRecord(v vehicle.Vehicle) VehicleRecord {
	return VehicleRecord{
		ID:             v.ID,
		OwnerUsername:  v.OwnerUsername,
		Model:          v.Model,
		Brand:          v.Brand,
		PlateNumber:    v.PlateNumber,
		SerialNumber:   v.SerialNumber,
		VIN:            v.VIN,
		ResidencyStart: v.ResidencyStart,
		Status:         string(v.Status),
		RegisteredAt:   v.RegisteredAt,
	}
}

func toJobRecord(j job.Job) JobRecord {
	return JobRecord{
		ID:                j.ID,
		SubmitterUsername: j.SubmitterUsername,
		Description:       j.Description,
		DurationHours:     int(j.Duration / time.Hour),
		Deadline:          j.Deadline,
		RedundancyLevel:   j.RedundancyLevel,
		Status:            string(j.Status),
		AssignedVehicles:  joinIDs(j.AssignedVehicleIDs),
		SubmittedAt:       j.SubmittedAt,
		AssignedAt:        j.AssignedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func joinIDs(ids []uint64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, formatID(id))
	}
	return strings.Join(parts, ",")
}
