package job

import "time"

// Status 任务状态枚举
type Status string

const (
	StatusPending   Status = "Pending"   // 已提交，冗余度尚未凑齐，等待车辆
	StatusAssigned  Status = "Assigned"  // 已绑定 redundancyLevel 台车辆
	StatusCompleted Status = "Completed" // 任一台已完成（冗余只为容错，首个成功即完成）
	StatusFailed    Status = "Failed"    // 终态保留位：当前流程不会进入（提交永不因容量失败）
)

// Job 提交的计算任务。只增不删，完成记录要长期可查。
type Job struct {
	ID                 uint64
	SubmitterUsername  string
	Description        string
	Duration           time.Duration // 任务时长（小时粒度提交，内部用 Duration）
	Deadline           time.Time     // 截止时刻（按截止日当天结束折算）
	RedundancyLevel    int
	Status             Status
	AssignedVehicleIDs []uint64 // 长度 ≤ RedundancyLevel；Assigned 态恒等于 RedundancyLevel
	SubmittedAt        time.Time
	AssignedAt         *time.Time
	CompletedAt        *time.Time // 完成时间戳，只写一次
}
