package vehicle

import "time"

// Status 车辆状态
type Status string

const (
	StatusAvailable Status = "Available" // 空闲，可被分配
	StatusAssigned  Status = "Assigned"  // 已绑定到某个任务
)

// Vehicle 登记到车云的车辆。
// VIN 不要求唯一：同一车辆可以反复登记为新的资源记录。
type Vehicle struct {
	ID             uint64
	OwnerUsername  string
	Model          string
	Brand          string
	PlateNumber    string
	SerialNumber   string
	VIN            string
	ResidencyStart time.Time // 驻留窗口起始日（窗口到任务截止日为止）
	Status         Status
	RegisteredAt   time.Time
}

// EligibleFor 判断车辆能否在 deadline 前完成时长为 d 的任务：
// 从 max(now, 驻留起始) 开始算，结束时间不得晚于 deadline。
func (v Vehicle) EligibleFor(d time.Duration, now, deadline time.Time) bool {
	if v.Status != StatusAvailable {
		return false
	}
	start := now
	if v.ResidencyStart.After(start) {
		start = v.ResidencyStart
	}
	return !start.Add(d).After(deadline)
}
