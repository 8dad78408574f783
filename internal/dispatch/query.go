package dispatch

import (
	"time"

	"github.com/VCRTS/VCRTS/internal/job"
	"github.com/VCRTS/VCRTS/internal/vehicle"
)

// JobSummary 任务报表行（LIST_JOBS 的数据载体）
type JobSummary struct {
	ID              uint64
	Submitter       string
	Description     string
	DurationHours   int
	RedundancyLevel int
	Deadline        time.Time
	Status          job.Status
	VehicleIDs      []uint64
	SubmittedAt     time.Time
	CompletedAt     *time.Time
}

// QueryService 只读查询面。与写入共用引擎的锁取一致快照，
// 不做任何状态修改，可与任意操作并发调用。
type QueryService struct {
	engine *Engine
}

// NewQueryService 创建查询服务
func NewQueryService(engine *Engine) *QueryService {
	return &QueryService{engine: engine}
}

// ListJobs 返回全部任务（所有状态），按 JobID 升序，输出稳定可复现。
func (q *QueryService) ListJobs() []JobSummary {
	q.engine.mu.Lock()
	jobs := q.engine.jobs.Snapshot()
	q.engine.mu.Unlock()

	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummary{
			ID:              j.ID,
			Submitter:       j.SubmitterUsername,
			Description:     j.Description,
			DurationHours:   int(j.Duration / time.Hour),
			RedundancyLevel: j.RedundancyLevel,
			Deadline:        j.Deadline,
			Status:          j.Status,
			VehicleIDs:      j.AssignedVehicleIDs,
			SubmittedAt:     j.SubmittedAt,
			CompletedAt:     j.CompletedAt,
		})
	}
	return out
}

// ListVehicles 返回全部车辆快照，按 VehicleID 升序（管理侧用）。
func (q *QueryService) ListVehicles() []vehicle.Vehicle {
	q.engine.mu.Lock()
	defer q.engine.mu.Unlock()
	return q.engine.pool.Snapshot()
}
