package job

import (
	"errors"
	"sort"
	"time"
)

// ErrUnknownJob 任务不存在
var ErrUnknownJob = errors.New("unknown job")

// Registry 任务登记表。与车辆池一样不自带锁，由调度器临界区串行化。
type Registry struct {
	jobs   map[uint64]*Job
	nextID uint64
}

// NewRegistry 创建任务登记表
func NewRegistry() *Registry {
	return &Registry{
		jobs:   make(map[uint64]*Job),
		nextID: 1,
	}
}

// Add 登记新任务，分配单调递增 ID，初始状态 Pending。
func (r *Registry) Add(submitter, description string, duration time.Duration, redundancy int, deadline, now time.Time) *Job {
	j := &Job{
		ID:                r.nextID,
		SubmitterUsername: submitter,
		Description:       description,
		Duration:          duration,
		Deadline:          deadline,
		RedundancyLevel:   redundancy,
		Status:            StatusPending,
		SubmittedAt:       now,
	}
	r.nextID++
	r.jobs[j.ID] = j
	return j
}

// Get 按 ID 取任务（内部指针，仅限临界区内使用）。
func (r *Registry) Get(id uint64) (*Job, bool) {
	j, ok := r.jobs[id]
	return j, ok
}

// PendingInOrder 返回全部 Pending 任务，按提交顺序（ID 升序）。
// 补偿分配按这个顺序竞争新空闲的车辆，保证确定且先到先得。
func (r *Registry) PendingInOrder() []*Job {
	out := make([]*Job, 0)
	for _, j := range r.jobs {
		if j.Status == StatusPending {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot 返回全部任务副本，按 ID 升序。
func (r *Registry) Snapshot() []Job {
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		c := *j
		c.AssignedVehicleIDs = append([]uint64(nil), j.AssignedVehicleIDs...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
