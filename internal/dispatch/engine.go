package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/common/logger"
	"github.com/VCRTS/VCRTS/internal/job"
	"github.com/VCRTS/VCRTS/internal/vehicle"
)

var (
	// ErrInvalidJobParameters 任务参数非法（时长/冗余度/截止时间）
	ErrInvalidJobParameters = errors.New("invalid job parameters")
	// ErrUnknownSubmitter 提交者不存在或不是 JobSubmitter
	ErrUnknownSubmitter = errors.New("unknown submitter")
	// ErrUnknownOwner 车主不存在或不是 CarOwner
	ErrUnknownOwner = errors.New("unknown owner")
	// ErrJobNotAssigned 任务尚未绑定车辆，不能标记完成
	ErrJobNotAssigned = errors.New("job has no assigned vehicles yet")
	// ErrUnknownJob 任务不存在
	ErrUnknownJob = job.ErrUnknownJob
)

// Recorder 调度状态落库接口（由 store 实现；nil 表示仅内存运行）
type Recorder interface {
	SaveVehicle(v vehicle.Vehicle) error
	SaveJob(j job.Job) error
}

// Engine 任务调度引擎：车辆池 + 任务登记表的唯一持有者。
//
// 并发模型：所有分配决策（提交绑定、完成释放、补偿重试）经由同一把互斥锁
// 串行执行，两个并发提交不可能把同一台车绑到两个任务上；读取走快照。
// 引擎内部没有后台协程，补偿重试在登记/释放的同一临界区内同步触发。
type Engine struct {
	mu   sync.Mutex
	pool *vehicle.Pool
	jobs *job.Registry
	dir  *account.Directory
	rec  Recorder
	log  logger.Logger
	now  func() time.Time
}

// NewEngine 创建调度引擎
func NewEngine(dir *account.Directory, rec Recorder, log logger.Logger) *Engine {
	return &Engine{
		pool: vehicle.NewPool(),
		jobs: job.NewRegistry(),
		dir:  dir,
		rec:  rec,
		log:  log,
		now:  time.Now,
	}
}

// WithClock 注入时钟（测试用）。
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// SubmitJobInput 提交任务入参
type SubmitJobInput struct {
	Submitter       string
	Description     string
	DurationHours   int
	RedundancyLevel int
	Deadline        time.Time // 截止日（按日历日，当天结束前完成即可）
}

// SubmitJob 提交任务。容量不足不算失败：任务以 Pending 入队，等车辆
// 登记/释放时按提交顺序补偿分配。返回的 JobID 对合法输入总是有效。
func (e *Engine) SubmitJob(in SubmitJobInput) (uint64, error) {
	if in.DurationHours <= 0 {
		return 0, fmt.Errorf("%w: duration must be positive", ErrInvalidJobParameters)
	}
	if in.RedundancyLevel < 1 {
		return 0, fmt.Errorf("%w: redundancy level must be >= 1", ErrInvalidJobParameters)
	}
	if in.Deadline.IsZero() {
		return 0, fmt.Errorf("%w: deadline required", ErrInvalidJobParameters)
	}
	if strings.TrimSpace(in.Description) == "" {
		return 0, fmt.Errorf("%w: description required", ErrInvalidJobParameters)
	}
	if !e.dir.HasRole(in.Submitter, account.RoleJobSubmitter) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSubmitter, in.Submitter)
	}

	now := e.now()
	duration := time.Duration(in.DurationHours) * time.Hour
	cutoff := deadlineCutoff(in.Deadline)
	if !now.Before(cutoff) {
		return 0, fmt.Errorf("%w: deadline is in the past", ErrInvalidJobParameters)
	}
	if now.Add(duration).After(cutoff) {
		return 0, fmt.Errorf("%w: deadline unreachable for duration", ErrInvalidJobParameters)
	}

	e.mu.Lock()
	j := e.jobs.Add(in.Submitter, strings.TrimSpace(in.Description), duration, in.RedundancyLevel, in.Deadline, now)
	bound := e.tryAssign(j, now)
	jobCopy := snapshotJob(j)
	var vehicles []vehicle.Vehicle
	if bound {
		vehicles = e.assignedVehicles(j)
	}
	e.mu.Unlock()

	if bound && e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"job_id":   j.ID,
			"vehicles": jobCopy.AssignedVehicleIDs,
		}).Info("job assigned at submission")
	}
	e.record(jobCopy, vehicles)
	return j.ID, nil
}

// RegisterVehicle 登记车辆（NOTIFY_CAR_READY）。车主必须是 CarOwner 账户。
// 登记成功后立刻在同一临界区内尝试补偿分配 Pending 任务。
func (e *Engine) RegisterVehicle(owner, model, brand, plate, serial, vin string, residencyStart time.Time) (uint64, error) {
	if !e.dir.HasRole(owner, account.RoleCarOwner) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownOwner, owner)
	}

	now := e.now()

	e.mu.Lock()
	v := e.pool.Register(strings.TrimSpace(owner), model, brand, plate, serial, vin, residencyStart, now)
	id := v.ID
	assigned := e.retryPending(now)
	boundVehicles := e.vehiclesForJobs(assigned)
	vehicleCopy, _ := e.pool.Get(id)
	e.mu.Unlock()

	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"vehicle_id": id,
			"owner":      owner,
		}).Info("vehicle registered")
	}
	e.record(job.Job{}, append(boundVehicles, vehicleCopy))
	e.recordAssigned(assigned)
	return id, nil
}

// MarkComplete 记录完成上报。冗余只为容错：第一台上报即完成，任务的全部
// 绑定车辆（含未上报的冗余车）一起释放回 Available。对已完成任务重复上报
// 幂等，返回 alreadyDone=true 且不做任何状态修改。
//
// reporter 为上报车辆 ID，0 表示未指明（既有客户端只带任务号）。
func (e *Engine) MarkComplete(jobID, reporter uint64) (alreadyDone bool, err error) {
	now := e.now()

	e.mu.Lock()
	j, ok := e.jobs.Get(jobID)
	if !ok {
		e.mu.Unlock()
		return false, fmt.Errorf("%w: %d", ErrUnknownJob, jobID)
	}

	switch j.Status {
	case job.StatusCompleted:
		e.mu.Unlock()
		return true, nil
	case job.StatusPending:
		e.mu.Unlock()
		return false, fmt.Errorf("%w: job %d", ErrJobNotAssigned, jobID)
	}

	if reporter != 0 && !containsID(j.AssignedVehicleIDs, reporter) {
		e.mu.Unlock()
		return false, fmt.Errorf("vehicle %d is not assigned to job %d", reporter, jobID)
	}

	if err := job.ApplyTransition(j, job.StatusCompleted, now); err != nil {
		e.mu.Unlock()
		return false, err
	}
	released := append([]uint64(nil), j.AssignedVehicleIDs...)
	if err := e.pool.MarkAvailable(released); err != nil {
		// 临界区内不可能发生；发生即状态被绕过锁修改过
		e.mu.Unlock()
		return false, err
	}

	assigned := e.retryPending(now)
	jobCopy := snapshotJob(j)
	releasedVehicles := append(e.vehiclesByID(released), e.vehiclesForJobs(assigned)...)
	e.mu.Unlock()

	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"job_id":   jobID,
			"released": released,
		}).Info("job completed, vehicles released")
	}

	e.record(jobCopy, releasedVehicles)
	e.recordAssigned(assigned)
	return false, nil
}

// tryAssign 尝试为任务凑齐 redundancyLevel 台合格车辆并绑定。
// 凑不齐就保持 Pending，不报错。必须在持锁状态下调用。
func (e *Engine) tryAssign(j *job.Job, now time.Time) bool {
	cutoff := deadlineCutoff(j.Deadline)
	ids := e.pool.FindAvailable(j.RedundancyLevel, j.Duration, now, cutoff)
	if len(ids) < j.RedundancyLevel {
		return false
	}
	if err := e.pool.MarkAssigned(ids); err != nil {
		// FindAvailable 只返回 Available 车辆，且全程持锁；到这就是缺陷
		if e.log != nil {
			e.log.Errorf("assignment conflict inside critical section: %v", err)
		}
		return false
	}
	j.AssignedVehicleIDs = ids
	if err := job.ApplyTransition(j, job.StatusAssigned, now); err != nil {
		if e.log != nil {
			e.log.Errorf("job %d transition failed after binding: %v", j.ID, err)
		}
		_ = e.pool.MarkAvailable(ids)
		j.AssignedVehicleIDs = nil
		return false
	}
	return true
}

// retryPending 对 Pending 任务按提交顺序做补偿分配（机会式，非定时扫描）。
// 返回本轮新绑定成功任务的快照。必须在持锁状态下调用。
func (e *Engine) retryPending(now time.Time) []job.Job {
	var assigned []job.Job
	for _, j := range e.jobs.PendingInOrder() {
		if e.tryAssign(j, now) {
			assigned = append(assigned, snapshotJob(j))
			if e.log != nil {
				e.log.WithFields(map[string]interface{}{
					"job_id":   j.ID,
					"vehicles": j.AssignedVehicleIDs,
				}).Info("pending job assigned on retry")
			}
		}
	}
	return assigned
}

func (e *Engine) assignedVehicles(j *job.Job) []vehicle.Vehicle {
	return e.vehiclesByID(j.AssignedVehicleIDs)
}

// vehiclesForJobs 收集一批任务当前绑定车辆的快照。必须在持锁状态下调用。
func (e *Engine) vehiclesForJobs(jobs []job.Job) []vehicle.Vehicle {
	var out []vehicle.Vehicle
	for _, j := range jobs {
		out = append(out, e.vehiclesByID(j.AssignedVehicleIDs)...)
	}
	return out
}

func (e *Engine) vehiclesByID(ids []uint64) []vehicle.Vehicle {
	out := make([]vehicle.Vehicle, 0, len(ids))
	for _, id := range ids {
		if v, ok := e.pool.Get(id); ok {
			out = append(out, v)
		}
	}
	return out
}

// record 落库（锁外调用路径）。失败只记日志，内存状态是权威。
func (e *Engine) record(j job.Job, vs []vehicle.Vehicle) {
	if e.rec == nil {
		return
	}
	if j.ID != 0 {
		if err := e.rec.SaveJob(j); err != nil && e.log != nil {
			e.log.Warnf("failed to persist job %d: %v", j.ID, err)
		}
	}
	for _, v := range vs {
		if err := e.rec.SaveVehicle(v); err != nil && e.log != nil {
			e.log.Warnf("failed to persist vehicle %d: %v", v.ID, err)
		}
	}
}

func (e *Engine) recordAssigned(assigned []job.Job) {
	for _, j := range assigned {
		e.record(j, nil)
	}
}

func snapshotJob(j *job.Job) job.Job {
	c := *j
	c.AssignedVehicleIDs = append([]uint64(nil), j.AssignedVehicleIDs...)
	return c
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// deadlineCutoff 把日历日截止折算成时刻：截止日当天结束（次日零点）前完成。
func deadlineCutoff(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, d.Location()).AddDate(0, 0, 1)
}
