package dispatch

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/job"
	"github.com/VCRTS/VCRTS/internal/vehicle"
)

var (
	engineNow      = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	engineDeadline = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC) // 明天
	residency      = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := account.NewDirectory(nil)
	for username, role := range map[string]string{
		"owner":     "CarOwner",
		"submitter": "JobSubmitter",
		"admin":     "VCCController",
	} {
		err := dir.Register(account.RegisterInput{
			FirstName:   "Test",
			LastName:    "User",
			Username:    username,
			Email:       username + "@example.com",
			DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
			Password:    "secret",
			Role:        role,
		})
		if err != nil {
			t.Fatalf("register %s: %v", username, err)
		}
	}
	return NewEngine(dir, nil, nil).WithClock(func() time.Time { return engineNow })
}

func registerVehicle(t *testing.T, e *Engine) uint64 {
	t.Helper()
	id, err := e.RegisterVehicle("owner", "Model 3", "Tesla", "PL-1", "SN-1", "VIN-1", residency)
	if err != nil {
		t.Fatalf("RegisterVehicle: %v", err)
	}
	return id
}

func submitJob(t *testing.T, e *Engine, redundancy int) uint64 {
	t.Helper()
	id, err := e.SubmitJob(SubmitJobInput{
		Submitter:       "submitter",
		Description:     "render frames",
		DurationHours:   3,
		RedundancyLevel: redundancy,
		Deadline:        engineDeadline,
	})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	return id
}

func getJob(t *testing.T, e *Engine, id uint64) JobSummary {
	t.Helper()
	for _, s := range NewQueryService(e).ListJobs() {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("job %d not found", id)
	return JobSummary{}
}

// 典型流程：2 台合格车辆在池中，duration=3 redundancy=2 deadline=明天 →
// 提交即 Assigned 且正好绑 2 台；一台上报完成 → Completed、时间戳写入、
// 两台都释放回 Available。
func TestSubmitAssignCompleteLifecycle(t *testing.T) {
	e := newTestEngine(t)
	v1 := registerVehicle(t, e)
	v2 := registerVehicle(t, e)

	jobID := submitJob(t, e, 2)

	s := getJob(t, e, jobID)
	if s.Status != job.StatusAssigned {
		t.Fatalf("expected Assigned, got %s", s.Status)
	}
	if len(s.VehicleIDs) != 2 || s.VehicleIDs[0] != v1 || s.VehicleIDs[1] != v2 {
		t.Fatalf("expected vehicles [%d %d], got %v", v1, v2, s.VehicleIDs)
	}
	for _, vs := range NewQueryService(e).ListVehicles() {
		if vs.Status != vehicle.StatusAssigned {
			t.Fatalf("vehicle %d should be Assigned, got %s", vs.ID, vs.Status)
		}
	}

	already, err := e.MarkComplete(jobID, v1)
	if err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if already {
		t.Fatalf("first completion must not report already-done")
	}

	s = getJob(t, e, jobID)
	if s.Status != job.StatusCompleted {
		t.Fatalf("expected Completed, got %s", s.Status)
	}
	if s.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	for _, vs := range NewQueryService(e).ListVehicles() {
		if vs.Status != vehicle.StatusAvailable {
			t.Fatalf("vehicle %d should be released, got %s", vs.ID, vs.Status)
		}
	}
}

// redundancy=2 但只有 1 台车 → Pending；第二台登记后无需
// 客户端动作即转 Assigned。
func TestPendingJobAssignedWhenVehicleArrives(t *testing.T) {
	e := newTestEngine(t)
	registerVehicle(t, e)

	jobID := submitJob(t, e, 2)
	if s := getJob(t, e, jobID); s.Status != job.StatusPending {
		t.Fatalf("expected Pending with 1 vehicle, got %s", s.Status)
	}

	registerVehicle(t, e)
	s := getJob(t, e, jobID)
	if s.Status != job.StatusAssigned {
		t.Fatalf("expected Assigned after second vehicle, got %s", s.Status)
	}
	if len(s.VehicleIDs) != 2 {
		t.Fatalf("expected 2 vehicles bound, got %v", s.VehicleIDs)
	}
}

func TestMarkCompleteIdempotent(t *testing.T) {
	e := newTestEngine(t)
	registerVehicle(t, e)
	jobID := submitJob(t, e, 1)

	if _, err := e.MarkComplete(jobID, 0); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	first := getJob(t, e, jobID)

	already, err := e.MarkComplete(jobID, 0)
	if err != nil {
		t.Fatalf("repeat MarkComplete: %v", err)
	}
	if !already {
		t.Fatalf("expected already-done on repeat")
	}
	second := getJob(t, e, jobID)
	if !second.CompletedAt.Equal(*first.CompletedAt) {
		t.Fatalf("completion timestamp changed on repeat")
	}
	// 释放不会发生第二次：车辆保持 Available，不会因重复上报进入非法转移
	for _, vs := range NewQueryService(e).ListVehicles() {
		if vs.Status != vehicle.StatusAvailable {
			t.Fatalf("vehicle %d double-released into %s", vs.ID, vs.Status)
		}
	}
}

func TestMarkCompleteUnknownJob(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.MarkComplete(42, 0); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestMarkCompletePendingJobRejected(t *testing.T) {
	e := newTestEngine(t)
	jobID := submitJob(t, e, 1) // 没有车辆，保持 Pending

	if _, err := e.MarkComplete(jobID, 0); !errors.Is(err, ErrJobNotAssigned) {
		t.Fatalf("expected ErrJobNotAssigned, got %v", err)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	e := newTestEngine(t)

	cases := []SubmitJobInput{
		{Submitter: "submitter", Description: "d", DurationHours: 0, RedundancyLevel: 1, Deadline: engineDeadline},
		{Submitter: "submitter", Description: "d", DurationHours: 2, RedundancyLevel: 0, Deadline: engineDeadline},
		{Submitter: "submitter", Description: "d", DurationHours: 2, RedundancyLevel: 1},
		{Submitter: "submitter", Description: "", DurationHours: 2, RedundancyLevel: 1, Deadline: engineDeadline},
		// 截止日在过去
		{Submitter: "submitter", Description: "d", DurationHours: 2, RedundancyLevel: 1, Deadline: engineNow.AddDate(0, 0, -2)},
		// 当天截止但时长撑不进去
		{Submitter: "submitter", Description: "d", DurationHours: 48, RedundancyLevel: 1, Deadline: engineNow},
	}
	for i, in := range cases {
		if _, err := e.SubmitJob(in); !errors.Is(err, ErrInvalidJobParameters) {
			t.Fatalf("case %d: expected ErrInvalidJobParameters, got %v", i, err)
		}
	}

	// 提交者必须是 JobSubmitter 账户
	in := SubmitJobInput{Submitter: "owner", Description: "d", DurationHours: 2, RedundancyLevel: 1, Deadline: engineDeadline}
	if _, err := e.SubmitJob(in); !errors.Is(err, ErrUnknownSubmitter) {
		t.Fatalf("expected ErrUnknownSubmitter, got %v", err)
	}
}

func TestRegisterVehicleUnknownOwner(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.RegisterVehicle("submitter", "M", "B", "P", "S", "V", residency); !errors.Is(err, ErrUnknownOwner) {
		t.Fatalf("expected ErrUnknownOwner for non-CarOwner, got %v", err)
	}
	if _, err := e.RegisterVehicle("nobody", "M", "B", "P", "S", "V", residency); !errors.Is(err, ErrUnknownOwner) {
		t.Fatalf("expected ErrUnknownOwner for unknown user, got %v", err)
	}
}

// 容量不足永远不是错误：无车提交成功并保持 Pending。
func TestSubmitJobQueuesWithoutCapacity(t *testing.T) {
	e := newTestEngine(t)
	jobID := submitJob(t, e, 3)
	if s := getJob(t, e, jobID); s.Status != job.StatusPending {
		t.Fatalf("expected Pending, got %s", s.Status)
	}
}

// 补偿分配按提交顺序（JobID 升序）竞争新车辆。
func TestRetryPendingFavorsEarliestJob(t *testing.T) {
	e := newTestEngine(t)
	first := submitJob(t, e, 1)
	second := submitJob(t, e, 1)

	registerVehicle(t, e)

	if s := getJob(t, e, first); s.Status != job.StatusAssigned {
		t.Fatalf("earliest job should win the vehicle, got %s", s.Status)
	}
	if s := getJob(t, e, second); s.Status != job.StatusPending {
		t.Fatalf("later job should still be Pending, got %s", s.Status)
	}

	// 完成释放后，空出的车辆流向下一个 Pending 任务
	if _, err := e.MarkComplete(first, 0); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if s := getJob(t, e, second); s.Status != job.StatusAssigned {
		t.Fatalf("released vehicle should flow to next pending job, got %s", s.Status)
	}
}

// 不变式：并发提交下分配集合两两不相交，且 |assigned| ≤ redundancy。
func TestConcurrentSubmissionsAssignDisjointVehicles(t *testing.T) {
	e := newTestEngine(t)
	const vehicles = 8
	const jobs = 16

	for i := 0; i < vehicles; i++ {
		registerVehicle(t, e)
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.SubmitJob(SubmitJobInput{
				Submitter:       "submitter",
				Description:     fmt.Sprintf("job-%d", i),
				DurationHours:   2,
				RedundancyLevel: 2,
				Deadline:        engineDeadline,
			})
			if err != nil {
				t.Errorf("SubmitJob: %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]uint64)
	assignedJobs := 0
	for _, s := range NewQueryService(e).ListJobs() {
		if len(s.VehicleIDs) > s.RedundancyLevel {
			t.Fatalf("job %d bound %d vehicles, redundancy %d", s.ID, len(s.VehicleIDs), s.RedundancyLevel)
		}
		if s.Status == job.StatusAssigned {
			assignedJobs++
			for _, vid := range s.VehicleIDs {
				if other, dup := seen[vid]; dup {
					t.Fatalf("vehicle %d bound to jobs %d and %d", vid, other, s.ID)
				}
				seen[vid] = s.ID
			}
		}
	}
	if assignedJobs != vehicles/2 {
		t.Fatalf("expected %d assigned jobs, got %d", vehicles/2, assignedJobs)
	}
}

// 并发完成上报与车辆登记交错，状态必须保持一致。
func TestConcurrentCompleteAndRegister(t *testing.T) {
	e := newTestEngine(t)
	var jobIDs []uint64
	for i := 0; i < 4; i++ {
		registerVehicle(t, e)
		jobIDs = append(jobIDs, submitJob(t, e, 1))
	}

	var wg sync.WaitGroup
	for _, id := range jobIDs {
		for i := 0; i < 3; i++ { // 每个任务的重复上报
			wg.Add(1)
			go func(id uint64) {
				defer wg.Done()
				if _, err := e.MarkComplete(id, 0); err != nil {
					t.Errorf("MarkComplete %d: %v", id, err)
				}
			}(id)
		}
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registerVehicle(t, e)
		}()
	}
	wg.Wait()

	for _, id := range jobIDs {
		if s := getJob(t, e, id); s.Status != job.StatusCompleted {
			t.Fatalf("job %d expected Completed, got %s", id, s.Status)
		}
	}
	for _, vs := range NewQueryService(e).ListVehicles() {
		if vs.Status != vehicle.StatusAvailable {
			t.Fatalf("vehicle %d expected Available after all completions, got %s", vs.ID, vs.Status)
		}
	}
}

func TestMarkCompleteRejectsForeignReporter(t *testing.T) {
	e := newTestEngine(t)
	v1 := registerVehicle(t, e)
	registerVehicle(t, e)
	jobID := submitJob(t, e, 1) // 只绑 v1

	if _, err := e.MarkComplete(jobID, v1+1); err == nil {
		t.Fatalf("expected error for reporter not assigned to job")
	}
	if _, err := e.MarkComplete(jobID, v1); err != nil {
		t.Fatalf("MarkComplete by assigned vehicle: %v", err)
	}
}
