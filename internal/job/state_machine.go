package job

import (
	"fmt"
	"time"
)

// AllowTransition 定义任务状态机的允许流转关系。
var AllowTransition = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusFailed},
	StatusAssigned: {StatusCompleted},
	// 终态：不允许从 completed / failed 再流转
	StatusCompleted: {},
	StatusFailed:    {},
}

// CanTransition 判断 from -> to 是否是一个允许的状态流转。
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	allowed, ok := AllowTransition[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ApplyTransition 对任务应用状态变更，并维护关键时间字段。
// 仅在 CanTransition 返回 true 时生效。
func ApplyTransition(j *Job, to Status, now time.Time) error {
	if j == nil {
		return fmt.Errorf("job is nil")
	}
	from := j.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid job status transition: %s -> %s", from, to)
	}

	j.Status = to

	switch to {
	case StatusAssigned:
		if j.AssignedAt == nil {
			t := now
			j.AssignedAt = &t
		}
	case StatusCompleted:
		if j.CompletedAt == nil {
			t := now
			j.CompletedAt = &t
		}
	}
	return nil
}
