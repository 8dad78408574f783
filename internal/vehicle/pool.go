package vehicle

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrUnknownVehicle 车辆不存在
	ErrUnknownVehicle = errors.New("unknown vehicle")
	// ErrInvalidTransition 车辆不处于期望的前置状态（防止重复分配/重复释放）
	ErrInvalidTransition = errors.New("invalid vehicle status transition")
)

// Pool 车辆池。本身不加锁：所有变更由调度器的临界区串行化，
// 单独使用时不保证并发安全。
type Pool struct {
	vehicles map[uint64]*Vehicle
	nextID   uint64
}

// NewPool 创建车辆池
func NewPool() *Pool {
	return &Pool{
		vehicles: make(map[uint64]*Vehicle),
		nextID:   1,
	}
}

// Register 登记新车辆，分配单调递增 ID，初始状态 Available。
func (p *Pool) Register(ownerUsername, model, brand, plate, serial, vin string, residencyStart time.Time, now time.Time) *Vehicle {
	v := &Vehicle{
		ID:             p.nextID,
		OwnerUsername:  ownerUsername,
		Model:          model,
		Brand:          brand,
		PlateNumber:    plate,
		SerialNumber:   serial,
		VIN:            vin,
		ResidencyStart: residencyStart,
		Status:         StatusAvailable,
		RegisteredAt:   now,
	}
	p.nextID++
	p.vehicles[v.ID] = v
	return v
}

// FindAvailable 返回最多 count 个能在 deadline 前完成时长 d 的空闲车辆，
// 按 ID 升序。状态不变时重复调用结果一致（选取必须可复现）。
func (p *Pool) FindAvailable(count int, d time.Duration, now, deadline time.Time) []uint64 {
	if count <= 0 {
		return nil
	}
	ids := make([]uint64, 0, len(p.vehicles))
	for id, v := range p.vehicles {
		if v.EligibleFor(d, now, deadline) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > count {
		ids = ids[:count]
	}
	return ids
}

// MarkAssigned 将一组车辆置为 Assigned。任一车辆不在 Available 状态则整组失败、
// 不做任何修改（调用方在临界区内，先检查后提交）。
func (p *Pool) MarkAssigned(ids []uint64) error {
	for _, id := range ids {
		v, ok := p.vehicles[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
		}
		if v.Status != StatusAvailable {
			return fmt.Errorf("%w: vehicle %d is %s, want %s", ErrInvalidTransition, id, v.Status, StatusAvailable)
		}
	}
	for _, id := range ids {
		p.vehicles[id].Status = StatusAssigned
	}
	return nil
}

// MarkAvailable 将一组车辆释放回 Available。前置状态必须是 Assigned。
func (p *Pool) MarkAvailable(ids []uint64) error {
	for _, id := range ids {
		v, ok := p.vehicles[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
		}
		if v.Status != StatusAssigned {
			return fmt.Errorf("%w: vehicle %d is %s, want %s", ErrInvalidTransition, id, v.Status, StatusAssigned)
		}
	}
	for _, id := range ids {
		p.vehicles[id].Status = StatusAvailable
	}
	return nil
}

// Get 按 ID 取车辆（副本）。
func (p *Pool) Get(id uint64) (Vehicle, bool) {
	v, ok := p.vehicles[id]
	if !ok {
		return Vehicle{}, false
	}
	return *v, true
}

// Snapshot 返回全部车辆副本，按 ID 升序。
func (p *Pool) Snapshot() []Vehicle {
	out := make([]Vehicle, 0, len(p.vehicles))
	for _, v := range p.vehicles {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
