package account

import (
	"fmt"
	"strings"
	"time"
)

// Role 账户角色（注册时指定，此后不变）
type Role string

const (
	RoleCarOwner      Role = "CarOwner"      // 车主：登记车辆供云端调度
	RoleJobSubmitter  Role = "JobSubmitter"  // 任务提交者
	RoleVCCController Role = "VCCController" // 调度管理员：查看任务、标记完成
)

// ParseRole 解析角色字符串（大小写敏感，与客户端约定一致）。
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RoleCarOwner:
		return RoleCarOwner, nil
	case RoleJobSubmitter:
		return RoleJobSubmitter, nil
	case RoleVCCController:
		return RoleVCCController, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Account 注册账户。注册后除口令外不可变。
type Account struct {
	Username     string
	PasswordHash string
	PasswordSalt string
	FirstName    string
	LastName     string
	Email        string
	DateOfBirth  time.Time
	Role         Role
	CreatedAt    time.Time
}
