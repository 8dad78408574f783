package account

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrDuplicateUsername 用户名已存在
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidRole 角色不在枚举范围内
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidCredentials 用户名不存在或口令不匹配（登录时不区分两者）
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Recorder 账户落库接口（由 store 实现；nil 表示仅内存运行）
type Recorder interface {
	SaveAccount(a Account) error
}

// RegisterInput 注册入参
type RegisterInput struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	DateOfBirth time.Time
	Password    string
	Role        string
}

// Directory 账户目录：内存权威，读写锁保护，落库为尽力而为的写透。
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	rec      Recorder
}

// NewDirectory 创建账户目录
func NewDirectory(rec Recorder) *Directory {
	return &Directory{
		accounts: make(map[string]*Account),
		rec:      rec,
	}
}

// Register 注册新账户。用户名重复返回 ErrDuplicateUsername，
// 角色非法返回 ErrInvalidRole。
func (d *Directory) Register(in RegisterInput) error {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return fmt.Errorf("username required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return fmt.Errorf("password required")
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return err
	}

	salt, err := GenerateSaltHex()
	if err != nil {
		return err
	}
	hash, err := HashPassword(in.Password, salt)
	if err != nil {
		return err
	}

	a := &Account{
		Username:     username,
		PasswordHash: hash,
		PasswordSalt: salt,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        strings.TrimSpace(in.Email),
		DateOfBirth:  in.DateOfBirth,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	d.mu.Lock()
	if _, ok := d.accounts[username]; ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateUsername, username)
	}
	d.accounts[username] = a
	d.mu.Unlock()

	d.record(*a)
	return nil
}

// Login 校验用户名/口令，成功返回账户角色。
func (d *Directory) Login(username, password string) (Role, error) {
	d.mu.RLock()
	a, ok := d.accounts[strings.TrimSpace(username)]
	d.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}
	if !VerifyPassword(password, a.PasswordSalt, a.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return a.Role, nil
}

// Lookup 按用户名查账户（副本）。
func (d *Directory) Lookup(username string) (Account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[strings.TrimSpace(username)]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// HasRole 判断用户存在且为指定角色。
func (d *Directory) HasRole(username string, role Role) bool {
	a, ok := d.Lookup(username)
	return ok && a.Role == role
}

func (d *Directory) record(a Account) {
	if d.rec == nil {
		return
	}
	// 落库失败不影响内存注册；store 侧负责记日志与熔断
	_ = d.rec.SaveAccount(a)
}
