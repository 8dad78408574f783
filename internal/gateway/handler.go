package gateway

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VCRTS/VCRTS/internal/account"
	"github.com/VCRTS/VCRTS/internal/common/auth"
	"github.com/VCRTS/VCRTS/internal/common/config"
	"github.com/VCRTS/VCRTS/internal/common/logger"
	"github.com/VCRTS/VCRTS/internal/dispatch"
)

// Session 连接级会话。登录/恢复后填充，作为显式上下文传给每次处理，
// 不存在任何全局的“当前用户”。
type Session struct {
	Username string
	Role     string
}

// Handler 把一行命令翻译成对引擎/目录/查询面的调用，并渲染文本响应。
// 传输（监听、连接管理）在 Server；这里只有纯命令语义，便于测试。
type Handler struct {
	dir     *account.Directory
	engine  *dispatch.Engine
	query   *dispatch.QueryService
	authCfg config.AuthConfig
	log     logger.Logger
}

// NewHandler 创建命令处理器
func NewHandler(dir *account.Directory, engine *dispatch.Engine, query *dispatch.QueryService, authCfg config.AuthConfig, log logger.Logger) *Handler {
	return &Handler{
		dir:     dir,
		engine:  engine,
		query:   query,
		authCfg: authCfg,
		log:     log,
	}
}

// Handle 处理一行命令，返回响应文本（可能多行，如任务报表）。
// 协议错误与业务错误都以 "ERROR " 前缀返回，绝不 panic 到调用方。
func (h *Handler) Handle(sess *Session, line string) string {
	cmd, err := ParseCommand(line)
	if err != nil {
		return errorResponse(err)
	}

	switch cmd.Verb {
	case VerbRegister:
		return h.handleRegister(cmd)
	case VerbLogin:
		return h.handleLogin(sess, cmd)
	case VerbResume:
		return h.handleResume(sess, cmd)
	case VerbNotifyCar:
		return h.handleNotifyCarReady(cmd)
	case VerbSubmitJob:
		return h.handleSubmitJob(cmd)
	case VerbMarkComplete:
		return h.handleMarkComplete(cmd)
	case VerbListJobs:
		return h.handleListJobs()
	default:
		return errorResponse(fmt.Errorf("%w: unknown verb %q", ErrMalformedCommand, cmd.Verb))
	}
}

// REGISTER first,last,username,email,dob,password,role
func (h *Handler) handleRegister(cmd Command) string {
	if err := cmd.wantArgs(7); err != nil {
		return errorResponse(err)
	}
	dob, err := parseDate(cmd.Args[4])
	if err != nil {
		return errorResponse(err)
	}
	err = h.dir.Register(account.RegisterInput{
		FirstName:   cmd.Args[0],
		LastName:    cmd.Args[1],
		Username:    cmd.Args[2],
		Email:       cmd.Args[3],
		DateOfBirth: dob,
		Password:    cmd.Args[5],
		Role:        cmd.Args[6],
	})
	if err != nil {
		return errorResponse(err)
	}
	return "Registration successful"
}

// LOGIN username,password →  "Login successful,<role>[,<token>]"
// 客户端按逗号切分取第 2 段作为角色；带密钥配置时第 3 段是会话令牌。
func (h *Handler) handleLogin(sess *Session, cmd Command) string {
	if err := cmd.wantArgs(2); err != nil {
		return errorResponse(err)
	}
	role, err := h.dir.Login(cmd.Args[0], cmd.Args[1])
	if err != nil {
		return errorResponse(err)
	}

	sess.Username = cmd.Args[0]
	sess.Role = string(role)

	if h.authCfg.JWTSecret == "" {
		return fmt.Sprintf("Login successful,%s", role)
	}
	token, _, err := auth.IssueSessionToken(h.authCfg, sess.Username, sess.Role)
	if err != nil {
		if h.log != nil {
			h.log.Warnf("failed to issue session token for %s: %v", sess.Username, err)
		}
		return fmt.Sprintf("Login successful,%s", role)
	}
	return fmt.Sprintf("Login successful,%s,%s", role, token)
}

// RESUME <token> 断线重连后用令牌恢复会话，不必重发口令。
func (h *Handler) handleResume(sess *Session, cmd Command) string {
	if err := cmd.wantArgs(1); err != nil {
		return errorResponse(err)
	}
	s, err := auth.VerifySessionToken(h.authCfg, cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}
	sess.Username = s.Username
	sess.Role = s.Role
	return fmt.Sprintf("Session resumed,%s", s.Role)
}

// NOTIFY_CAR_READY owner,model,brand,plate,serial,vin,residencyDate
func (h *Handler) handleNotifyCarReady(cmd Command) string {
	if err := cmd.wantArgs(7); err != nil {
		return errorResponse(err)
	}
	residency, err := parseDate(cmd.Args[6])
	if err != nil {
		return errorResponse(err)
	}
	id, err := h.engine.RegisterVehicle(cmd.Args[0], cmd.Args[1], cmd.Args[2], cmd.Args[3], cmd.Args[4], cmd.Args[5], residency)
	if err != nil {
		return errorResponse(err)
	}
	return fmt.Sprintf("Car registered,%d", id)
}

// SUBMIT_JOB submitter,description,durationHours,redundancy,deadline
func (h *Handler) handleSubmitJob(cmd Command) string {
	if err := cmd.wantArgs(5); err != nil {
		return errorResponse(err)
	}
	duration, err := parsePositiveInt("duration", cmd.Args[2])
	if err != nil {
		return errorResponse(err)
	}
	redundancy, err := parsePositiveInt("redundancy level", cmd.Args[3])
	if err != nil {
		return errorResponse(err)
	}
	deadline, err := parseDate(cmd.Args[4])
	if err != nil {
		return errorResponse(err)
	}
	id, err := h.engine.SubmitJob(dispatch.SubmitJobInput{
		Submitter:       cmd.Args[0],
		Description:     cmd.Args[1],
		DurationHours:   duration,
		RedundancyLevel: redundancy,
		Deadline:        deadline,
	})
	if err != nil {
		return errorResponse(err)
	}
	return fmt.Sprintf("Job submitted,%d", id)
}

// MARK_COMPLETE <jobId>（既有客户端只带任务号，空格分隔）
func (h *Handler) handleMarkComplete(cmd Command) string {
	if err := cmd.wantArgs(1); err != nil {
		return errorResponse(err)
	}
	id, err := parseJobID(cmd.Args[0])
	if err != nil {
		return errorResponse(err)
	}
	already, err := h.engine.MarkComplete(id, 0)
	if err != nil {
		return errorResponse(err)
	}
	// 重复上报幂等：返回同样的确认文本
	_ = already
	return fmt.Sprintf("Job %d marked complete", id)
}

// LIST_JOBS 报表：首行表头，之后每个任务一行、以 "Job ID: " 开头
//（客户端用 `\n(?=Job ID: )` 切分）。
func (h *Handler) handleListJobs() string {
	jobs := h.query.ListJobs()

	var b strings.Builder
	fmt.Fprintf(&b, "All jobs (%d):", len(jobs))
	for _, j := range jobs {
		b.WriteString("\n")
		b.WriteString(renderJobLine(j))
	}
	return b.String()
}

func renderJobLine(j dispatch.JobSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job ID: %d, Description: %s, Submitter: %s, Duration: %dh, Redundancy: %d, Deadline: %s, Status: %s",
		j.ID, j.Description, j.Submitter, j.DurationHours, j.RedundancyLevel,
		j.Deadline.Format(DateLayout), j.Status)
	if len(j.VehicleIDs) > 0 {
		fmt.Fprintf(&b, ", Vehicles: %s", joinVehicleIDs(j.VehicleIDs))
	}
	if j.CompletedAt != nil {
		fmt.Fprintf(&b, ", Completed At: %s", j.CompletedAt.Format(time.RFC3339))
	}
	return b.String()
}

func joinVehicleIDs(ids []uint64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, " ")
}

// errorResponse 业务/协议错误统一渲染。登录失败保持客户端约定的独立文案。
func errorResponse(err error) string {
	if errors.Is(err, account.ErrInvalidCredentials) {
		return "ERROR invalid credentials"
	}
	return "ERROR " + err.Error()
}
