package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// 命令动词（与客户端约定的文本行协议）
const (
	VerbRegister     = "REGISTER"
	VerbLogin        = "LOGIN"
	VerbResume       = "RESUME"
	VerbNotifyCar    = "NOTIFY_CAR_READY"
	VerbSubmitJob    = "SUBMIT_JOB"
	VerbMarkComplete = "MARK_COMPLETE"
	VerbListJobs     = "LIST_JOBS"
)

// DateLayout 边界上的统一日期格式（ISO 日历日）。
// 客户端若使用其它展示格式（如 "MMM d, yyyy"），须在发送前归一化。
const DateLayout = "2006-01-02"

// ErrMalformedCommand 行格式不符合协议
var ErrMalformedCommand = errors.New("malformed command")

// Command 解析后的一条命令：动词 + 逗号分隔的参数。
// 参数自身不允许包含逗号（协议约束，与既有客户端一致）。
type Command struct {
	Verb string
	Args []string
}

// ParseCommand 解析一行命令。格式：VERB 或 VERB <逗号分隔参数>。
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformedCommand)
	}

	verb, rest, _ := strings.Cut(line, " ")
	verb = strings.ToUpper(strings.TrimSpace(verb))

	cmd := Command{Verb: verb}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		parts := strings.Split(rest, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cmd.Args = parts
	}
	return cmd, nil
}

// wantArgs 校验参数个数
func (c Command) wantArgs(n int) error {
	if len(c.Args) != n {
		return fmt.Errorf("%w: %s expects %d fields, got %d", ErrMalformedCommand, c.Verb, n, len(c.Args))
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want %s", s, DateLayout)
	}
	return t, nil
}

func parsePositiveInt(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", field, s)
	}
	return n, nil
}

func parseJobID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job id %q", s)
	}
	return id, nil
}
