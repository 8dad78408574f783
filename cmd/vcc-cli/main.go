package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

// 最小命令行客户端：连上网关，把参数拼成一条命令发出去，
// 读完响应就退出。调试/冒烟用，正式客户端在别的仓库。
var (
	addr    = flag.String("addr", "localhost:9000", "网关地址")
	timeout = flag.Duration("timeout", 3*time.Second, "读响应超时")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: vcc-cli [-addr host:port] COMMAND [args...]")
		fmt.Fprintln(os.Stderr, `example: vcc-cli SUBMIT_JOB "alice,render frames,3,2,2025-03-11"`)
		os.Exit(2)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	line := strings.Join(args, " ")
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	// 响应可能多行（任务报表）；读到超时为止
	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
		// 后续行给同样的读窗口
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	}
}
