package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"agrotrack/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("agrotrack cli 0.1.0")
	case "health":
		runHealth()
	case "config":
		runConfig()
	case "server":
		if len(args) > 0 && args[0] == "start" {
			runServerStart()
		} else {
			fmt.Fprintf(os.Stderr, "Usage: agrotrack server start\n")
			os.Exit(1)
		}
	case "send":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: agrotrack send <msisdn> <text...>\n")
			os.Exit(1)
		}
		runSend(args[0], strings.Join(args[1:], " "))
	case "price":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "Usage: agrotrack price <msisdn> <crop> [location]\n")
			os.Exit(1)
		}
		runSend(args[0], "PRICE "+strings.Join(args[1:], " "))
	case "proof":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agrotrack proof <ref>\n")
			os.Exit(1)
		}
		runProof(args[0])
	case "messages":
		runMessages(args)
	case "verify":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agrotrack verify <proof.json>\n")
			os.Exit(1)
		}
		os.Exit(verifyProofFile(args[0], os.Stdout, os.Stderr))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: agrotrack <command> [args]")
	fmt.Println("  version                - 显示版本")
	fmt.Println("  health                 - 检查 API 服务健康状态")
	fmt.Println("  config                 - 显示配置概要")
	fmt.Println("  server start           - 启动 API 服务（go run ./cmd/api）")
	fmt.Println("  send <msisdn> <text>   - 模拟入站短信（走 webhook，与真实网关同一入口）")
	fmt.Println("  price <msisdn> <crop> [location] - 发起价格查询短信")
	fmt.Println("  proof <ref>            - 输出交易单元的完整事件链与当前状态")
	fmt.Println("  messages [k=v ...]     - 按条件列出台账事件（ref/kind/msisdn/crop/location/limit）")
	fmt.Println("  verify <proof.json>    - 离线校验 proof 导出文件中的结算回执哈希")
}

func runHealth() {
	out, err := getHealth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "健康检查失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runConfig() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg != nil {
		fmt.Printf("api.port=%d\n", cfg.API.Port)
		fmt.Printf("api.host=%s\n", cfg.API.Host)
		fmt.Printf("ledger.type=%s\n", cfg.Ledger.Type)
		fmt.Printf("sms.mode=%s\n", cfg.SMS.Mode)
	}
}

func runServerStart() {
	c := exec.Command("go", "run", "./cmd/api")
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Dir = "."
	if err := c.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "server start: %v\n", err)
		os.Exit(1)
	}
}

func runSend(msisdn, text string) {
	out, err := sendSMS(msisdn, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runProof(ref string) {
	doc, err := getProof(ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 proof 失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(doc))
}

// messages 子命令接受 key=value 过滤参数，原样透传给查询接口
func runMessages(args []string) {
	filters := map[string]string{}
	for _, a := range args {
		parts := strings.SplitN(a, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			fmt.Fprintf(os.Stderr, "无效过滤条件 %q，应为 key=value\n", a)
			os.Exit(1)
		}
		filters[parts[0]] = parts[1]
	}
	out, err := listMessages(filters)
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出事件失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}
