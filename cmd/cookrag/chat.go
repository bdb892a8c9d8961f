package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BaSui01/cookrag"
)

// =============================================================================
// 💬 chat 命令：终端交互式问答
// =============================================================================

func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	// 交互模式下日志只输出到 stderr，避免干扰对话
	cfg.Log.OutputPaths = []string{"stderr"}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	p, err := cookrag.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx := context.Background()
	fmt.Println("正在加载菜谱知识库...")
	if err := p.LoadAndIndex(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load knowledge base: %v\n", err)
		os.Exit(1)
	}

	stats := p.Store().GetStats()
	fmt.Printf("知识库就绪：%d 篇菜谱，%d 个片段\n", stats.TotalDocuments, stats.TotalFragments)
	fmt.Println("输入问题开始对话，输入 exit 或 quit 退出。")

	sessionID := p.Sessions().Create("cli")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		stream, err := p.AskStream(ctx, sessionID, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "提问失败: %v\n", err)
			continue
		}
		for chunk := range stream {
			if chunk.Err != nil {
				fmt.Fprintf(os.Stderr, "\n回答中断: %v\n", chunk.Err)
				break
			}
			fmt.Print(chunk.Content)
		}
		fmt.Println()
	}

	fmt.Println("再见！")
}
