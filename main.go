package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"RailwayDB/config"
	"RailwayDB/executor"
	"RailwayDB/parser"
)

func main() {
	configPath := pflag.String("config", "", "path to YAML config file")
	dataDir := pflag.String("data-dir", "", "override data directory")
	logLevel := pflag.String("log-level", "", "override log level (debug|info|warn|error)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "bad log level %q\n", cfg.LogLevel)
		os.Exit(1)
	}
	// stdout carries command responses; logs go to stderr
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	engine, err := executor.New(cfg.DataDir, cfg.PageCacheMB, log)
	if err != nil {
		log.Error("startup failed", "err", err)
		os.Exit(1)
	}

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	out := bufio.NewWriter(os.Stdout)

	exitCode := 0
	for in.Scan() {
		cmd, ok, err := parser.Parse(in.Text())
		if err != nil {
			log.Error("bad input line", "err", err)
			exitCode = 1
			break
		}
		if !ok {
			continue
		}
		resp, done, err := engine.Execute(&cmd)
		if err != nil {
			log.Error("command failed", "ts", cmd.Timestamp, "cmd", cmd.Name, "err", err)
			exitCode = 1
			break
		}
		fmt.Fprintf(out, "[%d] %s", cmd.Timestamp, resp)
		if done {
			break
		}
	}
	if err := in.Err(); err != nil {
		log.Error("read stdin", "err", err)
		exitCode = 1
	}

	if err := out.Flush(); err != nil {
		log.Error("flush stdout", "err", err)
		exitCode = 1
	}
	if err := engine.Close(); err != nil {
		log.Error("shutdown", "err", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}
