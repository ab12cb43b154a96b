package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chatbot_server/internal/config"
	"chatbot_server/internal/service/bootstrap"
	"chatbot_server/pkg/zlog"

	"github.com/gookit/color"
	"github.com/samber/lo"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	root := flag.String("root", ".", "project root all relative paths are resolved against")
	skipPython := flag.Bool("skip-python", false, "skip virtualenv creation and pip install")
	skipCorpora := flag.Bool("skip-corpora", false, "skip downloading NLTK corpora")
	flag.Parse()

	if err := run(*configPath, *root, *skipPython, *skipCorpora); err != nil {
		color.Red.Println("Setup failed:", err)
		os.Exit(1)
	}
}

// configPaths 未指定 -config 时，默认候选路径中的相对路径也以 root 为基准
func configPaths(configPath, root string) []string {
	if configPath != "" {
		return []string{configPath}
	}
	return lo.Map(config.DefaultConfigPaths, func(p string, _ int) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	})
}

func run(configPath, root string, skipPython, skipCorpora bool) error {
	conf, err := config.LoadConfig(configPaths(configPath, root)...)
	if err != nil {
		return err
	}
	logPath := conf.LogConfig.LogPath
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(root, logPath)
	}
	// 控制台已有彩色进度输出，日志只写文件
	if err := zlog.Init(zlog.Options{
		LogPath:    logPath,
		Level:      conf.LogConfig.Level,
		MaxSize:    conf.LogConfig.MaxSize,
		MaxBackups: conf.LogConfig.MaxBackups,
		MaxAge:     conf.LogConfig.MaxAge,
	}); err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = bootstrap.NewSetup(conf, bootstrap.Options{
		Root:        root,
		SkipPython:  skipPython,
		SkipCorpora: skipCorpora,
	}).Run(ctx)
	return err
}
