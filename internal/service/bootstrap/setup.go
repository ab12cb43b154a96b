package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"chatbot_server/internal/config"
	"chatbot_server/internal/service/knowledge"
	"chatbot_server/pkg/constants"
	"chatbot_server/pkg/util/file"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const (
	StepVenv         = "venv"
	StepRequirements = "requirements"
	StepDirectories  = "directories"
	StepCorpora      = "corpora"
	StepSeed         = "seed"
)

type Options struct {
	// Root 所有相对路径的基准目录
	Root        string
	SkipPython  bool
	SkipCorpora bool
	Out         io.Writer
	Commands    CommandRunner
	HttpClient  *http.Client
}

// Setup 准备 chatbot 运行所需的目录、Python 环境、语料与知识库文件
type Setup struct {
	conf    config.BootstrapConfig
	chatbot config.ChatbotConfig
	opts    Options
}

func NewSetup(conf *config.Config, opts Options) *Setup {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Commands == nil {
		opts.Commands = ExecRunner{Stdout: opts.Out}
	}
	if opts.HttpClient == nil {
		opts.HttpClient = &http.Client{Timeout: conf.BootstrapConfig.Timeout}
	}
	return &Setup{conf: conf.BootstrapConfig, chatbot: conf.ChatbotConfig, opts: opts}
}

func (s *Setup) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.opts.Root, p)
}

func (s *Setup) Steps() []Step {
	return []Step{
		{Name: StepVenv, Description: "Creating virtual environment", Skip: s.opts.SkipPython, Run: s.createVenv},
		{Name: StepRequirements, Description: "Installing requirements", Skip: s.opts.SkipPython, Run: s.installRequirements},
		{Name: StepDirectories, Description: "Creating directories", Run: s.createDirectories},
		{Name: StepCorpora, Description: "Downloading NLTK data", Skip: s.opts.SkipCorpora, Run: s.downloadCorpora},
		{Name: StepSeed, Description: "Seeding chatbot data", Run: s.seed},
	}
}

// Run 执行全部步骤，成功后打印知识库统计表
func (s *Setup) Run(ctx context.Context) ([]Result, error) {
	fmt.Fprintf(s.opts.Out, "🚀 Setting up %s...\n", constants.APP_NAME)
	runner := &Runner{Out: s.opts.Out, Steps: s.Steps()}
	results, err := runner.Run(ctx)
	if err != nil {
		return results, err
	}
	if err := s.printStats(); err != nil {
		return results, err
	}
	if s.conf.CorpusDir != "" && !s.opts.SkipCorpora {
		// 自定义目录不在 NLTK 默认搜索路径中
		dir, err := filepath.Abs(s.CorpusDir())
		if err != nil {
			return results, err
		}
		fmt.Fprintf(s.opts.Out, "\n⚠️  NLTK data is outside the virtualenv, run: export NLTK_DATA=%s\n", dir)
	}
	fmt.Fprintln(s.opts.Out, "\n🎯 Setup completed! Run: chatbot_server")
	return results, nil
}

func (s *Setup) createVenv(ctx context.Context) error {
	return s.opts.Commands.Run(ctx, s.opts.Root, s.conf.PythonBin, "-m", "venv", s.conf.VenvDir)
}

// installRequirements 命令在 Root 下执行，pip 必须是绝对路径，否则相对的 Root 会被拼两次
func (s *Setup) installRequirements(ctx context.Context) error {
	pip, err := filepath.Abs(filepath.Join(s.path(s.conf.VenvDir), "bin", "pip"))
	if err != nil {
		return err
	}
	return s.opts.Commands.Run(ctx, s.opts.Root, pip, "install", "-r", s.conf.Requirements)
}

func (s *Setup) createDirectories(_ context.Context) error {
	for _, dir := range s.conf.Directories {
		if err := os.MkdirAll(s.path(dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// CorpusDir 未配置时放在 <venv>/nltk_data，即虚拟环境的 sys.prefix/nltk_data，NLTK 默认会搜索该目录
func (s *Setup) CorpusDir() string {
	if s.conf.CorpusDir != "" {
		return s.path(s.conf.CorpusDir)
	}
	return filepath.Join(s.path(s.conf.VenvDir), "nltk_data")
}

func (s *Setup) downloadCorpora(ctx context.Context) error {
	downloader := &CorpusDownloader{
		Client:  s.opts.HttpClient,
		BaseUrl: s.conf.CorpusBaseUrl,
		Dir:     s.CorpusDir(),
	}
	for _, corpus := range s.conf.Corpora {
		if err := downloader.Fetch(ctx, corpus); err != nil {
			return err
		}
	}
	return nil
}

// seed 覆盖写入，保证与模板逐字节一致
func (s *Setup) seed(_ context.Context) error {
	return file.CopyFile(s.path(s.chatbot.DefaultDataFile), s.path(s.chatbot.DataFile))
}

func (s *Setup) printStats() error {
	raw, err := os.ReadFile(s.path(s.chatbot.DataFile))
	if err != nil {
		return err
	}
	data, err := knowledge.Decode(raw)
	if err != nil {
		return fmt.Errorf("decode seeded data: %w", err)
	}
	stats := knowledge.ComputeStats(data)

	names := lo.Keys(stats.Applications)
	sort.Strings(names)

	table := tablewriter.NewWriter(s.opts.Out)
	table.SetHeader([]string{"Application", "Intents", "Patterns", "Responses", "Fallbacks"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range names {
		app := stats.Applications[name]
		table.Append([]string{
			name,
			strconv.Itoa(app.Intents),
			strconv.Itoa(app.Patterns),
			strconv.Itoa(app.Responses),
			strconv.Itoa(app.Fallbacks),
		})
	}
	table.SetFooter([]string{"Total", "", strconv.Itoa(stats.TotalPatterns), strconv.Itoa(stats.TotalResponses), ""})
	table.Render()
	return nil
}
