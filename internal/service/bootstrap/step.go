package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"chatbot_server/pkg/zlog"

	"github.com/gookit/color"
	"go.uber.org/zap"
)

var ErrStepFailed = errors.New("setup step failed")

type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Step 一个安装步骤，Skip 为 true 时只打印跳过提示
type Step struct {
	Name        string
	Description string
	Skip        bool
	Run         func(ctx context.Context) error
}

type Result struct {
	Name     string
	Status   Status
	Duration time.Duration
	Err      error
}

// Runner 按顺序执行步骤，第一个失败的步骤终止整个流程
type Runner struct {
	Out   io.Writer
	Steps []Step
}

func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	results := make([]Result, 0, len(r.Steps))
	for _, step := range r.Steps {
		if step.Skip {
			fmt.Fprintln(r.Out, color.Yellow.Sprintf("⏭️  %s skipped", step.Description))
			results = append(results, Result{Name: step.Name, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name, err)
		}

		fmt.Fprintln(r.Out, color.Cyan.Sprintf("📦 %s...", step.Description))
		start := time.Now()
		err := step.Run(ctx)
		result := Result{Name: step.Name, Duration: time.Since(start), Err: err}
		if err != nil {
			result.Status = StatusFailed
			results = append(results, result)
			fmt.Fprintln(r.Out, color.Red.Sprintf("❌ %s failed: %v", step.Description, err))
			zlog.Error("setup step failed", zap.String("step", step.Name), zap.Error(err))
			return results, fmt.Errorf("%w: %s: %w", ErrStepFailed, step.Name, err)
		}
		result.Status = StatusCompleted
		results = append(results, result)
		fmt.Fprintln(r.Out, color.Green.Sprintf("✅ %s completed successfully", step.Description))
		zlog.Info("setup step completed", zap.String("step", step.Name), zap.Duration("duration", result.Duration))
	}
	return results, nil
}
