package cronrunner

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner schedules named background jobs against a base context, so a server
// shutdown cancels whatever a job is doing mid-run.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers a job under a name used in log lines. A panic inside one run
// is logged and swallowed; it must not take the scheduler down with it.
func (r *Runner) Add(name, spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("cron job panicked",
					zap.String("job", name),
					zap.Any("panic", rec),
				)
			}
		}()
		job(r.baseCtx)
	})
}

func (r *Runner) Start() {
	r.cron.Start()
	r.logger.Info("cron started", zap.Int("jobs", len(r.cron.Entries())))
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info("cron stopped")
}
