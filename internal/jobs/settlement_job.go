package jobs

import (
	"context"
	"log"

	"oracle/internal/services"

	"github.com/robfig/cron/v3"
)

// SettlementJob periodically sweeps expired markets and settles them. The
// schedule is a cron expression; @every durations work too.
type SettlementJob struct {
	settlement *services.SettlementService
	spec       string
	cron       *cron.Cron
	baseCtx    context.Context
}

// NewSettlementJob creates a new settlement sweep job
func NewSettlementJob(settlement *services.SettlementService, spec string, baseCtx context.Context) *SettlementJob {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &SettlementJob{
		settlement: settlement,
		spec:       spec,
		cron:       cron.New(),
		baseCtx:    baseCtx,
	}
}

// Start registers the sweep and begins the scheduler.
func (j *SettlementJob) Start() error {
	_, err := j.cron.AddFunc(j.spec, j.runSweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	log.Printf("[SettlementJob] Started (schedule: %s)", j.spec)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *SettlementJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	log.Println("[SettlementJob] Stopped")
}

// runSweep settles all expired markets and logs the aggregate outcome.
func (j *SettlementJob) runSweep() {
	reports := j.settlement.SettleAllExpired(j.baseCtx)
	if len(reports) == 0 {
		return
	}

	settled, retrying, failed := 0, 0, 0
	for _, r := range reports {
		switch {
		case r.Status == "settled" && !r.AlreadySettled:
			settled++
		case r.Retryable:
			retrying++
		case len(r.Errors) > 0:
			failed++
		}
	}
	log.Printf("[SettlementJob] Sweep done: settled=%d retrying=%d failed=%d total=%d",
		settled, retrying, failed, len(reports))
}
