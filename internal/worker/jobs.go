package worker

import (
	"context"
	"time"

	"scicat/internal/service"

	"go.uber.org/zap"
)

func NewDigestWorker(subscriptions service.SubscriptionService, schedule string, log *zap.SugaredLogger) (*CronWorker, error) {
	return NewCronWorker("digest", schedule, 10*time.Minute, func(ctx context.Context) error {
		run, err := subscriptions.RunDigests(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		log.Infow("digests delivered",
			"due", run.Due, "batches", run.Batches, "sent", run.Sent, "empty", run.Empty, "failed", run.Failed)
		return nil
	}, log)
}

func NewReminderWorker(submissions service.SubmissionService, interval time.Duration, log *zap.SugaredLogger) *TickerWorker {
	return NewTickerWorker("reminder", interval, 5*time.Minute, true, func(ctx context.Context) error {
		run, err := submissions.ProcessReminders(ctx, time.Now().UTC())
		if err != nil {
			return err
		}
		log.Infow("contact reminders processed",
			"checked", run.Checked, "reminded", run.Reminded, "expired", run.Expired, "failed", run.Failed)
		return nil
	}, log)
}

func NewLinkCheckWorker(links service.LinkCheckService, interval time.Duration, log *zap.SugaredLogger) *TickerWorker {
	return NewTickerWorker("linkcheck", interval, 30*time.Minute, false, func(ctx context.Context) error {
		run, err := links.CheckLinks(ctx)
		if err != nil {
			return err
		}
		log.Infow("links checked", "checked", run.Checked, "broken", run.Broken)
		return nil
	}, log)
}
