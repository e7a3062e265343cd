// Package scheduler
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"io"
	"os"
	"path/filepath"

	"github.com/bjohnson312/hi-emma-MVP-sub000/app/services"
	businessflow "github.com/bjohnson312/hi-emma-MVP-sub000/business_flow"
	"github.com/bjohnson312/hi-emma-MVP-sub000/config"
	"github.com/bjohnson312/hi-emma-MVP-sub000/models"
	"github.com/bjohnson312/hi-emma-MVP-sub000/repository"
	"github.com/bjohnson312/hi-emma-MVP-sub000/utils"
)

// DispatchScheduler periodically checks for campaigns whose next occurrence has
// arrived and delivers their message to the resolved audience
type DispatchScheduler struct {
	campaignRepo repository.CampaignRepository
	sendRepo     repository.CampaignSendRepository
	resolver     businessflow.AudienceResolver
	flow         businessflow.CampaignFlow
	sms          services.SMSService
	logger       *log.Logger
	cfg          config.SchedulerConfig

	logFile *os.File
}

func NewDispatchScheduler(
	campaignRepo repository.CampaignRepository,
	sendRepo repository.CampaignSendRepository,
	resolver businessflow.AudienceResolver,
	flow businessflow.CampaignFlow,
	sms services.SMSService,
	cfg config.SchedulerConfig,
	logPath string,
) *DispatchScheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = utils.DefaultPollInterval
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = utils.DefaultClaimLease
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = utils.DefaultSendTimeout
	}
	if cfg.DispatchDeadline <= 0 {
		cfg.DispatchDeadline = utils.DefaultDispatchDeadline
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}

	s := &DispatchScheduler{
		campaignRepo: campaignRepo,
		sendRepo:     sendRepo,
		resolver:     resolver,
		flow:         flow,
		sms:          sms,
		cfg:          cfg,
	}

	// Initialize scheduler-specific logger (to stdout and persistent file)
	if err := s.initSchedulerLogger(logPath); err != nil {
		// Fallback to default stdout logger if file logger init fails
		s.logger = log.Default()
		s.logger.Printf("scheduler: failed to initialize file logger: %v", err)
	}

	return s
}

// initSchedulerLogger configures a logger that writes to both stdout and a persistent file
func (s *DispatchScheduler) initSchedulerLogger(logPath string) error {
	candidates := []string{logPath}
	if logPath == "" {
		// Prefer relative data/ then fallback to /data for containerized environments
		candidates = []string{
			filepath.Join("data", "scheduler.log"),
			filepath.Join("/data", "scheduler.log"),
		}
	}
	for _, path := range candidates {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			continue
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		// Success
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "scheduler ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create scheduler log file in any candidate directory")
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *DispatchScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				if s.logFile != nil {
					s.logFile.Close()
				}
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *DispatchScheduler) runOnce(ctx context.Context) {
	pollsTotal.Inc()

	now := utils.UTCNow()
	due, err := s.campaignRepo.ListDue(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		s.logger.Printf("scheduler: list due campaigns failed: %v", err)
		pollErrorsTotal.Inc()
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("scheduler: listed %d due campaigns", len(due))

	for _, camp := range due {
		c := camp
		go func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Printf("scheduler: panic while dispatching campaign id=%d: %v", c.ID, r)
				}
			}()
			if err := s.processCampaign(ctx, c); err != nil {
				s.logger.Printf("scheduler: dispatch campaign id=%d failed: %v", c.ID, err)
			}
		}()
	}
	// Do not wait; the claim lease keeps overlapping ticks from double-dispatching
}

func (s *DispatchScheduler) processCampaign(ctx context.Context, c *models.Campaign) error {
	if c.NextRunAt == nil {
		return fmt.Errorf("campaign has no next run")
	}
	occurrence := *c.NextRunAt

	// Claim the occurrence; exactly one scheduler instance wins
	now := utils.UTCNow()
	claimed, err := s.campaignRepo.ClaimDue(ctx, c.ID, occurrence, now, now.Add(s.cfg.ClaimLease))
	if err != nil {
		return fmt.Errorf("claim occurrence: %w", err)
	}
	if !claimed {
		return nil
	}
	s.logger.Printf("scheduler: claimed campaign id=%d occurrence=%s", c.ID, occurrence.Format(time.RFC3339))

	audience, err := s.resolver.Resolve(ctx, c)
	if err != nil {
		// Infra failure before any delivery attempt: release the claim so the
		// occurrence is retried after the next poll
		if relErr := s.campaignRepo.ReleaseClaim(ctx, c.ID, occurrence); relErr != nil {
			s.logger.Printf("scheduler: release claim failed for campaign id=%d: %v", c.ID, relErr)
		}
		return fmt.Errorf("resolve audience: %w", err)
	}

	// Recipients already delivered for this occurrence (a previous crashed
	// attempt) are skipped, never re-sent
	delivered, err := s.sendRepo.DeliveredUserIDs(ctx, c.ID, occurrence)
	if err != nil {
		if relErr := s.campaignRepo.ReleaseClaim(ctx, c.ID, occurrence); relErr != nil {
			s.logger.Printf("scheduler: release claim failed for campaign id=%d: %v", c.ID, relErr)
		}
		return fmt.Errorf("list delivered recipients: %w", err)
	}

	deadline := utils.UTCNow().Add(s.cfg.DispatchDeadline)
	rows := make([]*models.CampaignSend, 0, len(audience.Recipients))
	var sent, failed, skipped int

	for _, r := range audience.Recipients {
		if _, ok := delivered[r.UserID]; ok {
			continue
		}

		row := &models.CampaignSend{
			CampaignID:   c.ID,
			UserID:       r.UserID,
			PhoneNumber:  r.PhoneNumber,
			OccurrenceAt: occurrence,
		}

		if utils.UTCNow().After(deadline) || ctx.Err() != nil {
			row.Status = models.SendStatusSkipped
			row.ErrorMessage = utils.ToPtr("dispatch deadline exceeded")
			rows = append(rows, row)
			skipped++
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		result, err := s.sms.SendText(sendCtx, r.PhoneNumber, c.MessageBody)
		cancel()
		if err != nil {
			row.Status = models.SendStatusFailed
			row.ErrorMessage = utils.ToPtr(err.Error())
			failed++
		} else {
			row.Status = models.SendStatusDelivered
			if result != nil && result.ProviderID != "" {
				row.ProviderID = &result.ProviderID
			}
			sent++
		}
		rows = append(rows, row)
		sendsTotal.WithLabelValues(string(row.Status)).Inc()
	}

	if len(rows) > 0 {
		if err := s.sendRepo.SaveBatch(ctx, rows); err != nil {
			s.logger.Printf("scheduler: save send records failed for campaign id=%d: %v", c.ID, err)
		}
	}

	// Advance regardless of per-recipient outcomes; one pass per occurrence
	next, err := s.flow.AdvanceAfterDispatch(ctx, c, occurrence)
	if err != nil {
		if businessflow.IsOccurrenceAlreadyAdvanced(err) {
			s.logger.Printf("scheduler: campaign id=%d occurrence already advanced", c.ID)
			return nil
		}
		return fmt.Errorf("advance next run: %w", err)
	}

	occurrencesTotal.Inc()
	s.logger.Printf("scheduler: campaign id=%d occurrence=%s dispatched sent=%d failed=%d skipped=%d excluded=%d next=%s",
		c.ID, occurrence.Format(time.RFC3339), sent, failed, skipped, audience.Excluded, next.Format(time.RFC3339))
	return nil
}
