package approval

import (
	"context"
	"errors"
	"log"
	"time"

	"plantops-backend/internal/apperr"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/metrics"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store"
)

const expiryRemark = "Request expired automatically"

// ExpireDue moves every overdue PENDING request to EXPIRED. Rows are handled
// one transaction at a time; a row that fails or was acted on concurrently is
// skipped. It returns the number of requests expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ExpiredApprovals(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		req := &due[i]
		ok, err := s.expireOne(ctx, req, now)
		if err != nil {
			log.Printf("Failed to expire approval request %s: %v", req.ID, err)
			continue
		}
		if !ok {
			continue
		}
		expired++
		metrics.ApprovalTransition(model.LogExpired)
		s.notify(ctx, []string{req.RequesterID}, req, model.LogExpired, "Request expired",
			"Your "+req.RequestType+" request expired before it was reviewed")
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, req *model.ApprovalRequest, now time.Time) (bool, error) {
	remark := expiryRemark
	done := false
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		ok, err := tx.TransitionApproval(ctx, req.ID, expireTransition.from, map[string]any{
			"status":   expireTransition.to,
			"acted_at": now,
			"remark":   remark,
		})
		if err != nil || !ok {
			return err
		}
		entry := s.logEntry(ctx, tx, req.ID, expireTransition.log, auth.SystemActor, Audit{}, now)
		entry.OldValue = model.Payload{"status": expireTransition.from}
		entry.NewValue = model.Payload{"status": expireTransition.to}
		entry.Remark = &remark
		if err := tx.AppendApprovalLog(ctx, entry); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if done {
		req.Status = expireTransition.to
		req.ActedAt = &now
		req.Remark = &remark
	}
	return done, nil
}

// Sweeper runs ExpireDue on a fixed interval.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

func NewSweeper(svc *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{svc: svc, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) {
	log.Printf("Starting approval expiry sweeper (every %s)...", w.interval)
	w.SweepOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Approval expiry sweeper shutting down.")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single expiry pass.
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := w.svc.ExpireDue(ctx)
	switch {
	case err == nil:
		metrics.SweepRun("ok")
		if n > 0 {
			log.Printf("Expiry sweep finished: %d request(s) expired.", n)
		}
	case errors.Is(err, context.Canceled):
		metrics.SweepRun("cancelled")
	default:
		metrics.SweepRun("error")
		log.Printf("Expiry sweep failed (%s): %v", apperr.KindOf(err), err)
	}
	return n, err
}
