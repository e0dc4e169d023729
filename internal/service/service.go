package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"steamsale/notifier/internal/client"
	"steamsale/notifier/internal/domain"
	"steamsale/notifier/internal/domain/event"
	"steamsale/notifier/internal/journal"
	"steamsale/notifier/internal/metrics"
	"steamsale/notifier/internal/repository"
	"steamsale/notifier/internal/state"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrDailyCapReached is returned by HandleTick once the daily run budget is spent
var ErrDailyCapReached = errors.New("daily tick cap reached")

const (
	duplicateStatusMessage = "Status is a duplicate."
	duplicateStatusCode    = 187
)

type PublishResult int

const (
	PublishFailed PublishResult = iota
	Published
	DuplicateSuppressed
)

func (r PublishResult) String() string {
	switch r {
	case Published:
		return "published"
	case DuplicateSuppressed:
		return "duplicate_suppressed"
	default:
		return "failed"
	}
}

type Service struct {
	steam        client.SteamClient
	twitter      client.TwitterClient
	stateManager state.StateManager
	journal      journal.Journal               // optional
	repository   repository.SnapshotRepository // optional
	appID        int
	userID       string
	dailyCap     int
	now          func() time.Time
}

func NewService(
	steam client.SteamClient,
	twitter client.TwitterClient,
	stateManager state.StateManager,
	journal journal.Journal,
	repository repository.SnapshotRepository,
	appID int,
	userID string,
	dailyCap int,
) *Service {
	return &Service{
		steam:        steam,
		twitter:      twitter,
		stateManager: stateManager,
		journal:      journal,
		repository:   repository,
		appID:        appID,
		userID:       userID,
		dailyCap:     dailyCap,
		now:          time.Now,
	}
}

// RunStartup performs the poll that happens once at process start, before
// any scheduler tick
func (s *Service) RunStartup(ctx context.Context) error {
	log.Info("🚀 Starting startup job...")

	if err := s.Poll(ctx); err != nil {
		log.Errorf("❌ Error completing startup job: %v", err)
		return err
	}

	log.Info("✅ Completed startup job.")
	return nil
}

// HandleTick is called by the scheduler. It counts the tick and refuses to
// poll once the daily cap is exceeded.
func (s *Service) HandleTick(ctx context.Context) error {
	ticks := s.stateManager.IncrementTicks()
	metrics.TicksElapsed.Set(float64(ticks))

	if ticks > s.dailyCap {
		log.Infof("🛑 Tick %d exceeds the daily cap of %d, stopping", ticks, s.dailyCap)
		return ErrDailyCapReached
	}

	log.Infof("⏰ Starting hourly job (tick %d/%d)...", ticks, s.dailyCap)

	if err := s.Poll(ctx); err != nil {
		log.Errorf("❌ Error completing hourly job: %v", err)
		return err
	}

	log.Info("✅ Completed hourly job.")
	return nil
}

// Poll runs one fetch, compare and publish cycle. Fetch failures and unusable
// data end the cycle quietly; only the latest post lookup and non-duplicate
// publish failures are returned.
func (s *Service) Poll(ctx context.Context) error {
	cycleID := uuid.NewString()
	logger := log.WithFields(log.Fields{
		"cycle_id": cycleID,
		"app_id":   s.appID,
	})

	snapshot, err := s.steam.FetchProduct(ctx, s.appID)
	if err != nil {
		logger.Errorf("❌ Failed to fetch product data: %v", err)
		metrics.PollsTotal.WithLabelValues(metrics.PollFetchFailed).Inc()
		return nil
	}

	if !snapshot.Usable() {
		logger.Info("Done - No usable game data found this attempt.")
		metrics.PollsTotal.WithLabelValues(metrics.PollNoData).Inc()
		return nil
	}

	s.recordSnapshot(ctx, logger, snapshot)

	discount := *snapshot.DiscountPercent
	metrics.DiscountPercent.WithLabelValues(snapshot.AppIDString()).Set(float64(discount))

	if discount == s.stateManager.GetLastSalePercent() {
		logger.Info("Done - No change in game data found this attempt.")
		metrics.PollsTotal.WithLabelValues(metrics.PollUnchanged).Inc()
		return nil
	}

	logger.Infof("💸 Discount changed from %d%% to %d%%", s.stateManager.GetLastSalePercent(), discount)
	s.stateManager.SetLastSalePercent(discount)
	status := domain.ComposeStatus(snapshot)

	ticks := s.stateManager.GetTicksElapsed()
	if ticks == 0 {
		text, ok, err := s.twitter.LatestPost(ctx, s.userID)
		if err != nil {
			metrics.PollsTotal.WithLabelValues(metrics.PollFailed).Inc()
			return fmt.Errorf("failed to fetch latest post for user %s: %w", s.userID, err)
		}
		if ok {
			s.stateManager.SetLastKnownPostText(text)
		} else {
			logger.Warn("⚠️ No previous post found for the account")
		}
	}

	metrics.PollsTotal.WithLabelValues(metrics.PollChanged).Inc()

	if reason, publish := s.shouldPublish(ticks, status); !publish {
		logger.Infof("Done - Not publishing on the startup cycle (%s).", reason)
		metrics.PublishesTotal.WithLabelValues(metrics.PublishSkipped).Inc()
		s.appendJournal(ctx, logger, &event.PostSuppressedEvent{
			AppID:           s.appID,
			DiscountPercent: discount,
			Status:          status,
			Reason:          reason,
			CycleID:         cycleID,
			SuppressedAt:    s.now(),
		})
		return nil
	}

	result, err := s.Publish(ctx, status)
	if err != nil {
		return err
	}

	switch result {
	case Published:
		s.appendJournal(ctx, logger, &event.PostPublishedEvent{
			AppID:           s.appID,
			DiscountPercent: discount,
			Status:          status,
			CycleID:         cycleID,
			PublishedAt:     s.now(),
		})
	case DuplicateSuppressed:
		s.appendJournal(ctx, logger, &event.PostSuppressedEvent{
			AppID:           s.appID,
			DiscountPercent: discount,
			Status:          status,
			Reason:          event.ReasonDuplicate,
			CycleID:         cycleID,
			SuppressedAt:    s.now(),
		})
	}

	return nil
}

// shouldPublish always publishes after the first tick. On the startup cycle it
// publishes only when the account's latest post is known and differs.
func (s *Service) shouldPublish(ticks int, status string) (string, bool) {
	if ticks > 0 {
		return "", true
	}

	lastText, ok := s.stateManager.GetLastKnownPostText()
	if !ok {
		return event.ReasonNoLastPost, false
	}
	if lastText == status {
		return event.ReasonMatchesLastPost, false
	}
	return "", true
}

// Publish posts status. A duplicate rejection is an expected outcome after a
// restart and is reported as DuplicateSuppressed rather than an error.
func (s *Service) Publish(ctx context.Context, status string) (PublishResult, error) {
	err := s.twitter.Post(ctx, status)
	if err == nil {
		log.Infof("Done - Successfully posted sale Tweet: %q", status)
		metrics.PublishesTotal.WithLabelValues(metrics.PublishPublished).Inc()
		return Published, nil
	}

	if IsDuplicateStatus(err) {
		log.Warn("Error - Attempted to send duplicate status!")
		metrics.PublishesTotal.WithLabelValues(metrics.PublishDuplicate).Inc()
		return DuplicateSuppressed, nil
	}

	metrics.PublishesTotal.WithLabelValues(metrics.PublishFailed).Inc()
	return PublishFailed, fmt.Errorf("error in Twitter post: %w", err)
}

// IsDuplicateStatus reports whether err is the provider rejecting a post it already has
func IsDuplicateStatus(err error) bool {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message == duplicateStatusMessage || apiErr.Code == duplicateStatusCode
	}
	return err != nil && err.Error() == duplicateStatusMessage
}

func (s *Service) recordSnapshot(ctx context.Context, logger *log.Entry, snapshot *domain.ProductSnapshot) {
	if s.repository == nil {
		return
	}

	if err := s.repository.SaveSnapshot(ctx, snapshot, s.now()); err != nil {
		logger.Errorf("❌ Failed to record price history: %v", err)
	}
}

func (s *Service) appendJournal(ctx context.Context, logger *log.Entry, e event.Event) {
	if s.journal == nil {
		return
	}

	if _, err := s.journal.Append(ctx, e); err != nil {
		logger.Errorf("❌ Failed to append %s to journal: %v", e.EventType(), err)
	}
}
