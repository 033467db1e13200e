// Package scheduler runs the periodic housekeeping jobs behind the incident
// board. Each instance competes for a mongo-backed lock before a run, so a
// horizontally scaled deployment sweeps only once per tick.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/totemops/totem-api/databases"
	"github.com/totemops/totem-api/models"
)

const staleSweepLockName = "stale-incident-sweep"

// Publisher pushes a fresh incident snapshot for an event to its live
// subscribers
type Publisher interface {
	PublishIncidents(eventID string)
}

// Scheduler owns the cron runner and the db handles its jobs need
type Scheduler struct {
	cron       *cron.Cron
	incidents  databases.IncidentDatabase
	locks      databases.SchedulerLockDatabase
	publisher  Publisher
	instanceID string
	staleAfter time.Duration
}

// NewScheduler builds a scheduler whose sweep flags incidents left
// unresolved for longer than staleAfter
func NewScheduler(incidents databases.IncidentDatabase, locks databases.SchedulerLockDatabase, publisher Publisher, staleAfter time.Duration) *Scheduler {
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	return &Scheduler{
		cron:       cron.New(),
		incidents:  incidents,
		locks:      locks,
		publisher:  publisher,
		instanceID: instanceID,
		staleAfter: staleAfter,
	}
}

// Start registers the jobs and kicks off the cron loop
func (s *Scheduler) Start() {
	_, err := s.cron.AddFunc("*/15 * * * *", s.SweepStaleIncidents)
	if err != nil {
		zap.S().With(err).Error("failed to schedule stale incident sweep")
		return
	}
	s.cron.Start()
	zap.S().Infow("scheduler started",
		"instanceID", s.instanceID,
		"staleAfter", s.staleAfter.String())
}

// Stop halts the cron loop, letting a running job finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepStaleIncidents appends a system note to every unresolved incident
// whose last update is older than the stale threshold, then republishes the
// affected events. The incident is flagged, not auto-resolved: closing it
// stays a human decision.
func (s *Scheduler) SweepStaleIncidents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	acquired, err := s.locks.TryAcquireLock(ctx, staleSweepLockName, s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().With(err).Error("failed to acquire stale sweep lock")
		return
	}
	if !acquired {
		zap.S().Debug("stale sweep lock held by another instance, skipping")
		return
	}
	defer func() {
		if err := s.locks.ReleaseLock(ctx, staleSweepLockName, s.instanceID); err != nil {
			zap.S().With(err).Warn("failed to release stale sweep lock")
		}
	}()

	now := time.Now()
	cutoff := primitive.NewDateTimeFromTime(now.Add(-s.staleAfter))
	stale, err := s.incidents.Find(ctx, bson.M{
		"status":    bson.M{"$ne": models.StatusResolved},
		"updatedAt": bson.M{"$lt": cutoff},
		// one flag per quiet stretch: staleFlaggedAt is stamped on flag and
		// only an edit moves updatedAt past it, re-arming the sweep. A
		// never-flagged incident has no staleFlaggedAt, which compares below
		// any date.
		"$expr": bson.M{"$lt": bson.A{"$staleFlaggedAt", "$updatedAt"}},
	})
	if err != nil {
		zap.S().With(err).Error("failed to query stale incidents")
		return
	}
	if len(stale) == 0 {
		return
	}

	note := models.IncidentNote{
		Text:           staleNoteText(s.staleAfter),
		CreatedBy:      "system",
		CreatedByEmail: "scheduler@totem",
		CreatedAt:      primitive.NewDateTimeFromTime(now),
	}

	events := make(map[string]bool)
	for _, inc := range stale {
		_, err := s.incidents.UpdateOne(ctx, bson.M{"_id": inc.ID}, bson.M{
			"$push": bson.M{"notes": note},
			"$set":  bson.M{"staleFlaggedAt": primitive.NewDateTimeFromTime(now)},
		})
		if err != nil {
			zap.S().With(err).Errorw("failed to flag stale incident",
				"incidentNumber", inc.IncidentNumber)
			continue
		}
		events[inc.EventID] = true
	}

	zap.S().Infow("stale incident sweep complete",
		"flagged", len(stale),
		"events", len(events))

	if s.publisher != nil {
		for eventID := range events {
			s.publisher.PublishIncidents(eventID)
		}
	}
}

func staleNoteText(staleAfter time.Duration) string {
	return "Flagged by dispatch: no updates for over " + staleAfter.String()
}
