package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/totemops/totem-api/api/scheduler"
	"github.com/totemops/totem-api/databases/mocks"
	"github.com/totemops/totem-api/models"
)

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishIncidents(eventID string) {
	f.published = append(f.published, eventID)
}

func TestSweepStaleIncidents_LockHeldElsewhereSkips(t *testing.T) {
	incidents := &mocks.IncidentDatabase{}
	locks := &mocks.SchedulerLockDatabase{}
	locks.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil)

	s := scheduler.NewScheduler(incidents, locks, nil, 4*time.Hour)
	s.SweepStaleIncidents()

	incidents.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
}

func TestSweepStaleIncidents_FlagsAndRepublishes(t *testing.T) {
	staleA := models.Incident{ID: primitive.NewObjectID(), EventID: "event-1", IncidentNumber: "260004"}
	staleB := models.Incident{ID: primitive.NewObjectID(), EventID: "event-2", IncidentNumber: "260007"}

	incidents := &mocks.IncidentDatabase{}
	incidents.On("Find", mock.Anything, mock.Anything).
		Return([]models.Incident{staleA, staleB}, nil)
	incidents.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, nil)

	locks := &mocks.SchedulerLockDatabase{}
	locks.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	pub := &fakePublisher{}
	s := scheduler.NewScheduler(incidents, locks, pub, 4*time.Hour)
	s.SweepStaleIncidents()

	incidents.AssertNumberOfCalls(t, "UpdateOne", 2)
	assert.ElementsMatch(t, []string{"event-1", "event-2"}, pub.published)
	locks.AssertCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepStaleIncidents_ReArmsAfterNewQuietStretch(t *testing.T) {
	stale := models.Incident{ID: primitive.NewObjectID(), EventID: "event-1", IncidentNumber: "260004"}

	incidents := &mocks.IncidentDatabase{}
	// an already-flagged incident must become flaggable again once an edit
	// moves updatedAt past the flag, so the query keys on the timestamp
	// pair rather than the presence of the flag note
	incidents.On("Find", mock.Anything, mock.MatchedBy(func(filter interface{}) bool {
		f, ok := filter.(bson.M)
		if !ok {
			return false
		}
		if _, keyedOnNotes := f["notes.text"]; keyedOnNotes {
			return false
		}
		expr, ok := f["$expr"].(bson.M)
		if !ok {
			return false
		}
		lt, ok := expr["$lt"].(bson.A)
		return ok && len(lt) == 2 && lt[0] == "$staleFlaggedAt" && lt[1] == "$updatedAt"
	})).Return([]models.Incident{stale}, nil)
	incidents.On("UpdateOne", mock.Anything, mock.Anything, mock.MatchedBy(func(update interface{}) bool {
		u, ok := update.(bson.M)
		if !ok {
			return false
		}
		set, ok := u["$set"].(bson.M)
		if !ok {
			return false
		}
		_, stamped := set["staleFlaggedAt"]
		_, pushed := u["$push"].(bson.M)["notes"]
		return stamped && pushed
	})).Return(nil, nil)

	locks := &mocks.SchedulerLockDatabase{}
	locks.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	pub := &fakePublisher{}
	s := scheduler.NewScheduler(incidents, locks, pub, 4*time.Hour)
	s.SweepStaleIncidents()

	incidents.AssertExpectations(t)
	assert.Equal(t, []string{"event-1"}, pub.published)
}

func TestSweepStaleIncidents_NothingStale(t *testing.T) {
	incidents := &mocks.IncidentDatabase{}
	incidents.On("Find", mock.Anything, mock.Anything).
		Return([]models.Incident{}, nil)

	locks := &mocks.SchedulerLockDatabase{}
	locks.On("TryAcquireLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	pub := &fakePublisher{}
	s := scheduler.NewScheduler(incidents, locks, pub, 4*time.Hour)
	s.SweepStaleIncidents()

	incidents.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.published)
}
