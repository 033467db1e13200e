// Package numbering derives the next human-readable incident number. Numbers
// take the form YYNNNN: the two-digit year followed by a four-digit sequence
// that restarts at 0001 every January 1st.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/totemops/totem-api/databases"
)

// Generator produces year-scoped sequential incident numbers by looking at the
// most recently created incident of the current year.
//
// The scheme is a best-effort monotonic counter, not an atomic sequence: two
// clients generating concurrently can read the same latest incident and derive
// the same number. That window is accepted; fixing it would require a
// transactional counter document.
type Generator struct {
	DB databases.IncidentDatabase

	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time
}

// Next returns the next incident number for the current year. Query failures
// propagate to the caller: an incident must never fall back to sequence 0001
// just because the lookup errored, since that risks duplicate numbers.
func (g Generator) Next(ctx context.Context) (string, error) {
	nowFn := g.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().UTC()
	year2 := now.Format("06")

	startOfYear := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	startOfNextYear := startOfYear.AddDate(1, 0, 0)

	filter := bson.M{
		"createdAt": bson.M{
			"$gte": primitive.NewDateTimeFromTime(startOfYear),
			"$lt":  primitive.NewDateTimeFromTime(startOfNextYear),
		},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	latest, err := g.DB.FindOne(ctx, filter, opts)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return year2 + "0001", nil
		}
		return "", err
	}

	return year2 + fmt.Sprintf("%04d", nextSequence(latest.IncidentNumber, year2)), nil
}

// nextSequence computes the sequence for a new number given the latest
// incident number of the year. A latest number that does not carry the
// expected year prefix, or whose suffix is not numeric, restarts the sequence
// at 1 rather than failing; that covers manually edited or pre-fix records.
func nextSequence(latestNumber, year2 string) int {
	if !strings.HasPrefix(latestNumber, year2) {
		return 1
	}
	n, err := strconv.Atoi(latestNumber[len(year2):])
	if err != nil || n < 1 {
		return 1
	}
	return n + 1
}
