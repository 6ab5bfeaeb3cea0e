package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("recurring schedule not found")
	ErrPolicyNotFound   = errors.New("serial policy not found")
)

// Repository contains all DB interactions needed by the calculator.
type Repository interface {
	// GetScheduleForWeekday returns the active schedule row for the
	// provider/weekday, scoped to a venue when one is given.
	GetScheduleForWeekday(ctx context.Context, providerID uuid.UUID, venueID *uuid.UUID, day time.Weekday) (*RecurringSchedule, error)

	// GetActiveSerialPolicy returns the provider's single active policy.
	GetActiveSerialPolicy(ctx context.Context, providerID uuid.UUID) (*SerialPolicy, error)

	// GetDayClaims returns the starts and serials held by non-terminal
	// appointments for the provider on the date.
	GetDayClaims(ctx context.Context, providerID uuid.UUID, date time.Time) (DayClaims, error)
}
