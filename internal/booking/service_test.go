package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/caresync/booking-engine/internal/approval"
	"github.com/caresync/booking-engine/internal/availability"
	redisclient "github.com/caresync/booking-engine/internal/redis"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	args := m.Called(ctx, id)
	var p *Patient
	if v := args.Get(0); v != nil {
		p = v.(*Patient)
	}
	return p, args.Error(1)
}

func (m *MockRepository) GetVenueByID(ctx context.Context, id uuid.UUID) (*Venue, error) {
	args := m.Called(ctx, id)
	var v *Venue
	if got := args.Get(0); got != nil {
		v = got.(*Venue)
	}
	return v, args.Error(1)
}

func (m *MockRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	args := m.Called(ctx, id)
	var a *Appointment
	if v := args.Get(0); v != nil {
		a = v.(*Appointment)
	}
	return a, args.Error(1)
}

func (m *MockRepository) SlotClaimed(ctx context.Context, providerID uuid.UUID, date time.Time, start availability.MinuteOfDay) (bool, error) {
	args := m.Called(ctx, providerID, date, start)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) SerialClaimed(ctx context.Context, providerID uuid.UUID, date time.Time, serial int) (bool, error) {
	args := m.Called(ctx, providerID, date, serial)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	args := m.Called(ctx, id, from, to)
	var a *Appointment
	if v := args.Get(0); v != nil {
		a = v.(*Appointment)
	}
	return a, args.Error(1)
}

func (m *MockRepository) CancelAppointment(ctx context.Context, id uuid.UUID, from Status, reason string, at time.Time) (*Appointment, error) {
	args := m.Called(ctx, id, from, reason, at)
	var a *Appointment
	if v := args.Get(0); v != nil {
		a = v.(*Appointment)
	}
	return a, args.Error(1)
}

func (m *MockRepository) AttachRecord(ctx context.Context, id, recordID uuid.UUID) (*Appointment, error) {
	args := m.Called(ctx, id, recordID)
	var a *Appointment
	if v := args.Get(0); v != nil {
		a = v.(*Appointment)
	}
	return a, args.Error(1)
}

func (m *MockRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	args := m.Called(ctx, patientID, limit, offset)
	var as []Appointment
	if v := args.Get(0); v != nil {
		as = v.([]Appointment)
	}
	return as, args.Error(1)
}

func (m *MockRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

type MockAvailabilityRepo struct {
	mock.Mock
}

func (m *MockAvailabilityRepo) GetScheduleForWeekday(ctx context.Context, providerID uuid.UUID, venueID *uuid.UUID, day time.Weekday) (*availability.RecurringSchedule, error) {
	args := m.Called(ctx, providerID, venueID, day)
	var s *availability.RecurringSchedule
	if v := args.Get(0); v != nil {
		s = v.(*availability.RecurringSchedule)
	}
	return s, args.Error(1)
}

func (m *MockAvailabilityRepo) GetActiveSerialPolicy(ctx context.Context, providerID uuid.UUID) (*availability.SerialPolicy, error) {
	args := m.Called(ctx, providerID)
	var p *availability.SerialPolicy
	if v := args.Get(0); v != nil {
		p = v.(*availability.SerialPolicy)
	}
	return p, args.Error(1)
}

func (m *MockAvailabilityRepo) GetDayClaims(ctx context.Context, providerID uuid.UUID, date time.Time) (availability.DayClaims, error) {
	args := m.Called(ctx, providerID, date)
	return args.Get(0).(availability.DayClaims), args.Error(1)
}

type MockProviderDirectory struct {
	mock.Mock
}

func (m *MockProviderDirectory) GetProvider(ctx context.Context, id uuid.UUID) (*approval.Provider, error) {
	args := m.Called(ctx, id)
	var p *approval.Provider
	if v := args.Get(0); v != nil {
		p = v.(*approval.Provider)
	}
	return p, args.Error(1)
}

// passthroughLocker runs the critical section inline.
type passthroughLocker struct {
	err error
}

func (l *passthroughLocker) WithReservationLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}

type recordedNotification struct {
	RecipientID uuid.UUID
	EventType   string
}

type recordingNotifier struct {
	sent []recordedNotification
}

func (n *recordingNotifier) AppointmentChanged(recipientID, appointmentID uuid.UUID, eventType, title, body string) {
	n.sent = append(n.sent, recordedNotification{RecipientID: recipientID, EventType: eventType})
}

type testFixture struct {
	svc       *Service
	repo      *MockRepository
	availRepo *MockAvailabilityRepo
	dir       *MockProviderDirectory
	locker    *passthroughLocker
	notifier  *recordingNotifier
}

func setupService() *testFixture {
	repo := &MockRepository{}
	availRepo := &MockAvailabilityRepo{}
	dir := &MockProviderDirectory{}
	locker := &passthroughLocker{}
	notifier := &recordingNotifier{}

	calc := availability.NewCalculator(availRepo, dir, 15*time.Minute)
	svc := NewService(repo, availRepo, calc, dir, locker, notifier, zerolog.Nop())

	return &testFixture{
		svc:       svc,
		repo:      repo,
		availRepo: availRepo,
		dir:       dir,
		locker:    locker,
		notifier:  notifier,
	}
}

// Monday 2026-09-07.
var testDate = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func approvedProvider(id uuid.UUID) *approval.Provider {
	return &approval.Provider{ID: id, Status: approval.ProviderApproved}
}

func emptyClaims() availability.DayClaims {
	return availability.DayClaims{
		Starts:  map[availability.MinuteOfDay]bool{},
		Serials: map[int]bool{},
	}
}

func weekdaySchedule(providerID, venueID uuid.UUID) *availability.RecurringSchedule {
	return &availability.RecurringSchedule{
		ProviderID: providerID,
		VenueID:    venueID,
		DayOfWeek:  time.Monday,
		Windows: []availability.TimeWindow{
			{Start: availability.NewMinuteOfDay(9, 0), End: availability.NewMinuteOfDay(12, 0)},
		},
		ValidFrom:  testDate.AddDate(0, -1, 0),
		ValidUntil: testDate.AddDate(0, 1, 0),
		Active:     true,
	}
}

func twentySlotPolicy(providerID uuid.UUID) *availability.SerialPolicy {
	return &availability.SerialPolicy{
		ProviderID:       providerID,
		TotalSlotsPerDay: 20,
		Window:           availability.TimeWindow{Start: availability.NewMinuteOfDay(9, 0), End: availability.NewMinuteOfDay(17, 0)},
		UnitPrice:        500,
		Active:           true,
	}
}

func TestBookAppointment_Success(t *testing.T) {
	f := setupService()
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)
	f.repo.On("GetVenueByID", mock.Anything, venueID).Return(&Venue{
		ID:            venueID,
		ProviderID:    providerID,
		NewPatientFee: 1500,
		FollowUpFee:   700,
	}, nil)
	f.repo.On("SlotClaimed", mock.Anything, providerID, testDate, availability.NewMinuteOfDay(9, 30)).Return(false, nil)
	f.repo.On("CreateAppointment", mock.Anything, mock.AnythingOfType("*booking.Appointment")).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.AnythingOfType("booking.EventLog")).Return(nil)

	appt, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(9, 30),
		Kind:       KindFollowUp,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "09:30", appt.Start.String())
	assert.Equal(t, "09:45", appt.End.String())
	assert.Equal(t, int64(700), appt.Fee)
	assert.True(t, strings.HasPrefix(appt.BookingNumber, "BK-20260907-"))
	assert.Nil(t, appt.SerialNumber)

	// Both parties are told about the new booking.
	assert.Len(t, f.notifier.sent, 2)
	f.repo.AssertExpectations(t)
}

func TestBookAppointment_StartNotOffered(t *testing.T) {
	f := setupService()
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)

	_, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(14, 0),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	f.repo.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestBookAppointment_SlotClaimedInsideLock(t *testing.T) {
	f := setupService()
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)
	f.repo.On("GetVenueByID", mock.Anything, venueID).Return(&Venue{ID: venueID, NewPatientFee: 1000}, nil)
	// Someone else won the race between availability read and lock entry.
	f.repo.On("SlotClaimed", mock.Anything, providerID, testDate, availability.NewMinuteOfDay(9, 0)).Return(true, nil)

	_, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	f.repo.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestBookAppointment_LockContention(t *testing.T) {
	f := setupService()
	f.locker.err = redisclient.ErrLockNotAcquired
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)
	f.repo.On("GetVenueByID", mock.Anything, venueID).Return(&Venue{ID: venueID, NewPatientFee: 1000}, nil)

	_, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
}

func TestBookAppointment_UniqueIndexBackstop(t *testing.T) {
	f := setupService()
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)
	f.repo.On("GetVenueByID", mock.Anything, venueID).Return(&Venue{ID: venueID, NewPatientFee: 1000}, nil)
	f.repo.On("SlotClaimed", mock.Anything, providerID, testDate, availability.NewMinuteOfDay(9, 0)).Return(false, nil)
	f.repo.On("CreateAppointment", mock.Anything, mock.Anything).Return(ErrSlotTaken)

	_, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookAppointment_CompensatingRelease(t *testing.T) {
	f := setupService()
	patientID, providerID, venueID := uuid.New(), uuid.New(), uuid.New()

	var createdID uuid.UUID
	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.availRepo.On("GetDayClaims", mock.Anything, providerID, testDate).Return(emptyClaims(), nil)
	f.availRepo.On("GetScheduleForWeekday", mock.Anything, providerID, &venueID, time.Monday).
		Return(weekdaySchedule(providerID, venueID), nil)
	f.repo.On("GetVenueByID", mock.Anything, venueID).Return(&Venue{ID: venueID, NewPatientFee: 1000}, nil)
	f.repo.On("SlotClaimed", mock.Anything, providerID, testDate, availability.NewMinuteOfDay(9, 0)).Return(false, nil)
	f.repo.On("CreateAppointment", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		createdID = args.Get(1).(*Appointment).ID
	}).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.Anything).Return(errors.New("event log down"))
	f.repo.On("DeleteAppointment", mock.Anything, mock.MatchedBy(func(id uuid.UUID) bool {
		return id == createdID
	})).Return(nil)

	_, err := f.svc.BookAppointment(context.Background(), BookAppointmentParams{
		PatientID:  patientID,
		ProviderID: providerID,
		VenueID:    venueID,
		Date:       testDate,
		Start:      availability.NewMinuteOfDay(9, 0),
	})
	assert.ErrorIs(t, err, ErrReservationOrphan)
	f.repo.AssertCalled(t, "DeleteAppointment", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.sent)
}

func TestBookSerial_Success(t *testing.T) {
	f := setupService()
	patientID, providerID := uuid.New(), uuid.New()

	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.availRepo.On("GetActiveSerialPolicy", mock.Anything, providerID).Return(twentySlotPolicy(providerID), nil)
	f.repo.On("SerialClaimed", mock.Anything, providerID, testDate, 2).Return(false, nil)
	f.repo.On("CreateAppointment", mock.Anything, mock.AnythingOfType("*booking.Appointment")).Return(nil)
	f.repo.On("InsertEvent", mock.Anything, mock.AnythingOfType("booking.EventLog")).Return(nil)

	appt, err := f.svc.BookSerial(context.Background(), BookSerialParams{
		PatientID:    patientID,
		ProviderID:   providerID,
		Date:         testDate,
		SerialNumber: 2,
	})
	require.NoError(t, err)

	require.NotNil(t, appt.SerialNumber)
	assert.Equal(t, 2, *appt.SerialNumber)
	assert.Equal(t, "09:00", appt.Start.String())
	assert.Equal(t, "09:24", appt.End.String())
	assert.Equal(t, KindSerial, appt.Kind)
	assert.Equal(t, int64(500), appt.Fee)
	assert.Equal(t, StatusPending, appt.Status)
}

func TestBookSerial_OddSerialRejected(t *testing.T) {
	f := setupService()
	patientID, providerID := uuid.New(), uuid.New()

	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.availRepo.On("GetActiveSerialPolicy", mock.Anything, providerID).Return(twentySlotPolicy(providerID), nil)

	_, err := f.svc.BookSerial(context.Background(), BookSerialParams{
		PatientID:    patientID,
		ProviderID:   providerID,
		Date:         testDate,
		SerialNumber: 7,
	})
	assert.ErrorIs(t, err, availability.ErrOddSerial)
	f.repo.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestBookSerial_OutOfRange(t *testing.T) {
	f := setupService()
	patientID, providerID := uuid.New(), uuid.New()

	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.availRepo.On("GetActiveSerialPolicy", mock.Anything, providerID).Return(twentySlotPolicy(providerID), nil)

	_, err := f.svc.BookSerial(context.Background(), BookSerialParams{
		PatientID:    patientID,
		ProviderID:   providerID,
		Date:         testDate,
		SerialNumber: 42,
	})
	assert.ErrorIs(t, err, availability.ErrSerialOutOfRange)
}

func TestBookSerial_ProviderNotApproved(t *testing.T) {
	f := setupService()
	patientID, providerID := uuid.New(), uuid.New()

	f.dir.On("GetProvider", mock.Anything, providerID).Return(&approval.Provider{
		ID:     providerID,
		Status: approval.ProviderPendingHospital,
	}, nil)

	_, err := f.svc.BookSerial(context.Background(), BookSerialParams{
		PatientID:    patientID,
		ProviderID:   providerID,
		Date:         testDate,
		SerialNumber: 2,
	})
	assert.ErrorIs(t, err, availability.ErrProviderNotApproved)
}

func TestBookSerial_DayNotOffered(t *testing.T) {
	f := setupService()
	patientID, providerID := uuid.New(), uuid.New()

	policy := twentySlotPolicy(providerID)
	policy.AvailableDays = []time.Weekday{time.Friday}

	f.dir.On("GetProvider", mock.Anything, providerID).Return(approvedProvider(providerID), nil)
	f.repo.On("GetPatientByID", mock.Anything, patientID).Return(&Patient{ID: patientID}, nil)
	f.availRepo.On("GetActiveSerialPolicy", mock.Anything, providerID).Return(policy, nil)

	_, err := f.svc.BookSerial(context.Background(), BookSerialParams{
		PatientID:    patientID,
		ProviderID:   providerID,
		Date:         testDate,
		SerialNumber: 2,
	})
	assert.ErrorIs(t, err, availability.ErrSerialDayNotOffered)
}

func TestUpdateStatus_ProviderAccepts(t *testing.T) {
	f := setupService()
	providerID, patientID, apptID := uuid.New(), uuid.New(), uuid.New()

	pending := &Appointment{ID: apptID, PatientID: patientID, ProviderID: providerID, Status: StatusPending}
	accepted := &Appointment{ID: apptID, PatientID: patientID, ProviderID: providerID, Status: StatusAccepted}

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(pending, nil)
	f.repo.On("UpdateAppointmentStatus", mock.Anything, apptID, StatusPending, StatusAccepted).Return(accepted, nil)
	f.repo.On("InsertEvent", mock.Anything, mock.AnythingOfType("booking.EventLog")).Return(nil)

	got, err := f.svc.UpdateStatus(context.Background(), providerID, approval.RoleProvider, apptID, StatusAccepted, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, patientID, f.notifier.sent[0].RecipientID)
}

func TestUpdateStatus_WrongCaller(t *testing.T) {
	f := setupService()
	providerID, apptID := uuid.New(), uuid.New()

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
		ID:         apptID,
		ProviderID: providerID,
		Status:     StatusPending,
	}, nil)

	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), approval.RoleProvider, apptID, StatusAccepted, nil)
	assert.ErrorIs(t, err, ErrNotProvider)

	_, err = f.svc.UpdateStatus(context.Background(), providerID, approval.RolePatient, apptID, StatusAccepted, nil)
	assert.ErrorIs(t, err, ErrNotProvider)
}

func TestUpdateStatus_TerminalStateRefused(t *testing.T) {
	f := setupService()
	providerID, apptID := uuid.New(), uuid.New()

	for _, status := range []Status{StatusRejected, StatusCompleted, StatusNoShow, StatusCancelled} {
		f.repo.ExpectedCalls = nil
		f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
			ID:         apptID,
			ProviderID: providerID,
			Status:     status,
		}, nil)

		_, err := f.svc.UpdateStatus(context.Background(), providerID, approval.RoleProvider, apptID, StatusAccepted, nil)
		assert.ErrorIs(t, err, ErrInvalidTransition, "status %s must be immutable", status)
	}
	f.repo.AssertNotCalled(t, "UpdateAppointmentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateStatus_SkippingAcceptedRefused(t *testing.T) {
	f := setupService()
	providerID, apptID := uuid.New(), uuid.New()

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
		ID:         apptID,
		ProviderID: providerID,
		Status:     StatusPending,
	}, nil)

	// pending can only move to accepted or rejected.
	_, err := f.svc.UpdateStatus(context.Background(), providerID, approval.RoleProvider, apptID, StatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(context.Background(), providerID, approval.RoleProvider, apptID, StatusNoShow, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancel_ReasonRequired(t *testing.T) {
	f := setupService()

	_, err := f.svc.Cancel(context.Background(), uuid.New(), uuid.New(), "")
	assert.ErrorIs(t, err, ErrReasonRequired)
	f.repo.AssertNotCalled(t, "GetAppointmentByID", mock.Anything, mock.Anything)
}

func TestCancel_Success(t *testing.T) {
	f := setupService()
	providerID, patientID, apptID := uuid.New(), uuid.New(), uuid.New()

	by := CancelledByPatient
	reason := "cannot make it"
	accepted := &Appointment{ID: apptID, PatientID: patientID, ProviderID: providerID, Status: StatusAccepted}
	cancelled := &Appointment{
		ID: apptID, PatientID: patientID, ProviderID: providerID,
		Status: StatusCancelled, CancelledBy: &by, CancelReason: &reason,
	}

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(accepted, nil)
	f.repo.On("CancelAppointment", mock.Anything, apptID, StatusAccepted, reason, mock.AnythingOfType("time.Time")).
		Return(cancelled, nil)
	f.repo.On("InsertEvent", mock.Anything, mock.AnythingOfType("booking.EventLog")).Return(nil)

	got, err := f.svc.Cancel(context.Background(), patientID, apptID, reason)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	// The provider hears about the cancellation.
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, providerID, f.notifier.sent[0].RecipientID)
	assert.Equal(t, EventAppointmentCancelled, f.notifier.sent[0].EventType)
}

func TestCancel_WrongPatient(t *testing.T) {
	f := setupService()
	apptID := uuid.New()

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
		ID:        apptID,
		PatientID: uuid.New(),
		Status:    StatusPending,
	}, nil)

	_, err := f.svc.Cancel(context.Background(), uuid.New(), apptID, "reason")
	assert.ErrorIs(t, err, ErrNotPatient)
}

func TestCancel_AlreadyCancelled(t *testing.T) {
	f := setupService()
	patientID, apptID := uuid.New(), uuid.New()

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
		ID:        apptID,
		PatientID: patientID,
		Status:    StatusCancelled,
	}, nil)

	_, err := f.svc.Cancel(context.Background(), patientID, apptID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAttachRecord_OnlyCompleted(t *testing.T) {
	f := setupService()
	apptID, recordID := uuid.New(), uuid.New()

	completed := &Appointment{ID: apptID, Status: StatusCompleted}
	linked := &Appointment{ID: apptID, Status: StatusCompleted, RecordID: &recordID}

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(completed, nil)
	f.repo.On("AttachRecord", mock.Anything, apptID, recordID).Return(linked, nil)

	got, err := f.svc.AttachRecord(context.Background(), apptID, recordID)
	require.NoError(t, err)
	require.NotNil(t, got.RecordID)
	assert.Equal(t, recordID, *got.RecordID)
}

func TestAttachRecord_RefusedWhilePending(t *testing.T) {
	f := setupService()
	apptID := uuid.New()

	f.repo.On("GetAppointmentByID", mock.Anything, apptID).Return(&Appointment{
		ID:     apptID,
		Status: StatusPending,
	}, nil)

	_, err := f.svc.AttachRecord(context.Background(), apptID, uuid.New())
	assert.ErrorIs(t, err, ErrRecordLinkRefused)
	f.repo.AssertNotCalled(t, "AttachRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestListByPatient_ClampsLimit(t *testing.T) {
	f := setupService()
	patientID := uuid.New()

	f.repo.On("ListByPatient", mock.Anything, patientID, 20, 0).Return([]Appointment{}, nil).Once()
	_, err := f.svc.ListByPatient(context.Background(), patientID, 0, -5)
	require.NoError(t, err)

	f.repo.On("ListByPatient", mock.Anything, patientID, 100, 10).Return([]Appointment{}, nil).Once()
	_, err = f.svc.ListByPatient(context.Background(), patientID, 500, 10)
	require.NoError(t, err)

	f.repo.AssertExpectations(t)
}
