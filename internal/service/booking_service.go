package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-service/internal/apperr"
	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Shops take appointments on the hour from openingHour to closingHour
// inclusive.
const (
	openingHour = 9
	closingHour = 18
)

// Slot is a bookable hour
type Slot struct {
	Time    string `json:"time"`
	Display string `json:"display"`
}

// AllSlots returns every hourly slot of the working day in order
func AllSlots() []Slot {
	slots := make([]Slot, 0, closingHour-openingHour+1)
	for h := openingHour; h <= closingHour; h++ {
		slots = append(slots, Slot{Time: fmt.Sprintf("%02d:00:00", h), Display: slotLabel(h)})
	}
	return slots
}

func slotLabel(hour int) string {
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:00 %s", h, suffix)
}

// normalizeSlot turns HH:MM or HH:MM:SS into HH:MM:SS and reports whether
// it is one of the working-day slots
func normalizeSlot(t string) (string, bool) {
	if !validSlotTime(t) {
		return "", false
	}
	if len(t) == len("15:04") {
		t += ":00"
	}
	for _, slot := range AllSlots() {
		if slot.Time == t {
			return t, true
		}
	}
	return "", false
}

// BookingService manages service appointments at shops
type BookingService struct {
	appointments AppointmentRepository
	events       Events
	logger       *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(appointments AppointmentRepository, events Events) *BookingService {
	return &BookingService{
		appointments: appointments,
		events:       events,
		logger:       util.GetLogger(),
	}
}

// BookRequest is the booking form
type BookRequest struct {
	ShopID          int64  `json:"shop_id" form:"shop_id"`
	ServiceType     string `json:"service_type" form:"service_type"`
	AppointmentDate string `json:"appointment_date" form:"appointment_date"`
	AppointmentTime string `json:"appointment_time" form:"appointment_time"`
	VehicleInfo     string `json:"vehicle_info" form:"vehicle_info"`
	Notes           string `json:"notes" form:"notes"`
}

// GetShop returns the shop a booking page is for
func (s *BookingService) GetShop(ctx context.Context, shopID int64) (*models.Shop, error) {
	shop, err := s.appointments.GetShopByID(ctx, shopID)
	if err != nil {
		return nil, classify(err, "failed to load shop")
	}
	return shop, nil
}

// IsTimeSlotAvailable reports whether no pending or confirmed appointment
// holds the slot
func (s *BookingService) IsTimeSlotAvailable(ctx context.Context, shopID int64, date, slot string) (bool, error) {
	available, err := s.appointments.IsTimeSlotAvailable(ctx, shopID, date, slot)
	if err != nil {
		return false, apperr.Internal(err, "failed to check availability")
	}
	return available, nil
}

// GetAvailableSlots returns the working-day slots not held by a pending or
// confirmed appointment, in time order
func (s *BookingService) GetAvailableSlots(ctx context.Context, shopID int64, date string) ([]Slot, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.GetAvailableSlots",
		attribute.Int64("shop_id", shopID), attribute.String("date", date))
	defer span.End()

	if shopID <= 0 || !validDate(date) {
		return nil, apperr.Validation("shop ID and date are required")
	}

	booked, err := s.appointments.BookedTimes(ctx, shopID, date)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to load booked slots")
	}

	taken := make(map[string]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}

	available := make([]Slot, 0, closingHour-openingHour+1)
	for _, slot := range AllSlots() {
		if _, ok := taken[slot.Time]; !ok {
			available = append(available, slot)
		}
	}
	return available, nil
}

// Book creates a pending appointment. Availability is re-checked right
// before the insert; a booking that loses the remaining race is rejected
// by the database.
func (s *BookingService) Book(ctx context.Context, userID int64, req *BookRequest) (*models.Appointment, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Book", attribute.Int64("shop_id", req.ShopID))
	defer span.End()

	serviceType := strings.TrimSpace(req.ServiceType)
	if req.ShopID <= 0 || serviceType == "" || req.AppointmentDate == "" || req.AppointmentTime == "" {
		return nil, apperr.Validation("please fill in all required fields")
	}
	if !validDate(req.AppointmentDate) {
		return nil, apperr.Validation("appointment date must be YYYY-MM-DD")
	}
	slot, ok := normalizeSlot(req.AppointmentTime)
	if !ok {
		return nil, apperr.Validation("appointment time must be an hourly slot between 09:00 and 18:00")
	}

	if _, err := s.appointments.GetShopByID(ctx, req.ShopID); err != nil {
		return nil, classify(err, "failed to load shop")
	}

	available, err := s.appointments.IsTimeSlotAvailable(ctx, req.ShopID, req.AppointmentDate, slot)
	if err != nil {
		return nil, apperr.Internal(util.RecordError(span, err), "failed to check availability")
	}
	if !available {
		util.SlotConflictsTotal.Inc()
		return nil, apperr.Conflict("this time slot is no longer available")
	}

	appt := &models.Appointment{
		UserID:          userID,
		ShopID:          req.ShopID,
		ServiceType:     serviceType,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: slot,
		VehicleInfo:     models.NewNullString(strings.TrimSpace(req.VehicleInfo)),
		Notes:           models.NewNullString(strings.TrimSpace(req.Notes)),
	}
	if err := s.appointments.CreateAppointment(ctx, appt); err != nil {
		if apperr.Is(err, apperr.CodeConflict) {
			util.SlotConflictsTotal.Inc()
		}
		return nil, classify(util.RecordError(span, err), "failed to book appointment")
	}

	util.AppointmentsBookedTotal.Inc()
	s.logger.Info("Appointment booked",
		zap.Int64("appointment_id", appt.ID),
		zap.Int64("shop_id", appt.ShopID),
		zap.String("date", appt.AppointmentDate),
		zap.String("time", appt.AppointmentTime))

	s.publish(ctx, models.EventTypeAppointmentBooked, appt)
	return appt, nil
}

// Cancel cancels the user's appointment. Cancelling twice is a no-op.
func (s *BookingService) Cancel(ctx context.Context, userID, appointmentID int64) error {
	ctx, span := util.StartSpan(ctx, "BookingService.Cancel", attribute.Int64("appointment_id", appointmentID))
	defer span.End()

	appt, err := s.GetAppointment(ctx, userID, appointmentID)
	if err != nil {
		return err
	}
	if appt.Status == models.AppointmentCancelled {
		return nil
	}

	if err := s.appointments.UpdateAppointmentStatus(ctx, appt.ID, models.AppointmentCancelled); err != nil {
		return classify(util.RecordError(span, err), "failed to cancel appointment")
	}
	appt.Status = models.AppointmentCancelled

	util.AppointmentsCancelledTotal.Inc()
	s.logger.Info("Appointment cancelled", zap.Int64("appointment_id", appt.ID))

	s.publish(ctx, models.EventTypeAppointmentCancelled, appt)
	return nil
}

// GetAppointment returns an appointment owned by userID
func (s *BookingService) GetAppointment(ctx context.Context, userID, appointmentID int64) (*models.Appointment, error) {
	if appointmentID <= 0 {
		return nil, apperr.Validation("appointment ID is required")
	}
	appt, err := s.appointments.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, classify(err, "failed to load appointment")
	}
	if appt.UserID != userID {
		return nil, apperr.Forbidden("you do not have access to this appointment")
	}
	return appt, nil
}

// ListUserAppointments returns the user's appointments, latest slot first
func (s *BookingService) ListUserAppointments(ctx context.Context, userID int64) ([]models.Appointment, error) {
	appts, err := s.appointments.ListAppointmentsByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load appointments")
	}
	return appts, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, appt *models.Appointment) {
	event := &models.AppointmentEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		AppointmentID: appt.ID,
		UserID:        appt.UserID,
		ShopID:        appt.ShopID,
		Date:          appt.AppointmentDate,
		Time:          appt.AppointmentTime,
		Status:        appt.Status,
	}

	var err error
	if eventType == models.EventTypeAppointmentCancelled {
		err = s.events.PublishAppointmentCancelled(ctx, event)
	} else {
		err = s.events.PublishAppointmentBooked(ctx, event)
	}
	if err != nil {
		s.logger.Error("Failed to publish appointment event",
			zap.String("event_type", eventType),
			zap.Int64("appointment_id", appt.ID),
			zap.Error(err))
	}
}
