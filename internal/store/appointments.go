package store

import (
	"context"
	"fmt"

	"market-service/internal/apperr"
	"market-service/internal/models"
)

// DATE and TIME are read back as text so they round-trip unchanged.
const appointmentColumns = `a.id, a.user_id, a.shop_id, a.service_type,
	a.appointment_date::text AS appointment_date, a.appointment_time::text AS appointment_time,
	a.vehicle_info, a.notes, a.status, s.name AS shop_name, a.created_at, a.updated_at`

// IsTimeSlotAvailable reports whether no pending or confirmed appointment
// holds the slot
func (s *Store) IsTimeSlotAvailable(ctx context.Context, shopID int64, date, slot string) (bool, error) {
	var taken bool
	err := s.db.GetContext(ctx, &taken,
		`SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE shop_id = $1 AND appointment_date = $2::date AND appointment_time = $3::time
			  AND status IN ('pending', 'confirmed'))`,
		shopID, date, slot)
	if err != nil {
		return false, fmt.Errorf("failed to check slot availability: %w", err)
	}
	return !taken, nil
}

// BookedTimes returns the HH:MM:SS times held by pending or confirmed
// appointments at a shop on a date
func (s *Store) BookedTimes(ctx context.Context, shopID int64, date string) ([]string, error) {
	times := []string{}
	err := s.db.SelectContext(ctx, &times,
		`SELECT appointment_time::text FROM appointments
		 WHERE shop_id = $1 AND appointment_date = $2::date AND status IN ('pending', 'confirmed')
		 ORDER BY appointment_time`,
		shopID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked slots: %w", err)
	}
	return times, nil
}

// CreateAppointment inserts a pending appointment. A concurrent booking of
// the same slot surfaces as a conflict.
func (s *Store) CreateAppointment(ctx context.Context, appt *models.Appointment) error {
	query := `
		INSERT INTO appointments (user_id, shop_id, service_type, appointment_date, appointment_time, vehicle_info, notes, status)
		VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8)
		RETURNING id, appointment_date::text AS appointment_date, appointment_time::text AS appointment_time,
		          status, created_at, updated_at`

	err := s.db.GetContext(ctx, appt, query,
		appt.UserID, appt.ShopID, appt.ServiceType, appt.AppointmentDate, appt.AppointmentTime,
		appt.VehicleInfo, appt.Notes, models.AppointmentPending)
	switch {
	case apperr.IsPGCode(err, apperr.PGUniqueViolation):
		return apperr.Conflict("this time slot is no longer available")
	case apperr.IsPGCode(err, apperr.PGForeignKeyViolation):
		return apperr.NotFound(fmt.Sprintf("shop not found: %d", appt.ShopID))
	case err != nil:
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// GetAppointmentByID retrieves an appointment with its shop name
func (s *Store) GetAppointmentByID(ctx context.Context, id int64) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.GetContext(ctx, &appt,
		"SELECT "+appointmentColumns+" FROM appointments a JOIN shops s ON s.id = a.shop_id WHERE a.id = $1", id)
	if err != nil {
		return nil, notFound(err, "appointment not found: %d", id)
	}
	return &appt, nil
}

// ListAppointmentsByUser retrieves a user's appointments, latest slot first
func (s *Store) ListAppointmentsByUser(ctx context.Context, userID int64) ([]models.Appointment, error) {
	appts := []models.Appointment{}
	err := s.db.SelectContext(ctx, &appts,
		`SELECT `+appointmentColumns+`
		 FROM appointments a JOIN shops s ON s.id = a.shop_id
		 WHERE a.user_id = $1
		 ORDER BY a.appointment_date DESC, a.appointment_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

// UpdateAppointmentStatus sets the status of an appointment
func (s *Store) UpdateAppointmentStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE appointments SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	return requireAffected(res, "appointment not found: %d", id)
}
