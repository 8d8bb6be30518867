package service

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func validDate(date string) bool {
	return validate.Var(date, "required,datetime=2006-01-02") == nil
}

// validSlotTime accepts HH:MM and HH:MM:SS
func validSlotTime(t string) bool {
	return validate.Var(t, "datetime=15:04:05") == nil || validate.Var(t, "datetime=15:04") == nil
}
