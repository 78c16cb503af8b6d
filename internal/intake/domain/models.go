package domain

import (
	"context"
	"errors"
)

// Form names accepted by Submit.
const (
	FormTraining     = "training"
	FormQuiz         = "quiz"
	FormRegistration = "registration"
	FormLabAccess    = "lab-access"
	FormBasket       = "basket"
)

var Forms = []string{FormTraining, FormQuiz, FormRegistration, FormLabAccess, FormBasket}

// Result reports where a submission was stored and what its workflow produced.
type Result struct {
	Form    string `json:"form"`
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Outcome any    `json:"outcome,omitempty"`
}

type Service interface {
	// Submit appends values to the form's sheet, stamping the time when absent,
	// then runs the form's workflow against the stored row.
	Submit(ctx context.Context, form string, values map[string]string) (Result, error)
}

var (
	ErrUnknownForm  = errors.New("unknown_form")
	ErrMissingField = errors.New("missing_required_field")
)
