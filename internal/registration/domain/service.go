package domain

import (
	"context"
	"errors"
)

type Service interface {
	// ProcessRegistration runs the building access workflow for a new registration.
	// Each step is attempted; failures are logged and reported as warnings.
	ProcessRegistration(ctx context.Context, r Registrant) (BuildingAccessResult, error)
	// ProcessLabAccess runs the lab access workflow for a new Lab Access row.
	ProcessLabAccess(ctx context.Context, req LabAccessRequest) (LabAccessResult, error)
	// RequestLabAccess submits the lab access form for registrant.
	RequestLabAccess(ctx context.Context, r Registrant) error
	// RequestLabAccessRows submits the lab access form for registration rows.
	RequestLabAccessRows(ctx context.Context, rows []int) (EmailReport, error)
	// RebuildAccessForms regenerates the paper building access forms for registration rows.
	RebuildAccessForms(ctx context.Context, rows []int) ([]string, error)
	// SendOnboarding sends one onboarding email per address.
	SendOnboarding(ctx context.Context, kind EmailKind, addresses []string) (EmailReport, error)
}

var (
	ErrUnknownEmailKind = errors.New("unknown_email_kind")
	ErrNoAddresses      = errors.New("no_valid_addresses")
)
