package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/labdesk/internal/config"
)

type Service interface {
	// Assign reassigns ExistingBasketID when it is a valid basket ID, otherwise claims the
	// first free basket in the requested zone.
	Assign(ctx context.Context, req AssignRequest) (AssignmentResult, error)
	// Return frees every listed basket. Failures are isolated per ID and joined.
	Return(ctx context.Context, ids ...string) (ReturnResult, error)
	// ReturnRows frees the baskets on the given Basket Index rows.
	ReturnRows(ctx context.Context, rows []int) (ReturnResult, error)
	Lookup(ctx context.Context, id string) (*IndexEntry, error)
	List(ctx context.Context) ([]IndexEntry, error)

	// Reconcile flips the active flag of assigned baskets whose owner's activity changed,
	// once the assignment is older than graceDays.
	Reconcile(ctx context.Context, graceDays int) ([]StatusChange, error)

	PurgeCandidates(ctx context.Context) ([]IndexEntry, error)
	SendPurgeWarnings(ctx context.Context) (PurgeReport, error)

	// NotifyAssignment emails the requester the outcome of Assign.
	NotifyAssignment(ctx context.Context, req AssignRequest, res AssignmentResult) error

	// Seed fills an empty Basket Index from the inventory and reports how many rows were added.
	Seed(ctx context.Context, seeds []config.BasketSeed) (int, error)
}

var (
	ErrNotFound         = errors.New("basket_not_found")
	ErrInvalidBasketID  = errors.New("invalid_basket_id")
	ErrInvalidZone      = errors.New("invalid_zone")
	ErrInvalidRequester = errors.New("invalid_requester")
	ErrInvalidTimestamp = errors.New("invalid_timestamp")
)
