package domain

import (
	"context"
	"errors"
)

// PerRow is the number of badges printed side by side.
const PerRow = 3

type Badge struct {
	Name  string `json:"name"`
	VCard string `json:"vcard"`
}

// Pad appends blank badges until len(badges) is a multiple of PerRow.
func Pad(badges []Badge) []Badge {
	for len(badges)%PerRow != 0 {
		badges = append(badges, Badge{})
	}
	return badges
}

type Service interface {
	// RowsForEIDs returns the registration rows of the given EIDs in sheet order.
	RowsForEIDs(ctx context.Context, eids []string) ([]int, error)
	// ParseRows reads a row list and checks it against the registration sheet.
	ParseRows(ctx context.Context, text string) ([]int, error)
	Badges(ctx context.Context, rows []int) ([]Badge, error)
	// Sheet renders the badges of rows as a printable PDF.
	Sheet(ctx context.Context, rows []int) ([]byte, error)
}

var ErrNoBadges = errors.New("no_badges")
