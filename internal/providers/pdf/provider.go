package pdf

import "context"

// BasketLabel is printed and taped to a cleanroom basket.
type BasketLabel struct {
	BasketID  string
	Zone      string
	Assignee  string
	QRContent string
}

// Badge is one cell of a badge sheet. Blank badges keep the grid aligned.
type Badge struct {
	Name  string
	VCard string
}

type Field struct {
	Label string
	Value string
}

// AccessForm is the paper building access request handed to the access control officer.
type AccessForm struct {
	Title     string
	Fields    []Field
	Signature string
	QRContent string
}

type Provider interface {
	BasketLabel(ctx context.Context, label BasketLabel) ([]byte, error)
	BadgeSheet(ctx context.Context, badges []Badge) ([]byte, error)
	AccessForm(ctx context.Context, form AccessForm) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) BasketLabel(ctx context.Context, label BasketLabel) ([]byte, error) {
	return nil, nil
}

func (p *NoOpProvider) BadgeSheet(ctx context.Context, badges []Badge) ([]byte, error) {
	return nil, nil
}

func (p *NoOpProvider) AccessForm(ctx context.Context, form AccessForm) ([]byte, error) {
	return nil, nil
}
