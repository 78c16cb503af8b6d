package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// BadgesPerRow is the number of badges printed side by side.
const BadgesPerRow = 3

var ErrEmptyDocument = errors.New("pdf_empty_document")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.Letter).
		WithLeftMargin(12).
		WithRightMargin(12).
		WithTopMargin(12).
		Build()
	return maroto.New(cfg)
}

func generate(m core.Maroto) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func (p *PDFProvider) BasketLabel(ctx context.Context, label BasketLabel) ([]byte, error) {
	if label.BasketID == "" {
		return nil, ErrEmptyDocument
	}
	m := newDocument()

	m.AddRow(20,
		text.NewCol(12, "Basket "+label.BasketID, props.Text{
			Size:  28,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(10,
		text.NewCol(12, label.Zone, props.Text{Size: 14, Align: align.Center}),
	)
	m.AddRow(90,
		col.New(3),
		code.NewQrCol(6, label.QRContent, props.Rect{Center: true, Percent: 100}),
		col.New(3),
	)
	m.AddRow(10,
		text.NewCol(12, label.Assignee, props.Text{Size: 12, Align: align.Center}),
	)

	return generate(m)
}

// BadgeSheet lays badges out in rows of three, each with its name above a vCard QR code.
// Callers pad the slice so the last row is full.
func (p *PDFProvider) BadgeSheet(ctx context.Context, badges []Badge) ([]byte, error) {
	if len(badges) == 0 {
		return nil, ErrEmptyDocument
	}
	m := newDocument()

	for start := 0; start < len(badges); start += BadgesPerRow {
		end := min(start+BadgesPerRow, len(badges))
		names := make([]core.Col, 0, BadgesPerRow)
		codes := make([]core.Col, 0, BadgesPerRow)
		for _, b := range badges[start:end] {
			names = append(names, text.NewCol(4, b.Name, props.Text{
				Size:  14,
				Style: fontstyle.Bold,
				Align: align.Center,
			}))
			if b.VCard == "" {
				codes = append(codes, col.New(4))
				continue
			}
			codes = append(codes, code.NewQrCol(4, b.VCard, props.Rect{Center: true, Percent: 80}))
		}
		m.AddRow(12, names...)
		m.AddRow(55, codes...)
		m.AddRow(8, line.NewCol(12, props.Line{Thickness: 0.2}))
	}

	return generate(m)
}

func (p *PDFProvider) AccessForm(ctx context.Context, form AccessForm) ([]byte, error) {
	if len(form.Fields) == 0 {
		return nil, ErrEmptyDocument
	}
	m := newDocument()

	m.AddRow(16,
		text.NewCol(12, form.Title, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)
	for _, f := range form.Fields {
		m.AddRow(8,
			text.NewCol(4, f.Label, props.Text{Size: 10, Style: fontstyle.Bold}),
			text.NewCol(8, f.Value, props.Text{Size: 10}),
		)
	}
	m.AddRow(6, line.NewCol(12, props.Line{Thickness: 0.2}))
	m.AddRow(10,
		text.NewCol(12, "Signature: "+form.Signature, props.Text{Size: 10, Style: fontstyle.Italic}),
	)
	if form.QRContent != "" {
		m.AddRow(60,
			col.New(8),
			code.NewQrCol(4, form.QRContent, props.Rect{Center: true, Percent: 100}),
		)
	}

	return generate(m)
}
