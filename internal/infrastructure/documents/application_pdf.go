package documents

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
	"memberhub.backend/internal/domain/entities"
)

const (
	signatureImage = "signature"
	watermarkImage = "watermark"
	pageMargin     = 20.0
	dateLayout     = "02/01/2006"
)

var readFile = os.ReadFile

// ApplicationRenderer composes the signed membership application as a PDF.
type ApplicationRenderer struct {
	watermark []byte
}

// NewApplicationRenderer loads the watermark at path. An empty path renders without one.
func NewApplicationRenderer(watermarkPath string) (*ApplicationRenderer, error) {
	if watermarkPath == "" {
		return &ApplicationRenderer{}, nil
	}
	raw, err := readFile(watermarkPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}
	return NewApplicationRendererFromBytes(raw)
}

// NewApplicationRendererFromBytes uses an in-memory PNG watermark.
func NewApplicationRendererFromBytes(watermark []byte) (*ApplicationRenderer, error) {
	if len(watermark) > 0 {
		if _, err := png.DecodeConfig(bytes.NewReader(watermark)); err != nil {
			return nil, fmt.Errorf("failed to decode watermark: %w", err)
		}
	}
	return &ApplicationRenderer{watermark: watermark}, nil
}

// Render builds the document. The signature must be a PNG.
func (r *ApplicationRenderer) Render(ctx context.Context, doc entities.ApplicationDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(doc.Signature) == 0 {
		return nil, fmt.Errorf("signature image is empty")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Membership application", true)
	pdf.SetAuthor(doc.Organization, true)
	pdf.SetCreationDate(doc.SignedAt)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if len(r.watermark) > 0 {
		pdf.RegisterImageOptionsReader(watermarkImage, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(r.watermark))
	}
	pdf.RegisterImageOptionsReader(signatureImage, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(doc.Signature))
	if pdf.Err() {
		return nil, fmt.Errorf("failed to load document images: %w", pdf.Error())
	}

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	if len(r.watermark) > 0 {
		pdf.SetAlpha(0.12, "Normal")
		size := pageW * 0.6
		pdf.ImageOptions(watermarkImage, (pageW-size)/2, (pageH-size)/2, size, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetAlpha(1, "Normal")
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Organization), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, tr("Ficha de inscrição de membro"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Nome", doc.Name},
		{"Matrícula", doc.DisplayID},
		{"CPF", formatNationalID(doc.NationalID)},
		{"Nascimento", formatDate(doc)},
		{"E-mail", doc.Email},
		{"Telefone", doc.Phone},
		{"Profissão", doc.Profession},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(40, 8, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 8, tr(row[1]), "B", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr("Declaro que as informações acima são verdadeiras e solicito minha admissão como membro, "+
		"aceitando o estatuto e o regimento interno."), "", "J", false)

	pdf.Ln(10)
	sigW := 70.0
	x := (pageW - sigW) / 2
	y := pdf.GetY()
	pdf.ImageOptions(signatureImage, x, y, sigW, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	pdf.SetY(y + 30)
	pdf.CellFormat(0, 6, tr(doc.Name), "T", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, doc.SignedAt.Format(dateLayout), "", 1, "C", false, 0, "")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render application: %w", err)
	}
	return buf.Bytes(), nil
}

func formatDate(doc entities.ApplicationDocument) string {
	if !doc.BirthDate.Valid {
		return ""
	}
	return doc.BirthDate.Time.Format(dateLayout)
}

func formatNationalID(v string) string {
	if entities.IsPlaceholderNationalID(v) {
		return v
	}
	d := entities.NormalizeNationalID(v)
	if len(d) != 11 {
		return strings.TrimSpace(v)
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]
}
