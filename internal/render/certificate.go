package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// CertificateData is what gets printed on a certificate.
type CertificateData struct {
	ParticipantName   string
	EventTitle        string
	EventDate         time.Time
	EventLocation     string
	CertificateNumber string
	IssuedAt          time.Time
}

// TemplateSource opens stored template images.
type TemplateSource interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// PDFRenderer draws the certificate text over the event's template image and wraps the
// result in an A4 landscape PDF.
type PDFRenderer struct {
	templates TemplateSource
	regular   *truetype.Font
	bold      *truetype.Font
}

func NewPDFRenderer(templates TemplateSource) (*PDFRenderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse bold font: %w", err)
	}
	return &PDFRenderer{templates: templates, regular: regular, bold: bold}, nil
}

// Render returns the PDF bytes. Drawing runs in its own goroutine so a cancelled ctx
// releases the caller even while the image work is still in progress.
func (r *PDFRenderer) Render(ctx context.Context, templateKey string, data CertificateData) ([]byte, error) {
	tpl, err := r.loadTemplate(ctx, templateKey)
	if err != nil {
		return nil, err
	}

	type result struct {
		pdf []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		pdf, err := r.draw(tpl, data)
		done <- result{pdf, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("render: %w", ctx.Err())
	case res := <-done:
		return res.pdf, res.err
	}
}

func (r *PDFRenderer) loadTemplate(ctx context.Context, key string) (image.Image, error) {
	rc, err := r.templates.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("render: open template: %w", err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("render: decode template: %w", err)
	}
	return img, nil
}

func (r *PDFRenderer) draw(tpl image.Image, data CertificateData) ([]byte, error) {
	dc := gg.NewContextForImage(tpl)
	w := float64(dc.Width())
	h := float64(dc.Height())

	dc.SetRGB(0.1, 0.1, 0.15)

	dc.SetFontFace(r.face(r.bold, h/14))
	dc.DrawStringAnchored(data.ParticipantName, w/2, h*0.45, 0.5, 0.5)

	dc.SetFontFace(r.face(r.regular, h/28))
	dc.DrawStringWrapped(data.EventTitle, w/2, h*0.58, 0.5, 0.5, w*0.75, 1.4, gg.AlignCenter)

	line := data.EventDate.Format("2 January 2006")
	if data.EventLocation != "" {
		line += " · " + data.EventLocation
	}
	dc.DrawStringAnchored(line, w/2, h*0.68, 0.5, 0.5)

	dc.SetFontFace(r.face(r.regular, h/48))
	dc.DrawStringAnchored(data.CertificateNumber, w*0.05, h*0.95, 0, 0.5)

	var png bytes.Buffer
	if err := dc.EncodePNG(&png); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Certificate "+data.CertificateNumber, true)
	pdf.SetCreationDate(data.IssuedAt)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("certificate", opts, &png)
	pageW, pageH := pdf.GetPageSize()
	pdf.ImageOptions("certificate", 0, 0, pageW, pageH, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("render: write pdf: %w", err)
	}
	return out.Bytes(), nil
}

func (r *PDFRenderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size})
}
