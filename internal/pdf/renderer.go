package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	_ "image/jpeg" // template decoding
	_ "image/png"
	"os"
	"strings"
	"time"

	xdraw "golang.org/x/image/draw"
)

// A4 portrait, points.
const (
	pageWidth  = 595.28
	pageHeight = 841.89
)

// Data is the certificate snapshot a render needs. The renderer never
// touches storage; callers persist the returned bytes.
type Data struct {
	StudentName       string
	CourseTitle       string
	CertificateNumber string
	MarksObtained     float64
	TotalMarks        int
	Percentage        float64
	IssuedAt          time.Time
}

// Renderer produces a single-page certificate PDF. The primary path
// overlays text on the configured template image, scaled to fit the
// page while preserving aspect ratio and centered. When the template is
// missing or unreadable it degrades to a minimal hand-built PDF so the
// system works with zero optional assets.
type Renderer struct {
	templatePath string
}

func NewRenderer(templatePath string) *Renderer {
	return &Renderer{templatePath: templatePath}
}

func (r *Renderer) Render(d Data) ([]byte, error) {
	if r.templatePath != "" {
		if img, err := loadTemplate(r.templatePath); err == nil {
			if out, err := renderTemplated(img, d); err == nil {
				return out, nil
			}
		}
	}
	return renderFallback(d), nil
}

func loadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// renderTemplated embeds the template as the page background and draws
// the award text over it.
func renderTemplated(img image.Image, d Data) ([]byte, error) {
	bounds := img.Bounds()
	imgW, imgH := float64(bounds.Dx()), float64(bounds.Dy())
	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("empty template image")
	}

	// Fit to page, preserve aspect ratio, center.
	scale := pageWidth / imgW
	if s := pageHeight / imgH; s < scale {
		scale = s
	}
	drawW, drawH := imgW*scale, imgH*scale
	drawX, drawY := (pageWidth-drawW)/2, (pageHeight-drawH)/2

	// Resample at 2x the display size in points for print quality.
	pxW, pxH := int(drawW*2), int(drawH*2)
	scaled := image.NewRGBA(image.Rect(0, 0, pxW, pxH))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Src, nil)

	// Raw RGB triplets, deflate-compressed, as the image XObject stream.
	raw := make([]byte, 0, pxW*pxH*3)
	for y := 0; y < pxH; y++ {
		for x := 0; x < pxW; x++ {
			cr, cg, cb, _ := scaled.At(x, y).RGBA()
			raw = append(raw, byte(cr>>8), byte(cg>>8), byte(cb>>8))
		}
	}
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var content bytes.Buffer
	fmt.Fprintf(&content, "q\n%.2f 0 0 %.2f %.2f %.2f cm\n/Im0 Do\nQ\n", drawW, drawH, drawX, drawY)

	name := strings.ToUpper(d.StudentName)
	writeCenteredText(&content, "F1", 32, pageHeight*0.45, name)
	writeCenteredText(&content, "F2", 13, pageHeight*0.38,
		`"Awarded in recognition of outstanding performance in the`)
	writeCenteredText(&content, "F2", 13, pageHeight*0.35,
		fmt.Sprintf(`completion of the %s course on %d."`, d.CourseTitle, d.IssuedAt.Year()))
	writeCenteredText(&content, "F2", 9, 18,
		fmt.Sprintf("Certificate ID: %s", d.CertificateNumber))

	w := newWriter()
	w.add([]byte("<< /Type /Catalog /Pages 2 0 R >>"))
	w.add([]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"))
	w.add([]byte(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %.2f %.2f] /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica-Bold >> /F2 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> /XObject << /Im0 5 0 R >> >> /Contents 4 0 R >>",
		pageWidth, pageHeight)))
	w.add(w.stream("", content.Bytes()))
	w.add(w.stream(fmt.Sprintf(
		"/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /FlateDecode",
		pxW, pxH), compressed.Bytes()))
	return w.finish(), nil
}

// renderFallback builds the zero-dependency single-page document:
// one literal text block with the award details.
func renderFallback(d Data) []byte {
	lines := []string{
		"Certificate of Completion",
		"",
		d.StudentName,
		"",
		"has successfully completed the course:",
		d.CourseTitle,
		"",
		fmt.Sprintf("Score: %g/%d (%.2f%%)", d.MarksObtained, d.TotalMarks, d.Percentage),
		fmt.Sprintf("Issued: %s", d.IssuedAt.Format("2006-01-02")),
		fmt.Sprintf("Certificate ID: %s", d.CertificateNumber),
	}

	var content bytes.Buffer
	content.WriteString("BT\n/F1 14 Tf\n18 TL\n50 700 Td\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapeText(line))
	}
	content.WriteString("ET\n")

	w := newWriter()
	w.add([]byte("<< /Type /Catalog /Pages 2 0 R >>"))
	w.add([]byte("<< /Type /Pages /Kids [3 0 R] /Count 1 >>"))
	w.add([]byte("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> >> /MediaBox [0 0 595 842] /Contents 4 0 R >>"))
	w.add(w.stream("", content.Bytes()))
	return w.finish()
}

// writeCenteredText centers horizontally with an average-glyph-width
// approximation; exact Helvetica metrics are not worth carrying for a
// decorative overlay.
func writeCenteredText(buf *bytes.Buffer, font string, size, y float64, text string) {
	width := 0.5 * size * float64(len(text))
	x := (pageWidth - width) / 2
	if x < 0 {
		x = 0
	}
	fmt.Fprintf(buf, "BT\n/%s %.1f Tf\n%.2f %.2f Td\n(%s) Tj\nET\n", font, size, x, y, escapeText(text))
}
