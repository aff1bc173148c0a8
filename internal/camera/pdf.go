package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // registers the JPEG decoder used to read frame dimensions
)

// wrapJPEGAsPDF embeds a JPEG's raw bytes into a minimal single-page
// PDF whose page size equals the image's pixel dimensions, 1 pt per
// pixel. No corpus library does PDF generation (see DESIGN.md); this
// hand-rolls the handful of objects a JPEG-only single-page PDF needs:
// catalog, page tree, page, an XObject image stream carrying the JPEG
// bytes unmodified (DCTDecode), and a content stream that paints it.
func wrapJPEGAsPDF(jpg []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(jpg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeJPEG, err)
	}
	w, h := cfg.Width, cfg.Height

	content := fmt.Sprintf("q %d 0 0 %d 0 0 cm /Im0 Do Q", w, h)

	var buf bytes.Buffer
	offsets := make([]int, 0, 6)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(fmt.Sprintf("%d 0 obj\n%s\nendobj\n", len(offsets), body))
	}

	buf.WriteString("%PDF-1.4\n")

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj("<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(fmt.Sprintf(
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << /Im0 5 0 R >> >> /Contents 4 0 R >>",
		w, h,
	))
	writeObj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))

	offsets = append(offsets, buf.Len())
	buf.WriteString(fmt.Sprintf(
		"5 0 obj\n<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
		w, h, len(jpg),
	))
	buf.Write(jpg)
	buf.WriteString("\nendstream\nendobj\n")

	xrefStart := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf(
		"trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF",
		len(offsets)+1, xrefStart,
	))

	return buf.Bytes(), nil
}
