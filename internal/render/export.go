package render

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"math"

	"github.com/fogleman/gg"
)

// maxPNGPixels bounds the raster size; larger drawings are scaled down.
const maxPNGPixels = 8192

// WriteSVG serialises the current oncoprint as a standalone SVG document.
func (e *MatrixEngine) WriteSVG(w io.Writer) error {
	d := e.layout()
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.2f %.2f">`+"\n",
		math.Ceil(d.Width), math.Ceil(d.Height), d.Width, d.Height)
	fmt.Fprintf(bw, `<rect x="0" y="0" width="%.2f" height="%.2f" fill="%s"/>`+"\n", d.Width, d.Height, backgroundFill)
	for _, s := range d.Shapes {
		fmt.Fprintf(bw, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"/>`+"\n", s.X, s.Y, s.W, s.H, s.Fill)
	}
	for _, l := range d.Labels {
		fmt.Fprintf(bw, `<text x="%.2f" y="%.2f" font-family="Arial" font-size="12">`, l.X, l.Y)
		if err := xml.EscapeText(bw, []byte(l.Text)); err != nil {
			return fmt.Errorf("escape label: %w", err)
		}
		bw.WriteString("</text>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

// WritePNG rasterises the current oncoprint. Drawings wider or taller than maxPNGPixels
// are scaled to fit.
func (e *MatrixEngine) WritePNG(w io.Writer) error {
	d := e.layout()
	scale := 1.0
	if longest := math.Max(d.Width, d.Height); longest > maxPNGPixels {
		scale = maxPNGPixels / longest
	}
	width := int(math.Max(1, math.Ceil(d.Width*scale)))
	height := int(math.Max(1, math.Ceil(d.Height*scale)))

	dc := gg.NewContext(width, height)
	dc.Scale(scale, scale)
	dc.SetHexColor(backgroundFill)
	dc.DrawRectangle(0, 0, d.Width, d.Height)
	dc.Fill()

	for _, s := range d.Shapes {
		dc.SetHexColor(s.Fill)
		dc.DrawRectangle(s.X, s.Y, s.W, s.H)
		dc.Fill()
	}
	dc.SetHexColor("#000000")
	for _, l := range d.Labels {
		dc.DrawString(l.Text, l.X, l.Y)
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
