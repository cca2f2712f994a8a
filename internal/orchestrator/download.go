package orchestrator

import (
	"bufio"
	"fmt"
	"io"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/render"
)

// DownloadType is an export format of the oncoprint.
type DownloadType string

const (
	DownloadSVG     DownloadType = "svg"
	DownloadPNG     DownloadType = "png"
	DownloadPDF     DownloadType = "pdf"
	DownloadOrder   DownloadType = "order"
	DownloadTabular DownloadType = "tabular"
)

// Filename is the attachment name of the download.
func (d DownloadType) Filename() string {
	switch d {
	case DownloadOrder:
		return "oncoprint-order.txt"
	case DownloadTabular:
		return "oncoprint.tsv"
	}
	return "oncoprint." + string(d)
}

func (d DownloadType) ContentType() string {
	switch d {
	case DownloadSVG:
		return "image/svg+xml"
	case DownloadPNG:
		return "image/png"
	case DownloadPDF:
		return "application/pdf"
	case DownloadTabular:
		return "text/tab-separated-values; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Download writes the committed oncoprint in the given format. Case order exports follow the
// engine's current on-screen order.
func (o *Oncoprint) Download(kind DownloadType, w io.Writer) error {
	o.mu.Lock()
	committed, frame, isDriver := o.committed, o.frame, o.isDriver
	o.mu.Unlock()
	if committed == nil {
		return domain.ErrNotReady
	}

	switch kind {
	case DownloadSVG:
		return o.engine.WriteSVG(w)
	case DownloadPNG:
		return o.engine.WritePNG(w)
	case DownloadPDF:
		pdf, ok := o.engine.(render.PDFWriter)
		if !ok {
			return fmt.Errorf("%s: %w", kind, domain.ErrUnsupportedExport)
		}
		return pdf.WritePDF(w)
	case DownloadOrder:
		return writeOrder(w, frame, o.engine.IDOrder())
	case DownloadTabular:
		return render.WriteTabular(w, frame, o.engine.IDOrder(), render.TabularOptions{
			CaseID:   caseIDLookup(frame.Cases),
			IsDriver: isDriver,
		})
	}
	return fmt.Errorf("%q: %w", kind, domain.ErrUnknownDownload)
}

func writeOrder(w io.Writer, frame render.Frame, order []string) error {
	caseID := caseIDLookup(frame.Cases)
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s order in the Oncoprint is:\n", frame.Mode.Capitalized())
	for _, uid := range order {
		fmt.Fprintln(bw, caseID(uid))
	}
	return bw.Flush()
}

func caseIDLookup(cases []domain.CaseRef) func(string) string {
	ids := make(map[string]string, len(cases))
	for _, c := range cases {
		ids[c.UID] = c.CaseID()
	}
	return func(uid string) string {
		if id, ok := ids[uid]; ok {
			return id
		}
		return uid
	}
}
