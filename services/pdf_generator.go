package services

import (
	"context"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"dca_flow_app_go/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// getChromePath returns the Chrome executable path from environment variable
func getChromePath() string {
	return os.Getenv("CHROME_PATH")
}

// PDFOptions contains options for PDF generation
type PDFOptions struct {
	PageOrientation string // portrait, landscape
	PageSize        string // letter, legal, A4
	MarginTop       int    // points (72 = 1 inch)
	MarginBottom    int
	MarginLeft      int
	MarginRight     int
}

// DefaultPDFOptions returns default options for case summary exports
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageOrientation: "portrait",
		PageSize:        "A4",
		MarginTop:       54,
		MarginBottom:    54,
		MarginLeft:      54,
		MarginRight:     54,
	}
}

// GeneratePDF renders HTML content to PDF using headless Chrome
func GeneratePDF(htmlContent string, options PDFOptions) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)

	// Custom Chrome path for headless-shell in Docker
	if chromePath := getChromePath(); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var paperWidth, paperHeight float64
	switch options.PageSize {
	case "legal":
		paperWidth = 8.5
		paperHeight = 14.0
	case "letter":
		paperWidth = 8.5
		paperHeight = 11.0
	default: // A4
		paperWidth = 8.27
		paperHeight = 11.69
	}

	if options.PageOrientation == "landscape" {
		paperWidth, paperHeight = paperHeight, paperWidth
	}

	// Margins are given in points, PrintToPDF wants inches
	marginTop := float64(options.MarginTop) / 72.0
	marginBottom := float64(options.MarginBottom) / 72.0
	marginLeft := float64(options.MarginLeft) / 72.0
	marginRight := float64(options.MarginRight) / 72.0

	var pdfBuf []byte

	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.Sleep(100),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(marginTop).
				WithMarginBottom(marginBottom).
				WithMarginLeft(marginLeft).
				WithMarginRight(marginRight).
				WithPrintBackground(true).
				WithDisplayHeaderFooter(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return pdfBuf, nil
}

// BuildCaseSummaryHTML renders a printable summary of a case with its
// timeline. All values are escaped before interpolation.
func BuildCaseSummaryHTML(caseRecord *models.Case, timeline []models.CaseTimelineEntry) string {
	esc := html.EscapeString

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body { font-family: Arial, sans-serif; font-size: 12px; color: #1a1a1a; }
h1 { font-size: 18px; border-bottom: 2px solid #4a148c; padding-bottom: 6px; }
h2 { font-size: 14px; margin-top: 24px; }
table { width: 100%; border-collapse: collapse; margin-top: 8px; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; }
th { background: #f3ecfb; }
.muted { color: #666; }
</style></head><body>`)

	b.WriteString(fmt.Sprintf("<h1>Case %s</h1>", esc(caseRecord.CaseNumber)))
	b.WriteString(fmt.Sprintf(`<p class="muted">Generated %s</p>`, time.Now().UTC().Format("2006-01-02 15:04 UTC")))

	b.WriteString("<h2>Summary</h2><table>")
	writeRow := func(label, value string) {
		b.WriteString(fmt.Sprintf("<tr><th>%s</th><td>%s</td></tr>", esc(label), esc(value)))
	}
	writeRow("Debtor", caseRecord.DebtorName)
	writeRow("Status", caseRecord.Status)
	writeRow("Priority", caseRecord.Priority)
	writeRow("Original Amount", fmt.Sprintf("%s %.2f", caseRecord.Currency, caseRecord.OriginalAmount))
	writeRow("Outstanding Amount", fmt.Sprintf("%s %.2f", caseRecord.Currency, caseRecord.OutstandingAmount))
	writeRow("Recovered Amount", fmt.Sprintf("%s %.2f", caseRecord.Currency, caseRecord.RecoveredAmount))
	if caseRecord.Region != nil {
		writeRow("Region", fmt.Sprintf("%s (%s)", caseRecord.Region.Name, caseRecord.Region.Code))
	}
	if caseRecord.AssignedDCA != nil {
		writeRow("Assigned DCA", caseRecord.AssignedDCA.Name)
	}
	if caseRecord.SLADueAt != nil {
		writeRow("SLA Due", caseRecord.SLADueAt.Format("2006-01-02"))
	}
	if caseRecord.ClosedAt != nil {
		writeRow("Closed", caseRecord.ClosedAt.Format("2006-01-02"))
	}
	if caseRecord.ClosureReason != nil && *caseRecord.ClosureReason != "" {
		writeRow("Closure Reason", *caseRecord.ClosureReason)
	}
	b.WriteString("</table>")

	if len(timeline) > 0 {
		b.WriteString("<h2>Timeline</h2><table><tr><th>When</th><th>Type</th><th>Actor</th><th>Detail</th></tr>")
		for _, entry := range timeline {
			b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				entry.CreatedAt.Format("2006-01-02 15:04"),
				esc(entry.EntryType),
				esc(entry.ActorName),
				esc(entry.Message)))
		}
		b.WriteString("</table>")
	}

	b.WriteString("</body></html>")
	return b.String()
}
