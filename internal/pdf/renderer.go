// Package pdf renders receipt PDFs via headless Chromium, with a QR
// code linking to the public verification endpoint.
package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	qrcode "github.com/skip2/go-qrcode"
)

// ReceiptData carries everything the receipt PDF shows.
type ReceiptData struct {
	ReceiptID  string
	Number     string
	ClientName string
	Digest     string
	IssuedAt   time.Time
	VerifyURL  string
	Policies   []PolicyLine
}

// PolicyLine is one policy row on the receipt.
type PolicyLine struct {
	Number  string
	Carrier string
	Status  string
}

// RendererConfig holds configuration for the PDF renderer.
type RendererConfig struct {
	// ChromiumPath overrides the Chromium binary chromedp discovers.
	ChromiumPath string
	// Timeout bounds a single render. Defaults to 15s.
	Timeout time.Duration
}

// Renderer renders receipt PDFs via headless Chromium.
type Renderer struct {
	cfg RendererConfig
}

// NewRenderer creates a new PDF renderer.
func NewRenderer(cfg RendererConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

// Render builds the receipt HTML and prints it to PDF. If Chromium is
// unavailable it returns an error so the caller can fall back to the
// JSON representation.
func (r *Renderer) Render(ctx context.Context, data ReceiptData) ([]byte, error) {
	html, err := renderHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if r.cfg.ChromiumPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.cfg.ChromiumPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var pdfBuf []byte
	dataURL := "data:text/html," + url.PathEscape(html)
	err = chromedp.Run(runCtx,
		chromedp.Navigate(dataURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, perr := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if perr == nil {
				pdfBuf = buf
			}
			return perr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp run failed: %w", err)
	}
	return pdfBuf, nil
}

// qrDataURI encodes the verify URL as a QR PNG data URI for inline
// embedding.
func qrDataURI(verifyURL string) (string, error) {
	png, err := qrcode.Encode(verifyURL, qrcode.Medium, 160)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func renderHTML(data ReceiptData) (string, error) {
	qr := ""
	if data.VerifyURL != "" {
		var err error
		qr, err = qrDataURI(data.VerifyURL)
		if err != nil {
			return "", err
		}
	}

	tmpl := template.Must(template.New("receipt").Funcs(template.FuncMap{
		"datetime": func(t time.Time) string {
			return t.UTC().Format("2006-01-02 15:04:05 MST")
		},
	}).Parse(htmlTemplate))

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, struct {
		ReceiptData
		QRDataURI string
	}{
		ReceiptData: data,
		QRDataURI:   qr,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

var htmlTemplate = `
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; margin: 24px; color: #0f172a; }
    h1 { margin: 0 0 8px; }
    .meta { display: flex; justify-content: space-between; margin-bottom: 16px; }
    .card { border: 1px solid #e2e8f0; border-radius: 8px; padding: 12px; margin-bottom: 12px; }
    .label { font-size: 12px; color: #475569; }
    .value { font-size: 14px; margin-bottom: 4px; }
    .digest { font-family: 'Courier New', monospace; font-size: 12px; word-break: break-all; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { padding: 8px; border-bottom: 1px solid #e2e8f0; text-align: left; }
    th { background: #f8fafc; }
    .qr { text-align: center; margin-top: 16px; }
    .qr .label { margin-top: 4px; }
  </style>
</head>
<body>
  <div class="meta">
    <h1>Submission Receipt</h1>
    <div style="text-align:right">
      <div class="label">Receipt Number</div>
      <div class="value">{{.Number}}</div>
      <div class="label">Issued</div>
      <div class="value">{{datetime .IssuedAt}}</div>
    </div>
  </div>

  <div class="card">
    <div class="label">Client</div>
    <div class="value">{{.ClientName}}</div>
    <div class="label">Integrity Digest (SHA-256)</div>
    <div class="value digest">{{.Digest}}</div>
  </div>

  {{if .Policies}}
  <table>
    <thead>
      <tr>
        <th>Policy Number</th>
        <th>Carrier</th>
        <th>Status</th>
      </tr>
    </thead>
    <tbody>
    {{range .Policies}}
      <tr>
        <td>{{.Number}}</td>
        <td>{{.Carrier}}</td>
        <td>{{.Status}}</td>
      </tr>
    {{end}}
    </tbody>
  </table>
  {{end}}

  {{if .QRDataURI}}
  <div class="qr">
    <img src="{{.QRDataURI}}" alt="Verification QR code" />
    <div class="label">Scan to verify this receipt</div>
    <div class="value">{{.VerifyURL}}</div>
  </div>
  {{end}}
</body>
</html>
`
