// Package qr renders share links for orders as QR codes.
package qr

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/harrylevesque/orderscan/internal/scan"
	"github.com/harrylevesque/orderscan/internal/utils"
)

type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// Link targets for OrderLink.
const (
	TargetAdmin  = "admin"
	TargetStatus = "status"
)

type Options struct {
	Size   int
	Level  string
	Format Format
}

// Image is an encoded QR code ready to write to a response.
type Image struct {
	Content     string
	ContentType string
	Data        []byte
}

// ParseFormat maps a query value to a format; empty means SVG.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", utils.New(http.StatusBadRequest, fmt.Sprintf("unsupported qr format %q", s))
	}
}

// ParseTarget maps a query value to a link target; empty means admin.
func ParseTarget(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", TargetAdmin:
		return TargetAdmin, nil
	case TargetStatus:
		return TargetStatus, nil
	default:
		return "", utils.New(http.StatusBadRequest, fmt.Sprintf("unknown link target %q", s))
	}
}

func recoveryLevel(s string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "L", "LOW":
		return qrcode.Low, nil
	case "", "M", "MEDIUM":
		return qrcode.Medium, nil
	case "Q", "HIGH":
		return qrcode.High, nil
	case "H", "HIGHEST":
		return qrcode.Highest, nil
	default:
		return qrcode.Medium, utils.New(http.StatusBadRequest, fmt.Sprintf("unsupported recovery level %q", s))
	}
}

// Render encodes content. Size is the edge length in pixels and is clamped
// to MinSize..MaxSize.
func Render(content string, opts Options) (*Image, error) {
	if content == "" {
		return nil, utils.New(http.StatusBadRequest, "qr content is empty")
	}
	level, err := recoveryLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	size := clampSize(opts.Size)

	code, err := qrcode.New(content, level)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	img := &Image{Content: content}
	switch opts.Format {
	case FormatPNG:
		img.ContentType = "image/png"
		img.Data, err = code.PNG(size)
		if err != nil {
			return nil, fmt.Errorf("render png: %w", err)
		}
	case "", FormatSVG:
		img.ContentType = "image/svg+xml"
		img.Data = svg(code.Bitmap(), size)
	default:
		return nil, utils.New(http.StatusBadRequest, fmt.Sprintf("unsupported qr format %q", opts.Format))
	}
	return img, nil
}

// svg draws each dark module as a unit square on one path, scaled by the
// viewBox to the requested size.
func svg(bitmap [][]bool, size int) []byte {
	n := len(bitmap)
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#fff"/><path fill="#000" d="`, n, n)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return b.Bytes()
}

func clampSize(n int) int {
	switch {
	case n <= 0:
		return DefaultSize
	case n < MinSize:
		return MinSize
	case n > MaxSize:
		return MaxSize
	default:
		return n
	}
}

// OrderLink builds the URL a QR code shares. The admin target opens the order
// in the shop admin; the status target is the customer-facing status page.
func OrderLink(shop, orderID, target, statusPageURL string) (string, error) {
	switch strings.ToLower(target) {
	case "", TargetAdmin:
		numeric := scan.NumericID(orderID)
		if numeric == "" {
			return "", utils.New(http.StatusBadRequest, "order id must be a gid://shopify/Order/ id")
		}
		if shop == "" {
			return "", utils.New(http.StatusBadRequest, "shop is required for admin links")
		}
		return fmt.Sprintf("https://%s/admin/orders/%s", shop, numeric), nil
	case TargetStatus:
		if statusPageURL == "" {
			return "", utils.New(http.StatusConflict, "order has no status page")
		}
		return statusPageURL, nil
	default:
		return "", utils.New(http.StatusBadRequest, fmt.Sprintf("unknown link target %q", target))
	}
}
