package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrylevesque/orderscan/internal/api"
	"github.com/harrylevesque/orderscan/internal/auth"
	"github.com/harrylevesque/orderscan/internal/files"
	"github.com/harrylevesque/orderscan/internal/models"
	"github.com/harrylevesque/orderscan/internal/scan"
)

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// NewParseCommand parses an identifier locally without calling the server.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <input>",
		Short: "Show how scanned text is interpreted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			ident, err := scan.Parse(strings.Join(args, " "))
			if err != nil {
				return WrapExitError(ExitFailure, "parse", err)
			}
			return out.Success(ident, fmt.Sprintf("%s %s (matched by %s)", ident.Kind, ident.Value, ident.Source))
		},
	}
}

func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <input>",
		Short: "Scan an identifier and fetch the order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			client, err := newAPIClient(rootOpts, out)
			if err != nil {
				return err
			}
			var resp api.ScanResponse
			if err := client.doJSON(http.MethodPost, "/api/scan", api.ScanRequest{Value: strings.Join(args, " ")}, &resp); err != nil {
				return err
			}
			return out.Success(resp, orderText(resp.Order))
		},
	}
}

func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var first int
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search orders by name, e-mail or free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			client, err := newAPIClient(rootOpts, out)
			if err != nil {
				return err
			}
			q := url.Values{"q": {strings.Join(args, " ")}}
			if first > 0 {
				q.Set("first", strconv.Itoa(first))
			}
			var resp api.SearchResponse
			if err := client.doJSON(http.MethodGet, "/api/orders/search?"+q.Encode(), nil, &resp); err != nil {
				return err
			}

			var b strings.Builder
			for _, o := range resp.Orders {
				fmt.Fprintf(&b, "%-10s %-24s %12s %s\n", o.Name, o.CustomerName, o.Total.Amount+" "+o.Total.CurrencyCode, o.FinancialStatus)
			}
			if len(resp.Orders) == 0 {
				b.WriteString("no orders found\n")
			}
			return out.Success(resp, strings.TrimRight(b.String(), "\n"))
		},
	}
	cmd.Flags().IntVarP(&first, "first", "n", 0, "maximum results (server clamps to 50)")
	return cmd
}

// QRResult describes a downloaded QR image.
type QRResult struct {
	File     string `json:"file"`
	Link     string `json:"link"`
	RecordID string `json:"record_id,omitempty"`
	Bytes    int    `json:"bytes"`
}

func NewQRCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		format string
		target string
		size   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "qr <order>",
		Short: "Download a QR code sharing an order link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			client, err := newAPIClient(rootOpts, out)
			if err != nil {
				return err
			}
			q := url.Values{"format": {format}, "target": {target}}
			if size > 0 {
				q.Set("size", strconv.Itoa(size))
			}
			data, hdr, err := client.do(http.MethodGet, "/api/orders/"+url.PathEscape(args[0])+"/qr?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			if output == "" {
				output = "order-qr." + format
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write "+output, err)
			}
			res := QRResult{File: output, Link: hdr.Get("X-QR-Content"), RecordID: hdr.Get("X-QR-ID"), Bytes: len(data)}
			return out.Success(res, fmt.Sprintf("Wrote %s (%d bytes) for %s", res.File, res.Bytes, res.Link))
		},
	}
	cmd.Flags().StringVar(&format, "qr-format", "svg", "image format (svg|png)")
	cmd.Flags().StringVar(&target, "target", "admin", "link target (admin|status)")
	cmd.Flags().IntVar(&size, "size", 0, "edge length in pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default order-qr.<format>)")
	return cmd
}

func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	var user, password, shop string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run the server's upstream probes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			client := &apiClient{base: rootOpts.Server, user: user, pass: password, http: http.DefaultClient, logger: out}

			path := "/debug/probe"
			if shop != "" {
				path += "?" + url.Values{"shop": {shop}}.Encode()
			}
			// A failing probe answers 502 with its results in the body.
			data, _, err := client.do(http.MethodPost, path, nil)
			var resp api.ProbeResponse
			if jsonErr := json.Unmarshal(data, &resp); jsonErr != nil || len(resp.Results) == 0 {
				if err != nil {
					return err
				}
				return WrapExitError(ExitCommandError, "decode response", jsonErr)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "shop %s healthy=%t\n", resp.Shop, resp.Healthy)
			for _, r := range resp.Results {
				status := "ok"
				if !r.OK {
					status = "FAIL " + r.Error
				}
				fmt.Fprintf(&b, "  %-8s %8.1fms %s\n", r.Name, r.DurationMS, status)
			}
			if werr := out.Success(resp, strings.TrimRight(b.String(), "\n")); werr != nil {
				return werr
			}
			if !resp.Healthy {
				return NewExitError(ExitFailure, "probes failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "debug-user", os.Getenv("DEBUG_USER"), "debug basic-auth user")
	cmd.Flags().StringVar(&password, "debug-password", os.Getenv("DEBUG_PASSWORD"), "debug basic-auth password")
	cmd.Flags().StringVar(&shop, "probe-shop", "", "shop to probe (default the server's configured shop)")
	return cmd
}

// KeygenResult reports a written master key.
type KeygenResult struct {
	File string `json:"file"`
}

func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate the session master key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			if err := files.WriteMasterKey(path); err != nil {
				return WrapExitError(ExitCommandError, "keygen", err)
			}
			return out.Success(KeygenResult{File: path}, "Master key written to "+path)
		},
	}
	cmd.Flags().StringVarP(&path, "out", "o", "master.key", "key file to create")
	return cmd
}

func NewHashPasswordCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a DEBUG_PASSWORD_HASH value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(rootOpts, cmd)
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "hash password", err)
			}
			return out.Success(map[string]string{"debug_password_hash": hash}, "DEBUG_PASSWORD_HASH="+hash)
		},
	}
}

func orderText(o *models.Order) string {
	if o == nil {
		return "no order"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", o.Name, o.ID)
	if o.Customer != nil {
		fmt.Fprintf(&b, "customer:    %s <%s>\n", o.Customer.Name, o.Customer.Email)
	}
	fmt.Fprintf(&b, "financial:   %s\n", o.FinancialStatus)
	fmt.Fprintf(&b, "fulfillment: %s\n", o.FulfillmentStatus)
	fmt.Fprintf(&b, "total:       %s %s\n", o.Total.Amount, o.Total.CurrencyCode)
	if o.CancelledAt != nil {
		fmt.Fprintf(&b, "cancelled:   %s\n", o.CancelledAt.Format("2006-01-02 15:04"))
	}
	for _, li := range o.LineItems {
		fmt.Fprintf(&b, "  %3d x %s\n", li.Quantity, li.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
