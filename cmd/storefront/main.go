// Command storefront is a terminal client for the Golestan API: OTP login,
// seller order listing and local invoice export.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/example/golestan/internal/invoice"
	"github.com/example/golestan/internal/session"
)

func main() {
	log.SetFlags(0)

	server := flag.String("server", envOr("GOLESTAN_SERVER", "http://localhost:8080"), "API base URL")
	credsPath := flag.String("creds", defaultCredsPath(), "credential file")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	client := session.New(*server, session.NewFileStore(*credsPath))
	ctx := context.Background()

	var err error
	switch flag.Arg(0) {
	case "login":
		err = login(ctx, client, flag.Args()[1:])
	case "orders":
		err = listOrders(ctx, client, flag.Args()[1:])
	case "invoice":
		err = exportInvoice(ctx, client, flag.Args()[1:])
	case "logout":
		err = client.Logout()
	default:
		usage()
	}

	if err != nil {
		var terminal *session.TerminalAuthError
		if errors.As(err, &terminal) {
			log.Fatalf("session expired (%v); run `storefront login` again", terminal)
		}
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: storefront [flags] login|orders|invoice|logout [args]")
	os.Exit(2)
}

func login(ctx context.Context, client *session.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	phone := fs.String("phone", "", "phone number")
	fs.Parse(args)

	if *phone == "" {
		return fmt.Errorf("login: -phone is required")
	}

	deviceID := uuid.NewString()
	resp, err := client.PostJSON(ctx, "/api/auth/otp/send", map[string]string{
		"phone":     *phone,
		"device_id": deviceID,
	})
	if err != nil {
		return err
	}
	if err := expectOK(resp); err != nil {
		return fmt.Errorf("send otp: %w", err)
	}

	fmt.Print("verification code: ")
	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return err
	}

	resp, err = client.PostJSON(ctx, "/api/auth/otp/verify", map[string]string{
		"phone":     *phone,
		"otp":       strings.TrimSpace(code),
		"device_id": deviceID,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verify otp: %s", readMessage(resp.Body))
	}

	var verified struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&verified); err != nil {
		return err
	}

	if err := client.SetCredentials(session.Credentials{
		Access:  verified.AccessToken,
		Refresh: verified.RefreshToken,
	}); err != nil {
		return err
	}

	fmt.Printf("signed in as %s (%s)\n", *phone, verified.User.Role)
	return nil
}

func listOrders(ctx context.Context, client *session.Client, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	page := fs.Int("page", 1, "page")
	limit := fs.Int("limit", 20, "page size")
	sortBy := fs.String("sortBy", "created_at", "sort column")
	sortOrder := fs.String("sortOrder", "desc", "asc or desc")
	fs.Parse(args)

	path := fmt.Sprintf("/api/orders/seller-orders?page=%d&limit=%d&sortBy=%s&sortOrder=%s",
		*page, *limit, *sortBy, *sortOrder)
	resp, err := client.Get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list orders: %s", readMessage(resp.Body))
	}

	var listing struct {
		Data       []invoice.Order `json:"data"`
		Total      int64           `json:"total"`
		TotalPages int64           `json:"totalPages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return err
	}

	for _, order := range listing.Data {
		fmt.Printf("%-24s %-12s %-10s %s\n",
			order.OrderNumber, order.Status, order.PaymentStatus,
			invoice.FormatToman(order.Total))
	}
	fmt.Printf("page %d of %d (%d orders)\n", *page, listing.TotalPages, listing.Total)
	return nil
}

// exportInvoice fetches the raw order record and lays the invoice out
// locally, writing Invoice-<number>.pdf into the output directory.
func exportInvoice(ctx context.Context, client *session.Client, args []string) error {
	fs := flag.NewFlagSet("invoice", flag.ExitOnError)
	orderID := fs.String("order", "", "order id")
	outDir := fs.String("out", ".", "output directory")
	fontPath := fs.String("font", envOr("INVOICE_FONT_PATH", ""), "TTF font with Persian glyphs")
	storeName := fs.String("store", envOr("STORE_NAME", "فروشگاه گلستان"), "seller name on the invoice")
	fs.Parse(args)

	if *orderID == "" {
		return fmt.Errorf("invoice: -order is required")
	}

	resp, err := client.Get(ctx, "/api/orders/"+*orderID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch order: %s", readMessage(resp.Body))
	}

	var envelope struct {
		Data invoice.Order `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}

	formatter := invoice.NewFormatter(
		invoice.NewPDFRenderer(*fontPath),
		invoice.Party{Name: *storeName},
	)

	vm, err := formatter.FromOrder(envelope.Data)
	if err != nil {
		return err
	}

	name := invoice.Filename(vm)
	f, err := os.Create(filepath.Join(*outDir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := formatter.Download(vm, f); err != nil {
		return err
	}

	fmt.Println("wrote", name)
	return nil
}

func expectOK(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", readMessage(resp.Body))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// readMessage extracts a human-readable error from a response body, falling
// back to a generic message when the backend provides none.
func readMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "درخواست با خطا مواجه شد"
}

func defaultCredsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".golestan-credentials.json"
	}
	return filepath.Join(home, ".golestan", "credentials.json")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
