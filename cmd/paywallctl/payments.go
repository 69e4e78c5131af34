package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mondb-dev/x402-wp/internal/paymentlog"
	"github.com/mondb-dev/x402-wp/internal/paymentlog/repo/pg"
	"github.com/mondb-dev/x402-wp/internal/paymentlog/repo/sqlite"
)

var (
	paymentsSrcType string
	paymentsSrcURL  string
	paymentsLimit   int
)

func init() {
	paymentsCmd.PersistentFlags().StringVarP(&paymentsSrcType, "src", "", "sqlite", "payment log type: sqlite or postgres")
	paymentsCmd.PersistentFlags().StringVarP(&paymentsSrcURL, "srcurl", "", "payments.db", "payment log url: /path/to/payments.db or postgres://...")
	paymentsListCmd.Flags().IntVarP(&paymentsLimit, "limit", "n", 100, "maximum number of entries")

	paymentsCmd.AddCommand(paymentsListCmd, paymentsHasPaidCmd, paymentsSetStatusCmd)
	rootCmd.AddCommand(paymentsCmd)
}

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "inspect the payment log",
}

var paymentsListCmd = &cobra.Command{
	Use:   "list [resource]",
	Short: "list payment log entries, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  doListPayments,
}

var paymentsHasPaidCmd = &cobra.Command{
	Use:   "has-paid <resource> <address>",
	Short: "report whether an address has a verified payment for a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  doHasPaid,
}

var paymentsSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <verified|failed>",
	Short: "resolve a legacy pending entry",
	Args:  cobra.ExactArgs(2),
	RunE:  doSetStatus,
}

type paymentBackend interface {
	CreateEntry(ctx context.Context, e paymentlog.Entry) (*paymentlog.Entry, error)
	GetEntry(ctx context.Context, id int64) (*paymentlog.Entry, error)
	ListEntries(ctx context.Context, resourceID string, limit int) ([]paymentlog.Entry, error)
	HasPaid(ctx context.Context, resourceID, address string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status paymentlog.Status) error
	Close() error
}

func initBackend(kind, url string) (paymentBackend, error) {
	var (
		backend paymentBackend
		err     error
	)

	switch kind {
	case "postgres":
		backend, err = pg.New(url)
	case "sqlite":
		backend, err = sqlite.New(url)
	default:
		return nil, fmt.Errorf("unsupported payment log kind %q. must be one of 'postgres' or 'sqlite'", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("backend init: %w", err)
	}

	return backend, nil
}

func openPaymentLog() (*paymentlog.PaymentLog, io.Closer, error) {
	backend, err := initBackend(paymentsSrcType, paymentsSrcURL)
	if err != nil {
		return nil, nil, err
	}

	l, err := paymentlog.New(backend)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return l, backend, nil
}

func doListPayments(cmd *cobra.Command, args []string) error {
	l, closer, err := openPaymentLog()
	if err != nil {
		return err
	}
	defer closer.Close()

	var resourceID string
	if len(args) == 1 {
		resourceID = args[0]
	}

	entries, err := l.List(cmd.Context(), resourceID, paymentsLimit)
	if err != nil {
		return err
	}

	printEntries(cmd.OutOrStdout(), entries)
	return nil
}

func printEntries(w io.Writer, entries []paymentlog.Entry) {
	fmt.Fprintf(w, "Reference\tResource\tStatus\tPayer\tAmount\tTransaction\n")

	for _, e := range entries {
		if verbose {
			jsonb, _ := json.Marshal(e)
			log.Printf("entry: %s\n", string(jsonb))
		}

		tx := ""
		if e.TransactionHash != nil {
			tx = *e.TransactionHash
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", e.SupportReference(), e.ResourceID, e.Status, e.PayerIdentifier, e.Amount, tx)
	}
}

func doHasPaid(cmd *cobra.Command, args []string) error {
	l, closer, err := openPaymentLog()
	if err != nil {
		return err
	}
	defer closer.Close()

	paid, err := l.HasPaid(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), paid)
	return nil
}

func doSetStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid entry id %q", args[0])
	}

	l, closer, err := openPaymentLog()
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := l.UpdateStatus(cmd.Context(), id, paymentlog.Status(args[1])); err != nil {
		return err
	}

	log.Printf("entry %s is now %s\n", paymentlog.SupportReference(id), args[1])
	return nil
}
