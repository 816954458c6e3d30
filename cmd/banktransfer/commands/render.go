package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"banktransfer/internal/domain"
	"banktransfer/internal/metrics"
)

type failureView struct {
	Step    domain.Step      `json:"step"`
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type warningView struct {
	Step    domain.Step      `json:"step"`
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

type outcomeView struct {
	Success  bool                     `json:"success"`
	Receipt  *domain.TransferReceipt  `json:"receipt,omitempty"`
	Balances *domain.BalancePair      `json:"balances,omitempty"`
	History  []domain.TransferReceipt `json:"history,omitempty"`
	Warnings []warningView            `json:"warnings,omitempty"`
	Failure  *failureView             `json:"failure,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderOutcome(w io.Writer, out domain.Outcome) error {
	if jsonOutput {
		v := outcomeView{
			Success:  out.Succeeded(),
			Receipt:  out.Receipt,
			Balances: out.Balances,
			History:  out.History,
		}
		for _, wn := range out.Warnings {
			v.Warnings = append(v.Warnings, warningView(wn))
		}
		if f := out.Failure; f != nil {
			v.Failure = &failureView{Step: f.Step, Kind: f.Kind, Message: f.Message}
		}
		return writeJSON(w, v)
	}

	if b := out.Balances; b != nil {
		fmt.Fprintln(w, "Balances before transfer:")
		renderSnapshot(w, b.From)
		renderSnapshot(w, b.To)
		fmt.Fprintln(w)
	}

	if f := out.Failure; f != nil {
		fmt.Fprintf(w, "Transfer FAILED at step %s (%s): %s\n", f.Step, f.Kind, f.Message)
		return nil
	}
	if out.Receipt == nil {
		return nil
	}

	renderReceipt(w, *out.Receipt)
	if len(out.History) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recent transactions:")
		renderHistory(w, out.History)
	}
	for _, wn := range out.Warnings {
		fmt.Fprintf(w, "Warning (%s, %s): %s\n", wn.Step, wn.Kind, wn.Message)
	}
	return nil
}

func renderReceipt(w io.Writer, r domain.TransferReceipt) {
	fmt.Fprintf(w, "Transfer %s\n", r.Status)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Transaction:\t%s\n", r.TransactionID)
	fmt.Fprintf(tw, "  From:\t%s\n", r.From)
	fmt.Fprintf(tw, "  To:\t%s\n", r.To)
	fmt.Fprintf(tw, "  Amount:\t%s\n", r.Amount.StringFixed(2))
	if !r.Timestamp.IsZero() {
		fmt.Fprintf(tw, "  Time:\t%s\n", r.Timestamp.Format(time.RFC3339))
	}
	if r.PermissionLevel != "" {
		fmt.Fprintf(tw, "  Permission:\t%s\n", r.PermissionLevel)
	}
	if r.NewFromBalance != nil {
		fmt.Fprintf(tw, "  New %s balance:\t%s\n", r.From, r.NewFromBalance.StringFixed(2))
	}
	if r.NewToBalance != nil {
		fmt.Fprintf(tw, "  New %s balance:\t%s\n", r.To, r.NewToBalance.StringFixed(2))
	}
	if r.Message != "" {
		fmt.Fprintf(tw, "  Message:\t%s\n", r.Message)
	}
	_ = tw.Flush()
}

func renderSnapshot(w io.Writer, s domain.AccountSnapshot) {
	fmt.Fprintf(w, "  %s  %s %s", s.AccountID, s.Balance.StringFixed(2), s.Currency)
	if s.Status != "" {
		fmt.Fprintf(w, "  (%s)", s.Status)
	}
	fmt.Fprintln(w)
}

func renderHistory(w io.Writer, history []domain.TransferReceipt) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  TIME\tTRANSACTION\tFROM\tTO\tAMOUNT\tSTATUS")
	for _, r := range history {
		ts := "-"
		if !r.Timestamp.IsZero() {
			ts = r.Timestamp.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", ts, r.TransactionID, r.From, r.To, r.Amount.StringFixed(2), r.Status)
	}
	_ = tw.Flush()
}

func renderAccounts(w io.Writer, accounts []domain.AccountSummary) error {
	if jsonOutput {
		return writeJSON(w, accounts)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tSTATUS\tBALANCE")
	for _, a := range accounts {
		bal := "-"
		if a.Balance != nil {
			bal = a.Balance.StringFixed(2)
		}
		status := a.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", a.AccountID, status, bal)
	}
	return tw.Flush()
}

func renderMetrics(w io.Writer, g prometheus.Gatherer) error {
	samples, err := metrics.Counters(g)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Request counters:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, s := range samples {
		if s.Value == 0 {
			continue
		}
		labels := make([]string, 0, len(s.Labels))
		for _, k := range []string{"method", "path", "outcome", "result", "step"} {
			if v, ok := s.Labels[k]; ok && v != "" {
				labels = append(labels, k+"="+v)
			}
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", s.Name, strings.Join(labels, " "), decimal.NewFromFloat(s.Value).String())
	}
	return tw.Flush()
}
