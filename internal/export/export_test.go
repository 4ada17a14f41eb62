package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"copilot/api/internal/copilot"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func approvedState() copilot.State {
	lead := copilot.SampleLead
	decided := fixedNow.Add(-time.Minute)
	discount := 10
	p := copilot.InitialContent()
	p.Pricing = copilot.PresetPricing()
	p.Pricing[0].Quantity = 3
	p.Discount = 10
	return copilot.State{
		ID:       "ws_1",
		Lead:     &lead,
		Proposal: p,
		Approval: &copilot.ApprovalRequest{
			ID:                "apr_1",
			Requester:         "Sales Rep",
			Note:              "Ready for review.",
			Status:            copilot.StatusApproved,
			RequestedDiscount: &discount,
			DecisionNote:      "Go ahead <now>",
			DecidedAt:         &decided,
		},
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(FormatPDF, fixedNow); got != "Proposal_Automation_1741084200000.pdf" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename(FormatDOCX, fixedNow); !strings.HasSuffix(got, ".docx") {
		t.Errorf("Filename = %q", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatPDF, false},
		{"pdf", FormatPDF, false},
		{"DOCX", FormatDOCX, false},
		{"odt", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.input, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", tt.input, err)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"é", "%C3%A9"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderProposalHTML(t *testing.T) {
	html, err := RenderProposalHTML(NewTemplateData(approvedState(), fixedNow))
	if err != nil {
		t.Fatalf("RenderProposalHTML() error = %v", err)
	}

	for _, want := range []string{
		"Factory Floor Automation - Phase 1",
		"Riya Sharma",
		"Executive Summary",
		"<p>- Training Manuals</p>",
		"Robotic Arm",
		"$45,000.00",
		"$61,000.00",
		"Volume Discount (5%)",
		"-$3,050.00",
		"Approved Discount (10%)",
		"-$6,100.00",
		"$51,850.00",
		"Approved",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	if strings.Contains(html, "<now>") {
		t.Error("manager note should be escaped")
	}
}

func TestRenderOmitsZeroDiscountRows(t *testing.T) {
	state := approvedState()
	state.Proposal.Pricing[0].Quantity = 1
	state.Proposal.Discount = 0
	state.Approval = nil

	html, err := RenderProposalHTML(NewTemplateData(state, fixedNow))
	if err != nil {
		t.Fatalf("RenderProposalHTML() error = %v", err)
	}
	if strings.Contains(html, "Volume Discount") || strings.Contains(html, "Approved Discount") {
		t.Error("zero discounts should not be rendered")
	}
	if strings.Contains(html, `class="stamp"`) {
		t.Error("no approval stamp expected")
	}
}

type memArtifacts struct {
	keys []string
	err  error
}

func (m *memArtifacts) Put(_ context.Context, key, _ string, _ []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "s3://proposals/" + key, nil
}

func TestServiceExport(t *testing.T) {
	var seen string
	fake := func(_ context.Context, html string) ([]byte, error) {
		seen = html
		return []byte("%PDF-fake"), nil
	}
	artifacts := &memArtifacts{}
	svc := NewService(
		WithRenderer(FormatPDF, fake),
		WithArtifactStore(artifacts),
		WithClock(func() time.Time { return fixedNow }),
	)

	res, err := svc.Export(context.Background(), approvedState(), FormatPDF)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(res.Data) != "%PDF-fake" || res.MimeType != "application/pdf" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Filename != "Proposal_Automation_1741084200000.pdf" {
		t.Errorf("Filename = %q", res.Filename)
	}
	if res.Reference != "s3://proposals/ws_1/Proposal_Automation_1741084200000.pdf" {
		t.Errorf("Reference = %q", res.Reference)
	}
	if !strings.Contains(seen, "Acme Manufacturing") {
		t.Error("renderer did not receive the proposal HTML")
	}
}

func TestServiceExportErrors(t *testing.T) {
	missing := func(context.Context, string) ([]byte, error) {
		return nil, ErrDOCXDependencyMissing
	}
	svc := NewService(WithRenderer(FormatDOCX, missing))
	if _, err := svc.Export(context.Background(), approvedState(), FormatDOCX); !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Errorf("err = %v, want ErrDOCXDependencyMissing", err)
	}
	if _, err := svc.Export(context.Background(), approvedState(), Format("odt")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}

	ok := func(context.Context, string) ([]byte, error) { return []byte("x"), nil }
	failing := NewService(WithRenderer(FormatPDF, ok), WithArtifactStore(&memArtifacts{err: errors.New("bucket gone")}))
	if _, err := failing.Export(context.Background(), approvedState(), FormatPDF); err == nil {
		t.Error("expected artifact store error")
	}
}
