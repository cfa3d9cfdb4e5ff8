package provider

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

// ISO20022Provider frames the outbound payout call as an ISO 20022
// pacs.008.001.08 FIToFICustomerCreditTransfer request and reads the
// provider's reply back as a pacs.002.001.08 FIToFIPaymentStatusReport.
type ISO20022Provider struct {
	Endpoint      string
	OriginatorBIC string
	HTTPClient    *http.Client
}

// NewISO20022Provider constructs a provider posting to endpoint as originatorBIC.
func NewISO20022Provider(endpoint, originatorBIC string) *ISO20022Provider {
	return &ISO20022Provider{
		Endpoint:      endpoint,
		OriginatorBIC: originatorBIC,
		HTTPClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Pay builds a pacs.008 credit transfer keyed by req.IdempotencyKey, posts it
// to the provider endpoint, and interprets the pacs.002 status report it
// receives back.
func (p *ISO20022Provider) Pay(ctx context.Context, req Request) (Result, error) {
	doc := p.buildPacs008(req)

	xmlBody, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Result{}, &PermanentError{Err: fmt.Errorf("marshal pacs.008: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(append([]byte(xml.Header), xmlBody...)))
	if err != nil {
		return Result{}, &PermanentError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/xml")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return Result{}, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		return Result{}, &TransientError{Err: fmt.Errorf("provider status %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 400 {
		return Result{}, &PermanentError{Err: fmt.Errorf("provider status %d: %s", resp.StatusCode, string(body))}
	}

	var status pacs_v08.FIToFIPaymentStatusReportV08
	if err := xml.Unmarshal(body, &status); err != nil {
		return Result{}, &TransientError{Err: fmt.Errorf("parse pacs.002: %w", err)}
	}

	return p.interpretStatus(req, status)
}

func (p *ISO20022Provider) buildPacs008(req Request) *pacs_v08.FIToFICustomerCreditTransferV08 {
	msgID := uuid.New().String()
	creDtTm := time.Now()

	instrID := common.Max35Text(req.IdempotencyKey)
	txID := common.Max35Text(req.IdempotencyKey)
	dbtrName := common.Max140Text(p.OriginatorBIC)
	cdtrName := common.Max140Text(req.RecipientName)
	bicfi := common.BICFIDec2014Identifier(p.OriginatorBIC)

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(req.Currency),
				Value: float64(req.AmountCents) / 100,
			},
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &instrID,
					EndToEndId: common.Max35Text(req.IdempotencyKey),
					TxId:       &txID,
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(req.Currency),
					Value: float64(req.AmountCents) / 100,
				},
				ChrgBr: "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &bicfi,
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &dbtrName,
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(req.RecipientAccount),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &cdtrName,
				},
			},
		},
	}
}

// interpretStatus maps a pacs.002 transaction status code to a Result or a
// typed error: ACSC/ACSP ("accepted settlement completed/in process") are
// success, RJCT ("rejected") is permanent, everything else (ACTC, PDNG, or
// no parseable status) is treated as transient so the dispatcher retries.
func (p *ISO20022Provider) interpretStatus(req Request, status pacs_v08.FIToFIPaymentStatusReportV08) (Result, error) {
	if len(status.TxInfAndSts) == 0 || status.TxInfAndSts[0].TxSts == nil {
		return Result{}, &TransientError{Err: fmt.Errorf("no transaction status in pacs.002 for %s", req.IdempotencyKey)}
	}

	code := string(*status.TxInfAndSts[0].TxSts)
	switch code {
	case "ACSC", "ACSP":
		return Result{
			ExternalID:        fmt.Sprintf("iso20022:%s", status.GrpHdr.MsgId),
			ExternalReference: string(code),
		}, nil
	case "RJCT":
		return Result{}, &PermanentError{Err: fmt.Errorf("payment rejected: %s", req.IdempotencyKey)}
	default:
		return Result{}, &TransientError{Err: fmt.Errorf("payment pending status %q for %s", code, req.IdempotencyKey)}
	}
}
