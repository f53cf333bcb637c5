package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/rs/zerolog"

	"doacao/internal/domain"
	"doacao/internal/middleware"
	"doacao/internal/submission"
)

const (
	maxFormBytes = 64 << 10

	msgInvalidPayload   = "Invalid request."
	msgPaymentError     = "We could not process your payment. Please try again."
	msgPaymentNotFound  = "Payment not found."
	msgEmailUnavailable = "Could not send the email right now. Please try again later."
)

type donationError struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// DonationsCreate accepts the donation form as JSON or urlencoded fields.
func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req submission.Request
	if err := decodeBody(w, r, &req, formRequest); err != nil {
		a.json(w, http.StatusBadRequest, donationError{Message: msgInvalidPayload})
		return
	}

	resp, err := a.Donations.Submit(r.Context(), req, middleware.CountryFromContext(r.Context()))
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			a.json(w, http.StatusBadRequest, donationError{Message: verr.Error(), Fields: verr.Messages})
		case errors.Is(err, domain.ErrGateway):
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("donations: gateway call failed")
			a.json(w, http.StatusBadRequest, donationError{Message: msgPaymentError})
		default:
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("donations: submission failed")
			a.json(w, http.StatusInternalServerError, donationError{Message: msgPaymentError})
		}
		return
	}
	a.json(w, http.StatusOK, resp)
}

type boletoEmailRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

// DonationsBoletoEmail mails the voucher link once the gateway has issued it.
func (a *App) DonationsBoletoEmail(w http.ResponseWriter, r *http.Request) {
	var req boletoEmailRequest
	err := decodeBody(w, r, &req, func(r *http.Request) boletoEmailRequest {
		return boletoEmailRequest{PaymentIntentID: r.PostFormValue("payment_intent_id")}
	})
	if err != nil {
		a.message(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	err = a.Donations.SendBoletoEmail(r.Context(), req.PaymentIntentID)
	var verr *domain.ValidationError
	switch {
	case err == nil:
		a.message(w, http.StatusOK, submission.MsgEmailSent)
	case errors.As(err, &verr):
		a.message(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrNotYetAvailable):
		a.message(w, http.StatusNotFound, submission.MsgVoucherNotReady)
	case domain.IsNotFoundInMode(err):
		a.message(w, http.StatusNotFound, msgPaymentNotFound)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("payment_intent_id", req.PaymentIntentID).Msg("donations: boleto email failed")
		a.message(w, http.StatusBadGateway, msgEmailUnavailable)
	}
}

func formRequest(r *http.Request) submission.Request {
	return submission.Request{
		AmountType:     r.PostFormValue("amount_type"),
		AmountCustom:   r.PostFormValue("amount_custom"),
		Frequency:      r.PostFormValue("frequency"),
		Email:          r.PostFormValue("email"),
		CardholderName: r.PostFormValue("cardholder_name"),
		PaymentMethod:  r.PostFormValue("payment_method"),
		Country:        r.PostFormValue("country"),
		TaxID:          r.PostFormValue("cpf_cnpj"),
		AddressLine1:   r.PostFormValue("address_line1"),
		AddressLine2:   r.PostFormValue("address_line2"),
		City:           r.PostFormValue("city"),
		State:          r.PostFormValue("state"),
		PostalCode:     r.PostFormValue("postal_code"),
	}
}

// decodeBody reads JSON bodies into dst and hands anything else to fromForm.
func decodeBody[T any](w http.ResponseWriter, r *http.Request, dst *T, fromForm func(*http.Request) T) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	*dst = fromForm(r)
	return nil
}
