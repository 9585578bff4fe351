package controllers

import (
	"encoding/xml"
	"errors"
	"net/http"

	"github.com/dmeadows001/turn-qa-sub000/internal/services"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

type SMSWebhookController struct {
	optOutService services.OptOutService
}

func NewSMSWebhookController(optOut services.OptOutService) *SMSWebhookController {
	return &SMSWebhookController{optOutService: optOut}
}

// InboundHandler handles POST /api/v1/sms/inbound. A STOP or START that
// could not be recorded answers 500 so Twilio redelivers it; anything else
// is answered with TwiML, empty when there is nothing to say.
func (c *SMSWebhookController) InboundHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid form", nil, err)
		return
	}
	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")

	resp := twimlResponse{}
	res, err := c.optOutService.HandleInbound(r.Context(), from, body)
	switch {
	case err == nil:
		resp.Message = res.Reply
	case errors.Is(err, utils.ErrInvalidPhone):
		utils.Logger.Warnf("Ignoring inbound SMS from unparseable sender %q", from)
	default:
		action := services.ParseKeyword(body)
		if action == services.KeywordStop || action == services.KeywordStart {
			utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "Failed to record SMS preference", nil, err)
			return
		}
		utils.Logger.WithError(err).Errorf("Failed to handle inbound SMS from %s", utils.MaskPhone(from))
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(resp)
}
