package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender sends WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
	logger *slog.Logger
}

// NewTwilioSender creates a sender. from is the WhatsApp-enabled number in
// E.164 form, without the "whatsapp:" prefix.
func NewTwilioSender(accountSid, authToken, from string, logger *slog.Logger) *TwilioSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioSender{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		from:   from,
		logger: logger,
	}
}

// messageParams uses WhatsApp when the number is in E.164 form and plain SMS otherwise.
func messageParams(from, to, body string) *twilioApi.CreateMessageParams {
	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)
	if strings.HasPrefix(to, "+") {
		params.SetTo("whatsapp:" + to)
		params.SetFrom("whatsapp:" + from)
	} else {
		params.SetTo(to)
		params.SetFrom(from)
	}
	return params
}

// Send delivers body to the phone number to.
// The Twilio client has no context support; ctx is only checked up front.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp, err := s.client.Api.CreateMessage(messageParams(s.from, to, body))
	if err != nil {
		return fmt.Errorf("twilio: %w", err)
	}
	if resp.Sid != nil {
		s.logger.Info("message sent", "to", to, "sid", *resp.Sid)
	} else {
		s.logger.Info("message sent, but no SID returned", "to", to)
	}
	return nil
}
