package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/argan/internal/config"
	"github.com/mamadbah2/argan/internal/domain/models"
	"github.com/mamadbah2/argan/internal/service/commands"
	client "github.com/mamadbah2/argan/pkg/clients/whatsapp"
)

type recordingClient struct {
	sent []client.SendTextMessageRequest
	err  error
}

func (c *recordingClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	c.sent = append(c.sent, req)
	return &client.SendTextMessageResponse{}, c.err
}

type stubDispatcher struct {
	calls []models.Command
	reply string
	err   error
}

func (d *stubDispatcher) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	d.calls = append(d.calls, cmd)
	return d.reply, d.err
}

func textPayload(id, from, body string) models.WebhookPayload {
	return models.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []models.WebhookEntry{{
			Changes: []models.WebhookChange{{
				Field: "messages",
				Value: models.WebhookValue{
					Messages: []models.InboundMessage{{ID: id, From: from, Type: "text", Text: &models.TextContent{Body: body}}},
				},
			}},
		}},
	}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "verify"}, &recordingClient{}, &stubDispatcher{}, nil)

	challenge, err := svc.VerifyWebhookToken("subscribe", "verify", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "42")
	require.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "verify", "42")
	require.Error(t, err)
	_, err = svc.VerifyWebhookToken("", "", "42")
	require.Error(t, err)
}

func TestHandleWebhookRepliesWithDispatcherOutput(t *testing.T) {
	wa := &recordingClient{}
	dispatcher := &stubDispatcher{reply: "Purchase saved."}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textPayload("wamid.1", "212600", "/purchase 50 20 Ahmed")))

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, models.CommandPurchase, dispatcher.calls[0].Type)
	require.Len(t, wa.sent, 1)
	assert.Equal(t, "212600", wa.sent[0].To)
	assert.Equal(t, "Purchase saved.", wa.sent[0].Body)
}

func TestHandleWebhookSkipsRedelivery(t *testing.T) {
	wa := &recordingClient{}
	dispatcher := &stubDispatcher{reply: "ok"}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)
	payload := textPayload("wamid.1", "212600", "/purchase 50 20 Ahmed")

	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload))

	assert.Len(t, dispatcher.calls, 1)
	assert.Len(t, wa.sent, 1)
}

func TestHandleWebhookRepliesWithHelpOnBadCommand(t *testing.T) {
	wa := &recordingClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, &stubDispatcher{err: commands.ErrUnsupportedCommand}, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), textPayload("wamid.2", "212600", "bonjour")))

	require.Len(t, wa.sent, 1)
	assert.Contains(t, wa.sent[0].Body, "Unknown command.")
	assert.Contains(t, wa.sent[0].Body, "/purchase")
}

func TestHandleWebhookReturnsSendError(t *testing.T) {
	boom := errors.New("meta down")
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, &recordingClient{err: boom}, &stubDispatcher{reply: "ok"}, nil)

	err := svc.HandleWebhook(context.Background(), textPayload("wamid.3", "212600", "/stock"))
	require.ErrorIs(t, err, boom)
}

func TestHandleWebhookIgnoresNonText(t *testing.T) {
	wa := &recordingClient{}
	dispatcher := &stubDispatcher{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, dispatcher, nil)

	payload := textPayload("wamid.4", "212600", "")
	payload.Entry[0].Changes[0].Value.Messages[0].Text = nil
	payload.Entry[0].Changes[0].Value.Messages[0].Type = "image"

	require.NoError(t, svc.HandleWebhook(context.Background(), payload))
	assert.Empty(t, dispatcher.calls)
	assert.Empty(t, wa.sent)
}

func TestDeliveryLogEvictsOldest(t *testing.T) {
	log := NewDeliveryLog(2)

	assert.True(t, log.FirstDelivery("a"))
	assert.True(t, log.FirstDelivery("b"))
	assert.False(t, log.FirstDelivery("a"))
	assert.True(t, log.FirstDelivery("c"))
	assert.True(t, log.FirstDelivery("a"))
	assert.True(t, log.FirstDelivery(""))
	assert.True(t, log.FirstDelivery(""))
}
