package mail

import (
	"context"
	"encoding/json"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/pkg/config"
)

func TestNewSenderFallsBackToConsole(t *testing.T) {
	sender := NewSender(config.MailConfig{FromName: "TClass", FromEmail: "no-reply@tclass.local"}, nil)
	_, ok := sender.(*ConsoleSender)
	assert.True(t, ok)

	sender = NewSender(config.MailConfig{SendGridKey: "SG.key"}, nil)
	_, ok = sender.(*SendGridSender)
	assert.True(t, ok)
}

func TestConsoleSenderValidatesMessage(t *testing.T) {
	sender := NewConsoleSender(Address{Email: "no-reply@tclass.local"}, nil)

	assert.Error(t, sender.Send(context.Background(), Message{Subject: "x", Text: "body"}))
	assert.Error(t, sender.Send(context.Background(), Message{To: []Address{{Email: "juan@x.ph"}}}))
	assert.NoError(t, sender.Send(context.Background(), Message{To: []Address{{Email: "juan@x.ph"}}, Subject: "COR", Text: "body"}))
}

func TestSendGridSenderPrepare(t *testing.T) {
	sender := NewSendGridSender("SG.key", Address{Name: "TClass", Email: "no-reply@tclass.local"}, nil)

	body := sgmail.GetRequestBody(sender.prepare(Message{
		To:          []Address{{Name: "Juan Dela Cruz", Email: "juan@x.ph"}},
		Subject:     "Your Certificate of Registration",
		Text:        "COR-2026-AB12CD",
		Attachments: []Attachment{{Filename: "COR-2026-AB12CD.pdf", ContentType: "application/pdf", Data: []byte("%PDF")}},
	}))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "no-reply@tclass.local", payload["from"].(map[string]interface{})["email"])
	attachments := payload["attachments"].([]interface{})
	require.Len(t, attachments, 1)
	assert.Equal(t, "JVBERg==", attachments[0].(map[string]interface{})["content"])
	contents := payload["content"].([]interface{})
	assert.Len(t, contents, 1)
}
