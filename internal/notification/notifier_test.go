package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNotifier(provider email.Provider) *Notifier {
	cfg := config.Config{
		Forms: config.FormLinks{
			TrainingRequest: "https://forms.test/training?email={email}",
			Quiz:            "https://forms.test/quiz?eid={eid}",
		},
		Contacts: config.ContactConfig{ReplyTo: "lab@test.edu"},
	}
	return New(Params{Config: cfg, Provider: provider, Log: zap.NewNop()})
}

func TestEveryTemplateRenders(t *testing.T) {
	r := NewRenderer(config.FormLinks{})
	data := map[string]string{"Name": "Jane Doe", "URL": "https://x.test", "BasketID": "S001"}
	for _, name := range []string{
		TemplateTrainingRequest, TemplateQuiz, TemplateQuizFailed, TemplateQuizPassed,
		TemplateSupplies, TemplateBasketAssigned, TemplateBasketUnavailable, TemplateBasketPurge,
		TemplateAccessControl, TemplateLabAccessConfirmation, TemplateLabAccessText, TemplateLabAccessEvent,
	} {
		out, err := r.HTML(name, data, true)
		require.NoError(t, err, name)
		assert.NotEmpty(t, out, name)
	}

	_, err := r.HTML("nope", nil, false)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestHTMLRendersMarkdownAndFooter(t *testing.T) {
	r := NewRenderer(config.FormLinks{Quiz: "https://forms.test/quiz?eid={eid}"})
	out, err := r.HTML(TemplateQuiz, map[string]string{"Name": "Jane Doe", "URL": "https://forms.test/quiz?eid=jd1"}, true)
	require.NoError(t, err)

	assert.Contains(t, out, "<p>Hello Jane Doe,</p>")
	assert.Contains(t, out, `<a href="https://forms.test/quiz?eid=jd1">Take the quiz</a>`)
	assert.Contains(t, out, "step 3 of 5")
	assert.Contains(t, out, `<a href="https://forms.test/quiz?eid=">Pass quiz</a>`)
	assert.Contains(t, out, "<s>Request safety training</s>")

	plain, err := r.HTML(TemplateBasketPurge, map[string]string{"BasketID": "S001"}, true)
	require.NoError(t, err)
	assert.NotContains(t, plain, "Onboarding progress")
}

func TestTextSkipsMarkdown(t *testing.T) {
	r := NewRenderer(config.FormLinks{})
	out, err := r.Text(TemplateLabAccessText, map[string]string{"Name": "Jane Doe", "EID": "jd1", "Phone": "555"})
	require.NoError(t, err)
	assert.Equal(t, "New user setup: Jane Doe (jd1) 555", out)
}

func TestSendDelivers(t *testing.T) {
	rec := email.NewRecorder()
	n := newNotifier(rec)

	err := n.Send(context.Background(), Notification{
		To:         []string{"jane@test.edu"},
		Subject:    "Quiz | Safety Training | jd1",
		Template:   TemplateQuiz,
		Data:       map[string]string{"Name": "Jane Doe"},
		SenderName: SenderTraining,
	})
	require.NoError(t, err)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "lab@test.edu", msgs[0].ReplyTo)
	assert.Equal(t, SenderTraining, msgs[0].SenderName)
}

func TestSendWrapsDeliveryErrors(t *testing.T) {
	rec := email.NewRecorder()
	rec.Fail = func(email.Message) error { return errors.New("smtp down") }
	n := newNotifier(rec)

	err := n.Send(context.Background(), Notification{
		To:       []string{"jane@test.edu"},
		Template: TemplateBasketPurge,
	})
	assert.ErrorIs(t, err, ErrDelivery)
}
