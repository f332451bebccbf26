package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

type fakeDialer struct {
	sent []*mail.Msg
}

func (f *fakeDialer) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	f.sent = append(f.sent, messages...)
	return nil
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	msg := Message{Subject: "s"}
	a, b := new(mockSender), new(mockSender)
	a.On("Send", ctx, msg).Return(errors.New("smtp down")).Once()
	b.On("Send", ctx, msg).Return(nil).Once()

	err := Multi{a, b}.Send(ctx, msg)
	assert.ErrorContains(t, err, "smtp down")
	a.AssertExpectations(t)
	b.AssertExpectations(t)
}

func TestMarkdownToHTML(t *testing.T) {
	src := "| 1-10 | 11-20 |\n|---|---|\n| " + EscapeMarkdown("A|<b>") + " | B |\n"
	out, err := MarkdownToHTML(src)
	require.NoError(t, err)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>A|&lt;b&gt;</td>")
	assert.Contains(t, out, "<td>B</td>")
}

func TestSMTPSender(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dialer := &fakeDialer{}
	s := &SMTPSender{from: "cafeteria@example.org", client: dialer, logger: &logger}

	t.Run("NoRecipients", func(t *testing.T) {
		require.NoError(t, s.Send(context.Background(), Message{Subject: "x"}))
		assert.Empty(t, dialer.sent)
	})

	t.Run("Multipart", func(t *testing.T) {
		err := s.Send(context.Background(), Message{
			To:      []string{"office@example.org"},
			Subject: "Comptabilité cafétéria",
			Text:    "Menus : 2",
			HTML:    "<p>Menus : 2</p>",
		})
		require.NoError(t, err)
		require.Len(t, dialer.sent, 1)

		var buf bytes.Buffer
		_, err = dialer.sent[0].WriteTo(&buf)
		require.NoError(t, err)
		raw := buf.String()
		assert.Contains(t, raw, "office@example.org")
		assert.Contains(t, raw, "text/plain")
		assert.Contains(t, raw, "text/html")
	})

	t.Run("InvalidRecipient", func(t *testing.T) {
		err := s.Send(context.Background(), Message{To: []string{"not an address"}, Subject: "x"})
		assert.Error(t, err)
	})
}

func TestTelegramNotifier(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bot := new(mockBot)
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		m, ok := c.(tgbotapi.MessageConfig)
		return ok && strings.HasPrefix(m.Text, "Subject\n\nBody")
	})).Return(nil).Twice()

	n := NewTelegramNotifier(bot, []int64{1, 2}, &logger)
	require.NoError(t, n.Send(context.Background(), Message{Subject: "Subject", Text: "Body"}))
	bot.AssertExpectations(t)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	require.NoError(t, NewLogSender(&logger).Send(context.Background(), Message{Subject: "hello"}))
	assert.Contains(t, buf.String(), "hello")
}
