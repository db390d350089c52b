package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestQueueSink_Send(t *testing.T) {
	pub := new(MockPublisher)
	var published amqp.Publishing
	pub.On("Publish", rabbitmq.NotificationsExchange, rabbitmq.DeliverRoutingKey, false, false, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(4).(amqp.Publishing) }).
		Return(nil).Once()

	sink := NewQueueSink(pub)
	n := models.Notification{
		ChatID:   42,
		Kind:     models.ReminderMonthlySoon,
		Text:     "скоро",
		Keyboard: models.Keyboard{{{Text: "Оплатить", CallbackData: "BUY_MONTH_SUBSCRIPTION"}}},
	}
	require.NoError(t, sink.Send(context.Background(), n))
	pub.AssertExpectations(t)

	got, err := Decode(published.Body)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, got.ID, published.MessageId)
	assert.Equal(t, n.ChatID, got.ChatID)
	assert.Equal(t, n.Keyboard, got.Keyboard)
}

func TestQueueSink_SendKeepsExistingID(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, false, false,
		mock.MatchedBy(func(p amqp.Publishing) bool { return p.MessageId == "fixed" })).Return(nil).Once()

	err := NewQueueSink(pub).Send(context.Background(), models.Notification{ID: "fixed", ChatID: 1, Text: "x"})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestQueueSink_SendErrors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(errors.New("channel closed")).Once()
	sink := NewQueueSink(pub)

	err := sink.Send(context.Background(), models.Notification{ChatID: 1, Text: "x"})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sink.Send(ctx, models.Notification{ChatID: 1, Text: "x"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecode(t *testing.T) {
	valid, err := json.Marshal(models.Notification{ID: "a", ChatID: 5, Text: "hello"})
	require.NoError(t, err)

	n, err := Decode(valid)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n.ChatID)

	_, err = Decode([]byte("not json"))
	require.ErrorIs(t, err, rabbitmq.ErrDrop)

	_, err = Decode([]byte(`{"chat_id":0,"text":"x"}`))
	require.ErrorIs(t, err, rabbitmq.ErrDrop)
}
