package mq

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsEventTypeHeader(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		require.Equal(t, "couple-events", msg.Topic)
		require.Len(t, msg.Headers, 1)
		require.Equal(t, "couple.created", string(msg.Headers[0].Value))
		key, err := msg.Key.Encode()
		require.NoError(t, err)
		require.Equal(t, "EVT1", string(key))
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "couple-events")
	require.NoError(t, p.Publish(context.Background(), "couple.created", "EVT1", []byte(`{"couple_id":"c1"}`)))
	require.NoError(t, p.Close())
}

func TestKafkaPublisherPropagatesError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "couple-events")
	err := p.Publish(context.Background(), "coupon.used", "EVT2", []byte(`{}`))
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
