package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/postplanner-backend/internal/queue"
	"github.com/unclebandit/postplanner-backend/internal/service"
)

// recordingAck remembers what the worker told the broker.
type recordingAck struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *recordingAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *recordingAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func delivery(t *testing.T, ack amqp.Acknowledger, tag uint64, id uuid.UUID, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := queue.EncodeGenerationMessage(id)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body, Redelivered: redelivered}
}

func TestToJobDeliveryAcksOnSuccess(t *testing.T) {
	ack := &recordingAck{}
	id := uuid.New()
	job, ok := toJobDelivery(delivery(t, ack, 7, id, false))
	require.True(t, ok)
	assert.Equal(t, id, job.JobID)

	job.Done(nil)
	assert.Equal(t, []uint64{7}, ack.acks)
	assert.Empty(t, ack.nacks)
}

func TestToJobDeliveryRequeuesOnce(t *testing.T) {
	ack := &recordingAck{}
	job, ok := toJobDelivery(delivery(t, ack, 1, uuid.New(), false))
	require.True(t, ok)
	job.Done(errors.New("db down"))
	assert.Equal(t, []uint64{1}, ack.nacks)
	assert.Equal(t, []bool{true}, ack.requeue)

	job, ok = toJobDelivery(delivery(t, ack, 2, uuid.New(), true))
	require.True(t, ok)
	job.Done(errors.New("db still down"))
	assert.Equal(t, []uint64{2}, ack.acks)
}

func TestToJobDeliveryDropsGarbage(t *testing.T) {
	ack := &recordingAck{}
	_, ok := toJobDelivery(amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte("not json")})
	assert.False(t, ok)
	assert.Equal(t, []uint64{3}, ack.acks)
}

type runnerFunc func(ctx context.Context, id uuid.UUID) error

func (f runnerFunc) Run(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

func TestWorker(t *testing.T) {
	ack := &recordingAck{}
	id := uuid.New()

	msgs := make(chan amqp.Delivery, 1)
	msgs <- delivery(t, ack, 9, id, false)
	close(msgs)

	var ran []uuid.UUID
	jobs := make(chan service.JobDelivery)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go forward(ctx, msgs, jobs)
	service.NewWorker(runnerFunc(func(_ context.Context, got uuid.UUID) error {
		ran = append(ran, got)
		return nil
	}), jobs).Start(ctx)

	assert.Equal(t, []uuid.UUID{id}, ran)
	assert.Equal(t, []uint64{9}, ack.acks)
}
