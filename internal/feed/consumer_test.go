package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/conviction/internal/contracts"
	"github.com/wonny/conviction/pkg/logger"
)

type fakeReader struct {
	msgs      chan kafkago.Message
	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(values ...string) *fakeReader {
	r := &fakeReader{msgs: make(chan kafkago.Message, len(values))}
	for i, v := range values {
		r.msgs <- kafkago.Message{Offset: int64(i), Value: []byte(v)}
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

const filing = `{"ticker":"CMC","insider_name":"Doe Jane","transaction_date":"2024-03-05T00:00:00Z","shares":1000,"price_per_share":"99.45","total_value":"99450","transaction_type":"BUY"}`

func TestDecode(t *testing.T) {
	raw, err := Decode([]byte(filing))
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "CMC", raw[0].Ticker)
	assert.Equal(t, "99.45", raw[0].PricePerShare.String())

	raw, err = Decode([]byte("[" + filing + "," + filing + "]"))
	require.NoError(t, err)
	assert.Len(t, raw, 2)

	_, err = Decode([]byte("  "))
	assert.Error(t, err)
	_, err = Decode([]byte("{not json"))
	assert.Error(t, err)
}

func TestConsumer_FlushOnBatchSize(t *testing.T) {
	reader := newFakeReader(filing, "garbage", "["+filing+","+filing+"]")

	var mu sync.Mutex
	var batches [][]contracts.RawTransaction
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(_ context.Context, raw []contracts.RawTransaction) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, raw)
		cancel()
		return nil
	}

	c := NewConsumer(reader, handler, 3, time.Minute, logger.NewNop())
	require.NoError(t, c.Run(ctx))

	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
	assert.Equal(t, []int64{0, 1, 2}, reader.commits())
	assert.True(t, reader.closed)
}

func TestConsumer_FlushOnInterval(t *testing.T) {
	reader := newFakeReader(filing)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []contracts.RawTransaction, 1)
	handler := func(_ context.Context, raw []contracts.RawTransaction) error {
		done <- raw
		cancel()
		return nil
	}

	c := NewConsumer(reader, handler, 100, 20*time.Millisecond, logger.NewNop())
	require.NoError(t, c.Run(ctx))

	select {
	case raw := <-done:
		assert.Len(t, raw, 1)
	default:
		t.Fatal("handler was not called")
	}
	assert.Equal(t, []int64{0}, reader.commits())
}

func TestConsumer_HandlerErrorStopsWithoutCommit(t *testing.T) {
	reader := newFakeReader(filing)
	handler := func(context.Context, []contracts.RawTransaction) error {
		return errors.New("db down")
	}

	c := NewConsumer(reader, handler, 1, time.Minute, logger.NewNop())
	err := c.Run(context.Background())

	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, reader.commits())
}

func TestConsumer_CancelledContext(t *testing.T) {
	reader := newFakeReader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConsumer(reader, func(context.Context, []contracts.RawTransaction) error { return nil }, 0, 0, logger.NewNop())
	assert.NoError(t, c.Run(ctx))
	assert.True(t, reader.closed)
}
