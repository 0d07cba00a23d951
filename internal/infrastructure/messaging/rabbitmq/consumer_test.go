package rabbitmq

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/marketplace-backend/internal/config"
	"github.com/your-org/marketplace-backend/internal/domain/purchasable"
	"github.com/your-org/marketplace-backend/internal/testutil"
)

type fakeHandler struct {
	refs []purchasable.Ref
	err  error
}

func (f *fakeHandler) OnEntityDeleted(_ context.Context, ref purchasable.Ref) error {
	f.refs = append(f.refs, ref)
	return f.err
}

type countingRecorder map[string]int

func (c countingRecorder) CatalogEventHandled(result string) { c[result]++ }

func TestDecodeEvent(t *testing.T) {
	id := uuid.New()

	ref, err := decodeEvent("catalog.service.deleted", []byte(`{"kind":"service","id":"`+id.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, purchasable.Ref{Kind: purchasable.KindService, ID: id}, ref)

	ref, err = decodeEvent("catalog.mentorship_session.deleted", []byte(`{"id":"`+id.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, purchasable.KindMentorship, ref.Kind)

	_, err = decodeEvent("catalog.course.deleted", []byte(`{"id":"`+id.String()+`"}`))
	assert.ErrorIs(t, err, purchasable.ErrUnknownKind)

	_, err = decodeEvent("catalog.service.deleted", []byte(`{"kind":"service","id":"nope"}`))
	assert.Error(t, err)

	_, err = decodeEvent("catalog.service.deleted", []byte(`not json`))
	assert.Error(t, err)
}

func TestProcessDispositions(t *testing.T) {
	handler := &fakeHandler{}
	rec := countingRecorder{}
	c := NewConsumer(config.RabbitMQConfig{}, handler, rec, testutil.NewLogger())
	body := []byte(`{"kind":"service","id":"` + uuid.NewString() + `"}`)

	assert.Equal(t, ack, c.process(context.Background(), "catalog.service.deleted", body))
	assert.Len(t, handler.refs, 1)

	assert.Equal(t, drop, c.process(context.Background(), "catalog.service.deleted", []byte(`{}`)))

	handler.err = errors.New("database down")
	assert.Equal(t, requeue, c.process(context.Background(), "catalog.service.deleted", body))

	assert.Equal(t, countingRecorder{"ok": 1, "malformed": 1, "requeued": 1}, rec)
}
