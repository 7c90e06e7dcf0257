package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consertja/consertja/internal/models"
	"github.com/consertja/consertja/internal/realtime"
	"github.com/consertja/consertja/internal/session"
)

func newTestService(store *memoryStore, changes ChangeFeed) *Service {
	return NewService(store, changes, WithClock(stepClock(baseTime)), WithPollInterval(time.Hour))
}

func TestOpenFeedValidation(t *testing.T) {
	svc := newTestService(newMemoryStore(), nil)

	_, err := svc.OpenFeed(models.Session{}, "p1", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.OpenFeed(models.Session{UserID: "c1"}, "p1", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = svc.OpenFeed(client, "", nil)
	assert.ErrorIs(t, err, ErrNoCounterpart)

	feed, err := svc.OpenFeed(provider, "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationKey{ClientID: "c1", ProviderID: "p1"}, feed.Key())
}

func TestFeedLoadInitial(t *testing.T) {
	store := newMemoryStore()
	store.add(
		message(2, models.RoleProvider, time.Second, "Posso ir amanhã"),
		message(1, models.RoleClient, 0, "Preciso de um eletricista"),
	)
	// Another conversation
	other := message(3, models.RoleClient, 0, "oi")
	other.ProviderID = "p2"
	store.add(other)

	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	messages, err := feed.LoadInitial(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, int64(1), messages[0].ID)
	assert.Equal(t, int64(2), messages[1].ID)
}

func TestFeedLoadInitialFailureKeepsFeed(t *testing.T) {
	store := newMemoryStore()
	store.failList = errBackend

	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	messages, err := feed.LoadInitial(context.Background())
	assert.ErrorIs(t, err, errBackend)
	assert.Empty(t, messages)

	// The next poll recovers
	store.failList = nil
	store.add(message(1, models.RoleProvider, 0, "Olá"))
	messages, err = feed.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestFeedSend(t *testing.T) {
	store := newMemoryStore()
	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	var updates [][]models.Message
	feed.OnUpdate(func(m []models.Message) { updates = append(updates, m) })

	msg, err := feed.Send(context.Background(), "  Bom dia  ")
	require.NoError(t, err)

	assert.Equal(t, "Bom dia", msg.Text)
	assert.Equal(t, models.RoleClient, msg.SentBy)
	assert.False(t, msg.Read)

	state, ok := feed.State(msg.ID)
	require.True(t, ok)
	assert.Equal(t, StateConfirmed, state)

	stored, ok := store.get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "Bom dia", stored.Text)

	require.Len(t, updates, 1)
	assert.Equal(t, msg.ID, updates[0][0].ID)
}

func TestFeedAppendOptimisticEmpty(t *testing.T) {
	feed, err := newTestService(newMemoryStore(), nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	_, err = feed.AppendOptimistic("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, feed.Messages())
}

func TestFeedAppendOptimisticIsPending(t *testing.T) {
	feed, err := newTestService(newMemoryStore(), nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	msg, err := feed.AppendOptimistic("a caminho")
	require.NoError(t, err)

	state, ok := feed.State(msg.ID)
	require.True(t, ok)
	assert.Equal(t, StatePending, state)
	assert.Len(t, feed.Messages(), 1)
}

func TestFeedSendRollback(t *testing.T) {
	store := newMemoryStore()
	store.failInsert = errBackend

	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	msg, err := feed.Send(context.Background(), "Olá")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, feed.Messages())

	_, ok := feed.State(msg.ID)
	assert.False(t, ok)
}

func TestFeedConfirmDuplicate(t *testing.T) {
	store := newMemoryStore()
	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	msg, err := feed.AppendOptimistic("Olá")
	require.NoError(t, err)
	store.add(msg)

	confirmed, err := feed.ConfirmSend(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, confirmed.ID)
	state, _ := feed.State(msg.ID)
	assert.Equal(t, StateConfirmed, state)
}

func TestFeedSendRekeysOnForeignIdentity(t *testing.T) {
	store := newMemoryStore()
	// Written by another sender in the same millisecond
	foreign := models.Message{
		ID: baseTime.UnixMilli(), ClientID: "c9", ProviderID: "p9",
		Text: "outra conversa", SentAt: baseTime, SentBy: models.RoleClient,
	}
	store.add(foreign)

	svc := NewService(store, nil, WithClock(func() time.Time { return baseTime }))
	feed, err := svc.OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	var updates [][]models.Message
	feed.OnUpdate(func(m []models.Message) { updates = append(updates, m) })

	msg, err := feed.Send(context.Background(), "Olá")
	require.NoError(t, err)
	assert.NotEqual(t, foreign.ID, msg.ID)

	stored, ok := store.get(msg.ID)
	require.True(t, ok)
	assert.Equal(t, "Olá", stored.Text)
	assert.Equal(t, feed.Key(), stored.Key())

	untouched, _ := store.get(foreign.ID)
	assert.Equal(t, "outra conversa", untouched.Text)

	state, ok := feed.State(msg.ID)
	require.True(t, ok)
	assert.Equal(t, StateConfirmed, state)
	_, ok = feed.State(foreign.ID)
	assert.False(t, ok)

	// Observers end up with the new identity
	last := updates[len(updates)-1]
	require.Len(t, last, 1)
	assert.Equal(t, msg.ID, last[0].ID)

	// A fresh view of the conversation sees the message
	other, err := svc.OpenFeed(client, "p1", nil)
	require.NoError(t, err)
	loaded, err := other.LoadInitial(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, msg.ID, loaded[0].ID)
}

func TestFeedSendDuplicateLookupFailure(t *testing.T) {
	store := newMemoryStore()
	store.add(models.Message{ID: baseTime.UnixMilli(), ClientID: "c9", ProviderID: "p9", SentBy: models.RoleClient})
	store.failGet = errBackend

	svc := NewService(store, nil, WithClock(func() time.Time { return baseTime }))
	feed, err := svc.OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	_, err = feed.Send(context.Background(), "Olá")
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Empty(t, feed.Messages())
}

func TestFeedSendsInSameMillisecond(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, WithClock(func() time.Time { return baseTime }))
	feed, err := svc.OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	a, err := feed.Send(context.Background(), "um")
	require.NoError(t, err)
	b, err := feed.Send(context.Background(), "dois")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	messages := feed.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "um", messages[0].Text)
	assert.Equal(t, "dois", messages[1].Text)
}

func TestFeedMergeIncoming(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, nil)
	sess := session.New(client, nil)
	counter := svc.NewUnreadCounter(sess)
	feed, err := svc.OpenFeed(client, "p1", svc.NewReadSync(counter))
	require.NoError(t, err)

	incoming := message(7, models.RoleProvider, 0, "Chego às 14h")
	store.add(incoming)

	ctx := context.Background()
	messages := feed.MergeIncoming(ctx, incoming)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)

	stored, _ := store.get(7)
	assert.True(t, stored.Read)
	assert.Equal(t, 0, counter.Count())

	// Same identity again changes nothing
	again := feed.MergeIncoming(ctx, incoming)
	assert.Equal(t, messages, again)
}

func TestFeedMergeIncomingIgnoresOthers(t *testing.T) {
	feed, err := newTestService(newMemoryStore(), nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)
	ctx := context.Background()

	own := message(1, models.RoleClient, 0, "eu")
	assert.Empty(t, feed.MergeIncoming(ctx, own))

	elsewhere := message(2, models.RoleProvider, 0, "outro")
	elsewhere.ProviderID = "p2"
	assert.Empty(t, feed.MergeIncoming(ctx, elsewhere))
}

func TestFeedPollKeepsPendingSend(t *testing.T) {
	store := newMemoryStore()
	store.add(message(1, models.RoleProvider, 0, "Olá"))

	feed, err := newTestService(store, nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = feed.LoadInitial(ctx)
	require.NoError(t, err)

	pending, err := feed.AppendOptimistic("a caminho")
	require.NoError(t, err)

	messages, err := feed.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, pending.ID, messages[1].ID)
}

func TestFeedRun(t *testing.T) {
	store := newMemoryStore()
	broker := realtime.NewBroker()
	svc := newTestService(store, broker)

	feed, err := svc.OpenFeed(client, "p1", svc.NewReadSync(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	pushed := message(5, models.RoleProvider, 0, "Olá")
	store.add(pushed)
	record, err := json.Marshal(pushed)
	require.NoError(t, err)
	broker.Publish(realtime.Change{Op: realtime.OpInsert, Table: "mensagem", Record: record})

	require.Eventually(t, func() bool { return len(feed.Messages()) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		stored, _ := store.get(5)
		return stored.Read
	}, time.Second, 10*time.Millisecond)

	// Missed notifications are recovered by a resync
	store.add(message(6, models.RoleProvider, time.Second, "Tudo bem?"))
	broker.Publish(realtime.Change{Op: realtime.OpResync})
	require.Eventually(t, func() bool { return len(feed.Messages()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, broker.Subscribers())
}

func TestFeedRunPolls(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, WithClock(stepClock(baseTime)), WithPollInterval(20*time.Millisecond))

	feed, err := svc.OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	store.add(message(1, models.RoleProvider, 0, "Olá"))
	require.Eventually(t, func() bool { return len(feed.Messages()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestFeedOpenPublishesEmptyConversation(t *testing.T) {
	feed, err := newTestService(newMemoryStore(), nil).OpenFeed(client, "p1", nil)
	require.NoError(t, err)

	calls := 0
	feed.OnUpdate(func(m []models.Message) {
		calls++
		assert.Empty(t, m)
	})

	_, err = feed.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFeedRunFetchesKeyOnlyInsert(t *testing.T) {
	store := newMemoryStore()
	broker := realtime.NewBroker()
	svc := newTestService(store, broker)

	feed, err := svc.OpenFeed(client, "p1", svc.NewReadSync(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)
	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	store.add(message(8, models.RoleProvider, 0, "Orçamento em anexo"))
	record := []byte(`{"id_mensagem":8,"id_cliente":"c1","id_prestador":"p1","enviado_por":"prestador","lida":false}`)
	broker.Publish(realtime.Change{Op: realtime.OpInsert, Table: "mensagem", Record: record})

	require.Eventually(t, func() bool {
		messages := feed.Messages()
		return len(messages) == 1 && messages[0].Text == "Orçamento em anexo" && messages[0].Read
	}, time.Second, 10*time.Millisecond)

	stored, _ := store.get(8)
	assert.True(t, stored.Read)
}

func TestFeedMarkRead(t *testing.T) {
	store := newMemoryStore()
	store.add(
		message(1, models.RoleProvider, 0, "Olá"),
		message(2, models.RoleClient, time.Second, "Oi"),
	)

	svc := newTestService(store, nil)
	counter := svc.NewUnreadCounter(session.New(client, nil))
	feed, err := svc.OpenFeed(client, "p1", svc.NewReadSync(counter))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = feed.LoadInitial(ctx)
	require.NoError(t, err)

	var updates [][]models.Message
	feed.OnUpdate(func(m []models.Message) { updates = append(updates, m) })

	require.NoError(t, feed.MarkRead(ctx))
	require.Len(t, updates, 1)
	assert.True(t, updates[0][0].Read)
	assert.False(t, updates[0][1].Read)

	stored, _ := store.get(1)
	assert.True(t, stored.Read)

	// Nothing left to change: no update
	require.NoError(t, feed.MarkRead(ctx))
	assert.Len(t, updates, 1)

	store.failMark = errBackend
	store.add(message(3, models.RoleProvider, 2*time.Second, "Chego às 9h"))
	_, err = feed.Poll(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, feed.MarkRead(ctx), errBackend)
	assert.False(t, feed.Messages()[2].Read)
}
