package realtime

import (
	"testing"

	"github.com/google/uuid"

	"github.com/schedulebud/backend/internal/pkg/logger"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewHub(log)
}

func TestBroadcastReachesSubscribedClients(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()

	subscribed := hub.NewClient(userID)
	hub.AddChannel(subscribed, UserChannel(userID))
	other := hub.NewClient(uuid.New())
	hub.AddChannel(other, UserChannel(other.UserID))

	msg := Message{Channel: UserChannel(userID), Event: EventImportProgress, Data: map[string]int{"percent": 40}}
	hub.Broadcast(msg)

	select {
	case got := <-subscribed.Outbound:
		if got.Event != EventImportProgress || got.Channel != msg.Channel {
			t.Fatalf("got %+v", got)
		}
	default:
		t.Fatalf("subscribed client received nothing")
	}

	select {
	case got := <-other.Outbound:
		t.Fatalf("unrelated client received %+v", got)
	default:
	}
}

func TestBroadcastToUnknownChannelIsNoop(t *testing.T) {
	hub := testHub(t)
	hub.Broadcast(Message{Channel: "user:" + uuid.NewString(), Event: EventExportReady})
	hub.Broadcast(Message{Event: EventExportReady})
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()
	client := hub.NewClient(userID)
	hub.AddChannel(client, UserChannel(userID))

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Broadcast(Message{Channel: UserChannel(userID), Event: EventImportProgress, Data: i})
	}

	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("buffer should be full, len=%d cap=%d", len(client.Outbound), cap(client.Outbound))
	}
}

func TestCloseClientUnsubscribes(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()
	client := hub.NewClient(userID)
	hub.AddChannel(client, UserChannel(userID))

	hub.CloseClient(client)

	if _, ok := hub.subscriptions[UserChannel(userID)]; ok {
		t.Fatalf("channel should be removed once its last client leaves")
	}
	select {
	case <-client.done:
	default:
		t.Fatalf("done channel should be closed")
	}
}
