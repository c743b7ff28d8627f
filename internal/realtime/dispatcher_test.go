package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestDispatchWithoutBusDeliversLocally(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()
	client := hub.NewClient(userID)
	hub.AddChannel(client, UserChannel(userID))

	d := NewDispatcher(hub, nil)
	d.Dispatch(context.Background(), Message{Channel: UserChannel(userID), Event: EventImportProgress})

	select {
	case got := <-client.Outbound:
		if got.Event != EventImportProgress {
			t.Fatalf("got %+v", got)
		}
	default:
		t.Fatalf("local client received nothing")
	}
}

func TestDispatchPublishesThroughBus(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()
	client := hub.NewClient(userID)
	hub.AddChannel(client, UserChannel(userID))

	var published []Message
	d := NewDispatcher(hub, func(_ context.Context, msg Message) error {
		published = append(published, msg)
		return nil
	})
	d.Dispatch(context.Background(), Message{Channel: UserChannel(userID), Event: EventImportComplete})

	if len(published) != 1 || published[0].Event != EventImportComplete {
		t.Fatalf("bus publish missing: %+v", published)
	}
	// delivery comes back through the forwarder, never directly
	select {
	case got := <-client.Outbound:
		t.Fatalf("message delivered twice: %+v", got)
	default:
	}
}

func TestDispatchFallsBackWhenPublishFails(t *testing.T) {
	hub := testHub(t)
	userID := uuid.New()
	client := hub.NewClient(userID)
	hub.AddChannel(client, UserChannel(userID))

	d := NewDispatcher(hub, func(context.Context, Message) error {
		return errors.New("redis down")
	})
	d.Dispatch(context.Background(), Message{Channel: UserChannel(userID), Event: EventImportProgress})

	select {
	case got := <-client.Outbound:
		if got.Event != EventImportProgress {
			t.Fatalf("got %+v", got)
		}
	default:
		t.Fatalf("failed publish should fall back to local delivery")
	}
}
