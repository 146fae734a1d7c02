package dynamostore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// stubStore builds a store whose DynamoDB client talks to a server that
// rejects every request, which is enough to exercise the poller's lifecycle.
func stubStore(t *testing.T) *Store {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"__type":"com.amazonaws.dynamodb.v20120810#ValidationException","message":"stub"}`))
	}))
	t.Cleanup(ts.Close)

	db := dynamodb.New(dynamodb.Options{
		BaseEndpoint:     aws.String(ts.URL),
		Region:           "us-east-1",
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	})
	s3c := s3.New(s3.Options{
		BaseEndpoint:     aws.String(ts.URL),
		Region:           "us-east-1",
		Credentials:      aws.AnonymousCredentials{},
		RetryMaxAttempts: 1,
	})
	return New(db, s3c, Options{Table: "unifound", Bucket: "unifound-assets", PollInterval: 20 * time.Millisecond})
}

func TestSubscribeRejectsUnknownKind(t *testing.T) {
	store := stubStore(t)
	if _, err := store.Subscribe(context.Background(), "misplaced"); !errors.Is(err, gateway.ErrSubscription) {
		t.Errorf("expected ErrSubscription, got %v", err)
	}
}

func TestUnsubscribeClosesStream(t *testing.T) {
	store := stubStore(t)
	sub, err := store.Subscribe(context.Background(), model.KindFound)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// The first delivery reports the backend error.
	select {
	case snap := <-sub.C:
		if snap.Err == nil {
			t.Error("expected an error snapshot from the failing backend")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}

	sub.Unsubscribe()

	// The channel must close so a ranging consumer terminates.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.C:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel still open after Unsubscribe")
		}
	}
}
