package mongostore_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bluescreen10/xsession"
	"github.com/bluescreen10/xsession/mongostore"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ xsession.Store = &mongostore.MongoStore{}

func TestMongoStore(t *testing.T) {
	db := getDatabase(t)

	t.Run("set get", func(t *testing.T) {
		s := newStore(t, db.Collection("set_get"), nil)
		expectedData := []byte("hello world")

		if err := s.Set("USR", expectedData, time.Now().Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
		data, found, err := s.Get("USR")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(data) != string(expectedData) {
			t.Fatalf("expected '%s' got '%s' (found %v)", expectedData, data, found)
		}

		if err := s.Set("USR", []byte("second"), time.Time{}); err != nil {
			t.Fatal(err)
		}
		data, _, _ = s.Get("USR")
		if string(data) != "second" {
			t.Fatalf("expected 'second' got '%s'", data)
		}
	})

	t.Run("empty get", func(t *testing.T) {
		s := newStore(t, db.Collection("empty_get"), nil)
		_, found, err := s.Get("USR")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatalf("expected 'false' got '%v'", found)
		}
	})

	t.Run("expired", func(t *testing.T) {
		now := time.Now()
		s := newStore(t, db.Collection("expired"), func() time.Time { return now })

		s.Set("USR", []byte("x"), now.Add(time.Hour))
		if _, found, _ := s.Get("USR"); !found {
			t.Fatal("expected record to be live")
		}

		now = now.Add(2 * time.Hour)
		if _, found, _ := s.Get("USR"); found {
			t.Fatal("expected record to be expired")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t, db.Collection("del"), nil)
		s.Set("USR", []byte("x"), time.Now().Add(time.Hour))
		if err := s.Delete("USR"); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete("missing"); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := s.Get("USR"); found {
			t.Fatal("expected deleted record to be gone")
		}
	})

	t.Run("container round trip", func(t *testing.T) {
		type payload struct{ UserID string }
		s := newStore(t, db.Collection("roundtrip"), nil)

		a := xsession.New[payload](s)
		a.Initialize()
		a.SetPayload(payload{UserID: "admin"})
		a.Save()

		b := xsession.New[payload](s)
		b.Load(false)
		if b.IsError() || b.Payload().UserID != "admin" {
			t.Fatalf("expected valid 'admin' session got '%v'", b.State())
		}
	})
}

func TestNilCollection(t *testing.T) {
	if _, err := mongostore.New(nil); err == nil {
		t.Fatal("expected error for nil collection")
	}
}

func newStore(t *testing.T, coll *mongo.Collection, now func() time.Time) *mongostore.MongoStore {
	t.Helper()
	if now == nil {
		now = time.Now
	}
	s, err := mongostore.New(coll, mongostore.WithClock(now))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func getDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	server, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("Waiting for connections"),
		),
	)
	testcontainers.CleanupContainer(t, server)
	if err != nil {
		t.Fatal(err)
	}

	endpoint, err := server.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(fmt.Sprintf("mongodb://%s", endpoint)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Disconnect(context.Background()) })
	return client.Database("xsession")
}
