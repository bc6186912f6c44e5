package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/models"
)

func TestHubPublishAssignsIncreasingRevisions(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(4)
	defer sub.Close()

	first := hub.Publish(models.EntityStudent, models.ChangeCreated, "alice@example.com")
	second := hub.Publish(models.EntityEnrollment, models.ChangeDeleted, "1")

	assert.Equal(t, uint64(1), first.Revision)
	assert.Equal(t, uint64(2), second.Revision)
	assert.Equal(t, uint64(2), hub.Revision())

	got := <-sub.C
	assert.Equal(t, first, got)
	got = <-sub.C
	assert.Equal(t, models.EntityEnrollment, got.Entity)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(1)

	hub.Publish(models.EntityCourse, models.ChangeUpdated, "MATH101")
	hub.Publish(models.EntityCourse, models.ChangeUpdated, "MATH101")
	assert.Equal(t, uint64(1), sub.Dropped())
	assert.Equal(t, uint64(2), hub.Revision())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Subscribers())
	_, open := <-sub.C
	assert.True(t, open, "buffered event is still readable")
	_, open = <-sub.C
	assert.False(t, open)
}

func TestNilHubIsInert(t *testing.T) {
	var hub *Hub
	assert.Equal(t, uint64(0), hub.Revision())
	assert.Equal(t, models.ChangeEvent{}, hub.Publish(models.EntityStudent, models.ChangeCreated, "x"))
}

func TestServeWSStreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	hub.Publish(models.EntityStudent, models.ChangeCreated, "seed@example.com")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.ServeWS(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var greeting hello
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, uint64(1), greeting.Revision)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(models.EntityCourse, models.ChangeDeleted, "ART100")

	var event models.ChangeEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, uint64(2), event.Revision)
	assert.Equal(t, "ART100", event.Key)
}
