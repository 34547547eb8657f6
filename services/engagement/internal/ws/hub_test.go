package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, hub *Hub, postID string) (*websocket.Conn, *Client) {
	t.Helper()
	registered := make(chan *Client, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		registered <- hub.Register(postID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case c := <-registered:
		return conn, c
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
		return nil, nil
	}
}

func TestSendDeliversJSON(t *testing.T) {
	hub := NewHub(nil)
	conn, client := dial(t, hub, "p1")

	if !client.Send(map[string]string{"type": "comment_added", "id": "c-1"}) {
		t.Fatal("send rejected")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "comment_added" || got["id"] != "c-1" {
		t.Fatalf("got %v", got)
	}
}

func TestUnregisterClosesPeer(t *testing.T) {
	hub := NewHub(nil)
	conn, client := dial(t, hub, "p1")
	if hub.Count("p1") != 1 {
		t.Fatalf("count = %d", hub.Count("p1"))
	}

	hub.Unregister("p1", client)
	if hub.Count("p1") != 0 {
		t.Fatalf("count after unregister = %d", hub.Count("p1"))
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return // peer saw the close
		}
	}
}

func TestSendAfterCloseReportsDrop(t *testing.T) {
	hub := NewHub(nil)
	_, client := dial(t, hub, "p1")
	client.Close()
	if client.Send(map[string]string{"type": "x"}) {
		t.Fatal("send after close must report the drop")
	}
}

// The write pump must stay the connection's only writer even when a
// shutdown races a burst of sends.
func TestConcurrentSendAndClose(t *testing.T) {
	hub := NewHub(nil)
	_, client := dial(t, hub, "p1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			client.Send(map[string]int{"seq": i})
		}
	}()
	client.Close()
	<-done

	if client.Send(map[string]string{"type": "x"}) {
		t.Fatal("send after close must report the drop")
	}
}

func TestCloseAllEmptiesHub(t *testing.T) {
	hub := NewHub(nil)
	dial(t, hub, "p1")
	dial(t, hub, "p2")
	hub.CloseAll()
	if hub.Count("p1")+hub.Count("p2") != 0 {
		t.Fatal("clients still tracked after CloseAll")
	}
}
