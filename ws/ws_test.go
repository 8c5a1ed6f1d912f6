package ws

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBody struct {
	N int `json:"n"`
}

// dialTestClient connects a real websocket client to the hub server.
func dialTestClient(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	conn, res, err := websocket.DefaultDialer.Dial(getWSURLFromHTTPURL(serverURL), nil)
	require.NoError(t, err, "dialing hub")
	require.Equal(t, 101, res.StatusCode)
	return conn
}

func TestWSRoundtrip(t *testing.T) {
	h := New(NewWSConnFactory())
	// echo packets back to the sender
	h.OnPacket(func(a HubActions, p *Packet) {
		a.Send(p, p.Sender)
	})
	h.Start()
	defer h.Close()

	server := httptest.NewServer(h)
	defer server.Close()

	client := dialTestClient(t, server.URL)
	defer client.Close()

	const nPackets = 10
	for i := 0; i < nPackets; i++ {
		b, err := json.Marshal(testBody{N: i})
		require.NoError(t, err)
		err = client.WriteJSON(&Packet{Type: "echo", Body: b})
		require.NoError(t, err)
	}

	// packets from a single connection are echoed back in order
	for i := 0; i < nPackets; i++ {
		client.SetReadDeadline(time.Now().Add(baseTimeout))
		var p Packet
		err := client.ReadJSON(&p)
		require.NoError(t, err)
		assert.Equal(t, "echo", p.Type)
		var body testBody
		require.NoError(t, json.Unmarshal(p.Body, &body))
		assert.Equal(t, i, body.N)
	}
}

func TestWSClientDisconnectNotifiesHub(t *testing.T) {
	h := New(NewWSConnFactory())
	disconnected := make(chan Conn, 1)
	h.OnDisconnect(func(a HubActions, c Conn) {
		disconnected <- c
	})
	h.Start()
	defer h.Close()

	server := httptest.NewServer(h)
	defer server.Close()

	client := dialTestClient(t, server.URL)
	err := client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.NoError(t, err)
	client.Close()

	select {
	case <-disconnected:
	case <-time.After(baseTimeout):
		require.Fail(t, "timeout waiting for hub to observe disconnect")
	}
}

func TestWSHubCloseSendsCloseFrame(t *testing.T) {
	h := New(NewWSConnFactory())
	connected := make(chan Conn, 1)
	h.OnConnect(func(a HubActions, c Conn) {
		connected <- c
	})
	h.Start()

	server := httptest.NewServer(h)
	defer server.Close()

	client := dialTestClient(t, server.URL)
	defer client.Close()
	<-connected

	h.Close()

	client.SetReadDeadline(time.Now().Add(baseTimeout))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
}
