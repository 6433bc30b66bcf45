package irrigation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartEndpointRequiresDeviceID(t *testing.T) {
	p, _, _, _ := newTestProtocol(t, 30*time.Millisecond)
	srv := httptest.NewServer(NewHTTPMux(p))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/irrigation/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartEndpointMapsTimeoutTo504(t *testing.T) {
	p, _, _, _ := newTestProtocol(t, 30*time.Millisecond)
	srv := httptest.NewServer(NewHTTPMux(p))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/irrigation/start?device_id=Strawberry", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "TIMED_OUT", body["state"])
}

func TestStartEndpointConfirmedIs200(t *testing.T) {
	p, commands, _, _ := newTestProtocol(t, time.Second)
	srv := httptest.NewServer(NewHTTPMux(p))
	defer srv.Close()

	go func() {
		for commands.count() == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		_ = p.HandleConfirmation("", confirmation(t, "Strawberry", "done"))
	}()

	resp, err := http.Post(srv.URL+"/irrigation/start?device_id=Strawberry", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "CONFIRMED", body["state"])
}

func TestStartEndpointRejectsConcurrentAttempt(t *testing.T) {
	p, commands, _, _ := newTestProtocol(t, time.Second)
	srv := httptest.NewServer(NewHTTPMux(p))
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.Run(context.Background(), "Strawberry")
	}()
	require.Eventually(t, func() bool { return commands.count() == 1 },
		time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/irrigation/start?device_id=Strawberry", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, p.HandleConfirmation("", confirmation(t, "Strawberry", "done")))
	<-done
}

func TestStartEndpointOnlyAcceptsPost(t *testing.T) {
	p, _, _, _ := newTestProtocol(t, 30*time.Millisecond)
	srv := httptest.NewServer(NewHTTPMux(p))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/irrigation/start?device_id=Strawberry")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
