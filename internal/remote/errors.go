// ABOUTME: Sentinel errors for the hub, websocket client and connection state
// ABOUTME: Callers match them with errors.Is

package remote

import "errors"

var (
	// ErrHubClosed is returned when subscribing to a hub that has shut down.
	ErrHubClosed = errors.New("hub closed")

	// ErrClientClosed is returned by calls made after Client.Close.
	ErrClientClosed = errors.New("client closed")

	// ErrNotConnected is returned when the websocket connection has dropped.
	ErrNotConnected = errors.New("not connected to sync server")
)
