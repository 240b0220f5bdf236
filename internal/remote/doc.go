// Package remote provides the key-value synchronization service that saved
// searches are mirrored to, and the two ways of reaching it.
//
// # Hub
//
// Hub is the service itself: a last-writer-wins map of keys to values with
// an optional durable copy in a store.Blobs under the kv/ prefix. Every
// write is fanned out to the subscribed devices as a one-change batch. The
// device that made the write receives it with favorites.ReasonLocalEcho and
// every other device receives favorites.ReasonServerChange. A device that
// asks for a sync receives one favorites.ReasonInitialSync batch holding
// every key.
//
// # Device and Client
//
// Device is an in-process favorites.Remote bound directly to a Hub. Client
// is a favorites.Remote that talks to a Hub through Handler over a
// websocket:
//
//	hub := remote.NewHub(logger)
//	mux.Handle("/sync", remote.NewHandler(hub, logger))
//
//	client, err := remote.Dial(ctx, remote.ClientOptions{URL: "ws://host/sync"})
//
// Frames are JSON objects with a type of set, remove, get or sync from the
// client and value, ack, error or batch from the server. Requests carry an
// id that the reply echoes. Batches carry their own id and the client drops
// any batch id it has already seen.
package remote
