// Package exchange implements the key/value protocol that moves
// experiment data between a controller and its measurement workers.
//
// # Protocol
//
// The wire surface is two HTTP methods on arbitrary paths. GET returns
// the broadcast value for the path, or the per-address value for the
// calling client, or 404. POST stores the body under
// "<path>_<clientAddress>" in the received-data store and answers with
// a confirmation naming the key and byte count. A reserved sentinel
// path returns the entire received store; posting to it is rejected.
//
// # Process isolation
//
// The controller never serves requests on its own thread. Manager runs
// the server in a separate OS process (a re-exec of the netmeter
// binary) and, because that process owns a private copy of the store,
// recovers its mutations on Stop by draining it over the protocol
// itself: a loopback GET of the reserved key, a bounded join, then a
// merge into the controller's store. The drain is the only
// synchronization point between the two address spaces.
//
// # Usage
//
//	store := exchange.NewStore()
//	mgr := exchange.NewManager(store, cfg.DataAddr())
//	_ = mgr.AddData(ctx, inputs, "client_data_key", "")
//	_ = mgr.Start(ctx)
//	// ... workers Recv/Send against the server ...
//	_ = mgr.Stop(ctx)
//	results := mgr.Results()
package exchange
