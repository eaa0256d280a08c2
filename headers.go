package crossborder

// Transport headers shared by every protocol participant. The hub
// rejects any request missing the shared-secret header; the forward
// header names the directory entry the message relays to.
const (
	// HeaderShared carries the network's shared transport secret.
	HeaderShared = "X-Cbdc"
	// HeaderForwardHost names the host a hub-relayed message is
	// destined for, resolved through the hub's directory.
	HeaderForwardHost = "X-Cbdc-Forward-To-Host"
)
