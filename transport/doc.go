// Package transport contains descriptions of the services exposed
// by a catalog server and implementations of clients and servers
// for different protocols. The catalog itself knows nothing about
// the protocol its callers use. Adding a transport means adding a
// frontend and a client, not touching the catalog.
package transport
