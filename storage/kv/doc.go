// Package kv provides an interface for implementing
// kv drivers that can be used to build more complex storage
// interfaces, such as the tablet metadata store and the
// row storage of a tablet replica.
//
// A kv plugin is a factory for store instances. A store is a
// single sorted map of keys to values. Layers above this one
// carve the key space up using prefixes (see package keys) rather
// than relying on driver-level namespaces, which keeps multi-record
// updates inside a single transaction.
//
//  - Store
//    - r/<tablet id>: <tablet record>
//    - t/<table id>/<tablet id>: <index entry>
//    - m/<table id>: <table record>
//
// Drivers are registered in package plugins. The bbolt driver is
// durable and is what a catalog uses in production. The memory driver
// keeps everything in an ordered tree and is used by tablet replicas
// and tests.
package kv
