package storage

// Package storage is the durable layer beneath the in-memory stores.
//
// It is a keyed blob store: each key holds one JSON document (the service
// catalog, the job collection, the address book). Collections are small,
// so whole-document load/save is deliberate.
