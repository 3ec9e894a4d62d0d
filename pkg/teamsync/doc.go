// Package teamsync provides the shared state behind a field-team coordination
// service: a registry holding the latest reported position of every team
// member, and a validated store for the images and auxiliary files the team
// uploads.
//
// The two components are independent. Both are built once at startup and are
// safe for concurrent use by any number of request handlers.
//
// Position Registry
//
// PositionRegistry keeps exactly one PositionRecord per client identifier.
// Every accepted report fully replaces the previous record for that client;
// the client-supplied timestamp is carried but never compared, so the last
// report to arrive wins.
//
// Asset Store
//
// AssetStore validates uploaded file names against a fixed extension
// allow-set, routes each upload to the image or file namespace based on its
// declared content type, and persists the bytes through a pluggable BlobStore
// (filesystem, memory, or S3 under the storage subpackages). Backends publish
// writes atomically, so a reader observes either the previous or the new
// bytes of an asset, never a mix.
package teamsync
