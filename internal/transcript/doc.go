// Package transcript captures the raw output of a 7-Zip run so it can be
// stored and classified again later.
//
// A Recorder taps the chunks the runner feeds into a session. The finished
// Transcript is serialized with deterministic CBOR, compressed with zstd or
// LZ4 and sealed with a BLAKE3 digest of the uncompressed bytes. Replay feeds
// a decoded transcript through a fresh session in the original chunk order,
// which reproduces the events of the live run exactly.
package transcript
