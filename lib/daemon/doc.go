// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements the secret-keeper daemon mediator: a
// Unix-socket server that holds a decrypted secret map in memory,
// filters and runs exec requests against it, and mediates all access
// so that a client process never sees the vault's master key or its
// raw ciphertext.
//
// One request is served per connection: read a JSON object, process
// it, write exactly one JSON response, close. Command execution holds
// no global lock — many exec requests may run concurrently — but the
// in-memory secret map and its [scrub.Scrubber] are swapped as a
// single atomic unit whenever a rotation completes, so no request ever
// observes a mix of two epochs.
package daemon
