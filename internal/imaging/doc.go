// Package imaging implements the privileged copy-and-verify engine.
//
// The engine runs single-threaded through a strict phase sequence: write the
// source onto the target in adaptively sized chunks, sync, then read the
// target back and compare it byte for byte against the source. Verification
// failures carry the exact offset and the two differing byte values so a
// faulty medium can be told apart from a copy bug. Nothing is retried and no
// partial-write rollback is attempted; once a write has started, any failure
// leaves the target in an unknown state and is reported as such.
package imaging
