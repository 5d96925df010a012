/*
Package cbforest implements the core of a versioned-document storage
engine on top of an append-only key-value store.

A Database is a handle onto one store file. It serves point lookups by
key, by sequence and by opaque offset, and three kinds of enumeration
(key range, sequence range, explicit docID set). All writes go through a
Transaction, which is exclusive per file: beginning a second transaction
on the same path blocks until the first ends, no matter how many
Database handles are open on it. A Transaction commits if any write
succeeded, rolls back to its start sequence if any write failed, and
always releases the file on Close.

Document bodies are opaque to the store. The expected convention is the
compact value encoding implemented by the cve subpackage, which supports
zero-copy navigation, hash-indexed dict lookup and string interning, but
any byte payload works.

# Technical Details

**Sequences.**
The backing store assigns a strictly increasing sequence number to every
write in a file. Deletes are tombstone writes and consume sequences like
any other write. Rollback reverts the file to the state as of a given
sequence.

**Backing store.**
Persistence lives behind the Store interface. The production
implementation keeps records in Bolt, one msgpack envelope per sequence,
with per-key version chains that make rollback and snapshot reads walks
rather than scans. An in-memory implementation with the same semantics
backs the tests.

**File registry.**
Transaction exclusion is coordinated by a process-wide registry of
per-path entries, created lazily and kept for the process lifetime.
*/
package cbforest
