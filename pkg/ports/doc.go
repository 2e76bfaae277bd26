/*
Package ports defines the driven ports (interfaces) of the formflow engine.

These interfaces decouple the runtime from external implementations, allowing
the engine to work with various storage backends and submission transports.

# Key Interfaces

  - KVStore: durable string key-value storage used by the progress store.
  - Submitter: the collaborator that receives a completed answer map.
  - DistributedLocker: serialises writes to the same key across processes.
*/
package ports
