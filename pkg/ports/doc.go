/*
Package ports defines the interfaces quill depends on and the ones it offers to hosts.

# Key Interfaces

  - Completer: text completion, implemented by the Anthropic client and the stub completers.
  - SessionStore: persistence of session State (memory, file, redis, sqlite).
  - DistributedLocker: cross-process locking of a session.
  - Refiner: what HTTP, MCP and CLI adapters call into.
*/
package ports
