/*
Package domain contains the core domain models of the quill refinement engine.

It defines the Session State shared by every stage, the progress decision returned
by the controller, the final Result and the lifecycle events. This package is kept
pure and free of external dependencies like I/O or persistence.

# Key Entities

  - State: the mutable key/value snapshot of one session plus write revisions.
  - Progress: the controller verdict (continue or done) with its reason.
  - StageResult: the success/error outcome of a single stage run.
  - Result: the aggregated outcome handed back to the caller.
*/
package domain
