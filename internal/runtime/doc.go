/*
Package runtime is the core of quill.

One iteration is always Draft, then Scoring, then a progress check. The loop runs
strictly sequentially for a session and stops on the first DONE decision, or at the
iteration cap. Finalize turns the terminal state into a domain.Result.

The engine never holds session state itself: callers pass a *state.Store and get the
same store back.
*/
package runtime
