/*
Package quill drives an iterative writing loop with a language model.

A session starts from material, requirements and scoring criteria. Each iteration
writes (or revises) a draft, asks an evaluator for a 0-100 score with feedback and
key issues, and lets a progress controller decide whether to stop: when the score
reaches the session threshold or the iteration cap is hit.

# Concept

The engine owns the loop and the typed session state. Models, persistence and
observability are ports: any ports.Completer can draft or score, any
ports.SessionStore can persist sessions, and domain.LifecycleHooks receive every
stage, decision and iteration. The same engine backs the CLI, the HTTP API and
the MCP server.

# Usage

	eng, err := quill.New(
		quill.WithCompleter(client),
		quill.WithStore(memory.NewStore()),
		quill.WithDefaults(70, 4),
	)
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Refine(ctx, "", quill.Inputs{
		Material:        notes,
		Requirements:    "A 200-word product update",
		ScoringCriteria: "Accuracy and tone",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Score, res.Draft)
*/
package quill
