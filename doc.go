/*
Package formflow is a form runtime engine: it takes an ordered list of typed
field definitions and drives a respondent through it.

# Concept

A form is split into steps at every pageBreak field. The engine derives one
validator per field type, gates forward navigation on the validity of the
current step, persists in-progress answers to a key-value store so a session
can be recovered, and runs a guarded submission pipeline that calls a
host-provided Submitter at most once at a time.

# Key Features

  - Typed field registry: every field type maps to an answer shape and a rule.
  - Step navigation: visited, completed and errored flags per step, with a
    rule that forbids skipping ahead into unvalidated steps.
  - Recovery: snapshots are saved on a timer, after navigation and on Stop,
    and expire after 7 days.
  - Pluggable storage: memory, file, Redis and SQLite stores, optionally
    encrypted at rest.

# Usage

	def, err := loader.LoadFile("signup.yaml")
	if err != nil {
		log.Fatal(err)
	}

	eng, err := formflow.New(def,
		formflow.WithStore(file.New(".formflow/progress")),
		formflow.WithSubmitter(ports.SubmitFunc(send)),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	eng.Start(ctx)
	defer eng.Stop(ctx)

	_ = eng.SetValue("email", "ada@example.com")
	if out := eng.Next(ctx); out.AtLastStep {
		eng.Submit(ctx)
	}
*/
package formflow
