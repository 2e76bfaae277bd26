/*
Package runner drives a form engine from a terminal.

It asks every field of the current step through a Prompter, moves forward when
the step validates, shows the recorded errors and asks again when it does not,
and offers to submit once the last step is complete.

# Key Components

  - Runner: the fill loop over a *formflow.Engine.
  - Prompter: how questions are asked. SurveyPrompter uses interactive
    terminal widgets; PlainPrompter reads plain lines and suits pipes and tests.

# Usage

	r := runner.New(
		runner.WithPrompter(runner.NewSurveyPrompter(os.Stdout)),
		runner.WithRenderer(tui.NewRenderer()),
	)
	eng.Start(ctx)
	defer eng.Stop(ctx)
	if err := r.Run(ctx, eng); err != nil {
		log.Fatal(err)
	}
*/
package runner
