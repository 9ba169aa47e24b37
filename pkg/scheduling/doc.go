/*
Package scheduling provides the time-based task execution gotally uses to run
report iterations.

  - scheduler: one-shot, repeating and cron tasks run on a single goroutine

A root scope with a report interval and no scheduler of its own starts a
private scheduler; several scopes can share one by passing it in
tally.ScopeOptions:

	s := scheduler.New()
	if err := s.Start(); err != nil {
		return err
	}
	defer func() { <-s.Stop() }()

	scope, err := tally.NewRootScope(tally.ScopeOptions{
		Reporter:   reporter,
		ReportCron: "0/10 * * * * *",
		Scheduler:  s,
	})

See the scheduler package for the execution model.
*/
package scheduling
