/*
Package scheduler runs tasks at fixed times, on repeating intervals or on cron
schedules. The tally package uses it to drive periodic report iterations.

Basic Usage:

	s := scheduler.New()
	defer func() { <-s.Stop() }()

	if err := s.Start(); err != nil {
		return err
	}

	task := scheduler.TaskFunc(func(ctx context.Context) error {
		return flush(ctx)
	})

	// Every second
	s.ScheduleRepeating("flush", task, time.Second)

	// Every five seconds, aligned to the wall clock
	s.ScheduleCron("flush-aligned", "0/5 * * * * *", task)

Execution Model:

Tasks run sequentially on the scheduler goroutine. A slow task delays the
tasks behind it instead of running concurrently with the next tick, which is
what periodic flushing needs: two flushes of the same backend never overlap.
Due times are checked every Config.TickInterval (default 50ms), which bounds
scheduling precision.

Cron Expressions:

Expressions carry a leading seconds field:

	"0/5 * * * * *"   - every 5 seconds
	"0 * * * * *"     - at the top of every minute
	"0 30 9 * * 1-5"  - 09:30 on weekdays
	"@every 10s"      - every 10 seconds
	"@hourly"         - at the top of every hour

Error Handling:

Task errors and task panics are passed to Config.OnError. Without a handler
they are logged through Config.Logger. Either way the scheduler keeps running
and the task stays scheduled.

	s := scheduler.NewWithConfig(scheduler.Config{
		OnError: func(id string, err error) {
			log.Printf("task %s: %v", id, err)
		},
	})

Validation failures when scheduling are returned as *errors.ValidationError.
*/
package scheduler
