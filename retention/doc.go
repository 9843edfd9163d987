// Package retention purges soft deleted records once they are older than a
// retention window.
//
// A Pruner walks its targets, usually repositories of soft deleting
// entities, and hard deletes every record removed before now minus the
// window. Each pass can be recorded in the quarry_purge_runs table. A
// Scheduler runs the pruner on a cron schedule:
//
//	users, _ := repository.NewRepository[User](db)
//	pruner := retention.NewPruner(&retention.Config{
//	    RetentionDays: 90,
//	    PruneSchedule: "0 3 * * *", // daily at 3 AM
//	    RecordRuns:    true,
//	}, db, []retention.Target{retention.ForRepository(users)})
//
//	scheduler := retention.NewScheduler(pruner)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//	defer scheduler.Stop()
package retention
