// Package cli implements the quarry command line. Applications register
// their models with database.RegisterModel and hand their purge targets to
// Execute:
//
//	func main() {
//	    database.RegisterModel((*User)(nil), 1)
//	    cli.Execute(cli.WithPurgeTargets(cli.PurgeTarget[User]()))
//	}
package cli
