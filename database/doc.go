// Package database owns the bun connection of a process: configuration
// loading (viper, .env, hot reload), the connection manager for mysql,
// postgres and sqlite, query log, slow query and prometheus hooks,
// migrations of registered models, relation derived foreign keys, SQL seed
// files, the logger facade and driver error classification.
package database
