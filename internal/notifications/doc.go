// Package notifications delivers daemon events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and degrades to a no-op when no topic is set. FailureReporter plugs into the
// reconciler so deletion failures and incomplete wipes reach the user without
// them watching the daemon log.
package notifications
