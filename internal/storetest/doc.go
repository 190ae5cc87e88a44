// Package storetest decides which store plugins are re-tested in a run,
// tests them within a budget and merges the fresh records with the ones
// carried over from the previous run.
//
// A run walks the store plugins in listing order starting at an offset.
// SkipPolicy skips plugins installed from git, and plugins whose latest
// index version equals the version of their previous result. Skipped
// plugins do not consume the budget; neither do plugins whose validation
// failed with an error. The merged output follows the listing order and
// drops keys that are no longer listed.
package storetest
