// Package reconcile turns producer replies into registry writes.
//
// A Correlator registers one handler per inbound channel, decodes each
// envelope into its typed variant, drops envelopes whose project id is no
// longer registered, and hands the rest to a Policy. The Policy decides
// whether a reply changes anything and writes exactly one field group of
// one project when it does:
//
//   - status replies replace Project.Status when the value differs
//   - filesystem replies are parsed and replace Settings.Config
//   - remote replies set Settings.Repository and nothing else
//
// Filesystem and remote merges own disjoint regions of the settings, so
// they commute. Every merge is idempotent.
package reconcile
