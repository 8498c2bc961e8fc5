// Package reviewworkflow implements the architectural-review governance
// workflow inside the governance context.
//
// The module owns status transition validation for the legacy single-reviewer
// and multi-stage voting workflows, majority-vote tallying, deadline-driven
// auto-approval sweeps, and the decision of whom to notify after workflow
// events. Storage, identity and delivery stay behind ports; every status write
// is a compare-and-swap on the expected prior status.
package reviewworkflow
