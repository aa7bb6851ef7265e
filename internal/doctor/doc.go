// Package doctor runs read-only diagnostics against an autobackup
// installation: the settings, the workstation file, every source path, the
// destination roots, the schedule and the history directory.
//
// Checks share a [Target] so the workstation file is parsed once:
//
//	target := doctor.NewTarget(settings)
//	report := doctor.Standard(target, time.Now()).Run(ctx)
//	if report.HasErrors() { ... }
//
// Checks run concurrently, each bounded by [Runner.Timeout], and are
// reported in registration order.
//
// Nothing here writes outside a short-lived probe file created and removed
// in each destination root.
package doctor
