// Package rewrite inspects and rewrites a mod binary before it is admitted.
//
// A Pipeline first retargets imports of legacy platform modules (see package
// platform), then visits every import and every instruction once with a fixed
// list of handlers:
//
//	HostFacadeRewriter        renamed legacy host functions
//	LegacyLogRewriter         modhost.log_info/log_warn/log_error to modhost.log
//	MissingImportFinder       host functions that don't exist
//	UnexpectedSignatureFinder host functions whose signature changed
//	ImportFinder              host patching, serializer and unvalidated hooks
//	console/filesystem/shell  paranoid mode only
//
// Handlers raise Outcome flags. The pipeline turns them into log lines and
// record warnings; the caller decides whether NotCompatible findings abort
// the load.
package rewrite
