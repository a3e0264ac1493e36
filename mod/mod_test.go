package mod

import (
	"sort"
	"testing"

	"github.com/wippyai/modhost/manifest"
	"github.com/wippyai/modhost/moddata"
)

func testRecord() *Record {
	m := &manifest.Manifest{
		Name:       "Alpha",
		UniqueID:   " Some.Alpha ",
		Version:    manifest.MustParseVersion("1.0.0"),
		UpdateKeys: []string{"Nexus:1", "bogus"},
		Dependencies: []manifest.Dependency{
			{UniqueID: "Req.Lib", IsRequired: true},
			{UniqueID: "Opt.Lib", IsRequired: false},
		},
	}
	return NewRecord("Alpha", "/mods", "/mods/Group/Alpha", m, nil, false)
}

func TestRecordIdentity(t *testing.T) {
	r := testRecord()
	if r.ID() != "Some.Alpha" {
		t.Errorf("ID() = %q", r.ID())
	}
	if !r.HasID("some.alpha") {
		t.Errorf("HasID should ignore case and whitespace")
	}
	if r.RelativeDirectoryPath() != "Group/Alpha" {
		t.Errorf("RelativeDirectoryPath = %q", r.RelativeDirectoryPath())
	}
	if r.RelativePathWithRoot() != "mods/Group/Alpha" {
		t.Errorf("RelativePathWithRoot = %q", r.RelativePathWithRoot())
	}
}

func TestRecordDependencies(t *testing.T) {
	r := testRecord()
	req := r.RequiredModIDs(false)
	if len(req) != 1 || req[0] != "req.lib" {
		t.Errorf("RequiredModIDs(false) = %v", req)
	}
	all := r.RequiredModIDs(true)
	sort.Strings(all)
	if len(all) != 2 || all[0] != "opt.lib" {
		t.Errorf("RequiredModIDs(true) = %v", all)
	}
	if !r.HasValidUpdateKeys() || len(r.UpdateKeys(false)) != 2 {
		t.Errorf("update keys = %v", r.UpdateKeys(false))
	}
}

func TestRecordStatus(t *testing.T) {
	r := testRecord()
	r.Fail(FailMissingDependencies, "it requires mods which aren't installed (X).", "detail")
	if !r.Failed() || r.FailReason != FailMissingDependencies || r.ErrorDetails != "detail" {
		t.Errorf("after Fail: %+v", r)
	}
	r.SetStatus(StatusFound, FailNone, "")
	if r.Failed() || r.FailReason != FailNone || r.Error != "" {
		t.Errorf("after reset: %+v", r)
	}
}

func TestRecordWarningsSuppressed(t *testing.T) {
	r := testRecord()
	r.DataRecord = &moddata.VersionedFields{Record: &moddata.Record{SuppressWarnings: WarningPatchesHost}}
	r.SetWarning(WarningPatchesHost | WarningAccessesShell)
	if r.HasWarnings(WarningPatchesHost) {
		t.Errorf("suppressed warning is visible")
	}
	if r.Warnings() != WarningAccessesShell {
		t.Errorf("Warnings() = %v", r.Warnings())
	}
}

func TestDependencyStateMonotonic(t *testing.T) {
	r := testRecord()
	if err := r.SetDependencyState(DependencyChecking); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDependencyState(DependencySorted); err != nil {
		t.Fatal(err)
	}
	if err := r.SetDependencyState(DependencyChecking); err == nil {
		t.Error("moving back to Checking should fail")
	}
	if err := r.SetDependencyState(DependencyFailed); err == nil {
		t.Error("leaving Sorted should fail")
	}
	if err := r.SetDependencyState(DependencySorted); err != nil {
		t.Errorf("repeating Sorted: %v", err)
	}
	if r.DependencyState() != DependencySorted {
		t.Errorf("state = %v, want Sorted", r.DependencyState())
	}

	failed := testRecord()
	if err := failed.SetDependencyState(DependencyFailed); err != nil {
		t.Fatalf("Queued to Failed: %v", err)
	}
	if err := failed.SetDependencyState(DependencySorted); err == nil {
		t.Error("moving back to Sorted should fail")
	}
}
