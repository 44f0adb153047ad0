package version

import "testing"

func TestInfo_DefaultsAreServeable(t *testing.T) {
	t.Parallel()

	bi := Info()

	if bi.Service != "dupehound-server" {
		t.Fatalf("Service = %q", bi.Service)
	}
	if bi.Version != "dev" {
		t.Fatalf("Version = %q, want dev outside ldflags builds", bi.Version)
	}
	// commit and date come from ldflags, the vcs stamp, or the fallbacks;
	// the endpoint should never serve empty strings
	if bi.Commit == "" || bi.Date == "" {
		t.Fatalf("empty commit or date: %+v", bi)
	}
}
