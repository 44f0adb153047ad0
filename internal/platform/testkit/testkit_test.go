package testkit

import "testing"

func TestMustPanic(t *testing.T) {
	t.Parallel()

	MustPanic(t, func() {
		panic("boom")
	})
}

func TestMustContain(t *testing.T) {
	t.Parallel()

	MustContain(t, "level=info msg=scan-started repo=octo/widgets", "scan-started")
}
