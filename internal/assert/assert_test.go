package assert

import "testing"

func TestThat(t *testing.T) {
	That(true, "never fires")

	defer func() {
		r := recover()
		if Enabled && r == nil {
			t.Fatal("That(false): expected panic with assertions enabled")
		}
		if !Enabled && r != nil {
			t.Fatalf("That(false): unexpected panic with assertions disabled: %v", r)
		}
	}()
	That(false, "value %d", 42)
}
