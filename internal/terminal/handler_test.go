package terminal

import "testing"

func TestCommandForShellKinds(t *testing.T) {
	tests := []struct {
		shell      string
		wantBin    string
		wantArgLen int
	}{
		{"cmd", "cmd.exe", 0},
		{"powershell", "powershell.exe", 1},
		{"wsl", "wsl.exe", 0},
		{"zsh", "zsh", 0},
		{"bash", "bash", 0},
		{"", "bash", 0},
	}

	for _, tt := range tests {
		bin, args := commandFor(tt.shell, "", "")
		if bin != tt.wantBin {
			t.Errorf("commandFor(%q) bin = %q, want %q", tt.shell, bin, tt.wantBin)
		}
		if len(args) != tt.wantArgLen {
			t.Errorf("commandFor(%q) args = %v, want len %d", tt.shell, args, tt.wantArgLen)
		}
	}
}

func TestCommandForWSLWithDistroAndHome(t *testing.T) {
	bin, args := commandFor("wsl", "Ubuntu-24.04", "/home/dev")
	if bin != "wsl.exe" {
		t.Fatalf("expected wsl.exe, got %q", bin)
	}
	want := []string{"-d", "Ubuntu-24.04", "--cd", "/home/dev"}
	if len(args) != len(want) {
		t.Fatalf("commandFor args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("commandFor args = %v, want %v", args, want)
		}
	}
}

func TestCloseCodeConstantsAreDistinct(t *testing.T) {
	codes := map[int]string{
		CloseNormal:    "normal",
		CloseShellExit: "shell-exit",
		CloseTimeout:   "timeout",
		CloseReadError: "read-error",
	}
	if len(codes) != 4 {
		t.Fatalf("expected 4 distinct close codes, got %d", len(codes))
	}
}
