package terminal

import "testing"

func TestExtractCWD(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"powershell", "Some output\nPS C:\\Users\\dev\\project>", "C:\\Users\\dev\\project"},
		{"cmd", "Some output\nC:\\Users\\dev\\project>", "C:\\Users\\dev\\project"},
		{"bash", "Some output\ndev@host:/home/dev/project$ ", "/home/dev/project"},
		{"short form tilde", "ls output\n~/projects/app$ ", "~/projects/app"},
		{"no match", "plain output with no prompt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCWD(tt.output)
			if got != tt.want {
				t.Errorf("ExtractCWD(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestCDCommand(t *testing.T) {
	tests := []struct {
		shell string
		dir   string
		want  string
	}{
		{"cmd", `C:\Users\dev\project`, `cd /d "C:\Users\dev\project"` + "\r"},
		{"powershell", `C:\Users\dev\project`, `cd "C:\Users\dev\project"` + "\r"},
		{"bash", "~/projects/app", "cd ~/projects/app\r"},
		{"bash", "~/my projects/app", `cd ~/my\ projects/app` + "\r"},
		{"wsl", "", ""},
	}

	for _, tt := range tests {
		got := CDCommand(tt.shell, tt.dir)
		if got != tt.want {
			t.Errorf("CDCommand(%q, %q) = %q, want %q", tt.shell, tt.dir, got, tt.want)
		}
	}
}
