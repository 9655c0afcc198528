package approval

import "testing"

func TestParse_MinimalPrompt(t *testing.T) {
	info := Parse("Exec approval required\nID: abc-123\nCommand: ls -la\n")
	if info == nil {
		t.Fatal("Parse returned nil for a valid prompt")
	}

	want := Info{
		ID:       "abc-123",
		Command:  "ls -la",
		CWD:      "unknown",
		Host:     "gateway",
		Agent:    "main",
		Security: "allowlist",
		Ask:      "on-miss",
		Expires:  "120s",
	}
	if *info != want {
		t.Errorf("Parse = %+v, want %+v", *info, want)
	}
}

func TestParse_FullPrompt(t *testing.T) {
	text := "⚠️ Exec approval required\n" +
		"ID: 4f9d2c10-8a31-4b6e-9f7d-1c2e3a4b5c6d\n" +
		"Command:\n```bash\nrm -rf /tmp/build\n```\n" +
		"CWD: /home/user/project\n" +
		"Host: worker-2\n" +
		"Agent: ops\n" +
		"Security: full\n" +
		"Ask: always\n" +
		"Expires in: 60s\n"

	info := Parse(text)
	if info == nil {
		t.Fatal("Parse returned nil")
	}

	tests := []struct {
		field string
		got   string
		want  string
	}{
		{"ID", info.ID, "4f9d2c10-8a31-4b6e-9f7d-1c2e3a4b5c6d"},
		{"Command", info.Command, "rm -rf /tmp/build"},
		{"CWD", info.CWD, "/home/user/project"},
		{"Host", info.Host, "worker-2"},
		{"Agent", info.Agent, "ops"},
		{"Security", info.Security, "full"},
		{"Ask", info.Ask, "always"},
		{"Expires", info.Expires, "60s"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, tt.got, tt.want)
		}
	}
}

func TestParse_CommandFencedWithoutLanguage(t *testing.T) {
	text := "exec approval required\nID: aa-bb\nCommand: ```echo hi```"
	info := Parse(text)
	if info == nil {
		t.Fatal("Parse returned nil")
	}
	if info.Command != "echo hi" {
		t.Errorf("Command = %q, want %q", info.Command, "echo hi")
	}
}

func TestParse_MultilineFencedCommand(t *testing.T) {
	text := "Exec Approval Required\nID: 12ab-34cd\nCommand:\n```\ncurl -s https://example.com |\n  jq .name\n```\n"
	info := Parse(text)
	if info == nil {
		t.Fatal("Parse returned nil")
	}
	want := "curl -s https://example.com |\n  jq .name"
	if info.Command != want {
		t.Errorf("Command = %q, want %q", info.Command, want)
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no marker", "ID: abc-123\nCommand: ls"},
		{"marker without id", "Exec approval required\nCommand: ls"},
		{"id not hex", "Exec approval required\nID: @@@@"},
		{"ordinary chat", "sure, sounds good, see you tomorrow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if info := Parse(tt.text); info != nil {
				t.Errorf("Parse(%q) = %+v, want nil", tt.text, info)
			}
		})
	}
}

func TestParse_MissingCommandDefaultsToUnknown(t *testing.T) {
	info := Parse("exec approval required\nID: abc-123\n")
	if info == nil {
		t.Fatal("Parse returned nil")
	}
	if info.Command != "unknown" {
		t.Errorf("Command = %q, want %q", info.Command, "unknown")
	}
}

func TestParse_LabelsCaseInsensitiveAndOrderIndependent(t *testing.T) {
	text := "cwd: /srv\nhost: edge-1\nEXEC APPROVAL REQUIRED\nid: ff-00\n"
	info := Parse(text)
	if info == nil {
		t.Fatal("Parse returned nil")
	}
	if info.CWD != "/srv" {
		t.Errorf("CWD = %q, want %q", info.CWD, "/srv")
	}
	if info.Host != "edge-1" {
		t.Errorf("Host = %q, want %q", info.Host, "edge-1")
	}
}

// Parse must behave as a total function: arbitrary garbage either parses or
// returns nil, it never panics.
func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"exec approval required ID:",
		"exec approval required\nID: -\nCommand: ```",
		"exec approval required\x00\xff\nID: ab",
		"Exec approval required\nID: abc\nExpires in:   \n",
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Parse(%q) panicked: %v", in, r)
				}
			}()
			if info := Parse(in); info != nil && info.ID == "" {
				t.Errorf("Parse(%q) returned non-nil with empty ID", in)
			}
		}()
	}
}
