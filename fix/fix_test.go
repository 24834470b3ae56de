package fix

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSanitizeCommand(t *testing.T) {
	f := New(DefaultRules())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "corrects wrong package name",
			in:   "npm install @lucide/react",
			want: "npm install lucide-react",
		},
		{
			name: "strips nonexistent package",
			in:   "npm install fs lucide-react",
			want: "npm install lucide-react",
		},
		{
			name: "preserves version suffix",
			in:   "npm i @lucide/react@0.4.0",
			want: "npm i lucide-react@0.4.0",
		},
		{
			name: "preserves flags",
			in:   "pnpm add --save-dev shadcn-ui",
			want: "pnpm add --save-dev shadcn",
		},
		{
			name: "yarn add",
			in:   "yarn add react-router",
			want: "yarn add react-router-dom",
		},
		{
			name: "non-install command untouched",
			in:   "npm run build",
			want: "npm run build",
		},
		{
			name: "no verb untouched",
			in:   "echo @lucide/react",
			want: "echo @lucide/react",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.SanitizeCommand(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := f.SanitizeCommand(got); again != got {
				t.Errorf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestFindMissingPackage(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
		ok     bool
	}{
		{
			name:   "registry URL form",
			output: "npm ERR! 404 Not Found - GET https://registry.npmjs.org/@lucide%2freact",
			want:   "@lucide/react",
			ok:     true,
		},
		{
			name:   "quoted form",
			output: "npm ERR! 404  '@lucide/react@latest' is not in this registry.",
			want:   "@lucide/react",
			ok:     true,
		},
		{
			name:   "unrelated failure",
			output: "npm ERR! EACCES permission denied",
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindMissingPackage(tt.output)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("package = %q, want %q", got, tt.want)
			}
		})
	}
}

func decodeManifest(t *testing.T, content string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		t.Fatalf("repaired manifest does not parse: %v\n%s", err, content)
	}
	return m
}

func section(m map[string]any, name string) map[string]any {
	s, _ := m[name].(map[string]any)
	return s
}

func TestRepairManifest_RemovesDisallowedFramework(t *testing.T) {
	f := New(DefaultRules())

	in := `{
  "name": "demo",
  "dependencies": {
    "next": "^14.0.0",
    "react": "^18.2.0"
  },
  "scripts": {
    "dev": "next dev",
    "build": "next build",
    "start": "next start"
  }
}`

	result := f.RepairManifest(in)
	if !result.Changed || !result.FrameworkRemoved {
		t.Fatalf("expected changed framework removal, got %+v", result)
	}

	m := decodeManifest(t, result.Content)
	deps := section(m, "dependencies")
	if _, ok := deps["next"]; ok {
		t.Error("next was not removed")
	}
	for _, want := range []string{"react", "react-dom"} {
		if _, ok := deps[want]; !ok {
			t.Errorf("dependency %q missing", want)
		}
	}
	devDeps := section(m, "devDependencies")
	for _, want := range []string{"vite", "@vitejs/plugin-react"} {
		if _, ok := devDeps[want]; !ok {
			t.Errorf("devDependency %q missing", want)
		}
	}
	scripts := section(m, "scripts")
	if scripts["dev"] != "vite" || scripts["build"] != "vite build" || scripts["start"] != "vite" {
		t.Errorf("scripts not normalized: %v", scripts)
	}
}

func TestRepairManifest_CorrectionsAndRemovals(t *testing.T) {
	f := New(DefaultRules())

	in := `{"dependencies": {"@lucide/react": "^0.4.0", "fs": "0.0.1", "react": "^18.3.1"}}`
	result := f.RepairManifest(in)
	if !result.Changed {
		t.Fatal("expected a change")
	}
	if result.FrameworkRemoved {
		t.Error("no framework present, flag must stay false")
	}

	deps := section(decodeManifest(t, result.Content), "dependencies")
	if _, ok := deps["@lucide/react"]; ok {
		t.Error("wrong identifier not corrected")
	}
	if deps["lucide-react"] != "^0.4.0" {
		t.Errorf("corrected identifier lost version: %v", deps["lucide-react"])
	}
	if _, ok := deps["fs"]; ok {
		t.Error("builtin not removed")
	}
}

func TestRepairManifest_TruncatedInput(t *testing.T) {
	f := New(DefaultRules())

	in := `{
  "name": "demo",
  "dependencies": {
    "react": "^18.3.1",
    "react-dom": "^18.3`

	result := f.RepairManifest(in)
	if !result.TruncationRepaired {
		t.Fatalf("expected truncation repair, got %+v", result)
	}

	deps := section(decodeManifest(t, result.Content), "dependencies")
	if deps["react"] != "^18.3.1" {
		t.Errorf("complete pair lost: %v", deps)
	}
	if _, ok := deps["react-dom"]; ok {
		t.Error("incomplete pair must be dropped")
	}
}

func TestRepairManifest_UnrepairableReturnsInput(t *testing.T) {
	f := New(DefaultRules())

	in := "not json at all"
	result := f.RepairManifest(in)
	if result.Changed || result.Content != in {
		t.Errorf("unrepairable input must pass through untouched, got %+v", result)
	}
}

func TestRepairManifest_Idempotent(t *testing.T) {
	f := New(DefaultRules())

	in := `{"dependencies": {"next": "^14.0.0", "react": "^18.2.0"}}`
	first := f.RepairManifest(in)
	second := f.RepairManifest(first.Content)
	if second.Content != first.Content {
		t.Errorf("second repair changed output:\n%s\nvs\n%s", first.Content, second.Content)
	}
}

func TestRepairViteConfig(t *testing.T) {
	f := New(DefaultRules())

	t.Run("wires missing plugin", func(t *testing.T) {
		in := "import { defineConfig } from 'vite';\n\nexport default defineConfig({\n  plugins: [],\n});\n"
		got := f.RepairViteConfig(in)
		if !strings.Contains(got, "import react from '@vitejs/plugin-react'") {
			t.Errorf("plugin import missing:\n%s", got)
		}
		if !strings.Contains(got, "plugins: [react(), ]") {
			t.Errorf("plugin not wired:\n%s", got)
		}
		if again := f.RepairViteConfig(got); again != got {
			t.Errorf("not idempotent:\n%s", again)
		}
	})

	t.Run("already wired untouched", func(t *testing.T) {
		in := "import react from '@vitejs/plugin-react';\nexport default { plugins: [react()] };\n"
		if got := f.RepairViteConfig(in); got != in {
			t.Errorf("config with plugin modified:\n%s", got)
		}
	})

	t.Run("adds only the import when call already wired", func(t *testing.T) {
		in := "import { defineConfig } from 'vite';\n\nexport default defineConfig({\n  plugins: [react()],\n});\n"
		got := f.RepairViteConfig(in)
		if !strings.Contains(got, "import react from '@vitejs/plugin-react'") {
			t.Errorf("plugin import missing:\n%s", got)
		}
		if strings.Count(got, "react()") != 1 {
			t.Errorf("plugin call duplicated:\n%s", got)
		}
	})

	t.Run("converts require to import", func(t *testing.T) {
		in := "const react = require('@vitejs/plugin-react');\nexport default { plugins: [react()] };\n"
		got := f.RepairViteConfig(in)
		if !strings.Contains(got, "import react from '@vitejs/plugin-react';") {
			t.Errorf("require not converted:\n%s", got)
		}
	})
}

func TestRepairTailwindConfig(t *testing.T) {
	f := New(DefaultRules())

	in := "import tailwindcss from 'tailwindcss';\n" +
		"export default {\n" +
		"  content: ['./src/**/*.tsx'],\n" +
		"  plugins: [require('@tailwindcss/forms')],\n" +
		"};\n"

	result := f.RepairTailwindConfig("tailwind.config.js", in)
	if !result.Changed {
		t.Fatal("expected a change")
	}
	if result.Rename != "tailwind.config.cjs" {
		t.Errorf("rename = %q, want tailwind.config.cjs", result.Rename)
	}
	if strings.Contains(result.Content, "from 'tailwindcss'") {
		t.Error("invalid self-import not stripped")
	}
	if !strings.Contains(result.Content, "module.exports = {") {
		t.Error("export convention not converted")
	}
	if !strings.Contains(result.Content, "optionalPlugin('@tailwindcss/forms')") {
		t.Error("plugin reference not guarded")
	}
	if !strings.Contains(result.Content, "function optionalPlugin(name)") {
		t.Error("guard helper not emitted")
	}

	second := f.RepairTailwindConfig(result.Rename, result.Content)
	if second.Content != result.Content || second.Rename != "" {
		t.Errorf("second repair not stable: %+v", second)
	}
}

func TestRepairSource(t *testing.T) {
	f := New(DefaultRules())

	t.Run("corrects import specifier", func(t *testing.T) {
		in := "import { Menu } from '@lucide/react';\n"
		got := f.RepairSource(in)
		if !strings.Contains(got, "from 'lucide-react'") {
			t.Errorf("specifier not corrected: %s", got)
		}
	})

	t.Run("appends fetch handler", func(t *testing.T) {
		in := "fetch('/api/items').then((r) => r.json()).then(setItems);\n"
		got := f.RepairSource(in)
		if !strings.Contains(got, ".catch(() => {})") {
			t.Errorf("no-op handler not appended: %s", got)
		}
		if again := f.RepairSource(got); again != got {
			t.Errorf("not idempotent: %s", again)
		}
	})

	t.Run("existing handler untouched", func(t *testing.T) {
		in := "fetch('/api').then((r) => r.json()).catch(console.error);\n"
		if got := f.RepairSource(in); got != in {
			t.Errorf("handled fetch modified: %s", got)
		}
	})
}

func TestForPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"package.json", KindManifest},
		{"app/package.json", KindManifest},
		{"vite.config.ts", KindViteConfig},
		{"tailwind.config.js", KindTailwindConfig},
		{"src/App.tsx", KindSource},
		{"src/util.mjs", KindSource},
		{"README.md", KindNone},
		{"styles.css", KindNone},
	}
	for _, tt := range tests {
		if got := ForPath(tt.path); got != tt.want {
			t.Errorf("ForPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
