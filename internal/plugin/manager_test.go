package plugin

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeInstaller records Ensure and FlushManifest calls.
type fakeInstaller struct {
	mu      sync.Mutex
	ensured [][]string
	flushes int
	err     error
}

func (f *fakeInstaller) Ensure(_ context.Context, reqs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ensured = append(f.ensured, reqs)
	return nil
}

func (f *fakeInstaller) FlushManifest() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

type managerFixture struct {
	manager   *Manager
	settings  *memSettings
	installer *fakeInstaller
	system    string
	user      string
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		settings:  newMemSettings(),
		installer: &fakeInstaller{},
		system:    t.TempDir(),
		user:      t.TempDir(),
	}
	f.manager = NewManager(ManagerConfig{
		Loader:    NewLoader(f.system, f.user, nil),
		Installer: f.installer,
		Settings:  f.settings,
		App:       map[string]any{"version": "test"},
	})
	t.Cleanup(f.manager.UnloadAll)
	return f
}

const minimalPlugin = `function describe() return {} end`

func TestManagerLoadPlugin(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "word-count", `
		function describe()
			return { name = "Word Count", version = "1.0.0", category = "statistics" }
		end
	`)

	if !f.manager.LoadPlugin(context.Background(), "word-count") {
		t.Fatal("LoadPlugin() = false, want true")
	}
	if !f.manager.IsLoaded("word-count") {
		t.Error("IsLoaded() = false after load")
	}
	if f.manager.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.manager.Count())
	}

	host, ok := f.manager.Get("word-count")
	if !ok {
		t.Fatal("Get() did not find loaded plugin")
	}
	if !host.State().IsLoaded() {
		t.Errorf("State() = %v, want a loaded state", host.State())
	}
	if got := host.Descriptor().Name; got != "Word Count" {
		t.Errorf("Name = %q", got)
	}
}

func TestManagerLoadPluginIdempotent(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "solo", minimalPlugin)

	ctx := context.Background()
	if !f.manager.LoadPlugin(ctx, "solo") {
		t.Fatal("first LoadPlugin() failed")
	}
	if !f.manager.LoadPlugin(ctx, "solo") {
		t.Error("second LoadPlugin() = false, want idempotent true")
	}
	if f.manager.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.manager.Count())
	}
}

func TestManagerLoadPluginMissing(t *testing.T) {
	f := newManagerFixture(t)
	if f.manager.LoadPlugin(context.Background(), "ghost") {
		t.Error("LoadPlugin() = true for a plugin that does not exist")
	}
}

func TestManagerLoadFailureLeavesNoTrace(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "faulty", `
		function describe() return {} end
		function initialize(app) error("boom") end
		function events()
			return { ["document.saved"] = function() end }
		end
	`)

	if f.manager.LoadPlugin(context.Background(), "faulty") {
		t.Fatal("LoadPlugin() = true for plugin whose initialize fails")
	}
	if f.manager.IsLoaded("faulty") {
		t.Error("failed plugin is in the registry")
	}
	f.manager.mu.RLock()
	defer f.manager.mu.RUnlock()
	if len(f.manager.listeners) != 0 {
		t.Error("failed plugin left listeners behind")
	}
}

func TestManagerRequires(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "extension", `
		function describe()
			return { requires = {"base"} }
		end
	`)

	ctx := context.Background()
	if f.manager.LoadPlugin(ctx, "extension") {
		t.Error("LoadPlugin() = true with unmet requirement")
	}

	writeDirPlugin(t, f.system, "base", minimalPlugin)
	if !f.manager.LoadPlugin(ctx, "base") {
		t.Fatal("LoadPlugin(base) failed")
	}
	if !f.manager.LoadPlugin(ctx, "extension") {
		t.Error("LoadPlugin(extension) = false with requirement satisfied")
	}
}

func TestManagerLoadAll(t *testing.T) {
	f := newManagerFixture(t)
	// "a-base" sorts before "b-ext", letting a same-pass requirement
	// resolve through discovery order.
	writeDirPlugin(t, f.system, "a-base", minimalPlugin)
	writeDirPlugin(t, f.system, "b-ext", `
		function describe() return { requires = {"a-base"} } end
	`)
	writeDirPlugin(t, f.system, "broken", `function describe( return`)

	n := f.manager.LoadAllPlugins(context.Background())
	if n != 2 {
		t.Errorf("LoadAllPlugins() = %d, want 2", n)
	}
	if !f.manager.IsLoaded("a-base") || !f.manager.IsLoaded("b-ext") {
		t.Error("expected both well-formed plugins loaded")
	}
	if f.manager.IsLoaded("broken") {
		t.Error("broken plugin should not load")
	}

	f.installer.mu.Lock()
	flushes := f.installer.flushes
	f.installer.mu.Unlock()
	if flushes != 1 {
		t.Errorf("manifest flushed %d times, want once per pass", flushes)
	}
}

func TestManagerLoadAllSkipsDisabled(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "wanted", minimalPlugin)
	writeDirPlugin(t, f.system, "unwanted", minimalPlugin)
	if err := f.settings.SetPluginEnabled("unwanted", false); err != nil {
		t.Fatal(err)
	}

	if n := f.manager.LoadAllPlugins(context.Background()); n != 1 {
		t.Errorf("LoadAllPlugins() = %d, want 1", n)
	}
	if f.manager.IsLoaded("unwanted") {
		t.Error("disabled plugin was loaded")
	}
}

func TestManagerPackagesInstalled(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "fancy", `
		function describe() return { packages = {"lpeg", "lunajson>=1.2"} } end
	`)

	if !f.manager.LoadPlugin(context.Background(), "fancy") {
		t.Fatal("LoadPlugin() failed")
	}
	f.installer.mu.Lock()
	defer f.installer.mu.Unlock()
	if len(f.installer.ensured) != 1 || len(f.installer.ensured[0]) != 2 {
		t.Errorf("Ensure() calls = %v", f.installer.ensured)
	}
}

func TestManagerPackageInstallFailureAborts(t *testing.T) {
	f := newManagerFixture(t)
	f.installer.err = context.DeadlineExceeded
	writeDirPlugin(t, f.system, "fancy", `
		function describe() return { packages = {"lpeg"} } end
	`)

	if f.manager.LoadPlugin(context.Background(), "fancy") {
		t.Error("LoadPlugin() = true when package install fails")
	}
	if f.manager.IsLoaded("fancy") {
		t.Error("plugin registered despite install failure")
	}
}

func TestManagerUnloadPlugin(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "tidy", `
		function describe() return {} end
		function cleanup() mgit.set_setting("cleaned", true) end
		function events()
			return { ["document.saved"] = function() end }
		end
		function hooks()
			return { ["document.render"] = function(v) return v end }
		end
	`)

	ctx := context.Background()
	if !f.manager.LoadPlugin(ctx, "tidy") {
		t.Fatal("LoadPlugin() failed")
	}
	if !f.manager.UnloadPlugin("tidy") {
		t.Fatal("UnloadPlugin() = false, want true")
	}
	if f.manager.IsLoaded("tidy") {
		t.Error("plugin still loaded after unload")
	}
	if v, _ := f.settings.PluginSetting("tidy", "cleaned"); v != true {
		t.Error("cleanup() did not run during unload")
	}

	f.manager.mu.RLock()
	listeners, hooks := len(f.manager.listeners), len(f.manager.hooks)
	f.manager.mu.RUnlock()
	if listeners != 0 || hooks != 0 {
		t.Errorf("unload left %d listener and %d hook entries", listeners, hooks)
	}

	if f.manager.UnloadPlugin("tidy") {
		t.Error("second UnloadPlugin() = true, want false")
	}
}

func TestManagerReloadPicksUpChanges(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "mutable", `
		function describe() return { version = "1.0.0" } end
	`)

	ctx := context.Background()
	if !f.manager.LoadPlugin(ctx, "mutable") {
		t.Fatal("LoadPlugin() failed")
	}

	writeDirPlugin(t, f.system, "mutable", `
		function describe() return { version = "2.0.0" } end
	`)
	if !f.manager.ReloadPlugin(ctx, "mutable") {
		t.Fatal("ReloadPlugin() failed")
	}
	host, _ := f.manager.Get("mutable")
	if got := host.Descriptor().Version; got != "2.0.0" {
		t.Errorf("Version after reload = %q, want 2.0.0", got)
	}
}

func TestManagerEnableDisable(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "toggle", `
		function describe() return {} end
		function events()
			return { ["document.saved"] = function() mgit.set_setting("saw_save", true) end }
		end
	`)

	ctx := context.Background()
	if !f.manager.LoadPlugin(ctx, "toggle") {
		t.Fatal("LoadPlugin() failed")
	}

	if err := f.manager.DisablePlugin("toggle"); err != nil {
		t.Fatalf("DisablePlugin() error = %v", err)
	}
	if f.settings.IsPluginEnabled("toggle") {
		t.Error("disabled flag not persisted")
	}
	if !f.manager.IsLoaded("toggle") {
		t.Error("disable unloaded the plugin")
	}
	host, _ := f.manager.Get("toggle")
	if host.State() != StateDisabled {
		t.Errorf("State() = %v, want %v", host.State(), StateDisabled)
	}

	if err := f.manager.EnablePlugin("toggle"); err != nil {
		t.Fatalf("EnablePlugin() error = %v", err)
	}
	if !f.settings.IsPluginEnabled("toggle") {
		t.Error("enabled flag not persisted")
	}
	if host.State() != StateEnabled {
		t.Errorf("State() = %v, want %v", host.State(), StateEnabled)
	}
}

func TestManagerEnableUnloadedPluginOnlyFlipsFlag(t *testing.T) {
	f := newManagerFixture(t)
	if err := f.settings.SetPluginEnabled("future", false); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.EnablePlugin("future"); err != nil {
		t.Fatalf("EnablePlugin() error = %v", err)
	}
	if !f.settings.IsPluginEnabled("future") {
		t.Error("flag not flipped for unloaded plugin")
	}
	if f.manager.IsLoaded("future") {
		t.Error("enable should not load the plugin")
	}
}

func TestManagerEventDispatchIsolation(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "angry", `
		function describe() return {} end
		function events()
			return { ["document.saved"] = function() error("listener exploded") end }
		end
	`)
	writeDirPlugin(t, f.system, "calm", `
		function describe() return {} end
		function events()
			return { ["document.saved"] = function(payload) mgit.set_setting("got", payload.path) end }
		end
	`)

	f.manager.LoadAllPlugins(context.Background())
	f.manager.TriggerEvent(EventDocumentSaved, map[string]any{"path": "/n/a.md"})

	if v, _ := f.settings.PluginSetting("calm", "got"); v != "/n/a.md" {
		t.Errorf("surviving listener did not run: %v", v)
	}
}

func TestManagerHookFoldContinuesPastFailure(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "a-upper", `
		function describe() return {} end
		function hooks()
			return { ["document.render"] = function(v) return string.upper(v) end }
		end
	`)
	writeDirPlugin(t, f.system, "b-bad", `
		function describe() return {} end
		function hooks()
			return { ["document.render"] = function(v) error("no thanks") end }
		end
	`)
	writeDirPlugin(t, f.system, "c-bang", `
		function describe() return {} end
		function hooks()
			return { ["document.render"] = function(v) return v .. "!" end }
		end
	`)

	f.manager.LoadAllPlugins(context.Background())
	got := f.manager.ApplyHook(HookDocumentRender, "hello", nil)
	if got != "HELLO!" {
		t.Errorf("ApplyHook() = %v, want %q", got, "HELLO!")
	}
}

func TestManagerPluginEmit(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "a-receiver", `
		function describe() return {} end
		function events()
			return { ["custom.ping"] = function(payload) mgit.set_setting("pinged", payload.from) end }
		end
	`)
	writeDirPlugin(t, f.system, "b-sender", `
		function describe() return {} end
		function events()
			return { ["document.saved"] = function() mgit.emit("custom.ping", { from = "b-sender" }) end }
		end
	`)

	f.manager.LoadAllPlugins(context.Background())
	f.manager.TriggerEvent(EventDocumentSaved, map[string]any{"path": "/n/a.md"})

	// Plugin-emitted events are delivered asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := f.settings.PluginSetting("a-receiver", "pinged"); v == "b-sender" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("emitted event never reached the receiving plugin")
}

func TestManagerPluginLoadedEvent(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "a-watcher", `
		function describe() return {} end
		function events()
			return { ["plugin.loaded"] = function(payload) mgit.set_setting("saw", payload.plugin) end }
		end
	`)
	writeDirPlugin(t, f.system, "b-late", minimalPlugin)

	f.manager.LoadAllPlugins(context.Background())
	if v, _ := f.settings.PluginSetting("a-watcher", "saw"); v != "b-late" {
		t.Errorf("plugin.loaded payload = %v, want b-late", v)
	}
}

func TestManagerRefreshLoadsNewPlugins(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "original", minimalPlugin)
	f.manager.LoadAllPlugins(context.Background())

	writeDirPlugin(t, f.user, "addition", minimalPlugin)
	if n := f.manager.Refresh(context.Background()); n != 1 {
		t.Errorf("Refresh() = %d, want 1", n)
	}
	if !f.manager.IsLoaded("addition") {
		t.Error("new plugin not loaded by refresh")
	}
	if f.manager.Count() != 2 {
		t.Errorf("Count() = %d, want 2", f.manager.Count())
	}
}

func TestManagerPluginsByCategory(t *testing.T) {
	f := newManagerFixture(t)
	writeDirPlugin(t, f.system, "stats", `
		function describe() return { category = "statistics" } end
	`)
	writeDirPlugin(t, f.system, "theme", `
		function describe() return { category = "appearance" } end
	`)
	f.manager.LoadAllPlugins(context.Background())

	got := f.manager.PluginsByCategory()
	if len(got["statistics"]) != 1 || got["statistics"][0] != "stats" {
		t.Errorf("statistics = %v", got["statistics"])
	}
	if len(got["appearance"]) != 1 || got["appearance"][0] != "theme" {
		t.Errorf("appearance = %v", got["appearance"])
	}
}
