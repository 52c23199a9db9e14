package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/chat_mon/internal/config"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
)

func TestParseRole(t *testing.T) {
	role, err := parseRole("outreach")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOutreach, role)

	_, err = parseRole("guardian")
	assert.Error(t, err)
}

func TestOpenStorage_JSON(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Store: config.StoreJSON}

	st, err := openStorage(cfg, domain.RoleWatchdog)
	require.NoError(t, err)
	defer func() { _ = st.close() }()

	assert.Equal(t, "file:"+filepath.Join(cfg.DataDir, "watchdog", "session.db")+"?_foreign_keys=on", st.sessionDSN)
	require.NoError(t, st.store.Save(identity.RegistryKey, []string{"258840000001"}))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "watchdog", "competitors.json"))
}

func TestOpenStorage_RolesAreSeparate(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Store: config.StoreJSON}

	w, err := openStorage(cfg, domain.RoleWatchdog)
	require.NoError(t, err)
	o, err := openStorage(cfg, domain.RoleOutreach)
	require.NoError(t, err)

	require.NoError(t, w.store.Save(identity.RegistryKey, []string{"258840000001"}))
	raws, err := loadRaw(o.store)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestCountDocument(t *testing.T) {
	store, err := infra.NewJSONStore(t.TempDir())
	require.NoError(t, err)

	n, err := countDocument(store, "detections")
	require.NoError(t, err)
	assert.Zero(t, n, "missing document counts as empty")

	require.NoError(t, store.Save("detections", []map[string]string{{"a": "1"}, {"b": "2"}}))
	n, err = countDocument(store, "detections")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestValidateAndClean(t *testing.T) {
	store, err := infra.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	raws := []string{"258840000002", "+258 84 000 0001", "258840000002", "12345", "258840000001@c.us"}
	require.NoError(t, store.Save(identity.RegistryKey, raws))

	loaded, err := loadRaw(store)
	require.NoError(t, err)
	a := identity.Check(loaded, identity.DefaultFormat)

	var out bytes.Buffer
	clean := printAudit(&out, a, identity.DefaultFormat)
	assert.False(t, clean)
	assert.Contains(t, out.String(), "Entries: 5")
	assert.Contains(t, out.String(), "Duplicates: 2")
	assert.Contains(t, out.String(), `malformed: "12345"`)

	require.NoError(t, cleanRegistry(store, a))
	loaded, err = loadRaw(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"258840000001", "258840000002"}, loaded)

	out.Reset()
	assert.True(t, printAudit(&out, identity.Check(loaded, identity.DefaultFormat), identity.DefaultFormat))
	assert.True(t, sorted(loaded, identity.Check(loaded, identity.DefaultFormat).Clean))
}

func TestPrintList(t *testing.T) {
	var out bytes.Buffer
	printList(&out, []string{"258840000001@s.whatsapp.net", "258840000002"})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "=== Registry (2) ===", lines[0])
	assert.Equal(t, "   1. +258840000001", lines[1])
}

func TestPrintStatus(t *testing.T) {
	entry := &domain.InstanceEntry{WatchdogPID: 42, AppVersion: "0.1.0"}
	counts := map[domain.Role]map[string]int{
		domain.RoleWatchdog: {identity.RegistryKey: 3, "detections": 1, identity.CollectionGroupsKey: 0},
		domain.RoleOutreach: {identity.RegistryKey: 7},
	}

	var out bytes.Buffer
	printStatus(&out, entry, map[domain.Role]bool{domain.RoleWatchdog: true}, counts)

	s := out.String()
	assert.Contains(t, s, "watchdog: RUNNING")
	assert.Contains(t, s, "PID: 42")
	assert.Contains(t, s, "outreach: NOT RUNNING")
	assert.Contains(t, s, "competitors: 7")
	assert.Contains(t, s, "deliveries: unreadable")
	assert.Contains(t, s, "Version: 0.1.0")
}

func TestRunVersion_JSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	runVersion(versionCmd, nil)

	assert.JSONEq(t, `{"version":"`+Version+`","commit":"`+Commit+`","build_time":"`+BuildTime+`"}`, out.String())
}
