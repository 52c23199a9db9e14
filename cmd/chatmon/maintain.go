package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/chat_mon/internal/config"
	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/infra"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
)

// errAgentRunning refuses registry rewrites under a live agent.
var errAgentRunning = errors.New("agent is running, stop it first")

// roleDocuments lists the counted documents of each role for status.
var roleDocuments = map[domain.Role][]string{
	domain.RoleWatchdog: {identity.RegistryKey, journal.DetectionsKey, identity.CollectionGroupsKey},
	domain.RoleOutreach: {identity.RegistryKey, journal.DeliveriesKey},
}

// loadRaw reads a registry document without normalizing it, so validate
// and clean see what is actually stored.
func loadRaw(store domain.KeyValueStore) ([]string, error) {
	var raws []string
	if _, err := store.Load(identity.RegistryKey, &raws); err != nil {
		return nil, err
	}
	return raws, nil
}

// countDocument returns the number of entries of an array document.
func countDocument(store domain.KeyValueStore, key string) (int, error) {
	var items []json.RawMessage
	if _, err := store.Load(key, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}

func printStatus(out io.Writer, entry *domain.InstanceEntry, alive map[domain.Role]bool, counts map[domain.Role]map[string]int) {
	fmt.Fprintln(out, "\n=== chatmon Status ===")
	for _, role := range []domain.Role{domain.RoleWatchdog, domain.RoleOutreach} {
		state := "NOT RUNNING"
		if alive[role] {
			state = "RUNNING"
		}
		fmt.Fprintf(out, "\n%s: %s\n", role, state)
		if alive[role] && entry != nil {
			since := entry.WatchdogSince
			if role == domain.RoleOutreach {
				since = entry.OutreachSince
			}
			fmt.Fprintf(out, "  PID: %d\n", entry.PID(role))
			if since > 0 {
				fmt.Fprintf(out, "  Up: %s\n", time.Since(time.Unix(since, 0)).Round(time.Second))
			}
		}
		for _, key := range roleDocuments[role] {
			n, ok := counts[role][key]
			if !ok {
				fmt.Fprintf(out, "  %s: unreadable\n", key)
				continue
			}
			fmt.Fprintf(out, "  %s: %d\n", key, n)
		}
	}
	if entry != nil && entry.AppVersion != "" {
		fmt.Fprintf(out, "\nVersion: %s\n", entry.AppVersion)
	}
	fmt.Fprintln(out, "======================")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileInstanceRegistry(cfg.DataDir, pm)
	entry, err := registry.GetAll()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: instance registry unreadable: %v\n", err)
	}

	alive := make(map[domain.Role]bool)
	counts := make(map[domain.Role]map[string]int)
	for role, keys := range roleDocuments {
		if entry != nil {
			if pid := entry.PID(role); pid != 0 {
				alive[role] = pm.IsRunning(pid)
			}
		}
		counts[role] = make(map[string]int)
		st, err := openStorage(cfg, role)
		if err != nil {
			continue
		}
		for _, key := range keys {
			if n, err := countDocument(st.store, key); err == nil {
				counts[role][key] = n
			}
		}
		_ = st.close()
	}

	printStatus(cmd.OutOrStdout(), entry, alive, counts)
	return nil
}

func printList(out io.Writer, raws []string) {
	fmt.Fprintf(out, "\n=== Registry (%d) ===\n", len(raws))
	for i, raw := range raws {
		fmt.Fprintf(out, "%4d. +%s\n", i+1, identity.Normalize(raw))
	}
}

// printAudit writes the validate report and reports whether the registry
// is already clean.
func printAudit(out io.Writer, a identity.Audit, f identity.Format) bool {
	fmt.Fprintf(out, "\n=== Registry check (%s + %d digits) ===\n", f.CountryCode, f.SubscriberDigits)
	fmt.Fprintf(out, "Entries: %d\nValid unique: %d\nDuplicates: %d\nMalformed: %d\n",
		a.Total, len(a.Clean), len(a.Duplicates), len(a.Malformed))
	for _, id := range a.Duplicates {
		fmt.Fprintf(out, "  duplicate: +%s\n", id)
	}
	for _, raw := range a.Malformed {
		fmt.Fprintf(out, "  malformed: %q\n", raw)
	}
	clean := len(a.Duplicates) == 0 && len(a.Malformed) == 0
	if clean {
		fmt.Fprintln(out, "Registry is clean.")
	}
	return clean
}

// cleanRegistry rewrites the registry document as a.Clean.
func cleanRegistry(store domain.KeyValueStore, a identity.Audit) error {
	ids := make([]string, 0, len(a.Clean))
	for _, id := range a.Clean {
		ids = append(ids, string(id))
	}
	return store.Save(identity.RegistryKey, ids)
}

// openRoleStorage resolves --role and opens its storage.
func openRoleStorage() (*config.Config, domain.Role, *storage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", nil, err
	}
	role, err := parseRole(roleFlag)
	if err != nil {
		return nil, "", nil, err
	}
	st, err := openStorage(cfg, role)
	if err != nil {
		return nil, "", nil, err
	}
	return cfg, role, st, nil
}

func runList(cmd *cobra.Command, args []string) error {
	_, _, st, err := openRoleStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	raws, err := loadRaw(st.store)
	if err != nil {
		return err
	}
	printList(cmd.OutOrStdout(), raws)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, _, st, err := openRoleStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	raws, err := loadRaw(st.store)
	if err != nil {
		return err
	}
	f := cfg.Format()
	printAudit(cmd.OutOrStdout(), identity.Check(raws, f), f)
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, role, st, err := openRoleStorage()
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	alive, err := infra.NewFileInstanceRegistry(cfg.DataDir, infra.NewProcessManager()).IsAlive(role)
	if err == nil && alive {
		return fmt.Errorf("%w: %s", errAgentRunning, role)
	}

	raws, err := loadRaw(st.store)
	if err != nil {
		return err
	}
	f := cfg.Format()
	a := identity.Check(raws, f)
	out := cmd.OutOrStdout()
	if printAudit(out, a, f) && len(raws) == len(a.Clean) && sorted(raws, a.Clean) {
		return nil
	}
	if err := cleanRegistry(st.store, a); err != nil {
		return err
	}
	fmt.Fprintf(out, "Registry rewritten: %d -> %d entries.\n", a.Total, len(a.Clean))
	return nil
}

// sorted reports whether raws already equals clean entry for entry.
func sorted(raws []string, clean []domain.Identity) bool {
	for i := range raws {
		if raws[i] != string(clean[i]) {
			return false
		}
	}
	return true
}
