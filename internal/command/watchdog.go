package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
)

// Listing sizes for the watchdog commands.
const (
	ListLimit = 50
	LogLimit  = 10
)

const recordTimeLayout = "02/01 15:04"

// WatchdogDeps are the collaborators of the watchdog command set.
type WatchdogDeps struct {
	Client     domain.MessagingClient
	Registry   *identity.Registry
	Groups     *identity.GroupSet
	Detections *journal.DetectionLog
	Config     *settings.Responder
	Detector   *usecase.Detector
	Sweeper    *usecase.Sweeper
	Harvester  *usecase.Harvester
	Jobs       *Jobs
}

type watchdogCommands struct {
	WatchdogDeps
	help func() string
}

// WatchdogCommands builds the watchdog command set. help renders the
// router's command list for .help.
func WatchdogCommands(d WatchdogDeps, help func() string) []*Command {
	w := &watchdogCommands{WatchdogDeps: d, help: help}
	return []*Command{
		{Name: "status", Public: true, Summary: "Registry size, groups, detections and flags", Run: w.status},
		{Name: "scan", Summary: "Report flagged members of this group (no action)", Run: w.scan},
		{Name: "sweep", Summary: "Sweep every group now", Run: w.sweep},
		{Name: "ban", Usage: ".ban (reply to a message)", Summary: "Delete the message and remove its sender", Run: w.ban(false)},
		{Name: "ban+", Usage: ".ban+ (reply to a message)", Summary: "Like .ban and add the sender to the registry", Run: w.ban(true)},
		{Name: "open", Summary: "Let everyone post in this group", Run: w.setAdminsOnly(false)},
		{Name: "close", Usage: ".close [reason]", Summary: "Only admins may post in this group", Run: w.setAdminsOnly(true)},
		{Name: "all", Usage: ".all [message]", Summary: "Mention every member", Run: w.mentionAll},
		{Name: "harvest", Summary: "Add every member of this group to the registry", Run: w.harvest},
		{Name: "collect", Usage: ".collect [add|remove|list] [group name]", Summary: "Manage collection groups", Run: w.collect},
		{Name: "list", Aliases: []string{"concorrentes"}, Summary: "Show registry entries", Run: w.list},
		{Name: "add", Usage: ".add <number>", Summary: "Add a number to the registry", Run: w.add},
		{Name: "remove", Usage: ".remove <number>", Summary: "Remove a number from the registry", Run: w.remove},
		{Name: "log", Aliases: []string{"deteccoes"}, Summary: "Show recent detections", Run: w.log},
		{Name: "config", Usage: ".config [admins|group|remove|sweepnotice on|off] | .config message <text>|clear", Summary: "Show or change responder settings", Run: w.config},
		{Name: "help", Aliases: []string{"ajuda"}, Public: true, Summary: "Show this help", Run: w.helpText},
	}
}

func requireGroup(call *Call) error {
	if !call.Msg.IsGroup {
		return &domain.ValidationError{Reason: "This command only works inside a group."}
	}
	return nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "sim", "1":
		return true, true
	case "off", "false", "no", "nao", "não", "0":
		return false, true
	}
	return false, false
}

func (w *watchdogCommands) status(ctx context.Context, call *Call) (string, error) {
	cfg := w.Config.Get()
	sweep := "idle"
	if w.Sweeper.Running() {
		sweep = "running"
	}
	return fmt.Sprintf("*Watchdog status*\n\n"+
		"Registry: %d numbers\n"+
		"Collection groups: %d\n"+
		"Detections logged: %d\n"+
		"Sweep: %s\n\n"+
		"Notify admins: %s\n"+
		"Notify group: %s\n"+
		"Auto-remove: %s\n"+
		"Sweep notice: %s",
		w.Registry.Len(), len(w.Groups.List()), w.Detections.Len(), sweep,
		onOff(cfg.NotifyAdmins), onOff(cfg.NotifyGroup), onOff(cfg.AutoRemove), onOff(cfg.NotifyOnSweepComplete)), nil
}

func (w *watchdogCommands) scan(ctx context.Context, call *Call) (string, error) {
	if err := requireGroup(call); err != nil {
		return "", err
	}
	snap, err := w.Client.GroupSnapshot(ctx, call.Msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", call.Msg.ChatID, err)
	}
	found := w.Detector.Scan(ctx, snap)
	if len(found) == 0 {
		return fmt.Sprintf("No flagged numbers in *%s* (%d members checked).", snap.Name, len(snap.Members)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%d flagged in %s*\n", len(found), snap.Name)
	for _, det := range found {
		fmt.Fprintf(&b, "\n+%s (%s)", det.Identity, det.DisplayName)
		if det.IsGroupAdmin {
			b.WriteString(" [admin]")
		}
	}
	return b.String(), nil
}

func (w *watchdogCommands) sweep(ctx context.Context, call *Call) (string, error) {
	// A queued job has not flagged the sweeper busy yet.
	if w.Sweeper.Running() || w.Jobs.Active("sweep") > 0 {
		return "", domain.ErrBusy
	}
	w.Jobs.Go("sweep", func(ctx context.Context) error {
		report, err := w.Sweeper.Run(ctx)
		if errors.Is(err, domain.ErrBusy) {
			return call.Reply(ctx, BusyReply)
		}
		if err != nil {
			_ = call.Reply(ctx, "Sweep failed. Check the logs.")
			return err
		}
		return call.Reply(ctx, SweepSummary(report))
	})
	return "Sweep started.", nil
}

// SweepSummary renders a sweep report for chat.
func SweepSummary(r *usecase.SweepReport) string {
	var b strings.Builder
	b.WriteString("*Sweep finished*\n\n")
	fmt.Fprintf(&b, "Groups scanned: %d\n", r.GroupsScanned)
	if r.GroupsFailed > 0 {
		fmt.Fprintf(&b, "Groups failed: %d\n", r.GroupsFailed)
	}
	fmt.Fprintf(&b, "Flagged found: %d\n", r.IdentitiesFound)
	fmt.Fprintf(&b, "Removed: %d\n", r.Removed)
	fmt.Fprintf(&b, "Protected admins: %d", r.ProtectedAdmins)
	if r.Interrupted {
		b.WriteString("\n\n_interrupted before the last group_")
	}
	return b.String()
}

func (w *watchdogCommands) ban(add bool) Handler {
	return func(ctx context.Context, call *Call) (string, error) {
		if err := requireGroup(call); err != nil {
			return "", err
		}
		target := call.Msg.QuotedSenderID
		if target == "" {
			return "", &domain.ValidationError{Reason: "Reply to a message from the member to ban."}
		}

		snap, err := w.Client.GroupSnapshot(ctx, call.Msg.ChatID)
		if err != nil {
			return "", fmt.Errorf("ban in %s: %w", call.Msg.ChatID, err)
		}
		id := identity.Normalize(target)
		for _, m := range snap.Members {
			if identity.Normalize(m.ID) == id && m.Privileged() {
				return "Admins cannot be banned.", nil
			}
		}

		if call.Msg.QuotedID != "" {
			// The message may already be gone; removal still proceeds.
			_ = w.Client.DeleteMessage(ctx, call.Msg.ChatID, target, call.Msg.QuotedID)
		}
		if err := w.Client.RemoveMember(ctx, call.Msg.ChatID, target); err != nil {
			return "", fmt.Errorf("remove %s: %w", id, err)
		}

		if !add {
			return fmt.Sprintf("+%s removed.", id), nil
		}
		added, inserted, err := w.Registry.Add(string(id))
		if err != nil {
			return "", err
		}
		if !inserted {
			return fmt.Sprintf("+%s removed (already in the registry).", added), nil
		}
		return fmt.Sprintf("+%s removed and added to the registry.", added), nil
	}
}

func (w *watchdogCommands) setAdminsOnly(closed bool) Handler {
	return func(ctx context.Context, call *Call) (string, error) {
		if err := requireGroup(call); err != nil {
			return "", err
		}
		if err := w.Client.SetAdminsOnly(ctx, call.Msg.ChatID, closed); err != nil {
			return "", err
		}
		if !closed {
			return "Group opened. Everyone can send messages.", nil
		}
		if reason := call.Request.Text; reason != "" {
			return "Group closed. Only admins can send messages.\n\nReason: " + reason, nil
		}
		return "Group closed. Only admins can send messages.", nil
	}
}

func (w *watchdogCommands) mentionAll(ctx context.Context, call *Call) (string, error) {
	if err := requireGroup(call); err != nil {
		return "", err
	}
	snap, err := w.Client.GroupSnapshot(ctx, call.Msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("mention all in %s: %w", call.Msg.ChatID, err)
	}

	text := call.Request.Text
	if text == "" {
		text = "Attention everyone!"
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n")
	ids := make([]string, 0, len(snap.Members))
	for _, m := range snap.Members {
		ids = append(ids, m.ID)
		fmt.Fprintf(&b, "\n@%s", identity.Normalize(m.ID))
	}
	if err := w.Client.SendMention(ctx, call.Msg.ChatID, b.String(), ids); err != nil {
		return "", err
	}
	return "", nil
}

func (w *watchdogCommands) harvest(ctx context.Context, call *Call) (string, error) {
	if err := requireGroup(call); err != nil {
		return "", err
	}
	res, err := w.Harvester.HarvestGroup(ctx, call.Msg.ChatID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("*Harvest of %s*\n\nMembers: %d\nAdded: %d\nAlready present: %d\nRegistry total: %d",
		res.Group.Name, res.Members, res.Added, res.AlreadyPresent, w.Registry.Len()), nil
}

func (w *watchdogCommands) collect(ctx context.Context, call *Call) (string, error) {
	action := call.Arg(0)
	switch action {
	case "", "list":
		names := w.Groups.List()
		if len(names) == 0 {
			return "No collection groups.", nil
		}
		return "*Collection groups*\n\n" + strings.Join(names, "\n"), nil
	case "add", "remove":
	default:
		return "", &domain.ValidationError{Reason: "Unknown action " + action + "."}
	}

	name := call.TextAfter(1)
	if name == "" {
		if !call.Msg.IsGroup {
			return "", &domain.ValidationError{Reason: "Give a group name or run this inside the group."}
		}
		snap, err := w.Client.GroupSnapshot(ctx, call.Msg.ChatID)
		if err != nil {
			return "", err
		}
		name = snap.Name
	}

	if action == "add" {
		inserted, err := w.Groups.Add(name)
		if err != nil {
			return "", err
		}
		if !inserted {
			return fmt.Sprintf("*%s* is already a collection group.", name), nil
		}
		return fmt.Sprintf("*%s* added to collection groups.", name), nil
	}
	removed, err := w.Groups.Remove(name)
	if err != nil {
		return "", err
	}
	if !removed {
		return fmt.Sprintf("*%s* is not a collection group.", name), nil
	}
	return fmt.Sprintf("*%s* removed from collection groups.", name), nil
}

func (w *watchdogCommands) list(ctx context.Context, call *Call) (string, error) {
	ids := w.Registry.List()
	if len(ids) == 0 {
		return "The registry is empty.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Registry (%d)*\n", len(ids))
	for i, id := range ids {
		if i == ListLimit {
			fmt.Fprintf(&b, "\n... and %d more", len(ids)-ListLimit)
			break
		}
		fmt.Fprintf(&b, "\n%d. +%s", i+1, id)
	}
	return b.String(), nil
}

func numberArg(call *Call) (string, error) {
	raw := call.Request.Text
	if identity.NormalizeDigits(raw) == "" {
		return "", &domain.ValidationError{Reason: "Give a phone number."}
	}
	return raw, nil
}

func (w *watchdogCommands) add(ctx context.Context, call *Call) (string, error) {
	raw, err := numberArg(call)
	if err != nil {
		return "", err
	}
	id, inserted, err := w.Registry.Add(raw)
	if err != nil {
		return "", err
	}
	if !inserted {
		return fmt.Sprintf("+%s is already in the registry.", id), nil
	}
	return fmt.Sprintf("+%s added. Registry total: %d", id, w.Registry.Len()), nil
}

func (w *watchdogCommands) remove(ctx context.Context, call *Call) (string, error) {
	raw, err := numberArg(call)
	if err != nil {
		return "", err
	}
	removed, err := w.Registry.Remove(raw)
	if err != nil {
		return "", err
	}
	id := identity.NormalizeDigits(raw)
	if !removed {
		return fmt.Sprintf("+%s is not in the registry.", id), nil
	}
	return fmt.Sprintf("+%s removed. Registry total: %d", id, w.Registry.Len()), nil
}

func (w *watchdogCommands) log(ctx context.Context, call *Call) (string, error) {
	recs := w.Detections.Recent(LogLimit)
	if len(recs) == 0 {
		return "No detections logged.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Last %d detections*\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s %s\n+%s (%s): %s\n",
			r.Timestamp.Format(recordTimeLayout), r.GroupName, r.Identity, r.DisplayName, r.Action)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (w *watchdogCommands) config(ctx context.Context, call *Call) (string, error) {
	key := call.Arg(0)
	if key == "" {
		return w.renderConfig(), nil
	}

	if key == "message" {
		text := call.TextAfter(1)
		if text == "" {
			return "", &domain.ValidationError{Reason: "Give the alert text or clear.",
				Usage: ".config message <text>|clear (placeholders {group} {name} {number} {time})"}
		}
		if strings.EqualFold(text, "clear") {
			text = ""
		}
		if err := w.Config.Update(func(c *domain.ResponderConfig) error {
			c.CustomMessage = text
			return nil
		}); err != nil {
			return "", err
		}
		if text == "" {
			return "Custom alert cleared. Using the standard alert.", nil
		}
		return "Custom alert saved.", nil
	}

	value, ok := parseOnOff(call.Arg(1))
	if !ok {
		return "", &domain.ValidationError{Reason: "Use on or off."}
	}
	var set func(*domain.ResponderConfig)
	switch key {
	case "admins":
		set = func(c *domain.ResponderConfig) { c.NotifyAdmins = value }
	case "group":
		set = func(c *domain.ResponderConfig) { c.NotifyGroup = value }
	case "remove":
		set = func(c *domain.ResponderConfig) { c.AutoRemove = value }
	case "sweepnotice":
		set = func(c *domain.ResponderConfig) { c.NotifyOnSweepComplete = value }
	default:
		return "", &domain.ValidationError{Reason: "Unknown setting " + key + "."}
	}
	if err := w.Config.Update(func(c *domain.ResponderConfig) error {
		set(c)
		return nil
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s set to %s.", key, onOff(value)), nil
}

func (w *watchdogCommands) renderConfig() string {
	cfg := w.Config.Get()
	msg := "standard"
	if cfg.CustomMessage != "" {
		msg = cfg.CustomMessage
	}
	return fmt.Sprintf("*Responder settings*\n\n"+
		"admins: %s\n"+
		"group: %s\n"+
		"remove: %s\n"+
		"sweepnotice: %s\n"+
		"message: %s",
		onOff(cfg.NotifyAdmins), onOff(cfg.NotifyGroup), onOff(cfg.AutoRemove), onOff(cfg.NotifyOnSweepComplete), msg)
}

func (w *watchdogCommands) helpText(ctx context.Context, call *Call) (string, error) {
	return w.help(), nil
}
