package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
	"github.com/eliteGoblin/focusd/chat_mon/internal/identity"
	"github.com/eliteGoblin/focusd/chat_mon/internal/journal"
	"github.com/eliteGoblin/focusd/chat_mon/internal/settings"
	"github.com/eliteGoblin/focusd/chat_mon/internal/usecase"
)

// ReportLimit is how many deliveries .report shows.
const ReportLimit = 15

// OutreachDeps are the collaborators of the outreach command set.
type OutreachDeps struct {
	Registry   *identity.Registry
	Deliveries *journal.DeliveryLog
	Config     *settings.Campaign
	Scheduler  *usecase.CampaignScheduler
	Jobs       *Jobs
}

type outreachCommands struct {
	OutreachDeps
	help func() string
}

// OutreachCommands builds the outreach command set.
func OutreachCommands(d OutreachDeps, help func() string) []*Command {
	o := &outreachCommands{OutreachDeps: d, help: help}
	return []*Command{
		{Name: "group", Aliases: []string{"grupo"}, Summary: "Send the group link to every pending number", Run: o.start(domain.CampaignGroupLink)},
		{Name: "channel", Aliases: []string{"canal"}, Summary: "Send the channel link to every pending number", Run: o.start(domain.CampaignChannelLink)},
		{Name: "both", Aliases: []string{"ambos", "start", "iniciar"}, Summary: "Send both links to every pending number", Run: o.start(domain.CampaignBoth)},
		{Name: "status", Public: true, Summary: "Campaign progress and sending window", Run: o.status},
		{Name: "config", Usage: ".config [delay|batch|batch-delay|start|end|window] <value>", Summary: "Show or change pacing and window", Run: o.config},
		{Name: "message", Aliases: []string{"msg", "mensagem"}, Usage: ".message [group|channel <text>]", Summary: "Show or change message texts", Run: o.message},
		{Name: "links", Usage: ".links [group|channel <url>]", Summary: "Show or change the links", Run: o.links},
		{Name: "test", Aliases: []string{"testar"}, Usage: ".test <number> [group|channel|both]", Summary: "Send to one number now", Run: o.test},
		{Name: "report", Aliases: []string{"relatorio"}, Summary: "Show recent deliveries", Run: o.report},
		{Name: "clear", Aliases: []string{"limpar"}, Summary: "Clear the delivery log", Run: o.clear},
		{Name: "help", Aliases: []string{"ajuda"}, Public: true, Summary: "Show this help", Run: o.helpText},
	}
}

func (o *outreachCommands) start(t domain.CampaignType) Handler {
	return func(ctx context.Context, call *Call) (string, error) {
		if o.Scheduler.Running() || o.Jobs.Active("campaign") > 0 {
			return "", domain.ErrBusy
		}
		if !o.Scheduler.InWindow() {
			return o.outsideWindowText(), nil
		}
		pending := len(o.Scheduler.Pending(t))
		if pending == 0 {
			return fmt.Sprintf("Nothing to send: every number already received %s.", t), nil
		}

		o.Jobs.Go("campaign", func(ctx context.Context) error {
			res, err := o.Scheduler.Run(ctx, t)
			if errors.Is(err, domain.ErrBusy) {
				return call.Reply(ctx, BusyReply)
			}
			if err != nil {
				_ = call.Reply(ctx, "Campaign failed. Check the logs.")
				return err
			}
			return call.Reply(ctx, CampaignSummary(res))
		})

		cfg := o.Config.Get()
		return fmt.Sprintf("*Campaign %s started*\n\nPending: %d\nBatch: %d every %s\nDelay: %s",
			t, pending, cfg.BatchSize, cfg.BatchDelay(), cfg.ItemDelay()), nil
	}
}

func (o *outreachCommands) outsideWindowText() string {
	cfg := o.Config.Get()
	return fmt.Sprintf("Outside the sending window (%s-%s). Nothing was sent.", cfg.WindowStart, cfg.WindowEnd)
}

// CampaignSummary renders a campaign result for chat.
func CampaignSummary(r *usecase.CampaignResult) string {
	title := "Campaign finished"
	switch r.Status {
	case usecase.CampaignOutsideWindow:
		return "Outside the sending window. Nothing was sent."
	case usecase.CampaignPaused:
		title = "Campaign paused, sending window closed"
	case usecase.CampaignInterrupted:
		title = "Campaign interrupted"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n\n", title, r.Type)
	fmt.Fprintf(&b, "Sent: %d\nFailed: %d\nInvalid: %d\nTotal: %d", r.Sent, r.Failed, r.Invalid, r.Total)
	if r.Remaining > 0 {
		fmt.Fprintf(&b, "\nRemaining: %d", r.Remaining)
	}
	return b.String()
}

func (o *outreachCommands) status(ctx context.Context, call *Call) (string, error) {
	cfg := o.Config.Get()
	window := "open"
	if !o.Scheduler.InWindow() {
		window = "closed"
	}
	if !cfg.EnforceWindow {
		window = "not enforced"
	}
	running := "idle"
	if o.Scheduler.Running() {
		running = "sending"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Outreach status*\n\nNumbers: %d\nCampaign: %s\nWindow %s-%s: %s\n",
		o.Registry.Len(), running, cfg.WindowStart, cfg.WindowEnd, window)
	for _, t := range domain.CampaignTypes {
		c := o.Deliveries.Counts(t)
		fmt.Fprintf(&b, "\n*%s* (%s)\nSent: %d  Pending: %d  Failed: %d  Invalid: %d\n",
			t, o.Scheduler.State(t), c.Sent, len(o.Scheduler.Pending(t)), c.Failed, c.Invalid)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (o *outreachCommands) config(ctx context.Context, call *Call) (string, error) {
	key := call.Arg(0)
	if key == "" {
		return o.renderConfig(), nil
	}
	value := call.Arg(1)
	if value == "" {
		return "", &domain.ValidationError{Reason: "Missing value for " + key + "."}
	}

	var set func(*domain.CampaignConfig) error
	switch key {
	case "delay":
		secs, err := intArg(value)
		if err != nil {
			return "", err
		}
		set = func(c *domain.CampaignConfig) error { c.ItemDelayMs = int64(secs) * 1000; return nil }
	case "batch":
		n, err := intArg(value)
		if err != nil {
			return "", err
		}
		set = func(c *domain.CampaignConfig) error { c.BatchSize = n; return nil }
	case "batch-delay":
		secs, err := intArg(value)
		if err != nil {
			return "", err
		}
		set = func(c *domain.CampaignConfig) error { c.BatchDelayMs = int64(secs) * 1000; return nil }
	case "start":
		set = func(c *domain.CampaignConfig) error { c.WindowStart = value; return nil }
	case "end":
		set = func(c *domain.CampaignConfig) error { c.WindowEnd = value; return nil }
	case "window":
		on, ok := parseOnOff(value)
		if !ok {
			return "", &domain.ValidationError{Reason: "Use on or off."}
		}
		set = func(c *domain.CampaignConfig) error { c.EnforceWindow = on; return nil }
	default:
		return "", &domain.ValidationError{Reason: "Unknown setting " + key + "."}
	}

	if err := o.Config.Update(set); err != nil {
		return "", err
	}
	return "Saved.\n\n" + o.renderConfig(), nil
}

func intArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &domain.ValidationError{Reason: fmt.Sprintf("%q is not a number.", s)}
	}
	return n, nil
}

func (o *outreachCommands) renderConfig() string {
	cfg := o.Config.Get()
	return fmt.Sprintf("*Campaign settings*\n\n"+
		"delay: %ds\n"+
		"batch: %d\n"+
		"batch-delay: %ds\n"+
		"start: %s\n"+
		"end: %s\n"+
		"window: %s",
		int(cfg.ItemDelay()/time.Second), cfg.BatchSize, int(cfg.BatchDelay()/time.Second),
		cfg.WindowStart, cfg.WindowEnd, onOff(cfg.EnforceWindow))
}

func (o *outreachCommands) message(ctx context.Context, call *Call) (string, error) {
	target := call.Arg(0)
	if target == "" {
		cfg := o.Config.Get()
		return fmt.Sprintf("*Group message*\n\n%s\n\n*Channel message*\n\n%s",
			usecase.GroupCampaignText(cfg), usecase.ChannelCampaignText(cfg)), nil
	}
	text := call.TextAfter(1)
	if text == "" {
		return "", &domain.ValidationError{Reason: "Give the new message text."}
	}

	var set func(*domain.CampaignConfig) error
	switch target {
	case "group", "grupo":
		set = func(c *domain.CampaignConfig) error { c.GroupMessage = text; return nil }
	case "channel", "canal":
		set = func(c *domain.CampaignConfig) error { c.ChannelMessage = text; return nil }
	default:
		return "", &domain.ValidationError{Reason: "Choose group or channel."}
	}
	if err := o.Config.Update(set); err != nil {
		return "", err
	}
	return "Message saved.", nil
}

func (o *outreachCommands) links(ctx context.Context, call *Call) (string, error) {
	target := call.Arg(0)
	if target == "" {
		cfg := o.Config.Get()
		return fmt.Sprintf("*Links*\n\nGroup: %s\nChannel: %s", cfg.GroupLink, cfg.ChannelLink), nil
	}
	url := call.TextAfter(1)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", &domain.ValidationError{Reason: "Give a link starting with https://"}
	}

	var set func(*domain.CampaignConfig) error
	switch target {
	case "group", "grupo":
		set = func(c *domain.CampaignConfig) error { c.GroupLink = url; return nil }
	case "channel", "canal":
		set = func(c *domain.CampaignConfig) error { c.ChannelLink = url; return nil }
	default:
		return "", &domain.ValidationError{Reason: "Choose group or channel."}
	}
	if err := o.Config.Update(set); err != nil {
		return "", err
	}
	return "Link saved.", nil
}

func parseCampaignType(s string) (domain.CampaignType, bool) {
	switch strings.ToLower(s) {
	case "", "both", "ambos":
		return domain.CampaignBoth, true
	case "group", "grupo", "grouplink":
		return domain.CampaignGroupLink, true
	case "channel", "canal", "channellink":
		return domain.CampaignChannelLink, true
	}
	return "", false
}

func (o *outreachCommands) test(ctx context.Context, call *Call) (string, error) {
	raw := call.Arg(0)
	if raw == "" {
		return "", &domain.ValidationError{Reason: "Give a phone number."}
	}
	t, ok := parseCampaignType(call.Arg(1))
	if !ok {
		return "", &domain.ValidationError{Reason: "Choose group, channel or both."}
	}
	rec, err := o.Scheduler.Deliver(ctx, raw, t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Test to +%s (%s): %s\n%s", rec.Identity, t, rec.Status, rec.Detail), nil
}

func (o *outreachCommands) report(ctx context.Context, call *Call) (string, error) {
	recs := o.Deliveries.Recent(ReportLimit)
	if len(recs) == 0 {
		return "No deliveries logged.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Last %d deliveries*\n", len(recs))
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s +%s %s %s", r.Timestamp.Format(recordTimeLayout), r.Identity, r.CampaignType, r.Status)
	}
	return b.String(), nil
}

func (o *outreachCommands) clear(ctx context.Context, call *Call) (string, error) {
	if o.Scheduler.Running() {
		return "", domain.ErrBusy
	}
	n, err := o.Deliveries.Clear()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Delivery log cleared (%d records).", n), nil
}

func (o *outreachCommands) helpText(ctx context.Context, call *Call) (string, error) {
	return o.help(), nil
}
