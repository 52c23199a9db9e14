// Package command turns inbound chat messages into privileged operations.
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/chat_mon/internal/domain"
)

// Prefix starts every command message.
const Prefix = "."

// Fixed replies.
const (
	DeniedReply = "Only group admins can use this command."
	BusyReply   = "Already running. Wait for the current run to finish."
	FailedReply = "Command failed. Check the logs."
)

// Request is a parsed command message.
type Request struct {
	Name string   // lowercased, without prefix
	Args []string // whitespace-separated arguments
	Text string   // everything after the name, newlines kept
}

// Parse extracts a command from text. ok is false for ordinary messages.
func Parse(text string) (Request, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, Prefix) || len(text) == len(Prefix) {
		return Request{}, false
	}
	body := text[len(Prefix):]

	end := strings.IndexFunc(body, unicode.IsSpace)
	name, rest := body, ""
	if end >= 0 {
		name, rest = body[:end], strings.TrimSpace(body[end:])
	}
	if name == "" {
		return Request{}, false
	}
	return Request{
		Name: strings.ToLower(name),
		Args: strings.Fields(rest),
		Text: rest,
	}, true
}

// Call is one invocation handed to a command handler.
type Call struct {
	Msg     *domain.MessageEvent
	Request Request

	messenger domain.Messenger
}

// Arg returns the i-th argument lowercased, or "".
func (c *Call) Arg(i int) string {
	if i < len(c.Request.Args) {
		return strings.ToLower(c.Request.Args[i])
	}
	return ""
}

// TextAfter returns the raw text following the first n arguments.
func (c *Call) TextAfter(n int) string {
	rest := c.Request.Text
	for i := 0; i < n; i++ {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = rest[end:]
	}
	return strings.TrimSpace(rest)
}

// Reply sends text to the chat the command came from.
func (c *Call) Reply(ctx context.Context, text string) error {
	return c.messenger.SendText(ctx, c.Msg.ChatID, text)
}

// Handler runs a command. A non-empty reply is sent back to the chat.
type Handler func(ctx context.Context, call *Call) (reply string, err error)

// Command describes one chat command.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Summary string
	Public  bool // skips the privilege check (help, status)
	Run     Handler
}

// Router dispatches parsed commands to handlers.
type Router struct {
	commands  map[string]*Command
	ordered   []*Command
	privilege Privilege
	messenger domain.Messenger
	logger    *zap.Logger
}

// NewRouter creates a router replying through m.
func NewRouter(p Privilege, m domain.Messenger, logger *zap.Logger) *Router {
	return &Router{
		commands:  make(map[string]*Command),
		privilege: p,
		messenger: m,
		logger:    logger.Named("commands"),
	}
}

// Register adds commands. Later registrations win on name clashes.
func (r *Router) Register(cmds ...*Command) {
	for _, c := range cmds {
		r.ordered = append(r.ordered, c)
		r.commands[c.Name] = c
		for _, a := range c.Aliases {
			r.commands[a] = c
		}
	}
}

// Lookup finds a command by name or alias.
func (r *Router) Lookup(name string) (*Command, bool) {
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// Help renders the command list.
func (r *Router) Help(title string) string {
	cmds := append([]*Command(nil), r.ordered...)
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", title)
	for _, c := range cmds {
		usage := c.Usage
		if usage == "" {
			usage = Prefix + c.Name
		}
		fmt.Fprintf(&b, "\n%s\n  %s", usage, c.Summary)
	}
	return b.String()
}

// Dispatch handles msg if it is a known command. It never panics and
// reports whether msg was a command.
func (r *Router) Dispatch(ctx context.Context, msg *domain.MessageEvent) (handled bool) {
	req, ok := Parse(msg.Text)
	if !ok {
		return false
	}
	cmd, ok := r.commands[req.Name]
	if !ok {
		return false
	}

	log := r.logger.With(
		zap.String("command", cmd.Name),
		zap.String("chat", msg.ChatID),
		zap.String("sender", msg.SenderID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("command panicked", zap.Any("panic", rec), zap.Stack("stack"))
			r.reply(ctx, msg, FailedReply, log)
		}
	}()

	if !cmd.Public {
		allowed, err := r.privilege.IsPrivileged(ctx, msg)
		if err != nil {
			log.Warn("privilege check failed", zap.Error(err))
		}
		if !allowed {
			log.Info("command denied")
			r.reply(ctx, msg, DeniedReply, log)
			return true
		}
	}

	call := &Call{Msg: msg, Request: req, messenger: r.messenger}
	reply, err := cmd.Run(ctx, call)
	if err != nil {
		reply = r.errorReply(cmd, err, log)
	} else {
		log.Info("command executed")
	}
	if reply != "" {
		r.reply(ctx, msg, reply, log)
	}
	return true
}

func (r *Router) errorReply(cmd *Command, err error, log *zap.Logger) string {
	var verr *domain.ValidationError
	var denied *domain.PolicyViolation
	switch {
	case errors.As(err, &verr):
		usage := verr.Usage
		if usage == "" {
			usage = cmd.Usage
		}
		if usage == "" {
			return verr.Reason
		}
		return fmt.Sprintf("%s\nUsage: %s", verr.Reason, usage)
	case errors.As(err, &denied):
		return DeniedReply
	case errors.Is(err, domain.ErrBusy):
		return BusyReply
	default:
		log.Error("command failed", zap.Error(err))
		return FailedReply
	}
}

func (r *Router) reply(ctx context.Context, msg *domain.MessageEvent, text string, log *zap.Logger) {
	if err := r.messenger.SendText(ctx, msg.ChatID, text); err != nil {
		log.Warn("failed to send reply", zap.Error(err))
	}
}
