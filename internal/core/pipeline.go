package core

import "context"

// Outcome tells the pipeline whether to continue after a stage.
type Outcome int

const (
	Proceed Outcome = iota
	Halt
)

// Stage is one step of message processing.
type Stage func(ctx context.Context, mc *MessageContext) Outcome

// MessageContext is the mutable state threaded through one pipeline run.
type MessageContext struct {
	Message *Message
	Host    Host
	// Modules is the registry snapshot taken when the pipeline was built.
	Modules []*Module

	// Set by command detection.
	Prefix      string
	CommandName string
	Args        []string
}

// RunPipeline runs stages in order until one halts. It returns Halt if any
// stage halted and Proceed if every stage passed.
func RunPipeline(ctx context.Context, mc *MessageContext, stages []Stage) Outcome {
	for _, stage := range stages {
		if stage(ctx, mc) == Halt {
			return Halt
		}
	}
	return Proceed
}

// Invocation is what a command action receives.
type Invocation struct {
	Message *Message
	Args    []string
	Host    Host
	Command *Command
	Module  *Module
	Prefix  string
}

// Reply sends plain text to the invoking channel.
func (inv *Invocation) Reply(ctx context.Context, content string) error {
	return inv.Host.Client().Send(ctx, inv.Message.ChannelID, Payload{Content: content})
}

// Notify sends a formatted notice to the invoking channel.
func (inv *Invocation) Notify(ctx context.Context, kind NoticeKind, title, description string) error {
	return inv.Host.Notify(ctx, inv.Message.ChannelID, kind, title, description)
}

// Arg returns the i-th argument or fallback when absent.
func (inv *Invocation) Arg(i int, fallback string) string {
	if i < len(inv.Args) {
		return inv.Args[i]
	}
	return fallback
}
