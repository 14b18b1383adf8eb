// Package agent runs one chat message through the edit pipeline: intent,
// evidence gathering, the inference request, and command dispatch. It owns
// the inference session id and the silence review wizard, and serializes all
// work that touches the host.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cutpilot/cutpilot-agent/internal/commands"
	"github.com/cutpilot/cutpilot-agent/internal/edits"
	"github.com/cutpilot/cutpilot-agent/internal/frames"
	"github.com/cutpilot/cutpilot-agent/internal/gather"
	"github.com/cutpilot/cutpilot-agent/internal/host"
	"github.com/cutpilot/cutpilot-agent/internal/inference"
	"github.com/cutpilot/cutpilot-agent/internal/journal"
	"github.com/cutpilot/cutpilot-agent/internal/logging"
	"github.com/cutpilot/cutpilot-agent/internal/review"
	"github.com/cutpilot/cutpilot-agent/internal/timecode"
	"github.com/cutpilot/cutpilot-agent/internal/timeline"
)

const (
	UnderConstructionReply = "Feature under construction."
	ErrorReply             = "Sorry, I encountered an error processing that request."
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoReview     = errors.New("no review in progress")
)

// Settings tune the pipeline. Zero values fall back to package defaults.
type Settings struct {
	Codec             timecode.Codec
	Track             int
	GapThreshold      float64
	TrimMode          edits.TrimMode
	ExportConcurrency int
	AudioPreset       string
	AudioTimeout      time.Duration
	BlockedIntents    []string
}

// Reply is what the chat panel shows for one message.
type Reply struct {
	RunID     string                  `json:"run_id"`
	SessionID string                  `json:"session_id"`
	Text      string                  `json:"text"`
	Tools     []string                `json:"tools,omitempty"`
	Blocked   bool                    `json:"blocked,omitempty"`
	Summary   string                  `json:"summary,omitempty"`
	Commands  []journal.CommandRecord `json:"commands,omitempty"`
	Review    *ReviewView             `json:"review,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Failed reports whether the run aborted.
func (r *Reply) Failed() bool {
	return r.Error != ""
}

// Agent is the pipeline owner.
type Agent struct {
	host       host.Host
	client     inference.Client
	repo       journal.Repository
	probe      *host.CachedProbe
	codec      timecode.Codec
	settings   Settings
	gatherers  *gather.Registry
	dispatcher *commands.Dispatcher
	highlight  review.Highlighter
	blocked    map[string]bool
	logger     *slog.Logger

	// mu serializes runs, review steps and exports.
	mu        sync.Mutex
	sessionID string
	runID     string
	busy      atomic.Bool

	stateMu     sync.RWMutex
	state       review.State
	reviewRunID string
	warning     string
	listeners   []func(ReviewView)
}

// New wires the default gatherers and appliers around h.
func New(h host.Host, client inference.Client, repo journal.Repository, s Settings, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "agent")
	if s.Codec.TicksPerSecond <= 0 {
		s.Codec = timecode.New(timecode.DefaultTicksPerSecond)
	}
	if s.GapThreshold <= 0 {
		s.GapThreshold = timeline.DefaultGapThreshold
	}
	if s.TrimMode == "" {
		s.TrimMode = edits.ModeReview
	}

	a := &Agent{
		host:     h,
		client:   client,
		repo:     repo,
		probe:    host.NewCachedProbe(logger),
		codec:    s.Codec,
		settings: s,
		blocked:  make(map[string]bool, len(s.BlockedIntents)),
		logger:   logger,
		state:    review.Idle(),
	}
	for _, name := range s.BlockedIntents {
		a.blocked[name] = true
	}

	audio := gather.NewAudioGatherer(h, a.probe, s.AudioPreset, s.AudioTimeout, logger)
	exporter := frames.NewExporter(h, logger)
	a.gatherers = gather.NewRegistry(logger)
	a.gatherers.Register(audio, gather.ToolTrimSilence, gather.ToolCursewordCheck)
	a.gatherers.Register(gather.NewFrameGatherer(h, a.probe, exporter, s.Codec, s.Track, s.ExportConcurrency, logger),
		gather.ToolAddTransition)

	a.highlight = edits.NewHighlighter(h, a.probe, s.Codec, logger)
	a.dispatcher = commands.NewDispatcher(logger)
	a.dispatcher.Register(commands.ActionTrimSilence,
		edits.NewSilenceTrimmer(h, a.probe, s.Codec, s.TrimMode, reviewOwner{a}, logger))
	a.dispatcher.Register(commands.ActionAddTransition,
		edits.NewTransitionInserter(h, a.probe, s.Codec, s.Track, s.GapThreshold, logger))
	a.dispatcher.Register(commands.ActionMarkProfanity,
		edits.NewMarkerPlacer(h, a.probe, s.Codec, logger))
	return a
}

// Busy reports whether a message is being handled.
func (a *Agent) Busy() bool {
	return a.busy.Load()
}

// HandleMessage runs text through the pipeline. Only an empty message is
// returned as an error; pipeline failures come back as a Reply carrying the
// user-facing ErrorReply text and the cause in Reply.Error.
func (a *Agent) HandleMessage(ctx context.Context, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.busy.Store(true)
	defer a.busy.Store(false)

	// a new message abandons any review in progress
	a.setState(review.Idle(), "", "")

	sessionID, err := a.session(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to load session id", "error", err)
		return &Reply{Text: ErrorReply, Error: err.Error()}, nil
	}

	run := &journal.Run{ID: uuid.NewString(), SessionID: sessionID, Message: text}
	logger := logging.WithRunID(a.logger, run.ID)
	if err := a.repo.CreateRun(ctx, run); err != nil {
		logger.WarnContext(ctx, "failed to journal run", "error", err)
	}
	a.runID = run.ID
	defer func() { a.runID = "" }()

	reply, err := a.run(ctx, logger, run)
	if err != nil {
		logger.ErrorContext(ctx, "message failed", "error", err)
		reply.Text = ErrorReply
		var te *inference.TransportError
		if errors.As(err, &te) {
			reply.Text += " " + te.Hint()
		}
		reply.Error = err.Error()
		a.finishRun(ctx, logger, run.ID, journal.StatusFailed, "", err.Error())
		return reply, nil
	}

	errMsg := ""
	for _, c := range reply.Commands {
		if c.Error != "" && c.Status != string(commands.StatusSkipped) {
			errMsg = "one or more commands failed"
			break
		}
	}
	a.finishRun(ctx, logger, run.ID, journal.StatusCompleted, reply.Text, errMsg)
	return reply, nil
}

func (a *Agent) run(ctx context.Context, logger *slog.Logger, run *journal.Run) (*Reply, error) {
	reply := &Reply{RunID: run.ID, SessionID: run.SessionID}

	intent, err := a.client.GetIntent(ctx, inference.IntentRequest{SessionID: run.SessionID, Message: run.Message})
	if err != nil {
		return reply, fmt.Errorf("intent detection failed: %w", err)
	}
	reply.SessionID = a.adopt(ctx, intent.SessionID)
	reply.Tools = intent.RequiredTools
	logger = logging.WithSessionID(logger, reply.SessionID)
	logger.InfoContext(ctx, "intent resolved", "tools", intent.RequiredTools)
	if err := a.repo.UpdateRunTools(ctx, run.ID, reply.SessionID, intent.RequiredTools); err != nil {
		logger.WarnContext(ctx, "failed to journal tools", "error", err)
	}

	for _, tool := range intent.RequiredTools {
		if a.blocked[tool] {
			logger.InfoContext(ctx, "intent is disabled", "tool", tool)
			reply.Blocked = true
			reply.Text = UnderConstructionReply
			return reply, nil
		}
	}

	if immediate := intent.Reply(); immediate != "" && len(intent.RequiredTools) == 0 {
		reply.Text = immediate
		return reply, nil
	}

	a.probe.Invalidate()
	bag := a.gatherers.Gather(ctx, intent.RequiredTools)

	resp, err := a.client.ProcessRequest(ctx, inference.ProcessRequest{
		SessionID:           reply.SessionID,
		Message:             run.Message,
		AudioFilePath:       bag.AudioPath(),
		ImageTransitionPath: bag.FramePaths(),
		ContextErrors:       nonEmpty(bag.Errors()),
	})
	if err != nil {
		return reply, fmt.Errorf("process request failed: %w", err)
	}
	reply.SessionID = a.adopt(ctx, resp.SessionID)
	reply.Text = resp.ResponseText

	report := a.dispatcher.Dispatch(ctx, resp.Commands, resp.ResponseText)
	reply.Commands = records(run.ID, report)
	if len(report.Outcomes) > 0 {
		reply.Summary = report.Summary()
	}
	if err := a.repo.RecordCommands(ctx, run.ID, reply.Commands); err != nil {
		logger.WarnContext(ctx, "failed to journal commands", "error", err)
	}
	if report.InReview() {
		view := a.ReviewState()
		reply.Review = &view
	}
	return reply, nil
}

func (a *Agent) finishRun(ctx context.Context, logger *slog.Logger, id, status, text, errMsg string) {
	// the caller's context may already be cancelled; the audit row still lands
	ctx = context.WithoutCancel(ctx)
	if err := a.repo.FinishRun(ctx, id, status, text, errMsg); err != nil {
		logger.WarnContext(ctx, "failed to journal run result", "error", err)
	}
}

// session returns the current inference session id, creating and persisting
// one on first use.
func (a *Agent) session(ctx context.Context) (string, error) {
	if a.sessionID != "" {
		return a.sessionID, nil
	}
	id, err := a.repo.GetConfig(ctx, journal.KeySessionID)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
		if err := a.repo.SetConfig(ctx, journal.KeySessionID, id); err != nil {
			return "", err
		}
		a.logger.InfoContext(ctx, "created inference session", "session_id", id)
	}
	a.sessionID = id
	return id, nil
}

// adopt switches to a session id returned by the service.
func (a *Agent) adopt(ctx context.Context, id string) string {
	if id == "" || id == a.sessionID {
		return a.sessionID
	}
	a.logger.InfoContext(ctx, "session id updated", "session_id", id)
	a.sessionID = id
	if err := a.repo.SetConfig(ctx, journal.KeySessionID, id); err != nil {
		a.logger.WarnContext(ctx, "failed to persist session id", "error", err)
	}
	return id
}

// SessionID returns the current inference session id, if one was loaded.
func (a *Agent) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// ResetSession starts a new inference conversation.
func (a *Agent) ResetSession(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.NewString()
	if err := a.repo.SetConfig(ctx, journal.KeySessionID, id); err != nil {
		return "", err
	}
	a.sessionID = id
	return id, nil
}

func records(runID string, report commands.Report) []journal.CommandRecord {
	out := make([]journal.CommandRecord, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rec := journal.CommandRecord{
			RunID:   runID,
			Index:   o.Index,
			Action:  o.Action,
			Status:  string(o.Status),
			Applied: o.Applied,
			Failed:  o.Failed,
		}
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		out = append(out, rec)
	}
	return out
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
