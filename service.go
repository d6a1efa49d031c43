package chatflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/viant/afs/url"
	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/convlog"
	flowdao "github.com/chatflow/chatflow/service/dao/flow"
	"github.com/chatflow/chatflow/service/dao/state/memory"
	"github.com/chatflow/chatflow/service/dispatcher"
	"github.com/chatflow/chatflow/service/fetch"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/handler/addon"
	"github.com/chatflow/chatflow/service/handler/message"
	"github.com/chatflow/chatflow/service/handler/tool"
	"github.com/chatflow/chatflow/service/liststore"
	"github.com/chatflow/chatflow/service/messaging"
	queue "github.com/chatflow/chatflow/service/messaging/memory"
	"github.com/chatflow/chatflow/service/messenger"
	"github.com/chatflow/chatflow/service/tracing"
)

// Service is the flow execution engine: flow loading, entry resolution,
// dispatch and the node handlers wired together.
type Service struct {
	config     *Config
	logger     *zap.Logger
	deps       *handler.Deps
	registry   *handler.Registry
	dispatcher *dispatcher.Service
	flows      *flowdao.Service
	queue      messaging.Queue[model.Inbound]
}

// New creates an engine. Collaborators default to in-memory
// implementations, which suits tests and examples; production embedders
// supply their own via options.
func New(options ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: zap.NewNop(),
		deps:   &handler.Deps{},
		flows:  flowdao.New(),
	}
	for _, option := range options {
		option(s)
	}
	s.config.Init()
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.config.Tracing != nil {
		if err := tracing.Init(s.config.Tracing.ServiceName, s.config.Tracing.ServiceVersion, s.config.Tracing.OutputFile); err != nil {
			return nil, fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}

	s.deps.Logger = s.logger
	if s.deps.Log == nil {
		s.deps.Log = convlog.New(s.config.ConvLogURL)
	}
	if s.deps.States == nil {
		s.deps.States = memory.New(memory.WithRetention(s.config.StateRetention))
	}
	if s.deps.Lists == nil {
		s.deps.Lists = liststore.NewMemory()
	}
	if s.deps.Messenger == nil {
		s.deps.Messenger = &messenger.Recorder{Log: s.deps.Log}
	}
	if s.deps.Fetch == nil && s.config.HTTPTimeout > 0 {
		s.deps.Fetch = fetch.New(fetch.WithTimeout(s.config.HTTPTimeout))
	}
	s.deps.Init()

	var addonOptions []addon.Option
	if s.config.HistoryTurns > 0 {
		addonOptions = append(addonOptions, addon.WithHistoryTurns(s.config.HistoryTurns))
	}
	if s.config.HistoryDelay > 0 {
		addonOptions = append(addonOptions, addon.WithHistoryDelay(s.config.HistoryDelay))
	}
	s.registry = handler.NewRegistry()
	s.registry.Register(model.CategoryMessage, message.New(s.deps))
	s.registry.Register(model.CategoryTool, tool.New(s.deps))
	s.registry.Register(model.CategoryAddon, addon.New(s.deps, addonOptions...))

	var dispatcherOptions []dispatcher.Option
	if s.config.MaxDepth > 0 {
		dispatcherOptions = append(dispatcherOptions, dispatcher.WithMaxDepth(s.config.MaxDepth))
	}
	s.dispatcher = dispatcher.New(s.deps, s.registry, dispatcherOptions...)

	if s.queue == nil {
		s.queue = queue.NewQueue[model.Inbound](queue.DefaultConfig())
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config {
	return s.config
}

// Flows returns the flow definition loader.
func (s *Service) Flows() *flowdao.Service {
	return s.flows
}

// Dispatcher returns the dispatch core.
func (s *Service) Dispatcher() *dispatcher.Service {
	return s.dispatcher
}

// HandleInbound logs the inbound message and runs it through the flow it
// addresses. The call returns once the whole continuation chain bottoms
// out.
func (s *Service) HandleInbound(ctx context.Context, inbound *model.Inbound) error {
	if inbound == nil {
		return errors.New("inbound is required")
	}
	flow, err := s.flowFor(ctx, inbound)
	if err != nil {
		return err
	}
	record := convlog.NewRecord(convlog.DirectionIn, "text", inbound.Value())
	if err := s.deps.Log.Append(ctx, inbound.ChatID, record); err != nil {
		s.logger.Warn("failed to log inbound message",
			zap.String("chatId", inbound.ChatID),
			zap.Error(err))
	}
	return s.dispatcher.Dispatch(ctx, flow, inbound)
}

// flowFor resolves the inbound's flow definition: an absolute URL is used
// as is, a bare id is joined with the configured base.
func (s *Service) flowFor(ctx context.Context, inbound *model.Inbound) (*model.Flow, error) {
	location := inbound.FlowID
	if location == "" {
		return nil, errors.New("inbound flow id is required")
	}
	if url.Scheme(location, "") == "" && !filepath.IsAbs(location) {
		if s.config.FlowBaseURL == "" {
			return nil, fmt.Errorf("flow base URL is not configured, cannot resolve flow %s", location)
		}
		location = url.Join(s.config.FlowBaseURL, location)
	}
	return s.flows.Load(ctx, location)
}
