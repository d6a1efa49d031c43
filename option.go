package chatflow

import (
	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/ai"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/dao"
	flowdao "github.com/chatflow/chatflow/service/dao/flow"
	"github.com/chatflow/chatflow/service/fetch"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/messaging"
	"github.com/chatflow/chatflow/service/messenger"
)

// Option customizes the engine service.
type Option func(*Service)

// WithConfig supplies the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger overrides the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMessenger sets the outbound delivery collaborator.
func WithMessenger(service messenger.Service) Option {
	return func(s *Service) {
		s.deps.Messenger = service
	}
}

// WithAI sets the completion provider.
func WithAI(service ai.Service) Option {
	return func(s *Service) {
		s.deps.AI = service
	}
}

// WithLists sets the suppression/assignment list store.
func WithLists(lists handler.Lists) Option {
	return func(s *Service) {
		s.deps.Lists = lists
	}
}

// WithStates sets the execution-state backend.
func WithStates(states dao.Service[string, model.ExecutionState]) Option {
	return func(s *Service) {
		s.deps.States = states
	}
}

// WithConvLog sets the conversation log store.
func WithConvLog(log *convlog.Store) Option {
	return func(s *Service) {
		s.deps.Log = log
	}
}

// WithFetch sets the outbound HTTP collaborator.
func WithFetch(service *fetch.Service) Option {
	return func(s *Service) {
		s.deps.Fetch = service
	}
}

// WithSheets sets the spreadsheet client factory.
func WithSheets(factory handler.SheetsFactory) Option {
	return func(s *Service) {
		s.deps.Sheets = factory
	}
}

// WithFlowService sets the flow definition loader.
func WithFlowService(flows *flowdao.Service) Option {
	return func(s *Service) {
		if flows != nil {
			s.flows = flows
		}
	}
}

// WithQueue sets the inbound event queue used by the runtime.
func WithQueue(queue messaging.Queue[model.Inbound]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}
