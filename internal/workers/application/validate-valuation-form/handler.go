// Package validatevaluationform re-checks a submitted valuation application
// inside the backend workflow: it re-derives the form, re-prices it against
// the voucher and runs the full validation schema.
package validatevaluationform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"github.com/amcolab/sell-bot/internal/common/config"
	"github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/logger"
	"github.com/amcolab/sell-bot/internal/common/metrics"
	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
)

const TaskType = "validate-valuation-form"

type Handler struct {
	config       *Config
	logger       logger.Logger
	engine       *form.Engine
	validator    *form.Validator
	lookup       pricing.Lookup
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Engine       *form.Engine
	Validator    *form.Validator
	// Lookup may be nil when jobs always carry their price table.
	Lookup pricing.Lookup
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Engine == nil || opts.Validator == nil {
		return nil, fmt.Errorf("%s requires a form engine and validator", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json", "stdout")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       workerConfig,
		logger:       log,
		engine:       opts.Engine,
		validator:    opts.Validator,
		lookup:       opts.Lookup,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) GetTaskType() string { return TaskType }

func (h *Handler) GetConfig() *Config { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing valuation form", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", nil)
		h.completeJob(ctx, client, job, map[string]interface{}{"isValid": false, "skipped": true})
		return
	}

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("job variables: %v", err))
	}
	if input.FormData == nil {
		return nil, errors.NewInvalidRequestError("formData is required")
	}
	if input.FormData.Subsidiaries == nil {
		input.FormData.Subsidiaries = []form.CompanyEntity{}
	}
	return &input, nil
}

// Execute re-derives, re-prices and validates the submitted form.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	state := input.FormData.Clone()
	submitted := state.Price

	table := input.PriceTable
	if table == nil {
		if h.lookup == nil {
			return nil, errors.NewInvalidRequestError("priceTable is required when no voucher endpoint is configured")
		}
		var err error
		table, err = h.lookup.Lookup(ctx, state.Voucher)
		if err != nil {
			return nil, errors.NewVoucherLookupFailedError(state.Voucher, err)
		}
	}

	rules := h.engine.Derive(nil, state, table)
	if rules == nil {
		rules = []form.Rule{}
	}

	res := h.validator.Validate(state)
	h.logger.Info("Validation completed", map[string]interface{}{
		"isValid":      res.Valid,
		"errorCount":   len(res.Errors),
		"appliedRules": rules,
	})
	if !res.Valid {
		for _, e := range res.Errors {
			metrics.ValidationFailures.WithLabelValues(e.Code).Inc()
		}
		return nil, errors.NewFormValidationFailedError(len(res.Errors)).
			WithMetadata("validationErrors", res.Errors)
	}

	return &Output{
		IsValid:          true,
		Price:            state.Price,
		SubmittedPrice:   submitted,
		PriceMatches:     state.Price == submitted,
		AppliedRules:     rules,
		FormData:         state,
		ValidationErrors: []validation.ValidationError{},
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, variables interface{}) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{"error": err})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{"error": err})
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandard(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
