package server

import (
	"net/http"
	"strings"

	apperrors "github.com/amcolab/sell-bot/internal/common/errors"
	"github.com/amcolab/sell-bot/internal/common/metrics"
	"github.com/amcolab/sell-bot/internal/common/validation"
	"github.com/amcolab/sell-bot/internal/form"
	"github.com/amcolab/sell-bot/internal/pricing"
	"github.com/amcolab/sell-bot/internal/submission"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, session string)

func (s *Server) session(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := strings.TrimSpace(r.Header.Get(HeaderSessionID))
		if session == "" {
			s.writeError(w, apperrors.NewInvalidRequestError(HeaderSessionID+" header is required"))
			return
		}
		h(w, r, session)
	}
}

type formResponse struct {
	Form    *form.FormState              `json:"form"`
	Rules   []form.Rule                  `json:"rules,omitempty"`
	Errors  []validation.ValidationError `json:"errors,omitempty"`
	Notices []Notice                     `json:"notices"`
}

type editRequest struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

type blurRequest struct {
	Path string `json:"path"`
}

type quoteResponse struct {
	PriceTable *pricing.PriceTable `json:"priceTable"`
	Form       *form.FormState     `json:"form"`
	Notices    []Notice            `json:"notices"`
}

type previewResponse struct {
	Preview *submission.Preview `json:"preview"`
	Text    string              `json:"text"`
}

type submitResponse struct {
	Result  *submission.Result `json:"result"`
	Notices []Notice           `json:"notices"`
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request, session string) {
	// Returning from the payment page.
	if r.URL.Query().Get("status") == "200" {
		s.notices.Push(session, Notice{Level: NoticeSuccess, Message: PaymentSucceededMessage})
	}

	state, err := s.store.Session(session).Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, formResponse{Form: state, Notices: s.notices.Drain(session)})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, session string) {
	var req editRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	p, err := form.ParsePath(req.Path)
	if err != nil {
		s.writeError(w, pathError(req.Path, err))
		return
	}

	next, rules, err := s.store.Session(session).Edit(r.Context(), p, req.Value)
	if err != nil {
		s.writeError(w, pathError(req.Path, err))
		return
	}

	switch p.Field {
	case form.FieldVoucher, form.FieldApplicationType:
		s.quoter.Schedule(session, next.Voucher, next.ApplicationType)
	}

	s.writeJSON(w, http.StatusOK, formResponse{
		Form:    next,
		Rules:   rules,
		Errors:  s.validator.ValidatePath(next, p),
		Notices: s.notices.Drain(session),
	})
}

func (s *Server) handleBlur(w http.ResponseWriter, r *http.Request, session string) {
	var req blurRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, apperrors.NewInvalidRequestError(err.Error()))
		return
	}
	p, err := form.ParsePath(req.Path)
	if err != nil {
		s.writeError(w, pathError(req.Path, err))
		return
	}

	next, rules, err := s.store.Session(session).Blur(r.Context(), p)
	if err != nil {
		s.writeError(w, pathError(req.Path, err))
		return
	}
	s.writeJSON(w, http.StatusOK, formResponse{
		Form:    next,
		Rules:   rules,
		Errors:  s.validator.ValidatePath(next, p),
		Notices: s.notices.Drain(session),
	})
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request, session string) {
	state, err := s.store.Session(session).Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.validator.Validate(state))
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request, session string) {
	state, err := s.store.Session(session).Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Options(state))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, session string) {
	state, err := s.store.Session(session).Load(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	p := submission.BuildPreview(state, s.tax)
	s.writeJSON(w, http.StatusOK, previewResponse{Preview: p, Text: p.Text()})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, session string) {
	ctx := r.Context()
	log := s.log.WithFields(map[string]interface{}{"session": session})

	state, err := s.store.Session(session).Load(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	res := s.validator.Validate(state)
	if !res.Valid {
		for _, e := range res.Errors {
			metrics.ValidationFailures.WithLabelValues(e.Code).Inc()
		}
		first, _ := res.First()
		log.Info("Submission blocked by validation", map[string]interface{}{
			"errorCount": len(res.Errors),
			"firstField": first.Field,
		})
		s.writeErrorWith(w, apperrors.NewFormValidationFailedError(len(res.Errors)), res.Errors)
		return
	}

	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if !s.loginEnabled || userID == "" {
		stdErr := apperrors.NewPlatformLoginUnavailableError("submitting without a verified user")
		log.Warn("Platform login unavailable", map[string]interface{}{
			"code":         stdErr.Code,
			"loginEnabled": s.loginEnabled,
		})
		if !s.loginEnabled {
			userID = ""
		}
	}

	result, err := s.submitter.Submit(ctx, state, userID)
	if err != nil {
		s.notices.PushError(session, err)
		s.writeError(w, err)
		return
	}

	s.notices.Push(session, Notice{Level: NoticeSuccess, Message: result.Message})
	log.Info("Form submitted", map[string]interface{}{
		"outcome":   result.Outcome,
		"requestId": result.RequestID,
	})
	s.writeJSON(w, http.StatusOK, submitResponse{Result: result, Notices: s.notices.Drain(session)})
	s.releaseSession(session)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, session string) {
	ctx := r.Context()
	fs := s.store.Session(session)

	state, err := fs.Load(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	voucher := state.Voucher
	if q := r.URL.Query(); q.Has("voucher") {
		voucher = strings.TrimSpace(q.Get("voucher"))
	}

	table, err := s.quoter.Quote(ctx, session, voucher, state.ApplicationType)
	if err != nil {
		// the error body carries the failure; drop the duplicate notice the
		// quoter queued but keep anything else pending for the session
		s.notices.Discard(session, apperrors.AsStandard(err).Code)
		s.writeError(w, err)
		return
	}

	state, err = fs.Load(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quoteResponse{
		PriceTable: table,
		Form:       state,
		Notices:    s.notices.Drain(session),
	})
}
